package v1

import (
	"encoding/json"
	"testing"
	"time"
)

func TestEnvelopeValidate(t *testing.T) {
	t.Parallel()

	payload, err := json.Marshal(PairingStatePayload{State: "awaiting-scan", UpdatedAt: time.Now()})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}

	cases := []struct {
		name    string
		env     Envelope
		wantErr bool
	}{
		{name: "ok", env: Envelope{V: Version, Type: TypePairingState, Payload: payload}},
		{name: "error type", env: Envelope{V: Version, Type: TypeError}},
		{name: "missing version", env: Envelope{Type: TypePairingState}, wantErr: true},
		{name: "wrong version", env: Envelope{V: "v2", Type: TypePairingState}, wantErr: true},
		{name: "missing type", env: Envelope{V: Version}, wantErr: true},
		{name: "unknown type", env: Envelope{V: Version, Type: "hello"}, wantErr: true},
	}

	for _, tc := range cases {
		err := tc.env.Validate()
		if (err != nil) != tc.wantErr {
			t.Fatalf("%s: Validate() err=%v wantErr=%v", tc.name, err, tc.wantErr)
		}
	}
}
