package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"tggate/cmd/internal/gate"
	v1 "tggate/shared/contracts/gateway/v1"

	"github.com/stretchr/testify/require"
)

type sent struct {
	dest gate.Destination
	text string
}

type stubClient struct {
	gate.Client

	mu      sync.Mutex
	sendErr error
	sent    []sent
}

func (c *stubClient) Send(_ context.Context, dest gate.Destination, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, sent{dest: dest, text: text})
	return nil
}

type stubAcquirer struct {
	client *stubClient
	err    error
	calls  int
}

func (a *stubAcquirer) Acquire(context.Context) (gate.Client, error) {
	a.calls++
	if a.err != nil {
		return nil, a.err
	}
	return a.client, nil
}

func newTestHandler(acq Acquirer) http.Handler {
	mux := http.NewServeMux()
	NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), acq, 0, nil).Register(mux)
	return mux
}

func doSend(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/send", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestSend_ValidationBoundary(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		body string
		want string
	}{
		{name: "empty chat", body: `{"chat": "", "message": "hi"}`, want: msgRequired},
		{name: "missing chat", body: `{"message": "hi"}`, want: msgRequired},
		{name: "null chat", body: `{"chat": null, "message": "hi"}`, want: msgRequired},
		{name: "zero chat", body: `{"chat": 0, "message": "hi"}`, want: msgRequired},
		{name: "fractional chat", body: `{"chat": 1.5, "message": "hi"}`, want: msgRequired},
		{name: "bool chat", body: `{"chat": true, "message": "hi"}`, want: msgRequired},
		{name: "blank chat", body: `{"chat": "   ", "message": "hi"}`, want: msgRequired},
		{name: "missing message", body: `{"chat": "@durov"}`, want: msgRequired},
		{name: "empty message", body: `{"chat": "@durov", "message": ""}`, want: msgRequired},
		{name: "not json", body: `chat=1`, want: msgInvalidBody},
		{name: "trailing data", body: `{"chat": 1, "message": "hi"} {}`, want: msgInvalidBody},
		{name: "empty body", body: ``, want: msgInvalidBody},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			acq := &stubAcquirer{client: &stubClient{}}
			rr := doSend(t, newTestHandler(acq), tc.body)

			require.Equal(t, http.StatusBadRequest, rr.Code)
			var resp v1.ErrorResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			require.Equal(t, tc.want, resp.Error)
			require.Zero(t, acq.calls, "no acquisition on invalid input")
		})
	}
}

func TestSend_Success(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		body string
		want gate.Destination
	}{
		{name: "numeric", body: `{"chat": 123, "message": "hi"}`, want: gate.Destination{ID: 123}},
		{name: "negative numeric", body: `{"chat": -1001234567890, "message": "hi"}`, want: gate.Destination{ID: -1001234567890}},
		{name: "numeric string", body: `{"chat": "-100123", "message": "hi"}`, want: gate.Destination{ID: -100123}},
		{name: "username", body: `{"chat": "@durov", "message": "hi"}`, want: gate.Destination{Username: "@durov"}},
		{name: "extra fields", body: `{"chat": "me", "message": "hi", "silent": true}`, want: gate.Destination{Username: "me"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			client := &stubClient{}
			acq := &stubAcquirer{client: client}
			rr := doSend(t, newTestHandler(acq), tc.body)

			require.Equal(t, http.StatusOK, rr.Code)
			require.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
			require.Equal(t, 1, acq.calls)
			require.Len(t, client.sent, 1)
			require.Equal(t, tc.want, client.sent[0].dest)
			require.Equal(t, "hi", client.sent[0].text)
		})
	}
}

func TestSend_FailureSurfacesCause(t *testing.T) {
	t.Parallel()

	acq := &stubAcquirer{client: &stubClient{sendErr: errors.New("rate limited")}}
	rr := doSend(t, newTestHandler(acq), `{"chat": 123, "message": "hi"}`)

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	var resp v1.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, msgSendFailed, resp.Error)
	require.Contains(t, resp.Details, "rate limited")
}

func TestSend_AcquireFailure(t *testing.T) {
	t.Parallel()

	acq := &stubAcquirer{err: &gate.StageError{Stage: "pair", Kind: gate.ErrAuth, Err: errors.New("AUTH_TOKEN_EXPIRED")}}
	rr := doSend(t, newTestHandler(acq), `{"chat": "@durov", "message": "hi"}`)

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	var resp v1.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Contains(t, resp.Details, "AUTH_TOKEN_EXPIRED")
	require.Contains(t, resp.Details, gate.ErrAuth.Error())
}

func TestSend_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	acq := &stubAcquirer{client: &stubClient{}}
	rr := httptest.NewRecorder()
	newTestHandler(acq).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/send", nil))

	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	require.Equal(t, http.MethodPost, rr.Header().Get("Allow"))
	require.Zero(t, acq.calls)
}

func TestSend_BodyTooLarge(t *testing.T) {
	t.Parallel()

	acq := &stubAcquirer{client: &stubClient{}}
	mux := http.NewServeMux()
	NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), acq, 64, nil).Register(mux)

	body := `{"chat": "@durov", "message": "` + strings.Repeat("x", 128) + `"}`
	rr := doSend(t, mux, body)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Zero(t, acq.calls)
}
