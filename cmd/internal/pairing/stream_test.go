package pairing

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	v1 "tggate/shared/contracts/gateway/v1"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/require"
)

func readPayload(ctx context.Context, t *testing.T, conn *websocket.Conn) v1.PairingStatePayload {
	t.Helper()

	_, b, err := conn.Read(ctx)
	require.NoError(t, err)

	var env v1.Envelope
	require.NoError(t, json.Unmarshal(b, &env))
	require.NoError(t, env.Validate())
	require.Equal(t, v1.TypePairingState, env.Type)

	var p v1.PairingStatePayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	return p
}

func TestStreamHandler_ForwardsSnapshots(t *testing.T) {
	t.Parallel()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := NewMachine(log)
	srv := httptest.NewServer(NewStreamHandler(log, m, nil))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{Subprotocols: []string{v1.Subprotocol}})
	require.NoError(t, err)
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	p := readPayload(ctx, t, conn)
	require.Equal(t, string(StateUnauthenticated), p.State)

	require.NoError(t, m.Begin())
	require.NoError(t, m.Challenge(Challenge{URL: "tg://login?token=x", ExpiresAt: time.Now().Add(time.Minute)}))

	p = readPayload(ctx, t, conn)
	require.Equal(t, string(StateAwaitingScan), p.State)

	p = readPayload(ctx, t, conn)
	require.Equal(t, "tg://login?token=x", p.ChallengeURL)
	require.NotNil(t, p.ChallengeExpiresAt)
}

func TestStreamHandler_RequiresSubprotocol(t *testing.T) {
	t.Parallel()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(NewStreamHandler(log, NewMachine(log), nil))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)

	_, _, err = conn.Read(ctx)
	require.Error(t, err)
	require.Equal(t, websocket.StatusPolicyViolation, websocket.CloseStatus(err))
}
