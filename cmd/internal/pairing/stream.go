package pairing

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"tggate/cmd/internal/ids"
	v1 "tggate/shared/contracts/gateway/v1"

	"github.com/coder/websocket"
)

const (
	streamWriteTimeout = 5 * time.Second
	streamHeartbeat    = 25 * time.Second
	streamQueue        = 8
)

// ToPayload converts a snapshot into its wire form.
func ToPayload(s Snapshot) v1.PairingStatePayload {
	p := v1.PairingStatePayload{
		State:     string(s.State),
		Renewals:  s.Renewals,
		Error:     s.Err,
		UpdatedAt: s.UpdatedAt,
	}
	if s.Challenge != nil {
		p.ChallengeURL = s.Challenge.URL
		if !s.Challenge.ExpiresAt.IsZero() {
			exp := s.Challenge.ExpiresAt.UTC()
			p.ChallengeExpiresAt = &exp
		}
	}
	return p
}

// StreamHandler streams machine snapshots to websocket clients.
// Clients only listen; anything they send is discarded.
type StreamHandler struct {
	log            *slog.Logger
	machine        *Machine
	originPatterns []string
	heartbeat      time.Duration
}

// NewStreamHandler returns a handler for the pairing websocket.
// originPatterns authorizes cross-origin browsers (see websocket.AcceptOptions).
func NewStreamHandler(log *slog.Logger, m *Machine, originPatterns []string) *StreamHandler {
	if log == nil {
		log = slog.Default()
	}
	return &StreamHandler{
		log:            log,
		machine:        m,
		originPatterns: originPatterns,
		heartbeat:      streamHeartbeat,
	}
}

// ServeHTTP upgrades the request and forwards snapshots until either side closes.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{v1.Subprotocol},
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.log.Info("pairing.ws.accept.fail", "err", err, "remote", r.RemoteAddr)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	if sp := conn.Subprotocol(); sp != v1.Subprotocol {
		h.log.Info("pairing.ws.reject.subprotocol", "got", sp, "want", v1.Subprotocol)
		_ = conn.Close(websocket.StatusPolicyViolation, "subprotocol required")
		return
	}

	// CloseRead discards client frames and cancels ctx once the peer goes away.
	ctx := conn.CloseRead(r.Context())

	snaps, cancel := h.machine.Subscribe(streamQueue)
	defer cancel()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	h.log.Info("pairing.ws.open", "remote", r.RemoteAddr)

	for {
		select {
		case <-ctx.Done():
			h.log.Info("pairing.ws.close", "remote", r.RemoteAddr)
			return
		case snap := <-snaps:
			if err := writeSnapshot(ctx, conn, snap); err != nil {
				h.log.Info("pairing.ws.write.fail", "close_status", websocket.CloseStatus(err), "err", err)
				return
			}
		case <-ticker.C:
			pingCtx, cancelPing := context.WithTimeout(ctx, streamWriteTimeout)
			err := conn.Ping(pingCtx)
			cancelPing()
			if err != nil {
				h.log.Info("pairing.ws.heartbeat.fail", "err", err)
				_ = conn.Close(websocket.StatusGoingAway, "heartbeat failed")
				return
			}
		}
	}
}

func writeSnapshot(parent context.Context, conn *websocket.Conn, s Snapshot) error {
	payload, err := json.Marshal(ToPayload(s))
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	b, err := json.Marshal(v1.Envelope{
		V:       v1.Version,
		Type:    v1.TypePairingState,
		ID:      ids.NewRequestID(now),
		TS:      now,
		Payload: payload,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(parent, streamWriteTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, b)
}
