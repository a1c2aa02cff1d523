// Package dispatch serves POST /send: validate, acquire the session, deliver.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"tggate/cmd/internal/gate"
	"tggate/cmd/internal/ids"
	"tggate/cmd/internal/metrics"
	v1 "tggate/shared/contracts/gateway/v1"
)

const (
	msgInvalidBody = "invalid request body"
	msgRequired    = "chat and message are required"
	msgSendFailed  = "failed to send message"

	defaultMaxBodyBytes = 1 << 20 // 1 MiB
)

// Acquirer hands out the authenticated client.
type Acquirer interface {
	Acquire(ctx context.Context) (gate.Client, error)
}

// Handler wires the send endpoint to the session gate.
type Handler struct {
	log     *slog.Logger
	gate    Acquirer
	metrics *metrics.Metrics

	maxBodyBytes int64
}

// NewHandler constructs a Handler. maxBodyBytes <= 0 selects 1 MiB.
func NewHandler(log *slog.Logger, g Acquirer, maxBodyBytes int64, m *metrics.Metrics) *Handler {
	if log == nil {
		log = slog.Default()
	}
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}
	return &Handler{log: log, gate: g, metrics: m, maxBodyBytes: maxBodyBytes}
}

// Register wires the send route onto mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/send", h.handleSend)
}

func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	log := h.log.With("request_id", ids.RequestIDFrom(ctx))

	var req v1.SendRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		log.Info("dispatch.send.invalid_json", "err", err)
		writeError(w, http.StatusBadRequest, msgInvalidBody, "")
		return
	}

	dest, text, ok := parseSendRequest(req)
	if !ok {
		writeError(w, http.StatusBadRequest, msgRequired, "")
		return
	}

	if err := h.send(ctx, dest, text); err != nil {
		h.metrics.Send(metrics.ResultError)
		log.Error("dispatch.send.fail", "chat", dest.String(), "err", err)
		writeError(w, http.StatusInternalServerError, msgSendFailed, err.Error())
		return
	}

	h.metrics.Send(metrics.ResultSuccess)
	log.Info("dispatch.send.ok", "chat", dest.String(), "chars", len([]rune(text)))
	writeJSON(w, http.StatusOK, v1.SendResponse{Status: v1.StatusOK})
}

func (h *Handler) send(ctx context.Context, dest gate.Destination, text string) error {
	client, err := h.gate.Acquire(ctx)
	if err != nil {
		return err
	}
	if err := client.Send(ctx, dest, text); err != nil {
		var se *gate.StageError
		if errors.As(err, &se) {
			return err
		}
		return &gate.StageError{Stage: "send", Kind: gate.ErrSend, Err: err}
	}
	return nil
}
