package app

import (
	"encoding/json"
	"net/http"
	"time"

	"tggate/cmd/internal/pairing"
)

func (a *App) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("/readyz", a.handleReady)
	mux.HandleFunc("/pairing", a.handlePairing)
	mux.Handle("/pairing/ws", a.stream)
	mux.Handle("/metrics", a.metrics.Handler())

	a.send.Register(mux)

	return WithRequestID(WithRequestLogging(mux, a.log, a.metrics))
}

// handleReady reports 200 only once the session is authenticated.
func (a *App) handleReady(w http.ResponseWriter, r *http.Request) {
	if !a.gate.Ready() {
		http.Error(w, "session not authenticated", http.StatusServiceUnavailable)
		return
	}

	if a.pool != nil {
		if err := PingDB(r.Context(), a.pool, 2*time.Second); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			a.log.Info("readyz.db.not_ready", "err", err)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready\n"))
}

func (a *App) handlePairing(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(pairing.ToPayload(a.gate.State()))
}
