// Package app wires the gateway runtime: config, logging, the credential
// store, the session gate and the HTTP routes.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"tggate/cmd/internal/credstore"
	"tggate/cmd/internal/dispatch"
	"tggate/cmd/internal/gate"
	"tggate/cmd/internal/metrics"
	"tggate/cmd/internal/pairing"
	"tggate/cmd/internal/telegram"

	"github.com/jackc/pgx/v5/pgxpool"
)

// App is the gateway runtime: it owns the session gate, the HTTP server
// wiring and the optional database pool.
type App struct {
	cfg Config
	log Logger

	metrics *metrics.Metrics
	pool    *pgxpool.Pool

	gate   *gate.Gate
	send   *dispatch.Handler
	stream *pairing.StreamHandler
}

// New constructs a fully wired App. A nil newClient selects the Telegram
// client built from cfg.
func New(ctx context.Context, cfg Config, log Logger, newClient gate.ClientFactory) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat, nil)
	}

	if newClient == nil {
		tgLog, err := telegram.NewLogger(cfg.TelegramLogLevel)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConfig, err)
		}
		newClient = telegram.NewFactory(cfg.APIID, cfg.APIHash, telegram.Options{
			Logger:  tgLog,
			Retries: cfg.ConnectRetries,
		})
	}

	store, pool, err := newCredentialStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	machine := pairing.NewMachine(log)

	g := gate.New(ctx, log, newClient, store, gate.Options{
		Password:       cfg.Password,
		PairingTimeout: cfg.PairingTimeout,
		Machine:        machine,
		Metrics:        m,
	})

	return &App{
		cfg:     cfg,
		log:     log,
		metrics: m,
		pool:    pool,
		gate:    g,
		send:    dispatch.NewHandler(log, g, cfg.MaxBodyBytes, m),
		stream:  pairing.NewStreamHandler(log, machine, cfg.WSOrigins),
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.routes(),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       a.cfg.ReadTimeout,
		WriteTimeout:      a.cfg.WriteTimeout,
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.pool != nil)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		a.close()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), nonZeroDuration(a.cfg.ShutdownTimeout, 10*time.Second))
	defer cancel()

	// Abort a pending pairing first so blocked /send requests can drain.
	a.close()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	a.log.Info("server.stopped")
	return nil
}

// Login acquires the session once, pairing if needed, then releases it.
// The credential is persisted by the gate as part of the acquisition.
func (a *App) Login(ctx context.Context) error {
	defer a.close()

	if _, err := a.gate.Acquire(ctx); err != nil {
		a.log.Error("login.fail", "err", err)
		return err
	}
	a.log.Info("login.done", "state", string(a.gate.State().State))
	return nil
}

func (a *App) close() {
	if err := a.gate.Close(); err != nil {
		a.log.Warn("gate.close.fail", "err", err)
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// newCredentialStore decides between the Postgres-backed store and the
// session file, sealing either one when a passphrase is configured.
func newCredentialStore(ctx context.Context, cfg Config, log Logger) (credstore.Store, *pgxpool.Pool, error) {
	var (
		store credstore.Store
		pool  *pgxpool.Pool
	)

	if cfg.DatabaseURL == "" {
		fs := credstore.NewFileStore(cfg.SessionFile)
		log.Info("store.file", "path", fs.Path())
		store = fs
	} else {
		var err error
		pool, err = NewDBPool(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}

		// Ownership model:
		// - app owns pool lifecycle
		// - PostgresStore never closes it
		pg, err := credstore.NewPostgresStore(pool, credstore.DefaultTable)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		log.Info("store.postgres", "table", credstore.DefaultTable)
		store = pg
	}

	if cfg.SessionPassphrase != "" {
		log.Info("store.sealed")
		store = credstore.NewSealed(store, cfg.SessionPassphrase)
	}
	return store, pool, nil
}
