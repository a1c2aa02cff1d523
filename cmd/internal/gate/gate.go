package gate

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"tggate/cmd/internal/credstore"
	"tggate/cmd/internal/metrics"
	"tggate/cmd/internal/pairing"

	"golang.org/x/sync/singleflight"
)

const acquireKey = "acquire"

// Options tunes a Gate. The zero value is usable.
type Options struct {
	// Password answers a second-factor request.
	Password string

	// PairingTimeout bounds the handshake. Zero waits for the operator forever.
	PairingTimeout time.Duration

	// Machine receives handshake transitions. Nil creates a private one.
	Machine *pairing.Machine

	// Renderer presents challenges. Nil renders QR codes on stdout.
	Renderer pairing.Renderer

	Metrics *metrics.Metrics
}

// Gate owns the single authenticated client of the process.
type Gate struct {
	log       *slog.Logger
	newClient ClientFactory
	store     credstore.Store
	machine   *pairing.Machine
	renderer  pairing.Renderer
	metrics   *metrics.Metrics

	password       string
	pairingTimeout time.Duration

	// base outlives individual requests; handshakes run on it.
	base context.Context
	stop context.CancelFunc

	group singleflight.Group

	mu         sync.Mutex
	credential string
	client     Client
	closed     bool
}

// New constructs a Gate and loads the stored credential once.
// A credential that cannot be read is logged and treated as absent.
func New(ctx context.Context, log *slog.Logger, newClient ClientFactory, store credstore.Store, opts Options) *Gate {
	if log == nil {
		log = slog.Default()
	}
	if opts.Machine == nil {
		opts.Machine = pairing.NewMachine(log)
	}
	if opts.Renderer == nil {
		opts.Renderer = pairing.NewTerminalRenderer(nil)
	}

	base, stop := context.WithCancel(context.WithoutCancel(ctx))

	g := &Gate{
		log:            log,
		newClient:      newClient,
		store:          store,
		machine:        opts.Machine,
		renderer:       opts.Renderer,
		metrics:        opts.Metrics,
		password:       opts.Password,
		pairingTimeout: opts.PairingTimeout,
		base:           base,
		stop:           stop,
	}

	cred, err := store.Load(ctx)
	switch {
	case err != nil:
		log.Warn("gate.session.load.fail", "err", err)
	case cred == "":
		log.Info("gate.session.absent")
	default:
		log.Info("gate.session.loaded")
	}
	g.credential = cred

	return g
}

// Acquire returns the authenticated client, establishing it on first use.
//
// Callers arriving while an acquisition is in flight wait for that same
// attempt. If ctx ends first, Acquire returns ctx.Err() and the attempt keeps
// running for the others.
func (g *Gate) Acquire(ctx context.Context) (Client, error) {
	c, err := g.cached()
	if err != nil {
		return nil, err
	}
	if c != nil {
		g.metrics.Acquisition(metrics.ResultCached)
		return c, nil
	}

	ch := g.group.DoChan(acquireKey, func() (any, error) {
		return g.establish()
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Client), nil
	}
}

// State returns the current pairing snapshot.
func (g *Gate) State() pairing.Snapshot { return g.machine.Snapshot() }

// Machine exposes the pairing state machine for observers.
func (g *Gate) Machine() *pairing.Machine { return g.machine }

// Ready reports whether an authenticated client is cached.
func (g *Gate) Ready() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.client != nil
}

// Close aborts any running handshake and closes the cached client.
func (g *Gate) Close() error {
	g.mu.Lock()
	c := g.client
	g.client = nil
	g.closed = true
	g.mu.Unlock()

	g.stop()
	g.metrics.SetAuthenticated(false)

	if c == nil {
		return nil
	}
	return c.Close()
}

func (g *Gate) cached() (Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil, ErrClosed
	}
	return g.client, nil
}

// establish runs inside the singleflight group.
func (g *Gate) establish() (Client, error) {
	// A flight may start just after the previous one cached its client.
	if c, err := g.cached(); c != nil || err != nil {
		return c, err
	}

	ctx := g.base
	start := time.Now()

	g.mu.Lock()
	cred := g.credential
	g.mu.Unlock()

	g.log.Info("gate.acquire.start", "stored_session", cred != "")

	client, err := g.newClient(cred)
	if err != nil {
		g.metrics.Acquisition(metrics.ResultError)
		return nil, &StageError{Stage: "create", Kind: ErrConnect, Err: err}
	}

	result, err := g.authorize(ctx, client)
	if err != nil {
		g.metrics.Acquisition(metrics.ResultError)
		g.log.Error("gate.acquire.fail", "err", err, "duration_ms", time.Since(start).Milliseconds())
		if cerr := client.Close(); cerr != nil {
			g.log.Warn("gate.client.close.fail", "err", cerr)
		}
		return nil, err
	}

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		_ = client.Close()
		return nil, ErrClosed
	}
	g.client = client
	g.mu.Unlock()

	g.metrics.Acquisition(result)
	g.metrics.SetAuthenticated(true)
	g.log.Info("gate.acquire.done", "result", result, "duration_ms", time.Since(start).Milliseconds())
	return client, nil
}

// authorize connects and makes sure client is authorized, pairing if needed.
func (g *Gate) authorize(ctx context.Context, client Client) (string, error) {
	if err := client.Connect(ctx); err != nil {
		return "", &StageError{Stage: "connect", Kind: ErrConnect, Err: err}
	}

	ok, err := client.IsAuthorized(ctx)
	if err != nil {
		return "", &StageError{Stage: "status", Kind: ErrConnect, Err: err}
	}
	if ok {
		g.machine.Authenticated()
		g.log.Info("gate.session.reused")
		return metrics.ResultReused, nil
	}

	g.log.Info("gate.pairing.start")
	if err := g.pair(ctx, client); err != nil {
		return "", err
	}
	g.log.Info("gate.pairing.done")

	g.persist(ctx, client)
	return metrics.ResultPaired, nil
}

func (g *Gate) pair(ctx context.Context, client Client) error {
	if err := g.machine.Begin(); err != nil {
		return &StageError{Stage: "pair", Kind: ErrAuth, Err: err}
	}

	if g.pairingTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.pairingTimeout)
		defer cancel()
	}

	err := client.SignInWithPairing(ctx, PairingHandlers{
		OnChallenge:         g.onChallenge,
		OnPasswordRequested: g.onPasswordRequested,
		OnError:             g.machine.Note,
	})
	if err != nil {
		g.machine.Fail(err)
		g.metrics.Handshake(metrics.ResultError)
		return &StageError{Stage: "pair", Kind: ErrAuth, Err: err}
	}

	g.machine.Authenticated()
	g.metrics.Handshake(metrics.ResultSuccess)
	return nil
}

func (g *Gate) onChallenge(_ context.Context, c pairing.Challenge) error {
	if err := g.machine.Challenge(c); err != nil {
		return err
	}
	g.metrics.Challenge()

	// Rendering is presentation only; the code is still available via the machine.
	if err := g.renderer.Render(c); err != nil {
		g.log.Warn("gate.pairing.render.fail", "err", err)
	}
	return nil
}

func (g *Gate) onPasswordRequested(_ context.Context) (string, error) {
	if err := g.machine.PasswordRequested(); err != nil {
		return "", err
	}
	if g.password == "" {
		return "", ErrPasswordRequired
	}
	return g.password, nil
}

// persist saves the exported credential. Failures are warnings: the session
// stays usable in this process.
func (g *Gate) persist(ctx context.Context, client Client) {
	cred, err := client.ExportSession(ctx)
	if err != nil {
		g.log.Warn("gate.session.export.fail", "err", err)
		return
	}
	if err := g.store.Save(ctx, cred); err != nil {
		if !errors.Is(err, credstore.ErrStorage) {
			err = &credstore.Error{Op: "write", Err: err}
		}
		g.log.Warn("gate.session.save.fail", "err", err)
		return
	}

	g.mu.Lock()
	g.credential = cred
	g.mu.Unlock()

	g.log.Info("gate.session.saved")
}
