package telegram

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"tggate/cmd/internal/gate"
	"tggate/cmd/internal/pairing"

	"github.com/cenkalti/backoff/v4"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth/qrlogin"
	"github.com/gotd/td/telegram/message"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"go.uber.org/zap"
)

const (
	// DefaultRetries is the reconnect budget when Options.Retries is unset.
	DefaultRetries = 5

	errPasswordNeeded = "SESSION_PASSWORD_NEEDED"
)

var errNotConnected = errors.New("telegram: client not connected")

// Options configures every client built by a factory.
type Options struct {
	Logger *zap.Logger

	// Retries bounds reconnection attempts. Zero selects DefaultRetries.
	Retries int
}

// NewFactory returns a gate.ClientFactory bound to the application credentials.
func NewFactory(appID int, appHash string, opts Options) gate.ClientFactory {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Retries <= 0 {
		opts.Retries = DefaultRetries
	}
	return func(credential string) (gate.Client, error) {
		return newClient(appID, appHash, credential, opts)
	}
}

// Client is one MTProto connection and its session.
type Client struct {
	log      *zap.Logger
	tg       *telegram.Client
	session  *memorySession
	loggedIn <-chan struct{}

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan error
}

var _ gate.Client = (*Client)(nil)

func newClient(appID int, appHash, credential string, opts Options) (*Client, error) {
	if appID <= 0 || appHash == "" {
		return nil, errors.New("telegram: api id and hash are required")
	}

	sess := &memorySession{}
	data, err := decodeCredential(credential)
	if err != nil {
		// A damaged credential is replaced by a fresh pairing.
		opts.Logger.Warn("stored session is not decodable; starting a new one", zap.Error(err))
	} else if len(data) > 0 {
		_ = sess.StoreSession(context.Background(), data)
	}

	d := tg.NewUpdateDispatcher()
	loggedIn := qrlogin.OnLoginToken(d)

	retries := uint64(opts.Retries)
	client := telegram.NewClient(appID, appHash, telegram.Options{
		Logger:         opts.Logger,
		SessionStorage: sess,
		UpdateHandler:  d,
		ReconnectionBackoff: func() backoff.BackOff {
			return backoff.WithMaxRetries(backoff.NewExponentialBackOff(), retries)
		},
	})

	return &Client{
		log:      opts.Logger,
		tg:       client,
		session:  sess,
		loggedIn: loggedIn,
	}, nil
}

// Connect starts the client's run loop and returns once it is connected.
// The loop lives until Close or until ctx ends.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	c.cancel, c.done = cancel, done
	c.mu.Unlock()

	ready := make(chan struct{})
	go func() {
		done <- c.tg.Run(runCtx, func(ctx context.Context) error {
			close(ready)
			<-ctx.Done()
			return ctx.Err()
		})
	}()

	select {
	case <-ready:
		return nil
	case err := <-done:
		// Put it back for Close.
		done <- err
		if err == nil {
			err = errNotConnected
		}
		return err
	case <-ctx.Done():
		cancel()
		return ctx.Err()
	}
}

// IsAuthorized asks the server whether the session is signed in.
func (c *Client) IsAuthorized(ctx context.Context) (bool, error) {
	status, err := c.tg.Auth().Status(ctx)
	if err != nil {
		return false, err
	}
	return status.Authorized, nil
}

// SignInWithPairing runs the QR login flow. Expired tokens are renewed by
// the flow itself and each one is reported through h.OnChallenge.
func (c *Client) SignInWithPairing(ctx context.Context, h gate.PairingHandlers) error {
	_, err := c.tg.QR().Auth(ctx, c.loggedIn, func(ctx context.Context, token qrlogin.Token) error {
		if h.OnChallenge == nil {
			return nil
		}
		return h.OnChallenge(ctx, pairing.Challenge{URL: token.URL(), ExpiresAt: token.Expires()})
	})
	if err == nil {
		return nil
	}
	if !tgerr.Is(err, errPasswordNeeded) {
		return err
	}

	if h.OnError != nil {
		h.OnError(err)
	}
	if h.OnPasswordRequested == nil {
		return gate.ErrPasswordRequired
	}
	password, err := h.OnPasswordRequested(ctx)
	if err != nil {
		return err
	}
	if _, err := c.tg.Auth().Password(ctx, password); err != nil {
		return fmt.Errorf("check password: %w", err)
	}
	return nil
}

// ExportSession returns the session as unpadded base64url.
func (c *Client) ExportSession(context.Context) (string, error) {
	cred := c.session.export()
	if cred == "" {
		return "", errors.New("telegram: no session to export")
	}
	return cred, nil
}

// Send delivers text to dest.
func (c *Client) Send(ctx context.Context, dest gate.Destination, text string) error {
	sender := message.NewSender(c.tg.API())

	var b *message.RequestBuilder
	switch {
	case dest.Username != "" && isSelf(dest.Username):
		b = sender.Self()
	case len(dest.Username) > 1 && dest.Username[0] == '+':
		b = sender.ResolvePhone(dest.Username)
	case dest.Username != "":
		b = sender.Resolve(dest.Username)
	case dest.ID != 0:
		p, err := resolveID(ctx, c.tg.API(), dest.ID)
		if err != nil {
			return err
		}
		b = sender.To(p)
	default:
		return errors.New("telegram: empty destination")
	}

	if _, err := b.Text(ctx, text); err != nil {
		return err
	}
	return nil
}

// Close stops the run loop and waits for it to exit.
func (c *Client) Close() error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel = nil
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
