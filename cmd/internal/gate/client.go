package gate

import (
	"context"
	"strconv"

	"tggate/cmd/internal/pairing"
)

// Destination identifies a chat: either a numeric peer id or a
// username/link/phone string resolved by the protocol client.
type Destination struct {
	ID       int64
	Username string
}

// IsZero reports whether no destination was given.
func (d Destination) IsZero() bool { return d.ID == 0 && d.Username == "" }

func (d Destination) String() string {
	if d.Username != "" {
		return d.Username
	}
	return strconv.FormatInt(d.ID, 10)
}

// PairingHandlers connect a running handshake to the gate.
type PairingHandlers struct {
	// OnChallenge is called for every issued code, renewals included.
	OnChallenge func(ctx context.Context, c pairing.Challenge) error
	// OnPasswordRequested supplies the second factor.
	OnPasswordRequested func(ctx context.Context) (string, error)
	// OnError reports non-fatal protocol errors.
	OnError func(err error)
}

// Client is the protocol client handle.
type Client interface {
	// Connect establishes connectivity with the remote service.
	Connect(ctx context.Context) error
	// IsAuthorized reports whether the current credential grants access.
	IsAuthorized(ctx context.Context) (bool, error)
	// SignInWithPairing runs the device-pairing handshake to completion.
	SignInWithPairing(ctx context.Context, h PairingHandlers) error
	// ExportSession returns the credential of the authorized session.
	ExportSession(ctx context.Context) (string, error)
	// Send delivers text to dest.
	Send(ctx context.Context, dest Destination, text string) error
	// Close releases the connection.
	Close() error
}

// ClientFactory builds a client bound to the application credentials and the
// given session credential ("" for none).
type ClientFactory func(credential string) (Client, error)
