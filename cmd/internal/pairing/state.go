package pairing

import "time"

// State is the authentication state of the process-wide session.
type State string

const (
	// StateUnauthenticated means no session has been established yet.
	StateUnauthenticated State = "unauthenticated"
	// StateAwaitingScan means a handshake is running and waits for a QR scan.
	StateAwaitingScan State = "awaiting-scan"
	// StateAwaitingSecondFactor means the scan was accepted and a password was requested.
	StateAwaitingSecondFactor State = "awaiting-second-factor"
	// StateAuthenticated means the session is usable.
	StateAuthenticated State = "authenticated"
	// StateFailed means the last handshake was aborted; a new one may begin.
	StateFailed State = "failed"
)

// Pairing reports whether a handshake is in progress.
func (s State) Pairing() bool {
	return s == StateAwaitingScan || s == StateAwaitingSecondFactor
}

// Challenge is one time-limited pairing code.
type Challenge struct {
	// URL is the payload encoded into the QR code (tg://login?token=...).
	URL string
	// ExpiresAt is when the remote side stops accepting this code.
	ExpiresAt time.Time
}

// Snapshot is an immutable view of the machine.
type Snapshot struct {
	Seq       uint64
	State     State
	Challenge *Challenge
	Renewals  int
	Err       string
	UpdatedAt time.Time
}
