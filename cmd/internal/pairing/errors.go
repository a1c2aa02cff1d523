package pairing

import (
	"errors"
	"fmt"
)

var (
	// ErrHandshakeRunning is returned by Begin while another handshake is in progress.
	ErrHandshakeRunning = errors.New("pairing handshake already running")

	// ErrAlreadyAuthenticated is returned by Begin once the session is authenticated.
	ErrAlreadyAuthenticated = errors.New("session already authenticated")
)

// TransitionError reports an event that is not valid in the current state.
type TransitionError struct {
	From  State
	Event string
}

func (e TransitionError) Error() string {
	return fmt.Sprintf("pairing: %s not allowed in state %s", e.Event, e.From)
}
