package gate

import (
	"errors"
	"fmt"
)

var (
	// ErrConnect is returned when the remote service cannot be reached.
	ErrConnect = errors.New("connect failed")

	// ErrAuth is returned when the pairing handshake fails or is rejected.
	ErrAuth = errors.New("authorization failed")

	// ErrSend is returned when a message cannot be delivered.
	ErrSend = errors.New("send failed")

	// ErrPasswordRequired is returned when the account asks for a second factor
	// and no password is configured.
	ErrPasswordRequired = errors.New("second factor requested but no password configured")

	// ErrClosed is returned by Acquire after Close.
	ErrClosed = errors.New("gate closed")
)

// StageError reports which acquisition stage failed.
// It matches both its Kind sentinel and the underlying cause.
type StageError struct {
	Stage string
	Kind  error
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Stage, e.Err)
}

func (e *StageError) Unwrap() []error { return []error{e.Kind, e.Err} }
