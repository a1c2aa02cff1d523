package credstore

import "errors"

var (
	// ErrStorage is returned (wrapped) when the credential cannot be read or written.
	ErrStorage = errors.New("session storage failed")

	// ErrWrongPassphrase is returned when a sealed credential fails to open.
	ErrWrongPassphrase = errors.New("wrong passphrase or corrupted credential")
)

// Error describes a failed storage operation.
// It matches both ErrStorage and the underlying cause.
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return "credstore: " + e.Op + ": " + e.Err.Error()
	}
	return "credstore: " + e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *Error) Unwrap() []error { return []error{ErrStorage, e.Err} }
