package credstore

import "context"

// Store loads and saves the session credential.
type Store interface {
	// Load returns the saved credential or "" when none exists.
	// Absence is never an error.
	Load(ctx context.Context) (string, error)

	// Save overwrites the saved credential.
	// A reader must never observe a partially written value.
	Save(ctx context.Context, credential string) error
}
