package credstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// DefaultFilename is the credential file used when no path is configured.
const DefaultFilename = "session.txt"

// FileStore keeps the credential in a plain-text file.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a FileStore for path. An empty path selects
// DefaultFilename in the working directory.
func NewFileStore(path string) *FileStore {
	if strings.TrimSpace(path) == "" {
		path = DefaultFilename
	}
	return &FileStore{path: path}
}

// Path returns the file the credential is stored in.
func (s *FileStore) Path() string { return s.path }

// Load reads the credential, trimming surrounding whitespace.
func (s *FileStore) Load(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := readFile(s.path)
	if err != nil {
		return "", &Error{Op: "read", Path: s.path, Err: err}
	}
	return strings.TrimSpace(string(b)), nil
}

// Save replaces the file contents with credential.
func (s *FileStore) Save(_ context.Context, credential string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeFile(s.path, []byte(credential), 0o600); err != nil {
		return &Error{Op: "write", Path: s.path, Err: err}
	}
	return nil
}

// readFile reads the file at path; a missing file is not an error.
func readFile(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// writeFile writes bytes via a temp file, then atomically replaces the target.
func writeFile(path string, b []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	f, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()

	// Best-effort cleanup if anything fails before rename.
	defer func() { _ = os.Remove(tmp) }()

	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Chmod(mode); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	return os.Rename(tmp, path)
}

// Compile-time assertion that FileStore implements Store.
var _ Store = (*FileStore)(nil)
