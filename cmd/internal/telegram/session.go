package telegram

import (
	"context"
	"encoding/base64"
	"strings"
	"sync"

	"github.com/gotd/td/session"
)

// memorySession keeps the MTProto session in memory so it can be exported as
// a single credential string.
type memorySession struct {
	mu   sync.Mutex
	data []byte
}

var _ session.Storage = (*memorySession)(nil)

func (s *memorySession) LoadSession(context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.data) == 0 {
		return nil, session.ErrNotFound
	}
	return append([]byte(nil), s.data...), nil
}

func (s *memorySession) StoreSession(_ context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = append(s.data[:0:0], data...)
	return nil
}

func (s *memorySession) export() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.data) == 0 {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(s.data)
}

// decodeCredential reverses export. Padding and surrounding whitespace are
// tolerated.
func decodeCredential(cred string) ([]byte, error) {
	cred = strings.TrimRight(strings.TrimSpace(cred), "=")
	if cred == "" {
		return nil, nil
	}
	return base64.RawURLEncoding.DecodeString(cred)
}
