package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// MemoryStore holds blobs in process memory. Test and ephemeral use only.
type MemoryStore struct {
	mu     sync.RWMutex
	blobs  map[string][]byte
	signer *Signer
}

// NewMemory creates an in-memory store.
func NewMemory(signer *Signer) *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte), signer: signer}
}

func (s *MemoryStore) Driver() string { return "memory" }

func (s *MemoryStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	clean, err := sanitizeKey(key)
	if err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read blob: %w", err)
	}
	s.mu.Lock()
	s.blobs[clean] = data
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	clean, err := sanitizeKey(key)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	data, ok := s.blobs[clean]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	clean, err := sanitizeKey(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.blobs, clean)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if s.signer == nil {
		return "", errors.New("memory driver has no signer configured")
	}
	clean, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	return s.signer.Sign(clean, ttl), nil
}

// Len reports the number of stored blobs. Used by tests asserting the
// cascade-delete invariant.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}

// Has reports whether a key is present.
func (s *MemoryStore) Has(key string) bool {
	clean, err := sanitizeKey(key)
	if err != nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blobs[clean]
	return ok
}
