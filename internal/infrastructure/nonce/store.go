package nonce

import (
	"context"
	"sync"
)

// Store persists the highest committed nonce per account key.
// Keys are built by Manager from the chain scope and the address.
type Store interface {
	// Committed returns the highest committed nonce, ok is false when none was recorded.
	Committed(ctx context.Context, key string) (nonce uint64, ok bool, err error)
	// Commit records nonce unless a higher one is already stored.
	Commit(ctx context.Context, key string, nonce uint64) error
	// Reset forgets the watermark so the next lease follows the node again.
	Reset(ctx context.Context, key string) error
	Close() error
}

// MemoryStore implements Store in process memory (for testing/development)
type MemoryStore struct {
	mu        sync.Mutex
	committed map[string]uint64
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{committed: make(map[string]uint64)}
}

func (s *MemoryStore) Committed(_ context.Context, key string) (uint64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.committed[key]
	return n, ok, nil
}

func (s *MemoryStore) Commit(_ context.Context, key string, nonce uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.committed[key]; !ok || nonce > cur {
		s.committed[key] = nonce
	}
	return nil
}

func (s *MemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.committed, key)
	return nil
}

func (s *MemoryStore) Close() error { return nil }
