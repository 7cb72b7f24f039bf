package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local Store. Entries are kept encoded so callers
// never share mutable payloads.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]byte
	opts    options
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string][]byte),
		opts:    newOptions(opts),
	}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, key string, dst any) bool {
	s.mu.RLock()
	data, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return false
	}

	if err := decodeEntry(data, s.opts.now(), dst); err != nil {
		return s.opts.miss(key, err)
	}
	return true
}

// Set implements Store.
func (s *MemoryStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	data, err := encodeEntry(key, value, ttl, s.opts.now())
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.entries[key] = data
	s.mu.Unlock()
	return nil
}
