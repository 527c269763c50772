package provider

import (
	"context"
	"sync"
	"time"
)

// ContextStore provides typed state persistence keyed by an opaque
// string. TTL of 0 means no expiration.
type ContextStore[C any] interface {
	// Load retrieves state. Returns (nil, nil) if the key doesn't exist.
	Load(ctx context.Context, key string) (*C, error)
	// Save persists state with optional TTL.
	Save(ctx context.Context, key string, val *C, ttl time.Duration) error
	// Delete removes state.
	Delete(ctx context.Context, key string) error
}

// MemoryStore is an in-memory ContextStore. It enforces TTL expiration
// on Load. Safe for concurrent use.
type MemoryStore[C any] struct {
	mu    sync.RWMutex
	items map[string]memEntry[C]
}

type memEntry[C any] struct {
	val       *C
	expiresAt time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore[C any]() *MemoryStore[C] {
	return &MemoryStore[C]{items: make(map[string]memEntry[C])}
}

// Load retrieves state, honoring TTL.
func (s *MemoryStore[C]) Load(_ context.Context, key string) (*C, error) {
	s.mu.RLock()
	entry, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.items, key)
		s.mu.Unlock()
		return nil, nil
	}
	return entry.val, nil
}

// Save persists state.
func (s *MemoryStore[C]) Save(_ context.Context, key string, val *C, ttl time.Duration) error {
	entry := memEntry[C]{val: val}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	s.mu.Lock()
	s.items[key] = entry
	s.mu.Unlock()
	return nil
}

// Delete removes state.
func (s *MemoryStore[C]) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
	return nil
}
