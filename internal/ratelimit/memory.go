package ratelimit

import (
	"context"
	"sync"
	"time"
)

type windowEntry struct {
	count   int64
	expires time.Time
}

// MemoryStore is an in-process fixed-window counter. Suitable for single
// instance deployments; use RedisStore when running more than one replica.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]windowEntry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]windowEntry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Take(_ context.Context, key string, limit int64, window time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	entry, ok := s.entries[key]
	if !ok || now.After(entry.expires) {
		s.entries[key] = windowEntry{count: 1, expires: now.Add(window)}
		return true, nil
	}
	if entry.count >= limit {
		return false, nil
	}
	entry.count++
	s.entries[key] = entry
	return true, nil
}

// Prune drops expired windows. Called opportunistically by the janitor so the
// map does not grow without bound.
func (s *MemoryStore) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, entry := range s.entries {
		if now.After(entry.expires) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}
