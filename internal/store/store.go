// Package store holds the per-session correlation state linking a payment
// request phase to its callback: the application context and the signature
// computed over the redirection. Reads are destructive so one callback at
// most can consume a given request phase.
package store

import (
	"context"
	"sync"
	"time"
)

// Correlation is the state written during the request phase and consumed
// during the callback phase.
type Correlation struct {
	Context   map[string]string `json:"context,omitempty"`
	Signature string            `json:"signature"`
}

// Store persists correlation state scoped by browser session and gateway
// uid. Take deletes on read; unconsumed entries expire with the session.
type Store interface {
	Put(ctx context.Context, sessionID, uid string, c Correlation) error
	Take(ctx context.Context, sessionID, uid string) (Correlation, bool, error)
}

type memoryEntry struct {
	correlation Correlation
	expiresAt   time.Time
}

// MemoryStore is an in-process Store, used standalone or as a fallback
// when redis is unreachable.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	nextGC  time.Time
}

// NewMemoryStore creates an in-memory store whose entries expire after ttl.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		nextGC:  time.Now().Add(ttl),
	}
}

func storeKey(sessionID, uid string) string {
	return sessionID + ":" + uid
}

func (s *MemoryStore) Put(_ context.Context, sessionID, uid string, c Correlation) error {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[storeKey(sessionID, uid)] = memoryEntry{correlation: c, expiresAt: now.Add(s.ttl)}

	if now.After(s.nextGC) {
		for key, entry := range s.entries {
			if entry.expiresAt.Before(now) {
				delete(s.entries, key)
			}
		}
		s.nextGC = now.Add(s.ttl)
	}

	return nil
}

func (s *MemoryStore) Take(_ context.Context, sessionID, uid string) (Correlation, bool, error) {
	key := storeKey(sessionID, uid)
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return Correlation{}, false, nil
	}
	delete(s.entries, key)

	if entry.expiresAt.Before(now) {
		return Correlation{}, false, nil
	}
	return entry.correlation, true, nil
}
