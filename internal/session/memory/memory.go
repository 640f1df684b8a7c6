// Package memory keeps sessions in process memory. Sessions are lost on
// restart and are not shared between instances.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/MoonJiyun2/IdeaShelf/internal/session"
)

type entry struct {
	data      session.Data
	expiresAt time.Time
}

// Store implements session.Store with a mutex-guarded map.
type Store struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

// NewStore creates an in-memory session store. A zero ttl never expires.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Load returns the stored data, or a fresh session if the ID is unknown or
// expired.
func (s *Store) Load(_ context.Context, id string) (session.Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return session.New(), nil
	}
	if s.expired(e) {
		delete(s.entries, id)
		return session.New(), nil
	}
	return e.data, nil
}

// Save stores data and restarts the expiry clock.
func (s *Store) Save(_ context.Context, id string, data session.Data) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := entry{data: data}
	if s.ttl > 0 {
		e.expiresAt = s.now().Add(s.ttl)
	}
	s.entries[id] = e
	return nil
}

// Sweep drops expired sessions and returns how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.entries {
		if s.expired(e) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

// Run sweeps expired sessions every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Len returns the number of stored sessions, expired ones included.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) expired(e entry) bool {
	return !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt)
}
