package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process memory. It is the default
// backend when no Redis URL is configured; sessions do not survive a
// restart, which matches single-node deployments.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Record
	done     chan struct{}
	once     sync.Once
}

// NewMemoryStore creates a memory store and starts a background sweep
// that drops expired records.
func NewMemoryStore(sweepInterval time.Duration) *MemoryStore {
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}
	s := &MemoryStore{
		sessions: make(map[string]Record),
		done:     make(chan struct{}),
	}
	go s.sweep(sweepInterval)
	return s
}

func (s *MemoryStore) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			s.mu.Lock()
			for hash, rec := range s.sessions {
				if now.After(rec.ExpiresAt) {
					delete(s.sessions, hash)
				}
			}
			s.mu.Unlock()
		}
	}
}

func (s *MemoryStore) Save(_ context.Context, tokenHash string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[tokenHash] = rec
	return nil
}

func (s *MemoryStore) Lookup(_ context.Context, tokenHash string) (Record, error) {
	s.mu.RLock()
	rec, ok := s.sessions[tokenHash]
	s.mu.RUnlock()
	if !ok || time.Now().After(rec.ExpiresAt) {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (s *MemoryStore) Revoke(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, tokenHash)
	return nil
}

func (s *MemoryStore) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}
