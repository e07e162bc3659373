package cache

import (
	"context"
	"sync"
	"time"

	appmatching "github.com/storelink/backend/internal/application/matching"
)

// InMemoryRunStateStore keeps reconciliation run state in process memory.
// Suitable for single-instance deployments and tests; the lock does not
// exclude other processes and the cursor dies with the process.
type InMemoryRunStateStore struct {
	mu          sync.Mutex
	lockedUntil time.Time
	cursor      string
}

// NewInMemoryRunStateStore creates an in-memory run state store
func NewInMemoryRunStateStore() *InMemoryRunStateStore {
	return &InMemoryRunStateStore{}
}

// AcquireLock takes the run lock if free or expired
func (s *InMemoryRunStateStore) AcquireLock(_ context.Context, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if now.Before(s.lockedUntil) {
		return false, nil
	}
	s.lockedUntil = now.Add(ttl)
	return true, nil
}

// ReleaseLock frees the run lock
func (s *InMemoryRunStateStore) ReleaseLock(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lockedUntil = time.Time{}
	return nil
}

// LoadCursor returns the stored resume cursor, empty if none
func (s *InMemoryRunStateStore) LoadCursor(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor, nil
}

// SaveCursor stores the resume cursor
func (s *InMemoryRunStateStore) SaveCursor(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursor = token
	return nil
}

// ClearCursor removes the resume cursor
func (s *InMemoryRunStateStore) ClearCursor(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursor = ""
	return nil
}

// Ensure InMemoryRunStateStore implements the reconciler's state contract
var _ appmatching.RunStateStore = (*InMemoryRunStateStore)(nil)
