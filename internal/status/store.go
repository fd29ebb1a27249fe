package status

import (
	"context"
	"sync"
)

// Store records terminal saga outcomes so late pollers still get an
// answer after the waiter window closed.
type Store interface {
	Record(ctx context.Context, studentID int, outcome Outcome) error
	Lookup(ctx context.Context, studentID int) (Outcome, bool, error)
}

// MemoryStore keeps outcomes in a process-local map.
type MemoryStore struct {
	mu       sync.RWMutex
	outcomes map[int]Outcome
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{outcomes: make(map[int]Outcome)}
}

func (s *MemoryStore) Record(_ context.Context, studentID int, outcome Outcome) error {
	s.mu.Lock()
	s.outcomes[studentID] = outcome
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Lookup(_ context.Context, studentID int) (Outcome, bool, error) {
	s.mu.RLock()
	outcome, ok := s.outcomes[studentID]
	s.mu.RUnlock()
	return outcome, ok, nil
}

var _ Store = (*MemoryStore)(nil)
