package store

import (
	"context"
	"sync"

	"github.com/zhouzirui/mock-interviewer/backend/internal/clock"
	"github.com/zhouzirui/mock-interviewer/backend/internal/model/interview"
)

// MemoryStore keeps records in process memory, suitable for development and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records []interview.SavedInterview
	limit   int
	clock   clock.Clock
}

// NewMemoryStore bootstraps an empty in-memory store.
func NewMemoryStore(limit int, clk clock.Clock) *MemoryStore {
	if clk == nil {
		clk = clock.Real()
	}
	return &MemoryStore{limit: normalizeLimit(limit), clock: clk}
}

// Save stores a record, assigning id and date when missing.
func (s *MemoryStore) Save(_ context.Context, record interview.SavedInterview) (interview.SavedInterview, error) {
	record = stamp(record, s.clock.Now())

	s.mu.Lock()
	s.records = prepend(s.records, record, s.limit)
	s.mu.Unlock()

	return record, nil
}

// List returns records newest first.
func (s *MemoryStore) List(_ context.Context) ([]interview.SavedInterview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]interview.SavedInterview{}, s.records...), nil
}

// Get retrieves a record by identifier.
func (s *MemoryStore) Get(_ context.Context, id string) (interview.SavedInterview, error) {
	if id == "" {
		return interview.SavedInterview{}, ErrInvalidID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := find(s.records, id)
	if !ok {
		return interview.SavedInterview{}, ErrNotFound
	}
	return s.records[i], nil
}

// Delete removes a record.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	if id == "" {
		return ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := find(s.records, id)
	if !ok {
		return ErrNotFound
	}
	s.records = append(s.records[:i:i], s.records[i+1:]...)
	return nil
}

// Clear drops every record.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	s.records = nil
	s.mu.Unlock()
	return nil
}
