package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tjfontaine/stagehand/internal/journal"
)

// Store is an in-memory journal.Store. It keeps at most capacity entries,
// dropping the oldest first.
type Store struct {
	mu       sync.RWMutex
	entries  []*journal.Entry
	capacity int
}

var _ journal.Store = (*Store)(nil)

// New creates an in-memory store. A capacity <= 0 keeps every entry.
func New(capacity int) *Store {
	return &Store{capacity: capacity}
}

func (s *Store) Record(ctx context.Context, e *journal.Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	stored := *e

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, &stored)
	if s.capacity > 0 && len(s.entries) > s.capacity {
		s.entries = slices.Delete(s.entries, 0, len(s.entries)-s.capacity)
	}
	return nil
}

func (s *Store) List(ctx context.Context, limit int) ([]*journal.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.entries)
	if limit > 0 && limit < n {
		n = limit
	}
	result := make([]*journal.Entry, 0, n)
	for i := len(s.entries) - 1; i >= 0 && len(result) < n; i-- {
		e := *s.entries[i]
		result = append(result, &e)
	}
	return result, nil
}

func (s *Store) Close() error {
	return nil
}
