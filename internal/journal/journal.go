// Package journal records every dispatched request through an
// always-middleware, backed by a pluggable Store.
package journal

import (
	"context"
	"time"
)

// Entry is one dispatched request.
type Entry struct {
	ID        string        `json:"id"`
	RequestID string        `json:"request_id,omitempty"`
	Method    string        `json:"method"`
	Path      string        `json:"path"`
	Status    int           `json:"status"`
	Duration  time.Duration `json:"duration_ns"`
	CreatedAt time.Time     `json:"created_at"`
}

// Store persists journal entries.
type Store interface {
	// Record stores an entry. ID and CreatedAt are filled in when empty.
	Record(ctx context.Context, e *Entry) error
	// List returns up to limit entries, newest first. A limit <= 0 returns
	// every entry.
	List(ctx context.Context, limit int) ([]*Entry, error)
	Close() error
}
