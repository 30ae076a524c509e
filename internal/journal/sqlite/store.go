package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/tjfontaine/stagehand/internal/journal"
)

// Store is a SQLite implementation of journal.Store.
type Store struct {
	db *sql.DB
}

var _ journal.Store = (*Store)(nil)

// New opens (or creates) the database at dbPath.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS journal_entries (
			id TEXT PRIMARY KEY,
			request_id TEXT,
			method TEXT NOT NULL,
			path TEXT NOT NULL,
			status INTEGER NOT NULL,
			duration_ns INTEGER NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_journal_entries_created ON journal_entries(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_journal_entries_request ON journal_entries(request_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

func (s *Store) Record(ctx context.Context, e *journal.Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	query := `INSERT INTO journal_entries (id, request_id, method, path, status, duration_ns, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		e.ID, e.RequestID, e.Method, e.Path, e.Status, int64(e.Duration), e.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert journal entry: %w", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, limit int) ([]*journal.Entry, error) {
	query := `SELECT id, request_id, method, path, status, duration_ns, created_at
		FROM journal_entries ORDER BY created_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list journal entries: %w", err)
	}
	defer rows.Close()

	var result []*journal.Entry
	for rows.Next() {
		var (
			e         journal.Entry
			requestID sql.NullString
			duration  int64
		)
		if err := rows.Scan(&e.ID, &requestID, &e.Method, &e.Path, &e.Status, &duration, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		e.RequestID = requestID.String
		e.Duration = time.Duration(duration)
		result = append(result, &e)
	}
	return result, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
