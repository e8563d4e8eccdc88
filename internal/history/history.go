// ABOUTME: SQLite-backed append-only log of research queries using modernc.org/sqlite.
// ABOUTME: Feeds the /history command; schema is created automatically on open.

package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Record is one logged research query. EndedAt is nil while the query
// is still in flight.
type Record struct {
	ID        string
	UserID    string
	Query     string
	Status    string
	Error     string
	StartedAt time.Time
	EndedAt   *time.Time
}

// Store persists research query records in SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore opens (or creates) the history database at the given path.
// Parent directories are created if needed.
func NewStore(path string) (*Store, error) {
	logger := slog.Default().With("component", "history")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) createSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS research_queries (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	query      TEXT NOT NULL,
	status     TEXT NOT NULL,
	error      TEXT NOT NULL DEFAULT '',
	started_at TIMESTAMP NOT NULL,
	ended_at   TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_research_queries_user
	ON research_queries(user_id, started_at DESC);
`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// Record logs a newly submitted query.
func (s *Store) Record(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO research_queries (id, user_id, query, status, error, started_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.Query, rec.Status, rec.Error, rec.StartedAt.UTC())
	if err != nil {
		return fmt.Errorf("recording query: %w", err)
	}
	return nil
}

// Finish stamps a query's terminal status and end time.
func (s *Store) Finish(ctx context.Context, id, status, errDetail string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE research_queries SET status = ?, error = ?, ended_at = ? WHERE id = ?`,
		status, errDetail, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("finishing query: %w", err)
	}
	return nil
}

// Recent returns the user's most recent queries, newest first.
func (s *Store) Recent(ctx context.Context, userID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, query, status, error, started_at, ended_at
		 FROM research_queries WHERE user_id = ?
		 ORDER BY started_at DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var endedAt sql.NullTime
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Query, &rec.Status, &rec.Error, &rec.StartedAt, &endedAt); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		if endedAt.Valid {
			t := endedAt.Time
			rec.EndedAt = &t
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating history rows: %w", err)
	}
	return records, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
