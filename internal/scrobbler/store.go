package scrobbler

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store is the durable collection of pending scrobble submissions,
// backed by SQLite. Every mutation is committed before returning, so
// pending and failed records survive an unclean process restart.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the submission store at dbPath.
//
// Any record left in-flight by a previous run is recovered to pending:
// a crash mid-submission means the outcome is unknown, and at-least-once
// delivery requires trying again.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool size to 1 for in-memory databases to ensure consistency
	// For file-based databases, this still works well for our use case
	db.SetMaxOpenConns(1)

	// Configure SQLite for optimal performance and safety
	pragmas := []string{
		"PRAGMA foreign_keys = ON",    // Enforce foreign key constraints
		"PRAGMA busy_timeout = 10000", // Wait up to 10 seconds on lock
		"PRAGMA synchronous = NORMAL", // Balance between safety and performance
		"PRAGMA journal_mode = WAL",   // Write-Ahead Logging for concurrent access
		"PRAGMA temp_store = MEMORY",  // Use memory for temp tables
		"PRAGMA cache_size = -64000",  // 64MB cache
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	// Create the schema. The natural key (track_id, started_at) makes
	// duplicate enqueues of the same listen impossible at the storage layer.
	schema := `
		CREATE TABLE IF NOT EXISTS submissions (
			track_id TEXT NOT NULL,
			started_at INTEGER NOT NULL,
			artist TEXT NOT NULL,
			title TEXT NOT NULL,
			album TEXT,
			duration_ms INTEGER NOT NULL,
			played_ms INTEGER NOT NULL,
			state INTEGER NOT NULL DEFAULT 0,
			retry_count INTEGER NOT NULL DEFAULT 0,
			next_retry_at INTEGER NOT NULL DEFAULT 0,
			last_error TEXT,
			created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
			PRIMARY KEY (track_id, started_at)
		);

		CREATE INDEX IF NOT EXISTS idx_state_retry ON submissions(state, next_retry_at);
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	s := &Store{db: db}
	if err := s.recover(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// recover resets records left in-flight by a previous run to pending
func (s *Store) recover() error {
	_, err := s.db.Exec(
		"UPDATE submissions SET state = ? WHERE state = ?",
		StatePending, StateInFlight,
	)
	if err != nil {
		return fmt.Errorf("failed to recover in-flight records: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Enqueue inserts a record in pending state. Enqueuing a record whose
// natural key already exists is a no-op, so a finalized session can never
// produce two stored entries.
func (s *Store) Enqueue(ctx context.Context, record Record) error {
	query := `
		INSERT OR IGNORE INTO submissions
		(track_id, started_at, artist, title, album, duration_ms, played_ms, state)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		record.TrackID,
		record.StartedAt.UnixMilli(),
		record.Artist,
		record.Title,
		record.Album,
		record.Duration.Milliseconds(),
		record.Played.Milliseconds(),
		StatePending,
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue submission: %w", err)
	}

	return nil
}

// PeekReady returns records due for submission at the given time: pending
// records plus failed records whose retry time has arrived, oldest first.
// Held and in-flight records are never returned.
func (s *Store) PeekReady(ctx context.Context, now time.Time, limit int) ([]Record, error) {
	query := `
		SELECT track_id, started_at, artist, title, COALESCE(album, ''),
		       duration_ms, played_ms, state, retry_count, next_retry_at,
		       COALESCE(last_error, '')
		FROM submissions
		WHERE (state = ? OR (state = ? AND next_retry_at <= ?))
		ORDER BY rowid ASC
	`

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, StatePending, StateFailed, now.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to query ready submissions: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// MarkInFlight transitions a record to in-flight before submission starts
func (s *Store) MarkInFlight(ctx context.Context, key Key) error {
	return s.setState(ctx, key, "UPDATE submissions SET state = ? WHERE track_id = ? AND started_at = ?", StateInFlight)
}

// MarkPending returns a record to the pending state without touching its
// retry bookkeeping, for attempts aborted before the service answered
func (s *Store) MarkPending(ctx context.Context, key Key) error {
	return s.setState(ctx, key, "UPDATE submissions SET state = ? WHERE track_id = ? AND started_at = ?", StatePending)
}

// MarkSubmitted removes a record after confirmed submission
func (s *Store) MarkSubmitted(ctx context.Context, key Key) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM submissions WHERE track_id = ? AND started_at = ?",
		key.TrackID, key.StartedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to mark submission complete: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("submission %s not found", key)
	}

	return nil
}

// MarkFailed records a retryable failure and schedules the next attempt
func (s *Store) MarkFailed(ctx context.Context, key Key, retryCount int, nextRetry time.Time, errMsg string) error {
	query := `
		UPDATE submissions
		SET state = ?, retry_count = ?, next_retry_at = ?, last_error = ?
		WHERE track_id = ? AND started_at = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		StateFailed, retryCount, nextRetry.UnixMilli(), errMsg,
		key.TrackID, key.StartedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to mark submission failed: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("submission %s not found", key)
	}

	return nil
}

// MarkHeld parks a record after a permanent rejection. Held records are
// excluded from submission until an operator intervenes; discarding them
// silently would lose a listen the user earned.
func (s *Store) MarkHeld(ctx context.Context, key Key, errMsg string) error {
	query := `
		UPDATE submissions
		SET state = ?, last_error = ?
		WHERE track_id = ? AND started_at = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		StateHeld, errMsg,
		key.TrackID, key.StartedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to mark submission held: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("submission %s not found", key)
	}

	return nil
}

// Release moves held records back to pending so the worker retries them,
// used by the operator after fixing credentials or similar
func (s *Store) Release(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"UPDATE submissions SET state = ?, retry_count = 0, next_retry_at = 0 WHERE state = ?",
		StatePending, StateHeld,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to release held submissions: %w", err)
	}

	released, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return released, nil
}

// List retrieves all queued records in insertion order, for inspection
func (s *Store) List(ctx context.Context) ([]Record, error) {
	query := `
		SELECT track_id, started_at, artist, title, COALESCE(album, ''),
		       duration_ms, played_ms, state, retry_count, next_retry_at,
		       COALESCE(last_error, '')
		FROM submissions
		ORDER BY rowid ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// Count returns the number of queued records, optionally only those in
// the given state
func (s *Store) Count(ctx context.Context, state *State) (int, error) {
	query := "SELECT COUNT(*) FROM submissions"
	args := []any{}
	if state != nil {
		query += " WHERE state = ?"
		args = append(args, *state)
	}

	var count int
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count submissions: %w", err)
	}

	return count, nil
}

// setState runs a keyed state-transition update and verifies a row matched
func (s *Store) setState(ctx context.Context, key Key, query string, state State) error {
	result, err := s.db.ExecContext(ctx, query, state, key.TrackID, key.StartedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to update submission state: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("submission %s not found", key)
	}

	return nil
}

// scanRecords reads submission rows into Records
func scanRecords(rows *sql.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		var r Record
		var startedAt, durationMs, playedMs, nextRetry int64

		err := rows.Scan(
			&r.TrackID,
			&startedAt,
			&r.Artist,
			&r.Title,
			&r.Album,
			&durationMs,
			&playedMs,
			&r.State,
			&r.RetryCount,
			&nextRetry,
			&r.LastError,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}

		r.StartedAt = time.UnixMilli(startedAt)
		r.Duration = time.Duration(durationMs) * time.Millisecond
		r.Played = time.Duration(playedMs) * time.Millisecond
		r.NextRetry = time.UnixMilli(nextRetry)

		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating submissions: %w", err)
	}

	return records, nil
}
