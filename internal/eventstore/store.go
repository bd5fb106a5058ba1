package eventstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/olusolaa/connector/internal/event"
)

// Store persists normalized events in SQLite. Event IDs are deterministic, so
// inserts are idempotent: re-syncing the same history is a no-op.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath and migrates the events table.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// NewWithDB reuses an existing database connection.
func NewWithDB(db *sql.DB) (*Store, error) {
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// DB exposes the underlying connection so the checkpoint store can share it.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) migrate() error {
	createTableSQL := `
		CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			type TEXT NOT NULL,
			actor_id TEXT NOT NULL,
			actor_name TEXT NOT NULL,
			target_id TEXT NOT NULL,
			target_kind TEXT NOT NULL,
			target_name TEXT NOT NULL,
			text TEXT NOT NULL,
			occurred_at DATETIME,
			metadata TEXT NOT NULL,
			ingested_at DATETIME NOT NULL
		);
	`
	if _, err := s.db.Exec(createTableSQL); err != nil {
		return fmt.Errorf("failed to create events table: %w", err)
	}

	createIndexSQL := `
		CREATE INDEX IF NOT EXISTS idx_events_type_occurred
		ON events(type, occurred_at);
	`
	if _, err := s.db.Exec(createIndexSQL); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}

// Insert stores a batch of events inside one transaction and returns how many
// rows were actually new.
func (s *Store) Insert(ctx context.Context, events []event.Event) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	insertSQL := `
		INSERT OR IGNORE INTO events
			(id, source, type, actor_id, actor_name, target_id, target_kind, target_name, text, occurred_at, metadata, ingested_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	var inserted int
	for _, ev := range events {
		metadata, err := json.Marshal(ev.Metadata)
		if err != nil {
			return inserted, fmt.Errorf("failed to marshal metadata for %s: %w", ev.ID, err)
		}

		var occurredAt any
		if !ev.OccurredAt.IsZero() {
			occurredAt = ev.OccurredAt.UTC().Format(time.RFC3339Nano)
		}

		result, err := stmt.ExecContext(ctx,
			ev.ID,
			ev.Source,
			string(ev.Type),
			ev.Actor.ID,
			ev.Actor.Name,
			ev.Target.ID,
			ev.Target.Kind,
			ev.Target.Name,
			ev.Text,
			occurredAt,
			string(metadata),
			now,
		)
		if err != nil {
			return inserted, fmt.Errorf("failed to insert event %s: %w", ev.ID, err)
		}
		if n, err := result.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return inserted, fmt.Errorf("failed to commit: %w", err)
	}
	return inserted, nil
}

// Recent returns up to limit events ordered by most recent occurrence.
func (s *Store) Recent(ctx context.Context, limit int) ([]event.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, source, type, actor_id, actor_name, target_id, target_kind, target_name, text, occurred_at, metadata
		FROM events
		ORDER BY occurred_at DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []event.Event
	for rows.Next() {
		var (
			ev         event.Event
			evType     string
			occurredAt sql.NullString
			metadata   string
		)
		err := rows.Scan(
			&ev.ID,
			&ev.Source,
			&evType,
			&ev.Actor.ID,
			&ev.Actor.Name,
			&ev.Target.ID,
			&ev.Target.Kind,
			&ev.Target.Name,
			&ev.Text,
			&occurredAt,
			&metadata,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		ev.Type = event.Type(evType)
		if occurredAt.Valid && occurredAt.String != "" {
			if ts, err := time.Parse(time.RFC3339Nano, occurredAt.String); err == nil {
				ev.OccurredAt = ts
			}
		}
		if metadata != "" && metadata != "null" {
			if err := json.Unmarshal([]byte(metadata), &ev.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata for %s: %w", ev.ID, err)
			}
		}
		result = append(result, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return result, nil
}

// CountByType returns event totals grouped by event type.
func (s *Store) CountByType(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT type, COUNT(*) FROM events GROUP BY type`)
	if err != nil {
		return nil, fmt.Errorf("failed to query counts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]int64)
	for rows.Next() {
		var (
			evType string
			count  int64
		)
		if err := rows.Scan(&evType, &count); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		counts[evType] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return counts, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
