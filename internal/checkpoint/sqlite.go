package checkpoint

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists checkpoints in SQLite so incremental syncs survive
// process restarts.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dbPath and migrates the
// checkpoints table.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// NewSQLiteStoreWithDB reuses an existing database connection, allowing the
// checkpoint and event stores to share one file.
func NewSQLiteStoreWithDB(db *sql.DB) (*SQLiteStore, error) {
	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) migrate() error {
	createTableSQL := `
		CREATE TABLE IF NOT EXISTS checkpoints (
			entity TEXT NOT NULL,
			scope TEXT NOT NULL,
			cursor TEXT NOT NULL,
			last_event_ts TEXT NOT NULL,
			updated_at DATETIME NOT NULL,
			PRIMARY KEY (entity, scope)
		);
	`
	if _, err := s.db.Exec(createTableSQL); err != nil {
		return fmt.Errorf("failed to create checkpoints table: %w", err)
	}
	return nil
}

// Get returns the checkpoint for an entity/scope, or nil when absent.
func (s *SQLiteStore) Get(ctx context.Context, entity Entity, scope string) (*Checkpoint, error) {
	query := `
		SELECT entity, scope, cursor, last_event_ts, updated_at
		FROM checkpoints
		WHERE entity = ? AND scope = ?
	`
	row := s.db.QueryRowContext(ctx, query, string(entity), scope)

	cp, err := scanCheckpoint(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get checkpoint: %w", err)
	}
	return cp, nil
}

// Put inserts or replaces a checkpoint.
func (s *SQLiteStore) Put(ctx context.Context, cp Checkpoint) error {
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = time.Now().UTC()
	}
	upsertSQL := `
		INSERT INTO checkpoints (entity, scope, cursor, last_event_ts, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(entity, scope) DO UPDATE SET
			cursor = excluded.cursor,
			last_event_ts = excluded.last_event_ts,
			updated_at = excluded.updated_at;
	`
	_, err := s.db.ExecContext(ctx, upsertSQL,
		string(cp.Entity),
		cp.Scope,
		cp.Cursor,
		cp.LastEventTS,
		cp.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert checkpoint: %w", err)
	}
	return nil
}

// Delete removes a checkpoint if present.
func (s *SQLiteStore) Delete(ctx context.Context, entity Entity, scope string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM checkpoints WHERE entity = ? AND scope = ?`, string(entity), scope)
	if err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}

// List returns all stored checkpoints.
func (s *SQLiteStore) List(ctx context.Context) ([]Checkpoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT entity, scope, cursor, last_event_ts, updated_at FROM checkpoints ORDER BY entity, scope`)
	if err != nil {
		return nil, fmt.Errorf("failed to query checkpoints: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint: %w", err)
		}
		result = append(result, *cp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return result, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func scanCheckpoint(scan func(dest ...any) error) (*Checkpoint, error) {
	var (
		cp        Checkpoint
		entity    string
		updatedAt string
	)
	if err := scan(&entity, &cp.Scope, &cp.Cursor, &cp.LastEventTS, &updatedAt); err != nil {
		return nil, err
	}
	cp.Entity = Entity(entity)

	parsed, err := time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		parsed, err = time.Parse("2006-01-02 15:04:05", updatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse updated_at: %w", err)
		}
	}
	cp.UpdatedAt = parsed
	return &cp, nil
}
