package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// SQLiteStore persists checkpoints in a SQLite database.
//
// The database runs in WAL mode with a single write connection, which gives
// serialized writes without SQLITE_BUSY churn. Suitable for a single process;
// use MySQLStore when multiple processes share a thread namespace.
type SQLiteStore[S any] struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path and
// prepares the checkpoint table. Use ":memory:" for an ephemeral store.
func NewSQLiteStore[S any](path string) (*SQLiteStore[S], error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer connection; modernc sqlite serializes anyway and this
	// avoids lock contention between pooled connections.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite pragma %q: %w", p, err)
		}
	}

	const schema = `
CREATE TABLE IF NOT EXISTS checkpoints (
	thread_id  TEXT PRIMARY KEY,
	node_id    TEXT NOT NULL,
	status     TEXT NOT NULL,
	state      TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create checkpoint table: %w", err)
	}

	return &SQLiteStore[S]{db: db}, nil
}

// Save upserts the checkpoint for threadID.
func (s *SQLiteStore[S]) Save(ctx context.Context, threadID string, cp Checkpoint[S]) error {
	if threadID == "" {
		return fmt.Errorf("thread id required")
	}
	data, err := json.Marshal(cp.State)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	const q = `
INSERT INTO checkpoints (thread_id, node_id, status, state, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(thread_id) DO UPDATE SET
	node_id = excluded.node_id,
	status = excluded.status,
	state = excluded.state,
	updated_at = excluded.updated_at`
	_, err = s.db.ExecContext(ctx, q, threadID, cp.NodeID, string(cp.Status), string(data), cp.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// Load returns the checkpoint for threadID, or ErrNotFound.
func (s *SQLiteStore[S]) Load(ctx context.Context, threadID string) (Checkpoint[S], error) {
	const q = `SELECT node_id, status, state, updated_at FROM checkpoints WHERE thread_id = ?`

	var (
		nodeID    string
		status    string
		data      string
		updatedAt time.Time
	)
	err := s.db.QueryRowContext(ctx, q, threadID).Scan(&nodeID, &status, &data, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Checkpoint[S]{}, ErrNotFound
	}
	if err != nil {
		return Checkpoint[S]{}, fmt.Errorf("load checkpoint: %w", err)
	}

	var state S
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return Checkpoint[S]{}, fmt.Errorf("unmarshal state: %w", err)
	}
	return Checkpoint[S]{
		ThreadID:  threadID,
		NodeID:    nodeID,
		Status:    Status(status),
		State:     state,
		UpdatedAt: updatedAt,
	}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore[S]) Close() error {
	return s.db.Close()
}
