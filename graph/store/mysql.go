package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql" // registers the "mysql" driver
)

// MySQLStore persists checkpoints in MySQL for multi-process deployments.
//
// The row-level upsert makes concurrent writers to the same thread serialize
// on the primary key, and readers always see a complete row.
type MySQLStore[S any] struct {
	db *sql.DB
}

// NewMySQLStore connects using a go-sql-driver DSN, e.g.
// "user:pass@tcp(localhost:3306)/researchflow?parseTime=true".
// The DSN must include parseTime=true so updated_at scans as time.Time.
func NewMySQLStore[S any](dsn string) (*MySQLStore[S], error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	const schema = `
CREATE TABLE IF NOT EXISTS checkpoints (
	thread_id  VARCHAR(255) PRIMARY KEY,
	node_id    VARCHAR(255) NOT NULL,
	status     VARCHAR(32) NOT NULL,
	state      MEDIUMTEXT NOT NULL,
	updated_at DATETIME(6) NOT NULL
)`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create checkpoint table: %w", err)
	}

	return &MySQLStore[S]{db: db}, nil
}

// Save upserts the checkpoint for threadID.
func (s *MySQLStore[S]) Save(ctx context.Context, threadID string, cp Checkpoint[S]) error {
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
ON DUPLICATE KEY UPDATE
	node_id = VALUES(node_id),
	status = VALUES(status),
	state = VALUES(state),
	updated_at = VALUES(updated_at)`
	_, err = s.db.ExecContext(ctx, q, threadID, cp.NodeID, string(cp.Status), string(data), cp.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// Load returns the checkpoint for threadID, or ErrNotFound.
func (s *MySQLStore[S]) Load(ctx context.Context, threadID string) (Checkpoint[S], error) {
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

// Close releases the underlying connection pool.
func (s *MySQLStore[S]) Close() error {
	return s.db.Close()
}
