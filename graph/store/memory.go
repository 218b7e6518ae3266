package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// MemStore is an in-memory Store for tests and single-process runs.
//
// State is serialized to JSON on Save and deserialized on Load, so a read
// always reproduces exactly what was written and callers cannot alias the
// stored state. Writes serialize behind a mutex; reads run concurrently.
type MemStore[S any] struct {
	mu   sync.RWMutex
	rows map[string]memRow
}

type memRow struct {
	nodeID    string
	status    Status
	state     []byte
	updatedAt time.Time
}

// NewMemStore creates an empty in-memory store.
func NewMemStore[S any]() *MemStore[S] {
	return &MemStore[S]{rows: make(map[string]memRow)}
}

// Save overwrites the checkpoint for threadID.
func (m *MemStore[S]) Save(ctx context.Context, threadID string, cp Checkpoint[S]) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if threadID == "" {
		return fmt.Errorf("thread id required")
	}
	data, err := json.Marshal(cp.State)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[threadID] = memRow{
		nodeID:    cp.NodeID,
		status:    cp.Status,
		state:     data,
		updatedAt: cp.UpdatedAt,
	}
	return nil
}

// Load returns the checkpoint for threadID, or ErrNotFound.
func (m *MemStore[S]) Load(ctx context.Context, threadID string) (Checkpoint[S], error) {
	if err := ctx.Err(); err != nil {
		return Checkpoint[S]{}, err
	}

	m.mu.RLock()
	row, ok := m.rows[threadID]
	m.mu.RUnlock()
	if !ok {
		return Checkpoint[S]{}, ErrNotFound
	}

	var state S
	if err := json.Unmarshal(row.state, &state); err != nil {
		return Checkpoint[S]{}, fmt.Errorf("unmarshal state: %w", err)
	}
	return Checkpoint[S]{
		ThreadID:  threadID,
		NodeID:    row.nodeID,
		Status:    row.status,
		State:     state,
		UpdatedAt: row.updatedAt,
	}, nil
}
