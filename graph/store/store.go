// Package store persists workflow checkpoints.
//
// A checkpoint records the last completed node, the thread's status, and the
// full state after that node. Each thread has exactly one checkpoint, which
// is overwritten after every node, so a crash loses at most the node that
// was in flight.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Load when a thread has no checkpoint.
var ErrNotFound = errors.New("checkpoint not found")

// Status is the lifecycle state of a thread.
type Status string

const (
	// StatusRunning marks a thread that is mid-flight (or crashed mid-flight).
	StatusRunning Status = "running"
	// StatusAwaitingInput marks a thread paused for external input.
	StatusAwaitingInput Status = "awaiting_input"
	// StatusDone marks a completed thread. Resuming it is a no-op.
	StatusDone Status = "done"
	// StatusFailed marks a thread that stopped on a fatal node error.
	StatusFailed Status = "failed"
)

// Store persists one checkpoint per thread.
//
// Save must be atomic per thread id: concurrent writers to the same thread
// serialize, and a reader sees either the old or the new checkpoint, never
// a mix. Load returns ErrNotFound for unknown threads.
type Store[S any] interface {
	Save(ctx context.Context, threadID string, cp Checkpoint[S]) error
	Load(ctx context.Context, threadID string) (Checkpoint[S], error)
}

// Checkpoint is one persisted snapshot of a thread.
type Checkpoint[S any] struct {
	ThreadID  string    `json:"thread_id"`
	NodeID    string    `json:"node_id"` // last completed node
	Status    Status    `json:"status"`
	State     S         `json:"state"`
	UpdatedAt time.Time `json:"updated_at"`
}
