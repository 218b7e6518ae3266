package graph

import (
	"context"
	"errors"
	"fmt"
)

// Error codes attached to EngineError.
const (
	CodeNoRoute       = "NO_ROUTE"
	CodeMaxSteps      = "MAX_STEPS"
	CodeUnknownNode   = "UNKNOWN_NODE"
	CodeNodeFailed    = "NODE_FAILED"
	CodeStoreFailed   = "STORE_FAILED"
	CodeInvalidConfig = "INVALID_CONFIG"
)

// EngineError is a structured engine failure with a stable code.
type EngineError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error, if any.
func (e *EngineError) Unwrap() error { return e.Err }

// NodeError wraps a node failure with its location in the run.
type NodeError struct {
	NodeID   string
	Step     int
	Attempts int
	Err      error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	return fmt.Sprintf("node %q failed at step %d after %d attempt(s): %v", e.NodeID, e.Step, e.Attempts, e.Err)
}

// Unwrap returns the underlying node error.
func (e *NodeError) Unwrap() error { return e.Err }

// TransientError marks an error as retryable.
//
// Model adapters and tools wrap rate limits, timeouts, and transport
// failures with Transient so the executor's retry policy can tell them
// apart from permanent failures like validation errors.
type TransientError struct {
	Err error
}

// Error implements the error interface.
func (e *TransientError) Error() string { return e.Err.Error() }

// Unwrap returns the wrapped error.
func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as retryable. Returns nil for a nil err.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether err is retryable.
//
// Deadline expiry counts as transient: a slow node may succeed on a
// retry with a fresh timeout. Explicit cancellation does not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
