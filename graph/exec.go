package graph

import (
	"context"
	"fmt"
	"time"
)

// executor runs a single node with timeout, retries, and snapshot rollback.
type executor[S any] struct {
	timeout time.Duration
	retry   *RetryPolicy
	metrics *Metrics
}

// execute runs the node until it succeeds, exhausts retries, or the parent
// context is cancelled. Each attempt starts from a deep copy of the input
// state so a failed attempt cannot leak partial mutations into the next.
func (x *executor[S]) execute(ctx context.Context, step int, node Node[S], state S) (NodeResult[S], error) {
	var lastErr error
	attempts := 0

	for attempt := 0; attempt < x.retry.maxAttempts(); attempt++ {
		attempts++

		snapshot, err := deepCopy(state)
		if err != nil {
			return NodeResult[S]{}, &NodeError{NodeID: node.ID(), Step: step, Attempts: attempts, Err: err}
		}

		start := time.Now()
		result, err := x.runOnce(ctx, node, snapshot)
		latency := time.Since(start)

		if err == nil {
			x.metrics.observeNode(node.ID(), "ok", latency)
			return result, nil
		}
		x.metrics.observeNode(node.ID(), "error", latency)
		lastErr = err

		if ctx.Err() != nil {
			break
		}
		if !x.retry.shouldRetry(attempt, err) {
			break
		}
		x.metrics.incRetry(node.ID())

		select {
		case <-time.After(x.retry.computeBackoff(attempt)):
		case <-ctx.Done():
			return NodeResult[S]{}, &NodeError{NodeID: node.ID(), Step: step, Attempts: attempts, Err: ctx.Err()}
		}
	}

	return NodeResult[S]{}, &NodeError{NodeID: node.ID(), Step: step, Attempts: attempts, Err: lastErr}
}

// runOnce executes one attempt under the per-node timeout.
//
// The node body runs in its own goroutine so a node that ignores its
// context cannot wedge the engine; on timeout the attempt is abandoned and
// its eventual result discarded. Parent cancellation does not abort the
// attempt: an in-flight node finishes naturally and cancellation is
// honored by the engine at the next checkpoint boundary.
func (x *executor[S]) runOnce(ctx context.Context, node Node[S], state S) (NodeResult[S], error) {
	runCtx := ctx
	cancel := func() {}
	var deadline <-chan time.Time
	if x.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, x.timeout)
		timer := time.NewTimer(x.timeout)
		defer timer.Stop()
		deadline = timer.C
	}
	defer cancel()

	done := make(chan NodeResult[S], 1)
	panicked := make(chan any, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				panicked <- r
			}
		}()
		done <- node.Run(runCtx, state)
	}()

	select {
	case result := <-done:
		if result.Err != nil {
			return NodeResult[S]{}, result.Err
		}
		return result, nil
	case r := <-panicked:
		return NodeResult[S]{}, fmt.Errorf("node %q panicked: %v", node.ID(), r)
	case <-deadline:
		return NodeResult[S]{}, Transient(fmt.Errorf("node %q timed out after %s", node.ID(), x.timeout))
	}
}
