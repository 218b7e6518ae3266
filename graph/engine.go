// Package graph is a checkpointed workflow engine.
//
// A workflow is a directed graph of nodes. The engine executes one node at a
// time, persists a checkpoint after every node before deciding where to go
// next, and emits an observability event for each persisted checkpoint. A
// thread (one run, identified by thread id) can therefore be resumed after a
// crash, a pause for external input, or an explicit cancellation, losing at
// most the node that was in flight.
//
// Parallelism inside a node is the node's own business; the engine itself is
// strictly sequential per thread, which is what makes checkpoint/resume
// semantics simple to reason about.
package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dshills/researchflow-go/graph/emit"
	"github.com/dshills/researchflow-go/graph/store"
)

// Options configures engine execution.
type Options[S any] struct {
	// MaxSteps aborts a run that executes more than this many nodes.
	// Zero means no limit. A cycle-bearing graph should always set it.
	MaxSteps int

	// NodeTimeout is the per-node wall clock limit. Zero disables it.
	NodeTimeout time.Duration

	// Retry governs node retries. Nil disables retries entirely.
	Retry *RetryPolicy

	// Metrics receives engine instrumentation. Nil disables it.
	Metrics *Metrics

	// Rejoin merges fresh caller input into a thread paused awaiting
	// input. It receives the saved state and the caller's new initial
	// state and returns the state to resume with. Nil keeps the saved
	// state unchanged.
	Rejoin func(saved, incoming S) S
}

// Engine executes workflow graphs over state type S.
type Engine[S any] struct {
	nodes   map[string]Node[S]
	edges   map[string][]Edge[S]
	start   string
	store   store.Store[S]
	emitter emit.Emitter
	opts    Options[S]
}

// New creates an engine backed by the given store and emitter.
// A nil store falls back to an in-memory store; a nil emitter discards
// events.
func New[S any](st store.Store[S], emitter emit.Emitter, opts Options[S]) *Engine[S] {
	if st == nil {
		st = store.NewMemStore[S]()
	}
	if emitter == nil {
		emitter = emit.NullEmitter{}
	}
	return &Engine[S]{
		nodes:   make(map[string]Node[S]),
		edges:   make(map[string][]Edge[S]),
		store:   st,
		emitter: emitter,
		opts:    opts,
	}
}

// Add registers a node. Re-registering an id replaces the node.
func (e *Engine[S]) Add(node Node[S]) *Engine[S] {
	e.nodes[node.ID()] = node
	return e
}

// StartAt sets the entry node for fresh threads.
func (e *Engine[S]) StartAt(nodeID string) *Engine[S] {
	e.start = nodeID
	return e
}

// Connect adds an edge from one node to another, optionally guarded by a
// predicate. Edges from the same node are evaluated in registration order
// and the first match wins; a nil predicate always matches.
func (e *Engine[S]) Connect(from, to string, when Predicate[S]) *Engine[S] {
	e.edges[from] = append(e.edges[from], Edge[S]{From: from, To: to, When: when})
	return e
}

// Run executes the thread until it completes, pauses for input, fails, or
// is cancelled.
//
// Behavior by existing checkpoint:
//   - none: a fresh run starting at the entry node with initial.
//   - done: returns the saved final state immediately; no node executes.
//   - awaiting_input: resumes at the entry node with Rejoin(saved, initial).
//   - running or failed: resumes with the saved state at the node the
//     edges select after the last completed node. initial is ignored.
//
// Cancellation is honored at the checkpoint boundary: the node in flight
// finishes and is checkpointed, then Run returns ctx.Err() with the state
// as of that checkpoint.
func (e *Engine[S]) Run(ctx context.Context, threadID string, initial S) (S, error) {
	if threadID == "" {
		return initial, &EngineError{Code: CodeInvalidConfig, Message: "thread id required"}
	}
	if e.start == "" {
		return initial, &EngineError{Code: CodeInvalidConfig, Message: "no start node configured"}
	}
	if _, ok := e.nodes[e.start]; !ok {
		return initial, &EngineError{Code: CodeUnknownNode, Message: fmt.Sprintf("start node %q not registered", e.start)}
	}

	state := initial
	current := e.start
	lastCompleted := ""

	cp, err := e.store.Load(ctx, threadID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		e.emit(threadID, 0, "", emit.MsgRunStarted, nil)
	case err != nil:
		return initial, &EngineError{Code: CodeStoreFailed, Message: "load checkpoint", Err: err}
	case cp.Status == store.StatusDone:
		// Terminal threads are immutable; resuming one is a no-op.
		return cp.State, nil
	case cp.Status == store.StatusAwaitingInput:
		state = cp.State
		if e.opts.Rejoin != nil {
			state = e.opts.Rejoin(cp.State, initial)
		}
		e.emit(threadID, 0, cp.NodeID, emit.MsgRunResumed, nil)
	default:
		state = cp.State
		lastCompleted = cp.NodeID
		if cp.NodeID == "" {
			// Failed before any node completed; restart from the top.
			current = e.start
		} else {
			next, rerr := e.route(cp.NodeID, cp.State)
			if rerr != nil {
				return cp.State, rerr
			}
			current = next
		}
		e.emit(threadID, 0, cp.NodeID, emit.MsgRunResumed, nil)
	}

	exec := &executor[S]{
		timeout: e.opts.NodeTimeout,
		retry:   e.opts.Retry,
		metrics: e.opts.Metrics,
	}

	for step := 1; ; step++ {
		if e.opts.MaxSteps > 0 && step > e.opts.MaxSteps {
			return state, &EngineError{Code: CodeMaxSteps, Message: fmt.Sprintf("run exceeded %d steps", e.opts.MaxSteps)}
		}
		node, ok := e.nodes[current]
		if !ok {
			return state, &EngineError{Code: CodeUnknownNode, Message: fmt.Sprintf("node %q not registered", current)}
		}

		result, err := exec.execute(ctx, step, node, state)
		if err != nil {
			// Persist the failure so the thread can be resumed at the
			// failing node once the cause is fixed. State is the last
			// completed node's state; the failed attempt never leaks.
			saveErr := e.save(ctx, threadID, lastCompleted, store.StatusFailed, state)
			e.emit(threadID, step, current, emit.MsgRunFailed, map[string]any{"error": err.Error()})
			if saveErr != nil {
				return state, errors.Join(err, saveErr)
			}
			return state, &EngineError{Code: CodeNodeFailed, Message: fmt.Sprintf("node %q", current), Err: err}
		}

		state = result.State
		lastCompleted = current

		status := store.StatusRunning
		switch {
		case result.Route.Terminal:
			status = store.StatusDone
		case result.Route.Await:
			status = store.StatusAwaitingInput
		}

		// Checkpoint before evaluating edges. A crash between the two
		// replays only the routing decision, never the node.
		if err := e.save(ctx, threadID, current, status, state); err != nil {
			return state, err
		}
		e.emitCompleted(threadID, step, current, state)

		switch status {
		case store.StatusDone:
			e.emit(threadID, step, current, emit.MsgRunDone, nil)
			return state, nil
		case store.StatusAwaitingInput:
			e.emit(threadID, step, current, emit.MsgRunAwaiting, nil)
			return state, nil
		}

		if err := ctx.Err(); err != nil {
			return state, err
		}

		next := result.Route.To
		if next == "" {
			next, err = e.route(current, state)
			if err != nil {
				return state, err
			}
		}
		current = next
	}
}

// route evaluates the edges out of from against state.
func (e *Engine[S]) route(from string, state S) (string, error) {
	for _, edge := range e.edges[from] {
		if edge.matches(state) {
			return edge.To, nil
		}
	}
	return "", &EngineError{Code: CodeNoRoute, Message: fmt.Sprintf("no edge matched from node %q", from)}
}

func (e *Engine[S]) save(ctx context.Context, threadID, nodeID string, status store.Status, state S) error {
	cp := store.Checkpoint[S]{
		ThreadID:  threadID,
		NodeID:    nodeID,
		Status:    status,
		State:     state,
		UpdatedAt: time.Now().UTC(),
	}
	// Checkpoint writes must land even when ctx was just cancelled; the
	// whole point is durability at the boundary.
	if err := e.store.Save(context.WithoutCancel(ctx), threadID, cp); err != nil {
		return &EngineError{Code: CodeStoreFailed, Message: "save checkpoint", Err: err}
	}
	return nil
}

func (e *Engine[S]) emit(threadID string, step int, nodeID, msg string, meta map[string]any) {
	e.emitter.Emit(emit.Event{ThreadID: threadID, Step: step, NodeID: nodeID, Msg: msg, Meta: meta})
}

func (e *Engine[S]) emitCompleted(threadID string, step int, nodeID string, state S) {
	snapshot, err := deepCopy(state)
	if err != nil {
		e.emit(threadID, step, nodeID, emit.MsgNodeCompleted, nil)
		return
	}
	e.emit(threadID, step, nodeID, emit.MsgNodeCompleted, map[string]any{"state": snapshot})
}
