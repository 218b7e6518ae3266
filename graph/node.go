package graph

import "context"

// Node is a unit of work in a workflow graph.
//
// A node receives the current state, does its work, and returns a NodeResult
// carrying the full next state plus an optional explicit route. Nodes never
// mutate shared state in place; the engine hands each node its own copy and
// adopts the returned state wholesale.
//
// The type parameter S is the workflow state type. It must round-trip through
// encoding/json so checkpoints and retry snapshots reproduce it exactly.
type Node[S any] interface {
	// ID returns the node's unique identifier within the graph.
	ID() string

	// Run executes the node against the given state.
	//
	// Returning NodeResult.Err marks the attempt failed; whether the engine
	// retries depends on the configured RetryPolicy and the error's
	// transience. On failure the returned state is discarded.
	Run(ctx context.Context, state S) NodeResult[S]
}

// NodeResult is the outcome of a single node execution.
type NodeResult[S any] struct {
	// State is the complete next workflow state. It replaces the prior
	// state; there is no partial merge.
	State S

	// Route optionally overrides edge evaluation. Zero value means
	// "consult the graph's edges".
	Route Next

	// Err marks the attempt as failed when non-nil.
	Err error
}

// Next describes where execution goes after a node completes.
type Next struct {
	// To names the next node. Ignored when Terminal or Await is set.
	To string

	// Terminal ends the run successfully.
	Terminal bool

	// Await pauses the run waiting for external input. The thread can be
	// resumed later with fresh input through the engine's rejoin hook.
	Await bool
}

// Stop returns a terminal route: the run completes successfully.
func Stop() Next { return Next{Terminal: true} }

// Await returns a pause route: the run stops and waits for external input.
func Await() Next { return Next{Await: true} }

// Goto returns an explicit route to the named node, bypassing edge
// evaluation for this step.
func Goto(nodeID string) Next { return Next{To: nodeID} }

// NodeFunc adapts a function to the Node interface.
//
//	n := graph.NodeFunc[MyState]{
//		NodeID: "summarize",
//		Fn: func(ctx context.Context, s MyState) graph.NodeResult[MyState] {
//			s.Summary = summarize(s.Text)
//			return graph.NodeResult[MyState]{State: s}
//		},
//	}
type NodeFunc[S any] struct {
	NodeID string
	Fn     func(ctx context.Context, state S) NodeResult[S]
}

// ID returns the node identifier.
func (n NodeFunc[S]) ID() string { return n.NodeID }

// Run invokes the wrapped function.
func (n NodeFunc[S]) Run(ctx context.Context, state S) NodeResult[S] {
	return n.Fn(ctx, state)
}
