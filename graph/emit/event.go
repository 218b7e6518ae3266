// Package emit carries observability events out of the engine.
//
// The engine publishes an Event after every persisted checkpoint plus a few
// lifecycle moments (run started, run failed, node retried). Emitters decide
// what to do with them: log, buffer, stream to a channel, or export spans.
package emit

// Event messages published by the engine and pipeline.
const (
	MsgRunStarted    = "run_started"
	MsgRunResumed    = "run_resumed"
	MsgNodeCompleted = "node_completed"
	MsgRunDone       = "run_done"
	MsgRunAwaiting   = "run_awaiting_input"
	MsgRunFailed     = "run_failed"
	MsgTaskStarted   = "task_started"
	MsgTaskFinished  = "task_finished"
	MsgToolCalled    = "tool_called"
)

// Event is one observable moment in a workflow run.
type Event struct {
	// ThreadID identifies the run.
	ThreadID string `json:"thread_id"`
	// Step is the engine step counter, 1-based. Zero for non-node events.
	Step int `json:"step,omitempty"`
	// NodeID names the node the event concerns, if any.
	NodeID string `json:"node_id,omitempty"`
	// Msg is one of the Msg* constants.
	Msg string `json:"msg"`
	// Meta carries event-specific detail. For MsgNodeCompleted it includes
	// "state", a snapshot of the state after the node.
	Meta map[string]any `json:"meta,omitempty"`
}
