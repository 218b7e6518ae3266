// Package model defines the chat-model boundary used by workflow nodes.
//
// Nodes depend only on the ChatModel interface; provider adapters live in
// the subpackages anthropic, openai, and google. Adapters classify provider
// failures: rate limits, timeouts, and 5xx responses come back wrapped with
// graph.Transient so the engine's retry policy can act on them, while
// authentication and quota errors are returned as-is and fail the node.
package model

import "context"

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn in a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ToolSpec describes a tool the model may call, with a JSON Schema for its
// input ("type", "properties", "required" keys as in the provider APIs).
type ToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Schema      map[string]any `json:"schema"`
}

// ToolCall is a model request to invoke a tool.
type ToolCall struct {
	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

// Usage is the token accounting for one model call.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// ChatOut is a model response: text, tool calls, or both.
type ChatOut struct {
	Text      string     `json:"text"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Model     string     `json:"model,omitempty"`
	Usage     Usage      `json:"usage"`
}

// ChatModel is a conversational model. Implementations must be safe for
// concurrent use; the research coordinator calls Chat from several
// goroutines at once.
type ChatModel interface {
	Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error)
}
