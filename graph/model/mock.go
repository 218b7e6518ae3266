package model

import (
	"context"
	"sync"
)

// MockChatModel is a scriptable ChatModel for tests.
//
// Responses are consumed in order; when they run out the last one repeats.
// If Fn is set it takes precedence and full control.
type MockChatModel struct {
	mu        sync.Mutex
	Responses []ChatOut
	Err       error
	Fn        func(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error)

	calls [][]Message
	next  int
}

// Chat implements ChatModel.
func (m *MockChatModel) Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error) {
	if m.Fn != nil {
		return m.Fn(ctx, messages, tools)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := make([]Message, len(messages))
	copy(snapshot, messages)
	m.calls = append(m.calls, snapshot)

	if m.Err != nil {
		return ChatOut{}, m.Err
	}
	if len(m.Responses) == 0 {
		return ChatOut{}, nil
	}
	idx := m.next
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	}
	m.next++
	return m.Responses[idx], nil
}

// CallCount returns how many times Chat was invoked.
func (m *MockChatModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Call returns the messages passed to the i-th Chat invocation.
func (m *MockChatModel) Call(i int) []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[i]
}
