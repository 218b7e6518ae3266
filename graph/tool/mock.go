package tool

import (
	"context"
	"sync"
)

// MockTool is a scriptable Tool for tests.
type MockTool struct {
	ToolName string
	Result   map[string]any
	Err      error
	Fn       func(ctx context.Context, input map[string]any) (map[string]any, error)

	mu    sync.Mutex
	calls []map[string]any
}

// Name returns the configured tool name.
func (m *MockTool) Name() string { return m.ToolName }

// Call records the input and returns the scripted result or error.
func (m *MockTool) Call(ctx context.Context, input map[string]any) (map[string]any, error) {
	m.mu.Lock()
	m.calls = append(m.calls, input)
	m.mu.Unlock()

	if m.Fn != nil {
		return m.Fn(ctx, input)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Result, nil
}

// CallCount returns how many times the tool was invoked.
func (m *MockTool) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Input returns the input of the i-th invocation.
func (m *MockTool) Input(i int) map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[i]
}
