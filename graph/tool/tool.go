// Package tool defines the tool boundary for model-driven workflows.
package tool

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Tool is an external capability the model can invoke: a search API, a
// document fetcher, a calculator. Implementations must be safe for
// concurrent use; the research harness executes tool calls in parallel.
type Tool interface {
	// Name returns the identifier the model uses to call the tool.
	Name() string

	// Call executes the tool. Input keys follow the tool's declared
	// schema. A returned error is reported back to the model as an
	// observation, not surfaced as a node failure.
	Call(ctx context.Context, input map[string]any) (map[string]any, error)
}

// Registry is a named collection of tools.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Registering a duplicate name is an error so typos
// in wiring fail loudly instead of shadowing a tool.
func (r *Registry) Register(t Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name()]; exists {
		return fmt.Errorf("tool %q already registered", t.Name())
	}
	r.tools[t.Name()] = t
	return nil
}

// Lookup returns the named tool, or false when absent.
func (r *Registry) Lookup(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
