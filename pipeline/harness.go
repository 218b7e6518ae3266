package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dshills/researchflow-go/graph"
	"github.com/dshills/researchflow-go/graph/emit"
	"github.com/dshills/researchflow-go/graph/model"
	"github.com/dshills/researchflow-go/graph/tool"
)

// Harness runs the bounded model/tool loop for one research task.
//
// Each iteration asks the model for either a final answer or tool calls.
// Tool calls execute concurrently; each failure becomes an observation fed
// back to the model rather than an error. The loop ends when the model
// answers in text, or when the tool-call budget runs out, in which case the
// note is flagged truncated instead of failed. Only repeated model-call
// failure is fatal to the task.
type Harness struct {
	model    model.ChatModel
	registry *tool.Registry
	specs    []model.ToolSpec
	cfg      Config
	metrics  *graph.Metrics
	costs    *graph.CostTracker
	emitter  emit.Emitter
}

// NewHarness creates a tool-call harness. specs describes the tools in
// registry to the model.
func NewHarness(m model.ChatModel, registry *tool.Registry, specs []model.ToolSpec, cfg Config, metrics *graph.Metrics, costs *graph.CostTracker, emitter emit.Emitter) *Harness {
	if emitter == nil {
		emitter = emit.NullEmitter{}
	}
	return &Harness{
		model:    m,
		registry: registry,
		specs:    specs,
		cfg:      cfg,
		metrics:  metrics,
		costs:    costs,
		emitter:  emitter,
	}
}

// RunTask investigates one task and returns its findings note.
func (h *Harness) RunTask(ctx context.Context, threadID string, task ResearchTask, brief string) (Note, error) {
	messages := []model.Message{
		{Role: model.RoleUser, Content: taskPrompt(task.Topic, brief)},
	}

	note := Note{TaskID: task.ID, Topic: task.Topic}
	budget := h.cfg.MaxToolCalls
	var lastText string

	for {
		out, err := h.chatWithRetry(ctx, messages)
		if err != nil {
			return Note{}, fmt.Errorf("task %s: model call failed: %w", task.ID, err)
		}
		if out.Text != "" {
			lastText = out.Text
		}

		if len(out.ToolCalls) == 0 {
			note.Content = strings.TrimSpace(lastText)
			return note, nil
		}

		if budget <= 0 {
			// Budget exhausted with the model still asking for tools:
			// return what we have, flagged truncated.
			note.Content = strings.TrimSpace(lastText)
			note.Truncated = true
			return note, nil
		}

		calls := out.ToolCalls
		if len(calls) > budget {
			calls = calls[:budget]
		}
		budget -= len(calls)
		note.ToolCalls += len(calls)

		observations := h.executeCalls(ctx, threadID, task.ID, calls, &note)
		if out.Text != "" {
			messages = append(messages, model.Message{Role: model.RoleAssistant, Content: out.Text})
		}
		messages = append(messages, model.Message{Role: model.RoleUser, Content: observations})
	}
}

// executeCalls runs a batch of tool calls concurrently and formats their
// results as an observation message. Results are ordered by call index so
// the transcript is reproducible.
func (h *Harness) executeCalls(ctx context.Context, threadID, taskID string, calls []model.ToolCall, note *Note) string {
	results := make([]string, len(calls))
	var wg sync.WaitGroup
	var mu sync.Mutex

	for i, call := range calls {
		wg.Add(1)
		go func(i int, call model.ToolCall) {
			defer wg.Done()
			result, src, err := h.invoke(ctx, call)
			if err != nil {
				h.metrics.IncToolCall(call.Name, "error")
				results[i] = fmt.Sprintf("Tool %s failed: %v", call.Name, err)
				return
			}
			h.metrics.IncToolCall(call.Name, "ok")
			results[i] = fmt.Sprintf("Tool %s returned:\n%s", call.Name, result)
			if src != "" {
				mu.Lock()
				note.Sources = append(note.Sources, src)
				mu.Unlock()
			}
		}(i, call)
		h.emitter.Emit(emit.Event{
			ThreadID: threadID,
			Msg:      emit.MsgToolCalled,
			Meta:     map[string]any{"task_id": taskID, "tool": call.Name},
		})
	}
	wg.Wait()

	mu.Lock()
	sort.Strings(note.Sources)
	mu.Unlock()

	return strings.Join(results, "\n\n")
}

func (h *Harness) invoke(ctx context.Context, call model.ToolCall) (string, string, error) {
	t, ok := h.registry.Lookup(call.Name)
	if !ok {
		return "", "", fmt.Errorf("unknown tool %q", call.Name)
	}
	result, err := t.Call(ctx, call.Input)
	if err != nil {
		return "", "", err
	}

	var sb strings.Builder
	var source string
	keys := make([]string, 0, len(result))
	for k := range result {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s: %v\n", k, result[k])
	}
	if url, ok := call.Input["url"].(string); ok {
		source = url
	}
	return sb.String(), source, nil
}

// chatWithRetry retries transient model failures a small, fixed number of
// times. The engine-level retry policy does not apply inside a fan-out
// task, so the harness carries its own.
func (h *Harness) chatWithRetry(ctx context.Context, messages []model.Message) (model.ChatOut, error) {
	retries := h.cfg.MaxModelRetries
	if retries < 1 {
		retries = 1
	}

	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		out, err := h.model.Chat(ctx, messages, h.specs)
		if err == nil {
			h.costs.Record(out.Model, out.Usage)
			return out, nil
		}
		lastErr = err
		if ctx.Err() != nil || !graph.IsTransient(err) {
			break
		}
		select {
		case <-time.After(time.Duration(attempt+1) * 200 * time.Millisecond):
		case <-ctx.Done():
			return model.ChatOut{}, ctx.Err()
		}
	}
	return model.ChatOut{}, lastErr
}
