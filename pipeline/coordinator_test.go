package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dshills/researchflow-go/graph"
	"github.com/dshills/researchflow-go/graph/model"
	"github.com/dshills/researchflow-go/graph/tool"
)

func testCoordinator(t *testing.T, m model.ChatModel, cfg Config) *Coordinator {
	t.Helper()
	h := NewHarness(m, tool.NewRegistry(), nil, cfg, nil, graph.NewCostTracker(nil), nil)
	return NewCoordinator(m, h, cfg, nil, graph.NewCostTracker(nil), nil)
}

func supervisorPlan(topics ...string) string {
	parts := make([]string, len(topics))
	for i, topic := range topics {
		parts[i] = fmt.Sprintf(`{"topic":%q,"tools":[]}`, topic)
	}
	return fmt.Sprintf(`{"complete": false, "tasks": [%s]}`, strings.Join(parts, ","))
}

const supervisorDone = `{"complete": true, "tasks": []}`

func researchState(brief string) GraphState {
	return GraphState{Query: "q", Brief: brief, Metadata: map[string]string{"thread_id": "t1"}}
}

func TestCoordinatorRun(t *testing.T) {
	ctx := context.Background()

	t.Run("failed task does not abort siblings", func(t *testing.T) {
		supervisorCalls := 0
		var sawUnresolved string
		m := &model.MockChatModel{Fn: func(_ context.Context, messages []model.Message, _ []model.ToolSpec) (model.ChatOut, error) {
			prompt := messages[0].Content
			if strings.Contains(prompt, "You supervise") {
				supervisorCalls++
				if supervisorCalls == 1 {
					return model.ChatOut{Text: supervisorPlan("alpha", "beta", "gamma")}, nil
				}
				sawUnresolved = prompt
				return model.ChatOut{Text: supervisorDone}, nil
			}
			if strings.Contains(prompt, "beta") {
				return model.ChatOut{}, errors.New("provider rejected request")
			}
			return model.ChatOut{Text: "findings"}, nil
		}}
		c := testCoordinator(t, m, DefaultConfig())

		state, err := c.Run(ctx, researchState("brief"))
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if len(state.CompressedNotes) != 2 {
			t.Fatalf("notes = %d, want 2 from the surviving tasks", len(state.CompressedNotes))
		}
		if state.ResearchIterations != 1 {
			t.Errorf("iterations = %d, want 1 (failed round is not retried)", state.ResearchIterations)
		}
		if !strings.Contains(sawUnresolved, "beta") {
			t.Error("next supervisor prompt should carry the unresolved topic")
		}
	})

	t.Run("proposals beyond the concurrency cap are clipped", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.MaxConcurrentTasks = 2
		var active, maxActive int64
		supervisorCalls := 0
		m := &model.MockChatModel{Fn: func(_ context.Context, messages []model.Message, _ []model.ToolSpec) (model.ChatOut, error) {
			prompt := messages[0].Content
			if strings.Contains(prompt, "You supervise") {
				supervisorCalls++
				if supervisorCalls == 1 {
					return model.ChatOut{Text: supervisorPlan("a", "b", "c", "d", "e")}, nil
				}
				return model.ChatOut{Text: supervisorDone}, nil
			}
			n := atomic.AddInt64(&active, 1)
			for {
				old := atomic.LoadInt64(&maxActive)
				if n <= old || atomic.CompareAndSwapInt64(&maxActive, old, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt64(&active, -1)
			return model.ChatOut{Text: "findings"}, nil
		}}
		c := testCoordinator(t, m, cfg)

		state, err := c.Run(ctx, researchState("brief"))
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if len(state.CompressedNotes) != 2 {
			t.Errorf("notes = %d, want 2 (clipped to cap)", len(state.CompressedNotes))
		}
		if atomic.LoadInt64(&maxActive) > int64(cfg.MaxConcurrentTasks) {
			t.Errorf("max concurrent tasks = %d, cap is %d", maxActive, cfg.MaxConcurrentTasks)
		}
	})

	t.Run("iteration cap overrides an insatiable supervisor", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.MaxResearchIterations = 2
		supervisorCalls := 0
		m := &model.MockChatModel{Fn: func(_ context.Context, messages []model.Message, _ []model.ToolSpec) (model.ChatOut, error) {
			if strings.Contains(messages[0].Content, "You supervise") {
				supervisorCalls++
				return model.ChatOut{Text: supervisorPlan("more research")}, nil
			}
			return model.ChatOut{Text: "findings"}, nil
		}}
		c := testCoordinator(t, m, cfg)

		state, err := c.Run(ctx, researchState("brief"))
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if state.ResearchIterations != 2 {
			t.Errorf("iterations = %d, want the hard cap 2", state.ResearchIterations)
		}
		if supervisorCalls != 2 {
			t.Errorf("supervisor calls = %d, want 2", supervisorCalls)
		}
	})

	t.Run("merge order follows task ids, not completion order", func(t *testing.T) {
		supervisorCalls := 0
		m := &model.MockChatModel{Fn: func(_ context.Context, messages []model.Message, _ []model.ToolSpec) (model.ChatOut, error) {
			prompt := messages[0].Content
			if strings.Contains(prompt, "You supervise") {
				supervisorCalls++
				if supervisorCalls == 1 {
					return model.ChatOut{Text: supervisorPlan("first", "second", "third")}, nil
				}
				return model.ChatOut{Text: supervisorDone}, nil
			}
			if strings.Contains(prompt, "first") {
				// Slowest task carries the lowest id.
				time.Sleep(30 * time.Millisecond)
			}
			return model.ChatOut{Text: "findings"}, nil
		}}
		c := testCoordinator(t, m, DefaultConfig())

		state, err := c.Run(ctx, researchState("brief"))
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		topics := make([]string, len(state.CompressedNotes))
		for i, n := range state.CompressedNotes {
			topics[i] = n.Topic
		}
		want := []string{"first", "second", "third"}
		if fmt.Sprint(topics) != fmt.Sprint(want) {
			t.Errorf("merge order = %v, want %v", topics, want)
		}
	})

	t.Run("cancellation mid-round finishes the round and stops", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		supervisorCalls := 0
		m := &model.MockChatModel{Fn: func(_ context.Context, messages []model.Message, _ []model.ToolSpec) (model.ChatOut, error) {
			prompt := messages[0].Content
			if strings.Contains(prompt, "You supervise") {
				supervisorCalls++
				if supervisorCalls == 1 {
					return model.ChatOut{Text: supervisorPlan("alpha", "beta")}, nil
				}
				return model.ChatOut{Text: supervisorDone}, nil
			}
			cancel()
			return model.ChatOut{Text: "findings"}, nil
		}}
		c := testCoordinator(t, m, DefaultConfig())

		state, err := c.Run(cctx, researchState("brief"))
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if len(state.CompressedNotes) != 2 {
			t.Errorf("notes = %d, want both in-flight tasks finished", len(state.CompressedNotes))
		}
		if state.ResearchIterations != 1 {
			t.Errorf("iterations = %d, want 1 (no new round after cancellation)", state.ResearchIterations)
		}
		if supervisorCalls != 1 {
			t.Errorf("supervisor calls = %d, want 1", supervisorCalls)
		}
	})

	t.Run("supervisor can finish immediately", func(t *testing.T) {
		m := &model.MockChatModel{Responses: []model.ChatOut{{Text: supervisorDone}}}
		c := testCoordinator(t, m, DefaultConfig())
		state, err := c.Run(ctx, researchState("brief"))
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if state.ResearchIterations != 0 || len(state.CompressedNotes) != 0 {
			t.Errorf("state = %d iterations, %d notes; want 0/0", state.ResearchIterations, len(state.CompressedNotes))
		}
	})
}
