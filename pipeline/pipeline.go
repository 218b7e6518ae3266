package pipeline

import (
	"context"

	"github.com/dshills/researchflow-go/graph"
	"github.com/dshills/researchflow-go/graph/emit"
	"github.com/dshills/researchflow-go/graph/model"
	"github.com/dshills/researchflow-go/graph/store"
	"github.com/dshills/researchflow-go/graph/tool"
)

// Deps wires the pipeline's collaborators. Model and Store are required;
// everything else has a working zero value.
type Deps struct {
	// Model handles all inference: stage prompts, the research
	// supervisor, and task tool loops.
	Model model.ChatModel

	// Registry holds the research tools; Specs describes them to the
	// model. A nil registry runs research without tools.
	Registry *tool.Registry
	Specs    []model.ToolSpec

	// Store persists checkpoints. Nil falls back to an in-memory store.
	Store store.Store[GraphState]

	// Emitter receives progress events. Nil discards them.
	Emitter emit.Emitter

	// Metrics and Costs are optional instrumentation.
	Metrics *graph.Metrics
	Costs   *graph.CostTracker

	// Config holds caps and thresholds. The zero value is replaced by
	// DefaultConfig().
	Config Config
}

// Pipeline is the caller-facing research workflow.
type Pipeline struct {
	engine *graph.Engine[GraphState]
	cfg    Config
	costs  *graph.CostTracker
}

// New builds the stage graph on a fresh engine.
func New(deps Deps) *Pipeline {
	cfg := deps.Config
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}
	registry := deps.Registry
	if registry == nil {
		registry = tool.NewRegistry()
	}
	costs := deps.Costs
	if costs == nil {
		costs = graph.NewCostTracker(nil)
	}

	harness := NewHarness(deps.Model, registry, deps.Specs, cfg, deps.Metrics, costs, deps.Emitter)
	coord := NewCoordinator(deps.Model, harness, cfg, deps.Metrics, costs, deps.Emitter)
	st := &stages{
		model:   deps.Model,
		cfg:     cfg,
		coord:   coord,
		metrics: deps.Metrics,
		costs:   costs,
	}

	engine := graph.New(deps.Store, deps.Emitter, graph.Options[GraphState]{
		MaxSteps:    cfg.MaxSteps,
		NodeTimeout: cfg.NodeTimeout,
		Retry:       graph.DefaultRetryPolicy(),
		Metrics:     deps.Metrics,
		Rejoin:      rejoin,
	})

	engine.
		Add(graph.NodeFunc[GraphState]{NodeID: StageClarify, Fn: st.clarify}).
		Add(graph.NodeFunc[GraphState]{NodeID: StageWriteBrief, Fn: st.writeBrief}).
		Add(graph.NodeFunc[GraphState]{NodeID: StageValidateBrief, Fn: st.validateBrief}).
		Add(graph.NodeFunc[GraphState]{NodeID: StageResearch, Fn: st.research}).
		Add(graph.NodeFunc[GraphState]{NodeID: StageGenerateReport, Fn: st.generateReport}).
		Add(graph.NodeFunc[GraphState]{NodeID: StageQualityControl, Fn: st.qualityControl}).
		StartAt(StageClarify)

	engine.
		Connect(StageClarify, StageWriteBrief, nil).
		Connect(StageWriteBrief, StageValidateBrief, nil).
		Connect(StageValidateBrief, StageWriteBrief, func(s GraphState) bool { return s.BriefFeedback != "" }).
		Connect(StageValidateBrief, StageResearch, nil).
		Connect(StageResearch, StageGenerateReport, nil).
		Connect(StageGenerateReport, StageQualityControl, nil).
		Connect(StageQualityControl, StageGenerateReport, func(s GraphState) bool { return s.QCFeedback != "" })

	return &Pipeline{engine: engine, cfg: cfg, costs: costs}
}

// StartOrResume runs the thread to its next stopping point: completion, a
// clarifying question, or a fatal error.
//
// For a new thread, query seeds the state. For a thread paused on a
// clarifying question, query is the user's answer and is appended to the
// conversation before the clarify stage re-evaluates. For a terminal
// thread, the saved final state returns unchanged and no node executes.
func (p *Pipeline) StartOrResume(ctx context.Context, threadID, query string) (GraphState, error) {
	initial := NewState(query, map[string]string{"thread_id": threadID})
	return p.engine.Run(ctx, threadID, initial)
}

// Costs returns the pipeline's cost tracker.
func (p *Pipeline) Costs() *graph.CostTracker { return p.costs }

// rejoin folds a resume query into a paused thread's saved state.
func rejoin(saved, incoming GraphState) GraphState {
	if len(incoming.Messages) > 0 {
		answer := incoming.Messages[len(incoming.Messages)-1]
		if answer.Content != "" {
			saved.Messages = append(saved.Messages, answer)
		}
	}
	saved.NeedsClarification = false
	saved.ClarifyingQuestion = ""
	return saved
}
