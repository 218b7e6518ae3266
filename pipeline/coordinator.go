package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dshills/researchflow-go/graph"
	"github.com/dshills/researchflow-go/graph/emit"
	"github.com/dshills/researchflow-go/graph/model"
)

// Coordinator runs the fan-out/gather research phase.
//
// Each round, a supervising model call proposes up to MaxConcurrentTasks
// tasks. All tasks in a round launch together and the round gathers every
// one of them before anything advances; a task failure is recorded and its
// topic carried into the next round as unresolved, never aborting siblings.
// Rounds stop when the supervisor declares completion or the hard
// MaxResearchIterations cap is reached, whichever comes first. Cap
// exhaustion is not an error; the pipeline proceeds with whatever notes
// were gathered.
type Coordinator struct {
	model   model.ChatModel
	harness *Harness
	cfg     Config
	metrics *graph.Metrics
	costs   *graph.CostTracker
	emitter emit.Emitter
}

// NewCoordinator creates a research coordinator around a harness.
func NewCoordinator(m model.ChatModel, harness *Harness, cfg Config, metrics *graph.Metrics, costs *graph.CostTracker, emitter emit.Emitter) *Coordinator {
	if emitter == nil {
		emitter = emit.NullEmitter{}
	}
	return &Coordinator{
		model:   m,
		harness: harness,
		cfg:     cfg,
		metrics: metrics,
		costs:   costs,
		emitter: emitter,
	}
}

type taskResult struct {
	task ResearchTask
	note Note
	err  error
}

// Run executes research rounds against the state's brief and returns the
// state with accumulated notes. Cancellation is cooperative: tasks already
// in flight finish their round, then Run returns without starting another.
func (c *Coordinator) Run(ctx context.Context, state GraphState) (GraphState, error) {
	threadID := state.Metadata["thread_id"]
	var unresolved []string

	for state.ResearchIterations < c.cfg.MaxResearchIterations {
		if ctx.Err() != nil {
			// Honor cancellation between rounds. Notes from completed
			// rounds are already in the state.
			return state, nil
		}

		complete, tasks, err := c.plan(ctx, state, unresolved)
		if err != nil {
			return state, fmt.Errorf("research supervisor: %w", err)
		}
		if complete || len(tasks) == 0 {
			return state, nil
		}

		c.metrics.IncResearchRound()
		results := c.runRound(ctx, threadID, tasks, state.Brief)

		unresolved = unresolved[:0]
		for _, r := range results {
			if r.err != nil {
				unresolved = append(unresolved, r.task.Topic)
				continue
			}
			state.RawNotes = append(state.RawNotes, r.note)
			state.CompressedNotes = append(state.CompressedNotes, compressNote(r.note))
		}
		state.ResearchIterations++
	}
	return state, nil
}

// plan asks the supervisor for the next round. Proposals beyond the
// concurrency cap are clipped, not rejected.
func (c *Coordinator) plan(ctx context.Context, state GraphState, unresolved []string) (bool, []ResearchTask, error) {
	out, err := c.model.Chat(ctx, []model.Message{
		{Role: model.RoleUser, Content: supervisorPrompt(state, c.cfg.MaxConcurrentTasks, unresolved)},
	}, nil)
	if err != nil {
		return false, nil, err
	}
	c.costs.Record(out.Model, out.Usage)

	var plan struct {
		Complete bool `json:"complete"`
		Tasks    []struct {
			Topic string   `json:"topic"`
			Tools []string `json:"tools"`
		} `json:"tasks"`
	}
	if err := decodeJSON(out.Text, &plan); err != nil {
		return false, nil, err
	}
	if plan.Complete {
		return true, nil, nil
	}

	proposals := plan.Tasks
	if len(proposals) > c.cfg.MaxConcurrentTasks {
		proposals = proposals[:c.cfg.MaxConcurrentTasks]
	}

	round := state.ResearchIterations + 1
	tasks := make([]ResearchTask, 0, len(proposals))
	for i, p := range proposals {
		if p.Topic == "" {
			continue
		}
		tasks = append(tasks, ResearchTask{
			ID:            fmt.Sprintf("r%d-t%d", round, i+1),
			Topic:         p.Topic,
			AssignedTools: p.Tools,
			Status:        TaskPending,
		})
	}
	return false, tasks, nil
}

// runRound fans out one goroutine per task and gathers all of them. Each
// goroutine writes only its own result slot; the merge sorts by task id so
// note order is reproducible regardless of completion order.
func (c *Coordinator) runRound(ctx context.Context, threadID string, tasks []ResearchTask, brief string) []taskResult {
	// In-flight tasks finish naturally even when the caller cancels
	// mid-round; cancellation is honored between rounds.
	taskCtx := context.WithoutCancel(ctx)

	results := make([]taskResult, len(tasks))
	var wg sync.WaitGroup

	for i, task := range tasks {
		wg.Add(1)
		c.metrics.TaskStarted()
		c.emitter.Emit(emit.Event{
			ThreadID: threadID,
			Msg:      emit.MsgTaskStarted,
			Meta:     map[string]any{"task_id": task.ID, "topic": task.Topic},
		})

		go func(i int, task ResearchTask) {
			defer wg.Done()
			defer c.metrics.TaskFinished()

			task.Status = TaskRunning
			note, err := c.harness.RunTask(taskCtx, threadID, task, brief)
			if err != nil {
				task.Status = TaskFailed
			} else {
				task.Status = TaskDone
			}
			results[i] = taskResult{task: task, note: note, err: err}

			meta := map[string]any{"task_id": task.ID, "status": string(task.Status)}
			if err != nil {
				meta["error"] = err.Error()
			}
			c.emitter.Emit(emit.Event{ThreadID: threadID, Msg: emit.MsgTaskFinished, Meta: meta})
		}(i, task)
	}
	wg.Wait()

	sort.Slice(results, func(a, b int) bool {
		return results[a].task.ID < results[b].task.ID
	})
	return results
}

// compressNote reduces a raw note to what downstream stages need. Raw
// notes keep the full content for audit; compressed notes feed prompts.
func compressNote(n Note) Note {
	return Note{
		TaskID:    n.TaskID,
		Topic:     n.Topic,
		Content:   summarize(n.Content, 2000),
		Sources:   n.Sources,
		ToolCalls: n.ToolCalls,
		Truncated: n.Truncated,
	}
}
