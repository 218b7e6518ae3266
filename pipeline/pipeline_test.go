package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/dshills/researchflow-go/graph/emit"
	"github.com/dshills/researchflow-go/graph/model"
	"github.com/dshills/researchflow-go/graph/store"
)

// script routes mock model calls by stage prompt markers so scenario tests
// can vary one stage's behavior at a time.
type script struct {
	clarify    func(calls int) string
	brief      func(calls int) string
	supervisor func(calls int) string
	task       func(calls int) string
	report     func(calls int) string

	clarifyCalls    int
	briefCalls      int
	supervisorCalls int
	taskCalls       int
	reportCalls     int
}

const (
	goodClarify = `{"need_clarification": false, "question": ""}`
	goodBrief   = "Framing paragraph.\n- solar adoption trends\n- battery storage economics\n- grid policy changes"
	goodReport  = `{"report": "Solar adoption is rising [1]. Battery storage costs fell [2]. Grid policy tightened [3].", "executive_summary": "All three fronts moved."}`
)

func defaultScript() *script {
	return &script{
		clarify: func(int) string { return goodClarify },
		brief:   func(int) string { return goodBrief },
		supervisor: func(calls int) string {
			if calls == 1 {
				return supervisorPlan("solar adoption", "battery storage")
			}
			return supervisorDone
		},
		task:   func(int) string { return "findings with numbers" },
		report: func(int) string { return goodReport },
	}
}

func (s *script) model() *model.MockChatModel {
	return &model.MockChatModel{Fn: func(_ context.Context, messages []model.Message, _ []model.ToolSpec) (model.ChatOut, error) {
		prompt := messages[0].Content
		switch {
		case strings.Contains(prompt, "You triage"):
			s.clarifyCalls++
			return model.ChatOut{Text: s.clarify(s.clarifyCalls)}, nil
		case strings.Contains(prompt, "research brief for the request"):
			s.briefCalls++
			return model.ChatOut{Text: s.brief(s.briefCalls)}, nil
		case strings.Contains(prompt, "You supervise"):
			s.supervisorCalls++
			return model.ChatOut{Text: s.supervisor(s.supervisorCalls)}, nil
		case strings.Contains(prompt, "You are a researcher"):
			s.taskCalls++
			return model.ChatOut{Text: s.task(s.taskCalls)}, nil
		case strings.Contains(prompt, "final research report"):
			s.reportCalls++
			return model.ChatOut{Text: s.report(s.reportCalls)}, nil
		default:
			return model.ChatOut{Text: "unexpected prompt"}, nil
		}
	}}
}

func newTestPipeline(s *script) (*Pipeline, *store.MemStore[GraphState], *emit.BufferedEmitter) {
	st := store.NewMemStore[GraphState]()
	buf := emit.NewBufferedEmitter()
	p := New(Deps{
		Model:   s.model(),
		Store:   st,
		Emitter: buf,
	})
	return p, st, buf
}

func nodeExecutions(buf *emit.BufferedEmitter, threadID, nodeID string) int {
	n := 0
	for _, ev := range buf.EventsFor(threadID) {
		if ev.Msg == emit.MsgNodeCompleted && ev.NodeID == nodeID {
			n++
		}
	}
	return n
}

func TestPipelineScenarios(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path runs every stage once", func(t *testing.T) {
		s := defaultScript()
		p, st, buf := newTestPipeline(s)

		final, err := p.StartOrResume(ctx, "t1", "how is the energy transition going?")
		if err != nil {
			t.Fatalf("StartOrResume() error = %v", err)
		}
		if final.Report == "" || final.ExecutiveSummary == "" {
			t.Error("final state missing report or summary")
		}
		if !final.BriefValid || !final.ReportValid {
			t.Errorf("valid flags = %v/%v, want true/true", final.BriefValid, final.ReportValid)
		}
		if final.RevisionCapHit || len(final.Warnings) != 0 {
			t.Errorf("unexpected cap hit or warnings: %+v", final.Warnings)
		}
		if len(final.CompressedNotes) != 2 {
			t.Errorf("notes = %d, want 2", len(final.CompressedNotes))
		}

		for _, stage := range []string{StageClarify, StageWriteBrief, StageValidateBrief, StageResearch, StageGenerateReport, StageQualityControl} {
			if got := nodeExecutions(buf, "t1", stage); got != 1 {
				t.Errorf("%s executed %d times, want 1", stage, got)
			}
		}

		cp, err := st.Load(ctx, "t1")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cp.Status != store.StatusDone {
			t.Errorf("checkpoint status = %q, want done", cp.Status)
		}
	})

	t.Run("brief failing once then passing revises exactly once", func(t *testing.T) {
		s := defaultScript()
		s.brief = func(calls int) string {
			if calls == 1 {
				return "vague prose with no structure"
			}
			return goodBrief
		}
		p, _, buf := newTestPipeline(s)

		final, err := p.StartOrResume(ctx, "t1", "query")
		if err != nil {
			t.Fatalf("StartOrResume() error = %v", err)
		}
		if final.BriefRevisions != 1 {
			t.Errorf("BriefRevisions = %d, want 1", final.BriefRevisions)
		}
		if !final.BriefValid {
			t.Error("brief should be valid after revision")
		}
		if got := nodeExecutions(buf, "t1", StageWriteBrief); got != 2 {
			t.Errorf("write_brief executed %d times, want 2", got)
		}
		if got := nodeExecutions(buf, "t1", StageValidateBrief); got != 2 {
			t.Errorf("validate_brief executed %d times, want 2", got)
		}
		if final.RevisionCapHit {
			t.Error("cap should not be hit when revision succeeds")
		}
	})

	t.Run("brief failing past the cap proceeds with a warning", func(t *testing.T) {
		s := defaultScript()
		s.brief = func(int) string { return "always vague prose" }
		p, _, buf := newTestPipeline(s)

		final, err := p.StartOrResume(ctx, "t1", "query")
		if err != nil {
			t.Fatalf("StartOrResume() error = %v", err)
		}
		if !final.RevisionCapHit {
			t.Error("RevisionCapHit not set")
		}
		if final.BriefRevisions != 1 {
			t.Errorf("BriefRevisions = %d, want 1 (cap)", final.BriefRevisions)
		}
		if got := nodeExecutions(buf, "t1", StageWriteBrief); got != 2 {
			t.Errorf("write_brief executed %d times, want cap+1 = 2", got)
		}
		if final.Report == "" {
			t.Error("run should still complete with a report")
		}
	})

	t.Run("report failing past the cap completes with warning", func(t *testing.T) {
		s := defaultScript()
		s.report = func(int) string {
			return `{"report": "Uncited claims about solar adoption and battery storage.", "executive_summary": "s"}`
		}
		p, st, buf := newTestPipeline(s)

		final, err := p.StartOrResume(ctx, "t1", "query")
		if err != nil {
			t.Fatalf("StartOrResume() error = %v, cap exhaustion must not be fatal", err)
		}
		if final.ReportRevisions != 1 {
			t.Errorf("ReportRevisions = %d, want 1", final.ReportRevisions)
		}
		if !final.RevisionCapHit {
			t.Error("RevisionCapHit not set")
		}
		if len(final.Warnings) == 0 {
			t.Error("final state missing the visible warning")
		}
		if got := nodeExecutions(buf, "t1", StageGenerateReport); got != 2 {
			t.Errorf("generate_report executed %d times, want cap+1 = 2", got)
		}

		cp, err := st.Load(ctx, "t1")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cp.Status != store.StatusDone {
			t.Errorf("status = %q, want done (completed, not failed)", cp.Status)
		}
	})

	t.Run("clarifying question pauses, answer resumes", func(t *testing.T) {
		s := defaultScript()
		s.clarify = func(calls int) string {
			if calls == 1 {
				return `{"need_clarification": true, "question": "Which region?"}`
			}
			return goodClarify
		}
		p, st, _ := newTestPipeline(s)

		paused, err := p.StartOrResume(ctx, "t1", "energy transition?")
		if err != nil {
			t.Fatalf("first StartOrResume() error = %v", err)
		}
		if !paused.NeedsClarification || paused.ClarifyingQuestion != "Which region?" {
			t.Fatalf("paused state = %+v, want the clarifying question", paused)
		}
		cp, err := st.Load(ctx, "t1")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cp.Status != store.StatusAwaitingInput {
			t.Fatalf("status = %q, want awaiting_input", cp.Status)
		}

		final, err := p.StartOrResume(ctx, "t1", "Europe")
		if err != nil {
			t.Fatalf("second StartOrResume() error = %v", err)
		}
		if final.NeedsClarification {
			t.Error("clarification flag still set after answer")
		}
		if final.Report == "" {
			t.Error("resumed run did not complete")
		}
		var found bool
		for _, msg := range final.Messages {
			if msg.Role == model.RoleUser && msg.Content == "Europe" {
				found = true
			}
		}
		if !found {
			t.Error("answer not appended to the conversation")
		}
	})

	t.Run("terminal thread resumes idempotently", func(t *testing.T) {
		s := defaultScript()
		p, _, buf := newTestPipeline(s)

		first, err := p.StartOrResume(ctx, "t1", "query")
		if err != nil {
			t.Fatalf("first StartOrResume() error = %v", err)
		}
		events := len(buf.EventsFor("t1"))
		briefCalls := s.briefCalls

		second, err := p.StartOrResume(ctx, "t1", "query repeated")
		if err != nil {
			t.Fatalf("second StartOrResume() error = %v", err)
		}
		if second.Report != first.Report {
			t.Error("terminal state changed on resume")
		}
		if s.briefCalls != briefCalls {
			t.Error("model invoked on terminal resume")
		}
		if got := len(buf.EventsFor("t1")); got != events {
			t.Errorf("events grew from %d to %d on terminal resume", events, got)
		}
	})

	t.Run("research tool budget surfaces truncated notes", func(t *testing.T) {
		s := defaultScript()
		p, _, _ := newTestPipeline(s)

		final, err := p.StartOrResume(ctx, "t1", "query")
		if err != nil {
			t.Fatalf("StartOrResume() error = %v", err)
		}
		for _, note := range final.CompressedNotes {
			if note.Truncated {
				t.Errorf("note %s unexpectedly truncated", note.TaskID)
			}
		}
	})
}
