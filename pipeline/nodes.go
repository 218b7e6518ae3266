package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dshills/researchflow-go/graph"
	"github.com/dshills/researchflow-go/graph/model"
)

// stages holds the shared dependencies of the six pipeline nodes.
type stages struct {
	model   model.ChatModel
	cfg     Config
	coord   *Coordinator
	metrics *graph.Metrics
	costs   *graph.CostTracker
}

func (s *stages) chat(ctx context.Context, messages []model.Message) (model.ChatOut, error) {
	out, err := s.model.Chat(ctx, messages, nil)
	if err != nil {
		return model.ChatOut{}, err
	}
	s.costs.Record(out.Model, out.Usage)
	return out, nil
}

// clarify decides whether the query needs a clarifying question before any
// research starts. When it does, the run pauses awaiting user input and the
// question is surfaced as the result, not as an error.
func (s *stages) clarify(ctx context.Context, state GraphState) graph.NodeResult[GraphState] {
	out, err := s.chat(ctx, []model.Message{
		{Role: model.RoleUser, Content: clarifyPrompt(latestQuery(state))},
	})
	if err != nil {
		return graph.NodeResult[GraphState]{Err: err}
	}

	var decision struct {
		NeedClarification bool   `json:"need_clarification"`
		Question          string `json:"question"`
	}
	if err := decodeJSON(out.Text, &decision); err != nil {
		return graph.NodeResult[GraphState]{Err: fmt.Errorf("clarify response: %w", err)}
	}

	if decision.NeedClarification && decision.Question != "" {
		state.NeedsClarification = true
		state.ClarifyingQuestion = decision.Question
		state.Messages = append(state.Messages, model.Message{Role: model.RoleAssistant, Content: decision.Question})
		return graph.NodeResult[GraphState]{State: state, Route: graph.Await()}
	}

	state.NeedsClarification = false
	state.ClarifyingQuestion = ""
	return graph.NodeResult[GraphState]{State: state}
}

// writeBrief produces the research brief, folding in validator feedback
// when this is a revision pass.
func (s *stages) writeBrief(ctx context.Context, state GraphState) graph.NodeResult[GraphState] {
	out, err := s.chat(ctx, []model.Message{
		{Role: model.RoleUser, Content: briefPrompt(state)},
	})
	if err != nil {
		return graph.NodeResult[GraphState]{Err: err}
	}

	state.Brief = strings.TrimSpace(out.Text)
	state.BriefValid = false
	return graph.NodeResult[GraphState]{State: state}
}

// validateBrief is a pure structural check; no model call. A failure under
// the revision budget records feedback and sends the flow back to
// write_brief via the edge predicate. A failure at the budget sets the cap
// flag and lets the run proceed with the brief as is.
func (s *stages) validateBrief(ctx context.Context, state GraphState) graph.NodeResult[GraphState] {
	ok, feedback := briefCheck(state.Brief, s.cfg.MinBriefSections, s.cfg.MaxBriefSections)
	switch {
	case ok:
		state.BriefValid = true
		state.BriefFeedback = ""
	case state.BriefRevisions < s.cfg.MaxBriefRevisions:
		state.BriefRevisions++
		state.BriefFeedback = feedback
		s.metrics.IncRevisionLoop("brief")
	default:
		state.RevisionCapHit = true
		state.BriefFeedback = ""
		state = state.addWarning("brief failed validation after revision cap: " + feedback)
	}
	return graph.NodeResult[GraphState]{State: state}
}

// research delegates to the coordinator's fan-out/gather rounds.
func (s *stages) research(ctx context.Context, state GraphState) graph.NodeResult[GraphState] {
	next, err := s.coord.Run(ctx, state)
	if err != nil {
		return graph.NodeResult[GraphState]{Err: err}
	}
	return graph.NodeResult[GraphState]{State: next}
}

// generateReport writes the report and executive summary from the gathered
// notes, folding in quality-control feedback on a revision pass.
func (s *stages) generateReport(ctx context.Context, state GraphState) graph.NodeResult[GraphState] {
	out, err := s.chat(ctx, []model.Message{
		{Role: model.RoleUser, Content: reportPrompt(state)},
	})
	if err != nil {
		return graph.NodeResult[GraphState]{Err: err}
	}

	var report struct {
		Report           string `json:"report"`
		ExecutiveSummary string `json:"executive_summary"`
	}
	if err := decodeJSON(out.Text, &report); err != nil {
		return graph.NodeResult[GraphState]{Err: fmt.Errorf("report response: %w", err)}
	}

	state.Report = strings.TrimSpace(report.Report)
	state.ExecutiveSummary = strings.TrimSpace(report.ExecutiveSummary)
	state.ReportValid = false
	return graph.NodeResult[GraphState]{State: state}
}

// qualityControl is a pure structural check. Pass and cap exhaustion both
// end the run; cap exhaustion is a completed result with a visible caveat,
// never a failure.
func (s *stages) qualityControl(ctx context.Context, state GraphState) graph.NodeResult[GraphState] {
	ok, feedback := reportCheck(state.Report, state.CompressedNotes, s.cfg.MinCitations)
	switch {
	case ok:
		state.ReportValid = true
		state.QCFeedback = ""
		return graph.NodeResult[GraphState]{State: state, Route: graph.Stop()}
	case state.ReportRevisions < s.cfg.MaxReportRevisions:
		state.ReportRevisions++
		state.QCFeedback = feedback
		s.metrics.IncRevisionLoop("report")
		return graph.NodeResult[GraphState]{State: state}
	default:
		state.RevisionCapHit = true
		state.QCFeedback = ""
		state = state.addWarning("report failed quality control after revision cap: " + feedback)
		return graph.NodeResult[GraphState]{State: state, Route: graph.Stop()}
	}
}

// latestQuery returns the most recent user message, falling back to the
// original query. After a clarification round the newest user message is
// the one to triage.
func latestQuery(state GraphState) string {
	for i := len(state.Messages) - 1; i >= 0; i-- {
		if state.Messages[i].Role == model.RoleUser {
			return state.Messages[i].Content
		}
	}
	return state.Query
}

// decodeJSON parses a JSON object out of model text, tolerating markdown
// fences and prose around the object.
func decodeJSON(text string, v any) error {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	if err := json.Unmarshal([]byte(text), v); err == nil {
		return nil
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || start >= end {
		return fmt.Errorf("no JSON object found in model output")
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), v); err != nil {
		return fmt.Errorf("parse model output: %w", err)
	}
	return nil
}
