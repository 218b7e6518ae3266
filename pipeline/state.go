// Package pipeline implements a multi-stage, LLM-assisted research workflow
// on the graph engine.
//
// A thread moves through six stages: clarify, write_brief, validate_brief,
// research, generate_report, quality_control. The two validation stages may
// each send the flow backward once; after that the cap flag is set and the
// run completes with a visible warning instead of looping. The research
// stage fans out concurrent tasks through a supervisor-driven coordinator,
// each task running a bounded model/tool loop.
package pipeline

import "github.com/dshills/researchflow-go/graph/model"

// Stage node ids in execution order.
const (
	StageClarify        = "clarify"
	StageWriteBrief     = "write_brief"
	StageValidateBrief  = "validate_brief"
	StageResearch       = "research"
	StageGenerateReport = "generate_report"
	StageQualityControl = "quality_control"
)

// GraphState is the workflow state threaded through every stage. It must
// round-trip through JSON unchanged; checkpoints and retry snapshots rely
// on it.
type GraphState struct {
	// Query is the original user request, immutable after creation.
	Query string `json:"query"`

	// Messages is the append-only conversation log.
	Messages []model.Message `json:"messages"`

	// Clarify stage.
	NeedsClarification bool   `json:"needs_clarification"`
	ClarifyingQuestion string `json:"clarifying_question,omitempty"`

	// Brief stage. BriefRevisions only ever increases.
	Brief          string `json:"brief"`
	BriefValid     bool   `json:"brief_valid"`
	BriefRevisions int    `json:"brief_revisions"`
	BriefFeedback  string `json:"brief_feedback,omitempty"`

	// Research stage. Note slices accumulate and never shrink mid-run.
	RawNotes           []Note `json:"raw_notes"`
	CompressedNotes    []Note `json:"compressed_notes"`
	ResearchIterations int    `json:"research_iterations"`

	// Report stage.
	Report           string `json:"report"`
	ExecutiveSummary string `json:"executive_summary"`
	ReportValid      bool   `json:"report_valid"`
	ReportRevisions  int    `json:"report_revisions"`
	QCFeedback       string `json:"qc_feedback,omitempty"`

	// RevisionCapHit is set when any validation stage runs out of
	// revision budget and the run proceeds anyway.
	RevisionCapHit bool `json:"revision_cap_hit"`

	// Warnings are caveats surfaced alongside the final artifact, such
	// as revision-cap exhaustion.
	Warnings []string `json:"warnings,omitempty"`

	// Metadata is free-form classification, set once and read-only after.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Note is one research finding produced by a task's tool loop.
type Note struct {
	TaskID    string   `json:"task_id"`
	Topic     string   `json:"topic"`
	Content   string   `json:"content"`
	Sources   []string `json:"sources,omitempty"`
	ToolCalls int      `json:"tool_calls"`
	// Truncated marks a note cut short by the tool-call budget rather
	// than finished by the model.
	Truncated bool `json:"truncated,omitempty"`
}

// TaskStatus is the lifecycle of one research task.
type TaskStatus string

const (
	TaskPending TaskStatus = "pending"
	TaskRunning TaskStatus = "running"
	TaskDone    TaskStatus = "done"
	TaskFailed  TaskStatus = "failed"
)

// ResearchTask is one delegated unit of work inside a research round. The
// coordinator owns tasks exclusively; they are discarded once their note is
// merged.
type ResearchTask struct {
	ID            string     `json:"id"`
	Topic         string     `json:"topic"`
	AssignedTools []string   `json:"assigned_tools,omitempty"`
	Status        TaskStatus `json:"status"`
}

// NewState creates a fresh GraphState for a query.
func NewState(query string, metadata map[string]string) GraphState {
	return GraphState{
		Query:    query,
		Messages: []model.Message{{Role: model.RoleUser, Content: query}},
		Metadata: metadata,
	}
}

func (s GraphState) addWarning(w string) GraphState {
	s.Warnings = append(s.Warnings, w)
	return s
}
