package pipeline

import "time"

// Config holds the pipeline's caps and validation thresholds. Structural
// thresholds are tuning parameters, so they live here rather than in the
// validators.
type Config struct {
	// MaxBriefRevisions bounds write_brief re-runs after a failed
	// validation. The backward edge fires at most this many times.
	MaxBriefRevisions int

	// MaxReportRevisions bounds generate_report re-runs after a failed
	// quality check.
	MaxReportRevisions int

	// MaxConcurrentTasks caps research tasks per fan-out round.
	MaxConcurrentTasks int

	// MaxResearchIterations caps supervisor rounds regardless of what
	// the supervisor asks for.
	MaxResearchIterations int

	// MaxToolCalls caps tool invocations per research task. Exhausting
	// it truncates the task's note, it does not fail the task.
	MaxToolCalls int

	// MaxModelRetries bounds consecutive model-call failures inside the
	// tool loop before the task is abandoned.
	MaxModelRetries int

	// Brief validation thresholds.
	MinBriefSections int
	MaxBriefSections int

	// Report quality thresholds.
	MinCitations int

	// NodeTimeout is the per-node wall clock limit.
	NodeTimeout time.Duration

	// MaxSteps bounds total engine steps per run. The stage graph with
	// both revision loops taken needs eight; the default leaves room.
	MaxSteps int
}

// DefaultConfig returns the standard caps.
func DefaultConfig() Config {
	return Config{
		MaxBriefRevisions:     1,
		MaxReportRevisions:    1,
		MaxConcurrentTasks:    3,
		MaxResearchIterations: 4,
		MaxToolCalls:          8,
		MaxModelRetries:       3,
		MinBriefSections:      3,
		MaxBriefSections:      10,
		MinCitations:          3,
		NodeTimeout:           2 * time.Minute,
		MaxSteps:              32,
	}
}
