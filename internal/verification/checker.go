package verification

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"goalbind/internal/types"
)

// StabilityThreshold is the number of consecutive passes required
// before a task is declared complete.
const StabilityThreshold = 2

// OutcomeKind tags the result of one completion check.
type OutcomeKind string

const (
	OutcomeCompleted   OutcomeKind = "/completed"
	OutcomeProgressing OutcomeKind = "/progressing"
	OutcomeFailed      OutcomeKind = "/failed"
	OutcomeRegression  OutcomeKind = "/regression"
	OutcomeSkipped     OutcomeKind = "/skipped"
)

// Outcome is the transient result of one completion check. Passes is
// the consecutive-pass count after this run; Remaining is how many more
// passes completion needs (progressing only). DefinitionVersion is the
// verifier definition the run executed under.
type Outcome struct {
	Kind              OutcomeKind
	Passes            int
	Remaining         int
	DefinitionVersion int
	Blockers          []string
	Reason            string
	Report            *types.VerifyReport
}

// Checker converts single verification runs into a durable trend.
type Checker struct {
	registry *Registry
	log      *zap.Logger
}

// NewChecker constructs a Checker. logger may be nil.
func NewChecker(registry *Registry, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{registry: registry, log: logger}
}

// Check runs one verification for the task and classifies the result.
// It never mutates the task; ApplyCompletionOutcome does the writing.
func (c *Checker) Check(task *types.Task, world map[string]any, now time.Time) Outcome {
	if task.Binding == nil {
		return Outcome{Kind: OutcomeSkipped, Reason: "task has no goal binding"}
	}
	name := task.Binding.Completion.VerifierName
	if name == "" {
		return Outcome{Kind: OutcomeSkipped, Reason: "binding names no verifier"}
	}

	rec := task.Binding.Completion
	report, version, ok := c.registry.Verify(name, task, world)
	if !ok {
		return Outcome{
			Kind:     OutcomeFailed,
			Passes:   0,
			Blockers: []string{fmt.Sprintf("verifier not registered: %s", name)},
			Reason:   "verifier unregistered",
		}
	}

	if !report.Done {
		// A failure after the task was finalized on a full stability
		// window means the completion was wrong: reopen. The recorded
		// pass count decides this even across a definition change --
		// the stale completion still needs undoing.
		if task.Status == types.TaskCompleted && rec.ConsecutivePasses >= StabilityThreshold {
			c.log.Warn("completion regression detected",
				zap.String("task_id", task.ID),
				zap.String("verifier", name),
				zap.Strings("blockers", report.Blockers))
			return Outcome{Kind: OutcomeRegression, Passes: 0, DefinitionVersion: version, Blockers: report.Blockers, Report: &report}
		}
		return Outcome{Kind: OutcomeFailed, Passes: 0, DefinitionVersion: version, Blockers: report.Blockers, Report: &report}
	}

	prior := rec.ConsecutivePasses
	if rec.DefinitionVersion != version {
		// Passes earned under an older verifier definition do not
		// count toward the window: the window restarts.
		prior = 0
	}
	passes := prior + 1
	if passes >= StabilityThreshold {
		return Outcome{Kind: OutcomeCompleted, Passes: passes, DefinitionVersion: version, Report: &report}
	}
	return Outcome{
		Kind:              OutcomeProgressing,
		Passes:            passes,
		Remaining:         StabilityThreshold - passes,
		DefinitionVersion: version,
		Report:            &report,
	}
}

// ApplyCompletionOutcome is the sole writer of completion state. It
// records the pass trend on the binding and, for completed/regression
// outcomes, transitions the task. Returns whether anything mutated.
//
// Completed is idempotent: applying it to an already-completed task is
// a no-op. Regression reopens only a task that is currently completed.
func ApplyCompletionOutcome(task *types.Task, outcome Outcome, now time.Time) bool {
	if task.Binding == nil || outcome.Kind == OutcomeSkipped {
		return false
	}

	rec := &task.Binding.Completion
	writeTrend := func() {
		rec.ConsecutivePasses = outcome.Passes
		if outcome.DefinitionVersion != 0 {
			rec.DefinitionVersion = outcome.DefinitionVersion
		}
		if outcome.Report != nil {
			rec.LastResult = outcome.Report
		}
		rec.LastCheckedAt = now
	}

	switch outcome.Kind {
	case OutcomeCompleted:
		if task.Status == types.TaskCompleted {
			return false
		}
		writeTrend()
		task.Status = types.TaskCompleted
		task.Progress = 1.0
		task.CompletedAt = now
		start := task.StartedAt
		if start.IsZero() {
			start = task.CreatedAt
		}
		task.ActualDuration = now.Sub(start)
		task.UpdatedAt = now
		return true

	case OutcomeRegression:
		if task.Status != types.TaskCompleted {
			return false
		}
		writeTrend()
		task.Status = types.TaskActive
		task.CompletedAt = time.Time{}
		task.ActualDuration = 0
		task.UpdatedAt = now
		return true
	}

	// Progressing and failed outcomes only advance the trend; task
	// status is never touched here.
	mutated := rec.ConsecutivePasses != outcome.Passes || outcome.Report != nil ||
		(outcome.DefinitionVersion != 0 && rec.DefinitionVersion != outcome.DefinitionVersion)
	if mutated {
		writeTrend()
	}
	return mutated
}
