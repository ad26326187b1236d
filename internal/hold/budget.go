package hold

import (
	"sync"
	"time"

	"goalbind/internal/types"
)

// Exhaustion tags which preemption-budget bound has triggered.
type Exhaustion string

const (
	ExhaustionNone  Exhaustion = "/none"
	ExhaustionSteps Exhaustion = "/steps_exhausted"
	ExhaustionTime  Exhaustion = "/time_exhausted"
	ExhaustionBoth  Exhaustion = "/both_exhausted"
)

// BudgetConfig bounds the extra work allowed after a preemption signal.
type BudgetConfig struct {
	MaxSteps int
	MaxTime  time.Duration
}

// DefaultBudgetConfig returns the default grace window: 3 steps or 5
// seconds, whichever exhausts first.
func DefaultBudgetConfig() BudgetConfig {
	return BudgetConfig{MaxSteps: 3, MaxTime: 5 * time.Second}
}

// BudgetStatus reports remaining capacity after a budget check.
type BudgetStatus struct {
	StepsUsed      int
	StepsRemaining int
	TimeRemaining  time.Duration
	Exhaustion     Exhaustion
	Cancelled      bool
}

// Exhausted reports whether any bound has triggered.
func (s BudgetStatus) Exhausted() bool { return s.Exhaustion != ExhaustionNone }

// Budget is the ephemeral, process-local allowance one task consumes
// while winding down after a preemption signal. It never interrupts the
// in-flight step; it only bounds additional work.
type Budget struct {
	cfg       BudgetConfig
	startedAt time.Time
	steps     int
	cancelled bool
}

// NewBudget starts a grace window at now.
func NewBudget(cfg BudgetConfig, now time.Time) *Budget {
	return &Budget{cfg: cfg, startedAt: now}
}

// ConsumeStep records one completed step and re-checks both bounds.
func (b *Budget) ConsumeStep(now time.Time) BudgetStatus {
	b.steps++
	return b.Check(now)
}

// Check evaluates both bounds. Every call re-checks steps and time, so
// a budget can report /both_exhausted when the bounds trip together.
func (b *Budget) Check(now time.Time) BudgetStatus {
	status := BudgetStatus{
		StepsUsed:      b.steps,
		StepsRemaining: b.cfg.MaxSteps - b.steps,
		TimeRemaining:  b.cfg.MaxTime - now.Sub(b.startedAt),
		Cancelled:      b.cancelled,
	}
	if status.StepsRemaining < 0 {
		status.StepsRemaining = 0
	}
	if status.TimeRemaining < 0 {
		status.TimeRemaining = 0
	}

	stepsOut := b.steps >= b.cfg.MaxSteps
	timeOut := now.Sub(b.startedAt) >= b.cfg.MaxTime
	switch {
	case stepsOut && timeOut:
		status.Exhaustion = ExhaustionBoth
	case stepsOut:
		status.Exhaustion = ExhaustionSteps
	case timeOut:
		status.Exhaustion = ExhaustionTime
	default:
		status.Exhaustion = ExhaustionNone
	}
	return status
}

// Cancel aborts the budget before exhaustion, e.g. when the preemption
// signal is withdrawn.
func (b *Budget) Cancel() { b.cancelled = true }

// Cancelled reports whether the budget was aborted.
func (b *Budget) Cancelled() bool { return b.cancelled }

// BudgetTable tracks the live budget per task. It is an explicit
// instance, constructed once and passed through call sites, so tests
// can build isolated state.
type BudgetTable struct {
	mu      sync.Mutex
	budgets map[string]*Budget
}

// NewBudgetTable returns an empty table.
func NewBudgetTable() *BudgetTable {
	return &BudgetTable{budgets: make(map[string]*Budget)}
}

// Begin starts a budget for the task, replacing any existing one.
func (t *BudgetTable) Begin(taskID string, cfg BudgetConfig, now time.Time) *Budget {
	t.mu.Lock()
	defer t.mu.Unlock()
	b := NewBudget(cfg, now)
	t.budgets[taskID] = b
	return b
}

// Get returns the task's live budget, or nil.
func (t *BudgetTable) Get(taskID string) *Budget {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.budgets[taskID]
}

// End destroys the task's budget (hold completed or cancelled).
func (t *BudgetTable) End(taskID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.budgets, taskID)
}

// Len reports the number of live budgets. Diagnostic only.
func (t *BudgetTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.budgets)
}

// buildWitness snapshots the task's resumption anchor at hold time.
// Verified is true only when the task actually reports a completed
// step; a bare module cursor forces a conservative rescan on resume.
func buildWitness(task *types.Task, now time.Time) *types.HoldWitness {
	w := &types.HoldWitness{
		LastStepID:   task.LastCompletedStepID,
		ModuleCursor: task.ModuleCursor,
		CreatedAt:    now,
	}
	w.Verified = w.LastStepID != ""
	return w
}
