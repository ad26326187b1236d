package hold

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"goalbind/internal/types"
)

// Coordinator turns a preemption signal into a bounded wind-down and,
// on exhaustion, a witnessed hold. The in-flight step is never
// interrupted; the budget only bounds steps taken after the signal.
type Coordinator struct {
	budgets *BudgetTable
	manager *Manager
	cfg     BudgetConfig
	log     *zap.Logger
}

// NewCoordinator constructs a Coordinator. logger may be nil.
func NewCoordinator(budgets *BudgetTable, manager *Manager, cfg BudgetConfig, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{budgets: budgets, manager: manager, cfg: cfg, log: logger}
}

// Signal starts the grace window for the task. Signalling an already
// winding-down task restarts its budget.
func (c *Coordinator) Signal(task *types.Task, now time.Time) BudgetStatus {
	b := c.budgets.Begin(task.ID, c.cfg, now)
	c.log.Info("preemption signalled",
		zap.String("task_id", task.ID),
		zap.Int("max_steps", c.cfg.MaxSteps),
		zap.Duration("max_time", c.cfg.MaxTime))
	return b.Check(now)
}

// StepDone records a completed wind-down step. When the budget
// exhausts, the task is held under /preempted with a witness anchored
// at stepID, and the budget is destroyed. Returns the post-step status
// and whether a hold was applied.
func (c *Coordinator) StepDone(task *types.Task, stepID string, now time.Time) (BudgetStatus, bool, error) {
	b := c.budgets.Get(task.ID)
	if b == nil {
		return BudgetStatus{}, false, fmt.Errorf("hold: no live budget for task %s", task.ID)
	}
	if stepID != "" {
		task.LastCompletedStepID = stepID
	}

	status := b.ConsumeStep(now)
	if !status.Exhausted() {
		return status, false, nil
	}
	if err := c.hold(task, status, now); err != nil {
		return status, false, err
	}
	return status, true, nil
}

// CheckDeadline re-evaluates the time bound without consuming a step.
// When time has run out the task is held exactly as on step exhaustion.
func (c *Coordinator) CheckDeadline(task *types.Task, now time.Time) (BudgetStatus, bool, error) {
	b := c.budgets.Get(task.ID)
	if b == nil {
		return BudgetStatus{}, false, fmt.Errorf("hold: no live budget for task %s", task.ID)
	}
	status := b.Check(now)
	if !status.Exhausted() {
		return status, false, nil
	}
	if err := c.hold(task, status, now); err != nil {
		return status, false, err
	}
	return status, true, nil
}

// Cancel withdraws the preemption signal pre-exhaustion and destroys
// the budget.
func (c *Coordinator) Cancel(taskID string) {
	if b := c.budgets.Get(taskID); b != nil {
		b.Cancel()
	}
	c.budgets.End(taskID)
	c.log.Debug("preemption cancelled", zap.String("task_id", taskID))
}

func (c *Coordinator) hold(task *types.Task, status BudgetStatus, now time.Time) error {
	witness := buildWitness(task, now)
	hints := []string{fmt.Sprintf("budget exhausted: %s", status.Exhaustion)}
	if err := c.manager.RequestHold(task, types.HoldPreempted, hints, witness, now); err != nil {
		return err
	}
	c.budgets.End(task.ID)
	c.log.Info("wind-down complete, task held",
		zap.String("task_id", task.ID),
		zap.String("exhaustion", string(status.Exhaustion)),
		zap.Bool("witness_verified", witness.Verified))
	return nil
}
