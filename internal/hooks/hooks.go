// Package hooks wires lifecycle events into the sync reducers and the
// completion checker, then applies the resulting effects to the store.
// It is the imperative shell around the pure cores in tasksync,
// verification, and reactor.
package hooks

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"goalbind/internal/tasksync"
	"goalbind/internal/types"
	"goalbind/internal/verification"
)

// Hooks receives status and progress events and drives the protocol.
type Hooks struct {
	store   types.Store
	checker *verification.Checker
	applier *tasksync.Applier
	log     *zap.Logger
	clock   func() time.Time
}

// New constructs Hooks. logger may be nil.
func New(st types.Store, checker *verification.Checker, applier *tasksync.Applier, logger *zap.Logger) *Hooks {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hooks{store: st, checker: checker, applier: applier, log: logger, clock: time.Now}
}

// SetClock overrides the hooks clock. Tests only.
func (h *Hooks) SetClock(clock func() time.Time) { h.clock = clock }

// OnTaskStatusChanged handles a task status transition: the change is
// reduced onto the owning goal, and a terminal transition additionally
// runs a completion check whose outcome is applied to the task.
func (h *Hooks) OnTaskStatusChanged(ctx context.Context, taskID string, from, to types.TaskStatus, world map[string]any) error {
	task, err := h.store.GetTask(taskID)
	if err != nil {
		return fmt.Errorf("hooks: loading task: %w", err)
	}
	now := h.clock()

	if to.IsTerminal() {
		outcome := h.checker.Check(task, world, now)
		if outcome.Kind == verification.OutcomeRegression {
			// A reopening is a notable event for hosts, not a crash.
			h.log.Warn("task completion regressed",
				zap.String("task_id", taskID),
				zap.Strings("blockers", outcome.Blockers))
		}
		if verification.ApplyCompletionOutcome(task, outcome, now) {
			if err := h.store.SetTask(task); err != nil {
				return fmt.Errorf("hooks: persisting completion outcome: %w", err)
			}
			// The check may overrule the reported transition, e.g.
			// /completed arriving before the stability window fills.
			to = task.Status
		}
	}

	effects := tasksync.ReduceTaskEvent(tasksync.TaskEvent{
		TaskID: taskID,
		GoalID: task.GoalID,
		From:   from,
		To:     to,
	})
	return h.applier.Apply(ctx, effects)
}

// OnTaskProgress clamps and persists a progress report.
func (h *Hooks) OnTaskProgress(ctx context.Context, taskID string, progress float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	task, err := h.store.GetTask(taskID)
	if err != nil {
		return fmt.Errorf("hooks: loading task: %w", err)
	}

	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	if task.Progress == progress {
		return nil
	}
	task.Progress = progress
	task.UpdatedAt = h.clock()
	return h.store.SetTask(task)
}

// OnGoalEvent propagates a goal lifecycle event to its tasks.
func (h *Hooks) OnGoalEvent(ctx context.Context, ev tasksync.GoalEvent) error {
	tasks, err := h.store.TasksForGoal(ev.GoalID)
	if err != nil {
		return fmt.Errorf("hooks: loading goal tasks: %w", err)
	}
	effects := tasksync.ReduceGoalEvent(ev, tasks)
	return h.applier.Apply(ctx, effects)
}

// ReconcileGoal detects and repairs drift between a goal's recorded
// status and its tasks' aggregate status.
func (h *Hooks) ReconcileGoal(ctx context.Context, goalID string) error {
	goal, err := h.store.GetGoal(goalID)
	if err != nil {
		return fmt.Errorf("hooks: loading goal: %w", err)
	}
	tasks, err := h.store.TasksForGoal(goalID)
	if err != nil {
		return fmt.Errorf("hooks: loading goal tasks: %w", err)
	}

	drift := tasksync.DetectGoalTaskDrift(goal, tasks)
	if drift == nil {
		return nil
	}
	h.log.Info("repairing goal/task drift",
		zap.String("goal_id", goalID),
		zap.String("recorded", string(drift.Recorded)),
		zap.String("expected", string(drift.Expected)))
	return h.applier.Apply(ctx, tasksync.ResolveDrift(drift))
}
