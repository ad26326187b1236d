// Package hold implements the pause/resume control plane: holds with
// scheduled reviews, the bounded preemption budget, and the coordinator
// that winds a preempted task down into a witnessed hold.
package hold

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"goalbind/internal/types"
)

// ErrAlreadyHeld is returned when a hold is applied to a held task.
var ErrAlreadyHeld = errors.New("task already holds a hold")

// ErrNoHold is returned when clearing or extending a nonexistent hold.
var ErrNoHold = errors.New("task has no hold")

// ErrTerminalTask is returned when holding a task in a terminal status.
var ErrTerminalTask = errors.New("cannot hold a terminal task")

// Config controls review scheduling per hold reason.
type Config struct {
	// ReviewDelays maps each reason to the delay before its first
	// review. The hard wall still gets a review time for display, but
	// periodic review skips it by reason.
	ReviewDelays map[types.HoldReason]time.Duration

	// DefaultReviewDelay applies to reasons missing from ReviewDelays.
	DefaultReviewDelay time.Duration
}

// DefaultConfig returns the review cadence defaults.
func DefaultConfig() Config {
	return Config{
		ReviewDelays: map[types.HoldReason]time.Duration{
			types.HoldPreempted:       30 * time.Second,
			types.HoldBlocked:         2 * time.Minute,
			types.HoldResourceStarved: 5 * time.Minute,
			types.HoldScheduled:       time.Minute,
			types.HoldHardWall:        24 * time.Hour,
		},
		DefaultReviewDelay: time.Minute,
	}
}

// Manager applies, reviews, and clears holds. It mutates only the task
// value handed to it; persisting the task is the caller's business.
type Manager struct {
	cfg Config
	log *zap.Logger
}

// NewManager constructs a Manager. logger may be nil.
func NewManager(cfg Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{cfg: cfg, log: logger}
}

// ReviewDelay returns the delay before a hold under reason is reviewed.
func (m *Manager) ReviewDelay(reason types.HoldReason) time.Duration {
	if d, ok := m.cfg.ReviewDelays[reason]; ok {
		return d
	}
	return m.cfg.DefaultReviewDelay
}

// RequestHold pauses the task under reason. Double-applying a hold and
// holding a terminal task are programmer errors.
func (m *Manager) RequestHold(task *types.Task, reason types.HoldReason, hints []string, witness *types.HoldWitness, now time.Time) error {
	if task.Binding == nil {
		return fmt.Errorf("hold: task %s has no binding", task.ID)
	}
	if task.Binding.Hold != nil {
		return fmt.Errorf("%w: task %s held since %s", ErrAlreadyHeld, task.ID, task.Binding.Hold.HeldAt)
	}
	if task.Status.IsTerminal() {
		return fmt.Errorf("%w: task %s is %s", ErrTerminalTask, task.ID, task.Status)
	}

	task.Binding.Hold = &types.Hold{
		Reason:       reason,
		HeldAt:       now,
		ResumeHints:  hints,
		NextReviewAt: now.Add(m.ReviewDelay(reason)),
		Witness:      witness,
	}
	task.Status = types.TaskPaused
	task.UpdatedAt = now

	m.log.Info("hold applied",
		zap.String("task_id", task.ID),
		zap.String("reason", string(reason)),
		zap.Time("next_review_at", task.Binding.Hold.NextReviewAt))
	return nil
}

// ClearHold removes the task's hold and reactivates it. This is the
// explicit external action that may clear a hard wall.
func (m *Manager) ClearHold(task *types.Task, now time.Time) error {
	if task.Binding == nil || task.Binding.Hold == nil {
		return fmt.Errorf("%w: task %s", ErrNoHold, task.ID)
	}

	reason := task.Binding.Hold.Reason
	task.Binding.Hold = nil
	task.Status = types.TaskActive
	task.UpdatedAt = now

	m.log.Info("hold cleared",
		zap.String("task_id", task.ID),
		zap.String("reason", string(reason)))
	return nil
}

// IsHoldDueForReview reports whether the task's hold has reached its
// scheduled review time. A missing hold is never due.
func (m *Manager) IsHoldDueForReview(task *types.Task, now time.Time) bool {
	if task.Binding == nil || task.Binding.Hold == nil {
		return false
	}
	return !now.Before(task.Binding.Hold.NextReviewAt)
}

// ExtendHoldReview pushes the next review out by d without altering the
// hold's reason or held-at time.
func (m *Manager) ExtendHoldReview(task *types.Task, d time.Duration, now time.Time) error {
	if task.Binding == nil || task.Binding.Hold == nil {
		return fmt.Errorf("%w: task %s", ErrNoHold, task.ID)
	}
	task.Binding.Hold.NextReviewAt = now.Add(d)
	task.UpdatedAt = now
	return nil
}
