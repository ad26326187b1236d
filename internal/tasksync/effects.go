// Package tasksync keeps goal and task state convergent. The reducers
// are pure event-to-effect mappings; the Applier is the only component
// that touches the store. Effects form a closed sum type so the
// compiler checks dispatch exhaustively, with a runtime fail-closed
// fallback for effects arriving from outside the type-checked boundary
// (e.g. replayed from storage).
package tasksync

import (
	"fmt"

	"goalbind/internal/types"
)

// Effect is one corrective instruction for the Applier. The marker
// method seals the set of variants to this package.
type Effect interface {
	isEffect()
	String() string
}

// UpdateTaskStatus sets a task's status.
type UpdateTaskStatus struct {
	TaskID string
	Status types.TaskStatus
}

// UpdateGoalStatus sets a goal's recorded status.
type UpdateGoalStatus struct {
	GoalID string
	Status types.GoalStatus
	Reason string
}

// ApplyHold pauses a task under the given reason.
type ApplyHold struct {
	TaskID string
	Reason types.HoldReason
	Hints  []string
}

// ClearHold releases a task's hold.
type ClearHold struct {
	TaskID string
}

// UpdateGoalPriority adjusts a goal's priority.
type UpdateGoalPriority struct {
	GoalID   string
	Priority float64
}

// Noop records that an event deliberately produced no change.
type Noop struct {
	Reason string
}

func (UpdateTaskStatus) isEffect() {}
func (UpdateGoalStatus) isEffect() {}
func (ApplyHold) isEffect() {}
func (ClearHold) isEffect() {}
func (UpdateGoalPriority) isEffect() {}
func (Noop) isEffect() {}

func (e UpdateTaskStatus) String() string {
	return fmt.Sprintf("update-task-status(%s, %s)", e.TaskID, e.Status)
}

func (e UpdateGoalStatus) String() string {
	return fmt.Sprintf("update-goal-status(%s, %s)", e.GoalID, e.Status)
}

func (e ApplyHold) String() string {
	return fmt.Sprintf("apply-hold(%s, %s)", e.TaskID, e.Reason)
}

func (e ClearHold) String() string {
	return fmt.Sprintf("clear-hold(%s)", e.TaskID)
}

func (e UpdateGoalPriority) String() string {
	return fmt.Sprintf("update-goal-priority(%s, %.2f)", e.GoalID, e.Priority)
}

func (e Noop) String() string {
	return fmt.Sprintf("noop(%s)", e.Reason)
}
