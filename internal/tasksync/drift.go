package tasksync

import (
	"goalbind/internal/types"
)

// Drift records a divergence between a goal's recorded status and the
// aggregate of its tasks.
type Drift struct {
	GoalID   string
	Recorded types.GoalStatus
	Expected types.GoalStatus
	Detail   string
}

// DetectGoalTaskDrift compares the goal's recorded status to the status
// implied by its tasks. Returns nil when they agree or when the task
// set implies nothing (no tasks). Pure.
func DetectGoalTaskDrift(goal *types.Goal, tasks []*types.Task) *Drift {
	expected, ok := aggregateStatus(tasks)
	if !ok || expected == goal.Status {
		return nil
	}
	return &Drift{
		GoalID:   goal.ID,
		Recorded: goal.Status,
		Expected: expected,
		Detail:   "recorded " + string(goal.Status) + ", tasks imply " + string(expected),
	}
}

// ResolveDrift emits the corrective effect for a detected drift.
func ResolveDrift(d *Drift) []Effect {
	if d == nil {
		return []Effect{Noop{Reason: "no drift"}}
	}
	return []Effect{UpdateGoalStatus{
		GoalID: d.GoalID,
		Status: d.Expected,
		Reason: "drift repair: " + d.Detail,
	}}
}

// aggregateStatus folds a task set into the goal status it implies.
// Precedence: any active work keeps the goal active; otherwise all
// paused means paused; otherwise uniform terminal states project
// directly; mixed terminal outcomes fail the goal.
func aggregateStatus(tasks []*types.Task) (types.GoalStatus, bool) {
	if len(tasks) == 0 {
		return "", false
	}

	var active, pending, paused, completed, failed, cancelled int
	for _, t := range tasks {
		switch t.Status {
		case types.TaskActive, types.TaskBlocked:
			active++
		case types.TaskPending:
			pending++
		case types.TaskPaused:
			paused++
		case types.TaskCompleted:
			completed++
		case types.TaskFailed:
			failed++
		case types.TaskCancelled:
			cancelled++
		}
	}

	switch {
	case active > 0 || pending > 0:
		return types.GoalActive, true
	case paused > 0:
		return types.GoalPaused, true
	case completed > 0 && failed == 0 && cancelled == 0:
		return types.GoalCompleted, true
	case cancelled > 0 && failed == 0 && completed == 0:
		return types.GoalCancelled, true
	default:
		return types.GoalFailed, true
	}
}
