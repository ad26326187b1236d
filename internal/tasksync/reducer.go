package tasksync

import (
	"goalbind/internal/types"
)

// TaskEvent is a task status transition to be reflected on its goal.
type TaskEvent struct {
	TaskID string
	GoalID string
	From   types.TaskStatus
	To     types.TaskStatus
}

// GoalEventKind tags a goal-side lifecycle event.
type GoalEventKind string

const (
	GoalPausedEvent    GoalEventKind = "/goal_paused"
	GoalResumedEvent   GoalEventKind = "/goal_resumed"
	GoalCancelledEvent GoalEventKind = "/goal_cancelled"
)

// GoalEvent is a goal lifecycle change to be propagated to its tasks.
type GoalEvent struct {
	GoalID string
	Kind   GoalEventKind
}

// taskToGoalStatus is the deterministic status-mapping table: a task
// transition projects onto the owning goal's recorded status.
var taskToGoalStatus = map[types.TaskStatus]types.GoalStatus{
	types.TaskActive:    types.GoalActive,
	types.TaskPaused:    types.GoalPaused,
	types.TaskCompleted: types.GoalCompleted,
	types.TaskFailed:    types.GoalFailed,
	types.TaskCancelled: types.GoalCancelled,
}

// ReduceTaskEvent maps one task status change to goal-side effects.
// Pure: no store access, no clock.
func ReduceTaskEvent(ev TaskEvent) []Effect {
	if ev.GoalID == "" {
		return []Effect{Noop{Reason: "task has no owning goal"}}
	}
	goalStatus, ok := taskToGoalStatus[ev.To]
	if !ok {
		return []Effect{Noop{Reason: "status " + string(ev.To) + " does not project onto the goal"}}
	}
	return []Effect{UpdateGoalStatus{
		GoalID: ev.GoalID,
		Status: goalStatus,
		Reason: "task " + ev.TaskID + " became " + string(ev.To),
	}}
}

// ReduceGoalEvent maps one goal lifecycle event onto the goal's tasks.
// Pure: the caller supplies the task set.
func ReduceGoalEvent(ev GoalEvent, tasks []*types.Task) []Effect {
	var effects []Effect

	switch ev.Kind {
	case GoalPausedEvent:
		for _, t := range tasks {
			if t.Status != types.TaskActive && t.Status != types.TaskPending {
				continue
			}
			effects = append(effects,
				ApplyHold{TaskID: t.ID, Reason: types.HoldBlocked, Hints: []string{"goal paused"}},
				UpdateTaskStatus{TaskID: t.ID, Status: types.TaskPaused},
			)
		}

	case GoalResumedEvent:
		for _, t := range tasks {
			if t.Binding == nil || t.Binding.Hold == nil {
				continue
			}
			// The hard wall resumes only via an explicit external clear.
			if t.Binding.Hold.Reason == types.HoldHardWall {
				continue
			}
			effects = append(effects,
				ClearHold{TaskID: t.ID},
				UpdateTaskStatus{TaskID: t.ID, Status: types.TaskActive},
			)
		}

	case GoalCancelledEvent:
		for _, t := range tasks {
			if t.Status.IsTerminal() {
				continue
			}
			effects = append(effects, UpdateTaskStatus{TaskID: t.ID, Status: types.TaskFailed})
		}
	}

	if len(effects) == 0 {
		return []Effect{Noop{Reason: "no task affected by " + string(ev.Kind)}}
	}
	return effects
}
