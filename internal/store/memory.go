// Package store provides the in-process work-item store the protocol is
// wired against. Memory gives read-your-writes consistency within one
// process; it makes no cross-process guarantees.
package store

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"goalbind/internal/types"
)

// Memory is a map-backed types.Store. All methods copy on the way in and
// out, so callers never share mutable state with the store.
type Memory struct {
	mu    sync.RWMutex
	tasks map[string]*types.Task
	goals map[string]*types.Goal
	log   *zap.Logger
}

// NewMemory returns an empty store. logger may be nil.
func NewMemory(logger *zap.Logger) *Memory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Memory{
		tasks: make(map[string]*types.Task),
		goals: make(map[string]*types.Goal),
		log:   logger,
	}
}

// GetTask returns a copy of the task or types.ErrTaskNotFound.
func (m *Memory) GetTask(id string) (*types.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrTaskNotFound, id)
	}
	return t.Clone(), nil
}

// SetTask inserts or replaces a task.
func (m *Memory) SetTask(task *types.Task) error {
	if task == nil || task.ID == "" {
		return fmt.Errorf("store: task must have an id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[task.ID] = task.Clone()
	return nil
}

// SetGoal inserts or replaces a goal.
func (m *Memory) SetGoal(goal *types.Goal) error {
	if goal == nil || goal.ID == "" {
		return fmt.Errorf("store: goal must have an id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	g := *goal
	m.goals[goal.ID] = &g
	return nil
}

// GetGoal returns a copy of the goal or types.ErrGoalNotFound.
func (m *Memory) GetGoal(id string) (*types.Goal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.goals[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrGoalNotFound, id)
	}
	cp := *g
	return &cp, nil
}

// UpdateGoalStatus records a goal status change.
func (m *Memory) UpdateGoalStatus(goalID string, status types.GoalStatus, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.goals[goalID]
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrGoalNotFound, goalID)
	}
	m.log.Debug("goal status updated",
		zap.String("goal_id", goalID),
		zap.String("from", string(g.Status)),
		zap.String("to", string(status)),
		zap.String("reason", reason))
	g.Status = status
	return nil
}

// UpdateGoalPriority records a goal priority change.
func (m *Memory) UpdateGoalPriority(goalID string, priority float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.goals[goalID]
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrGoalNotFound, goalID)
	}
	g.Priority = priority
	return nil
}

// TasksForGoal returns copies of every task bound to the goal.
func (m *Memory) TasksForGoal(goalID string) ([]*types.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*types.Task
	for _, t := range m.tasks {
		if t.GoalID == goalID {
			out = append(out, t.Clone())
		}
	}
	return out, nil
}

// FindBindings returns copies of non-terminal tasks carrying a binding
// of the given goal type.
func (m *Memory) FindBindings(goalType types.GoalType) ([]*types.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*types.Task
	for _, t := range m.tasks {
		if t.Status.IsTerminal() {
			continue
		}
		if t.Binding == nil || t.Binding.GoalType != goalType {
			continue
		}
		out = append(out, t.Clone())
	}
	return out, nil
}

var _ types.Store = (*Memory)(nil)
