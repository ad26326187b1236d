package hold

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goalbind/internal/types"
)

func TestBudgetStepsExhausted(t *testing.T) {
	b := NewBudget(DefaultBudgetConfig(), holdTime)

	// Time stands still: only the step bound can trip.
	assert.Equal(t, ExhaustionNone, b.ConsumeStep(holdTime).Exhaustion)
	assert.Equal(t, ExhaustionNone, b.ConsumeStep(holdTime).Exhaustion)

	status := b.ConsumeStep(holdTime)
	assert.Equal(t, ExhaustionSteps, status.Exhaustion)
	assert.Equal(t, 0, status.StepsRemaining)
	assert.True(t, status.Exhausted())
}

func TestBudgetTimeExhausted(t *testing.T) {
	b := NewBudget(DefaultBudgetConfig(), holdTime)

	status := b.Check(holdTime.Add(5 * time.Second))
	assert.Equal(t, ExhaustionTime, status.Exhaustion)
	assert.Equal(t, time.Duration(0), status.TimeRemaining)
	assert.Equal(t, 3, status.StepsRemaining, "no steps consumed")
}

func TestBudgetBothExhausted(t *testing.T) {
	b := NewBudget(BudgetConfig{MaxSteps: 1, MaxTime: time.Second}, holdTime)

	status := b.ConsumeStep(holdTime.Add(time.Second))
	assert.Equal(t, ExhaustionBoth, status.Exhaustion)
}

func TestBudgetRemainingCapacity(t *testing.T) {
	b := NewBudget(DefaultBudgetConfig(), holdTime)

	status := b.ConsumeStep(holdTime.Add(2 * time.Second))
	assert.Equal(t, ExhaustionNone, status.Exhaustion)
	assert.Equal(t, 2, status.StepsRemaining)
	assert.Equal(t, 3*time.Second, status.TimeRemaining)
}

func TestBudgetCancel(t *testing.T) {
	b := NewBudget(DefaultBudgetConfig(), holdTime)
	b.Cancel()

	assert.True(t, b.Cancelled())
	assert.True(t, b.Check(holdTime).Cancelled)
}

func TestBudgetTableIsolation(t *testing.T) {
	tbl := NewBudgetTable()

	a := tbl.Begin("task-a", DefaultBudgetConfig(), holdTime)
	tbl.Begin("task-b", DefaultBudgetConfig(), holdTime)

	a.ConsumeStep(holdTime)
	assert.Equal(t, 1, tbl.Get("task-a").Check(holdTime).StepsUsed)
	assert.Equal(t, 0, tbl.Get("task-b").Check(holdTime).StepsUsed)

	tbl.End("task-a")
	assert.Nil(t, tbl.Get("task-a"))
	assert.Equal(t, 1, tbl.Len())
}

func TestCoordinatorHoldsOnStepExhaustion(t *testing.T) {
	manager := NewManager(DefaultConfig(), nil)
	coord := NewCoordinator(NewBudgetTable(), manager, DefaultBudgetConfig(), nil)
	task := activeTask()

	coord.Signal(task, holdTime)

	for i, stepID := range []string{"step-7", "step-8"} {
		status, held, err := coord.StepDone(task, stepID, holdTime)
		require.NoError(t, err)
		assert.False(t, held, "step %d must not exhaust", i+1)
		assert.Equal(t, ExhaustionNone, status.Exhaustion)
	}

	status, held, err := coord.StepDone(task, "step-9", holdTime)
	require.NoError(t, err)
	assert.True(t, held)
	assert.Equal(t, ExhaustionSteps, status.Exhaustion)

	require.NotNil(t, task.Binding.Hold)
	assert.Equal(t, types.HoldPreempted, task.Binding.Hold.Reason)
	require.NotNil(t, task.Binding.Hold.Witness)
	assert.Equal(t, "step-9", task.Binding.Hold.Witness.LastStepID)
	assert.True(t, task.Binding.Hold.Witness.Verified)
	assert.Equal(t, types.TaskPaused, task.Status)
}

func TestCoordinatorHoldsOnDeadline(t *testing.T) {
	manager := NewManager(DefaultConfig(), nil)
	coord := NewCoordinator(NewBudgetTable(), manager, DefaultBudgetConfig(), nil)
	task := activeTask()
	task.ModuleCursor = "module:mine/3"

	coord.Signal(task, holdTime)

	_, held, err := coord.CheckDeadline(task, holdTime.Add(time.Second))
	require.NoError(t, err)
	assert.False(t, held)

	status, held, err := coord.CheckDeadline(task, holdTime.Add(6*time.Second))
	require.NoError(t, err)
	assert.True(t, held)
	assert.Equal(t, ExhaustionTime, status.Exhaustion)

	// No step ever completed: the witness is unverified, forcing a
	// conservative rescan on resume.
	require.NotNil(t, task.Binding.Hold.Witness)
	assert.False(t, task.Binding.Hold.Witness.Verified)
	assert.Equal(t, "module:mine/3", task.Binding.Hold.Witness.ModuleCursor)
}

func TestCoordinatorCancelDestroysBudget(t *testing.T) {
	tbl := NewBudgetTable()
	coord := NewCoordinator(tbl, NewManager(DefaultConfig(), nil), DefaultBudgetConfig(), nil)
	task := activeTask()

	coord.Signal(task, holdTime)
	coord.Cancel(task.ID)

	assert.Nil(t, tbl.Get(task.ID))
	_, _, err := coord.StepDone(task, "step-1", holdTime)
	require.Error(t, err, "stepping a cancelled budget must fail")
	assert.Nil(t, task.Binding.Hold)
}
