package reactor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goalbind/internal/hold"
	"goalbind/internal/tasksync"
	"goalbind/internal/types"
)

var tickTime = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func heldTask(id string, reason types.HoldReason, heldAt time.Time, hints ...string) *types.Task {
	return &types.Task{
		ID:     id,
		GoalID: "g1",
		Status: types.TaskPaused,
		Binding: &types.GoalBinding{
			InstanceID: "inst-" + id,
			GoalType:   "/gather_resource",
			GoalKey:    "/gather_resource#iron",
			Hold: &types.Hold{
				Reason:       reason,
				HeldAt:       heldAt,
				ResumeHints:  hints,
				NextReviewAt: heldAt.Add(30 * time.Second),
			},
		},
	}
}

func TestComputeRelevanceRangesAndComponents(t *testing.T) {
	fresh := heldTask("t1", types.HoldPreempted, tickTime, "daylight")
	rctx := Context{
		Satisfied:    map[string]bool{"daylight": true},
		NeedPressure: map[types.GoalType]float64{"/gather_resource": 1.0},
	}

	rel := ComputeRelevance(Candidate{Task: fresh}, rctx, tickTime)
	assert.InDelta(t, 1.0, rel, 0.01, "fresh hold, full pressure, all hints met")

	// Unmet hints drag the score down.
	rctx.Satisfied["daylight"] = false
	lower := ComputeRelevance(Candidate{Task: fresh}, rctx, tickTime)
	assert.Less(t, lower, rel)

	// A stale hold decays.
	stale := heldTask("t2", types.HoldPreempted, tickTime.Add(-4*time.Hour), "daylight")
	rctx.Satisfied["daylight"] = true
	decayed := ComputeRelevance(Candidate{Task: stale}, rctx, tickTime)
	assert.Less(t, decayed, rel)

	assert.Zero(t, ComputeRelevance(Candidate{Task: &types.Task{ID: "bare"}}, rctx, tickTime))
}

func TestTickResumesHighRelevanceTask(t *testing.T) {
	r := New(DefaultConfig(), nil)
	task := heldTask("t1", types.HoldPreempted, tickTime.Add(-time.Minute), "daylight")
	rctx := Context{
		Satisfied:    map[string]bool{"daylight": true},
		NeedPressure: map[types.GoalType]float64{"/gather_resource": 0.8},
	}

	result := r.Tick([]*types.Task{task}, rctx, tickTime)

	require.Len(t, result.Decisions, 1)
	d := result.Decisions[0]
	assert.Equal(t, ActionResume, d.Action)
	assert.NotEmpty(t, d.Rationale)
	require.Len(t, d.Effects, 2)
	assert.IsType(t, tasksync.ClearHold{}, d.Effects[0])
}

func TestTickSkipsHardWall(t *testing.T) {
	r := New(DefaultConfig(), nil)
	task := heldTask("t1", types.HoldHardWall, tickTime.Add(-24*time.Hour), "daylight")
	rctx := Context{
		Satisfied:    map[string]bool{"daylight": true},
		NeedPressure: map[types.GoalType]float64{"/gather_resource": 1.0},
	}

	result := r.Tick([]*types.Task{task}, rctx, tickTime)
	assert.Empty(t, result.Decisions, "hard wall never enters automatic resumption")
}

func TestTickDefersMiddlingRelevance(t *testing.T) {
	r := New(DefaultConfig(), nil)
	// No pressure, half the hints met, recent: the score lands
	// between the defer and resume thresholds.
	task := heldTask("t1", types.HoldBlocked, tickTime.Add(-time.Minute), "daylight", "iron available")
	rctx := Context{Satisfied: map[string]bool{"daylight": true}}

	result := r.Tick([]*types.Task{task}, rctx, tickTime)

	require.Len(t, result.Decisions, 1)
	d := result.Decisions[0]
	assert.Equal(t, ActionDefer, d.Action)
	assert.Empty(t, d.Effects, "defer proposes no store effects")
	assert.Equal(t, DefaultConfig().DeferExtension, d.ExtendBy,
		"defer must carry the extension it announces")
}

func TestTickWaitsForReviewGate(t *testing.T) {
	r := New(DefaultConfig(), nil)
	task := heldTask("t1", types.HoldPreempted, tickTime, "daylight")
	task.Binding.Hold.NextReviewAt = tickTime.Add(time.Hour)
	rctx := Context{
		Satisfied:    map[string]bool{"daylight": true},
		NeedPressure: map[types.GoalType]float64{"/gather_resource": 1.0},
	}

	early := r.Tick([]*types.Task{task}, rctx, tickTime)
	assert.Empty(t, early.Decisions,
		"a hold before its review time is never scored, however relevant")

	due := r.Tick([]*types.Task{task}, rctx, tickTime.Add(time.Hour))
	require.Len(t, due.Decisions, 1)
	assert.Equal(t, ActionResume, due.Decisions[0].Action)
}

func TestTickSkipsIrrelevantTask(t *testing.T) {
	r := New(DefaultConfig(), nil)
	task := heldTask("t1", types.HoldBlocked, tickTime.Add(-6*time.Hour), "daylight", "iron available")
	rctx := Context{}

	result := r.Tick([]*types.Task{task}, rctx, tickTime)

	require.Len(t, result.Decisions, 1)
	assert.Equal(t, ActionSkip, result.Decisions[0].Action)
}

func TestPeriodicReviewClearsWhenConditionsMet(t *testing.T) {
	manager := hold.NewManager(hold.DefaultConfig(), nil)
	review := NewReview(manager, DefaultReviewConfig(), nil)

	due := heldTask("t1", types.HoldPreempted, tickTime.Add(-time.Minute), "daylight")
	rctx := Context{
		Satisfied:    map[string]bool{"daylight": true},
		NeedPressure: map[types.GoalType]float64{"/gather_resource": 0.9},
	}

	result := review.Run([]*types.Task{due}, rctx, tickTime)

	require.Len(t, result.Proposals, 1)
	p := result.Proposals[0]
	assert.Equal(t, ReviewClear, p.Action)
	require.Len(t, p.Effects, 2)
	assert.Nil(t, due.Binding.Hold.Witness, "review proposes, never mutates")
	assert.Equal(t, types.TaskPaused, due.Status)
}

func TestPeriodicReviewExtendsWhenConditionsUnmet(t *testing.T) {
	manager := hold.NewManager(hold.DefaultConfig(), nil)
	review := NewReview(manager, DefaultReviewConfig(), nil)

	due := heldTask("t1", types.HoldBlocked, tickTime.Add(-time.Hour), "daylight", "iron available")
	result := review.Run([]*types.Task{due}, Context{}, tickTime)

	require.Len(t, result.Proposals, 1)
	p := result.Proposals[0]
	assert.Equal(t, ReviewExtend, p.Action)
	assert.Equal(t, time.Minute, p.ExtendBy)
	assert.Empty(t, p.Effects)
}

func TestPeriodicReviewNeverTouchesHardWall(t *testing.T) {
	manager := hold.NewManager(hold.DefaultConfig(), nil)
	review := NewReview(manager, DefaultReviewConfig(), nil)

	// Held for a year, every condition satisfied: still untouchable.
	wall := heldTask("t1", types.HoldHardWall, tickTime.Add(-365*24*time.Hour), "daylight")
	rctx := Context{
		Satisfied:    map[string]bool{"daylight": true},
		NeedPressure: map[types.GoalType]float64{"/gather_resource": 1.0},
	}

	result := review.Run([]*types.Task{wall}, rctx, tickTime)
	assert.Zero(t, result.Scanned)
	assert.Empty(t, result.Proposals)
}

func TestPeriodicReviewSkipsNotYetDueHolds(t *testing.T) {
	manager := hold.NewManager(hold.DefaultConfig(), nil)
	review := NewReview(manager, DefaultReviewConfig(), nil)

	notDue := heldTask("t1", types.HoldBlocked, tickTime, "daylight")
	notDue.Binding.Hold.NextReviewAt = tickTime.Add(time.Hour)

	result := review.Run([]*types.Task{notDue}, Context{}, tickTime)
	assert.Zero(t, result.Scanned)
	assert.Empty(t, result.Proposals)
}
