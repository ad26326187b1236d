// Package reactor implements background resumption policy for held
// tasks: relevance scoring against current context, the activation
// tick, and the periodic hold review. Like the sync reducers, this
// package only proposes effects; it never mutates store state.
package reactor

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"goalbind/internal/tasksync"
	"goalbind/internal/types"
)

// Context is the world snapshot candidates are scored against.
type Context struct {
	// Satisfied reports which resume hints currently hold in the world,
	// e.g. "daylight" or "iron available".
	Satisfied map[string]bool

	// NeedPressure expresses unmet need per goal type, 0..1.
	NeedPressure map[types.GoalType]float64
}

// Candidate is a held task under consideration for resumption.
type Candidate struct {
	Task *types.Task
}

// relevance component weights.
const (
	weightRecency  = 0.25
	weightPressure = 0.35
	weightWorld    = 0.40

	// recencyHalfLife controls how fast a hold's relevance decays while
	// it sits unresumed.
	recencyHalfLife = 15 * time.Minute
)

// ComputeRelevance scores a held candidate against the current context.
// Pure: no clock reads, no store access. Result is clamped to 0..1.
func ComputeRelevance(c Candidate, rctx Context, now time.Time) float64 {
	if c.Task == nil || c.Task.Binding == nil || c.Task.Binding.Hold == nil {
		return 0
	}
	h := c.Task.Binding.Hold

	age := now.Sub(h.HeldAt)
	if age < 0 {
		age = 0
	}
	recency := math.Exp2(-float64(age) / float64(recencyHalfLife))

	pressure := rctx.NeedPressure[c.Task.Binding.GoalType]

	world := 1.0
	if len(h.ResumeHints) > 0 {
		met := 0
		for _, hint := range h.ResumeHints {
			if rctx.Satisfied[hint] {
				met++
			}
		}
		world = float64(met) / float64(len(h.ResumeHints))
	}

	score := weightRecency*recency + weightPressure*pressure + weightWorld*world
	return math.Min(1, math.Max(0, score))
}

// Action tags a tick decision.
type Action string

const (
	ActionResume Action = "/resume"
	ActionDefer  Action = "/defer"
	ActionSkip   Action = "/skip"
)

// Decision is one per-task outcome of a reactor tick.
type Decision struct {
	TaskID    string
	Action    Action
	Relevance float64
	Rationale string
	// Effects are proposals for the effect applier; empty for /skip.
	Effects []tasksync.Effect
	// ExtendBy is the review extension the caller should apply for
	// /defer decisions; zero otherwise.
	ExtendBy time.Duration
}

// TickResult aggregates a tick's decisions.
type TickResult struct {
	At        time.Time
	Decisions []Decision
}

// Config sets the reactor's decision thresholds.
type Config struct {
	// ResumeThreshold is the relevance at or above which resumption is
	// proposed.
	ResumeThreshold float64
	// DeferThreshold is the relevance at or above which the hold is
	// kept but re-reviewed later instead of being skipped outright.
	DeferThreshold float64
	// DeferExtension is the review extension proposed on /defer.
	DeferExtension time.Duration
}

// DefaultConfig returns the reactor defaults.
func DefaultConfig() Config {
	return Config{
		ResumeThreshold: 0.55,
		DeferThreshold:  0.30,
		DeferExtension:  time.Minute,
	}
}

// Reactor re-evaluates held tasks against context on each tick.
type Reactor struct {
	cfg Config
	log *zap.Logger
}

// New constructs a Reactor. logger may be nil.
func New(cfg Config, logger *zap.Logger) *Reactor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reactor{cfg: cfg, log: logger}
}

// Tick scores every held, review-due, non-hard-wall task and reports
// resume, defer, or skip per task. Holds whose next review has not
// arrived are left alone entirely: NextReviewAt is the hysteresis gate,
// and scoring a hold the instant it is applied would defeat it.
// Hard-wall holds never appear in the result: no automatic path may
// resume them.
func (r *Reactor) Tick(tasks []*types.Task, rctx Context, now time.Time) TickResult {
	result := TickResult{At: now}

	for _, t := range tasks {
		if t.Binding == nil || t.Binding.Hold == nil {
			continue
		}
		if t.Binding.Hold.Reason == types.HoldHardWall {
			continue
		}
		if now.Before(t.Binding.Hold.NextReviewAt) {
			continue
		}

		rel := ComputeRelevance(Candidate{Task: t}, rctx, now)
		var d Decision
		switch {
		case rel >= r.cfg.ResumeThreshold:
			d = Decision{
				TaskID:    t.ID,
				Action:    ActionResume,
				Relevance: rel,
				Rationale: fmt.Sprintf("relevance %.2f >= resume threshold %.2f", rel, r.cfg.ResumeThreshold),
				Effects: []tasksync.Effect{
					tasksync.ClearHold{TaskID: t.ID},
					tasksync.UpdateTaskStatus{TaskID: t.ID, Status: types.TaskActive},
				},
			}
		case rel >= r.cfg.DeferThreshold:
			d = Decision{
				TaskID:    t.ID,
				Action:    ActionDefer,
				Relevance: rel,
				Rationale: fmt.Sprintf("relevance %.2f below resume threshold, re-reviewing in %s", rel, r.cfg.DeferExtension),
				ExtendBy:  r.cfg.DeferExtension,
			}
		default:
			d = Decision{
				TaskID:    t.ID,
				Action:    ActionSkip,
				Relevance: rel,
				Rationale: fmt.Sprintf("relevance %.2f below defer threshold %.2f", rel, r.cfg.DeferThreshold),
			}
		}

		r.log.Debug("tick decision",
			zap.String("task_id", d.TaskID),
			zap.String("action", string(d.Action)),
			zap.Float64("relevance", d.Relevance))
		result.Decisions = append(result.Decisions, d)
	}
	return result
}
