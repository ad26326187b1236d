package reactor

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"goalbind/internal/hold"
	"goalbind/internal/tasksync"
	"goalbind/internal/types"
)

// ReviewAction tags a periodic-review proposal.
type ReviewAction string

const (
	ReviewClear  ReviewAction = "/clear"  // Resume conditions met: propose clearing the hold
	ReviewExtend ReviewAction = "/extend" // Hysteresis: push the next review out
)

// Proposal is one periodic-review outcome for a due hold.
type Proposal struct {
	TaskID    string
	Action    ReviewAction
	Relevance float64
	Rationale string
	// Effects carry the clear-hold proposal; nil for /extend, which the
	// caller applies via the hold manager.
	Effects []tasksync.Effect
	// ExtendBy is the review extension for /extend proposals.
	ExtendBy time.Duration
}

// ReviewResult aggregates one periodic review pass.
type ReviewResult struct {
	At        time.Time
	Scanned   int
	Proposals []Proposal
}

// ReviewConfig tunes the periodic review.
type ReviewConfig struct {
	// ResumeThreshold mirrors the reactor's: relevance required to
	// propose clearing a due hold.
	ResumeThreshold float64
	// ExtendBy is how far a not-yet-resumable hold is pushed out,
	// avoiding thrash on holds that hover near the threshold.
	ExtendBy time.Duration
}

// DefaultReviewConfig returns the review defaults.
func DefaultReviewConfig() ReviewConfig {
	return ReviewConfig{ResumeThreshold: 0.55, ExtendBy: time.Minute}
}

// Review scans holds on a cadence and proposes clearing or extending.
type Review struct {
	manager *hold.Manager
	cfg     ReviewConfig
	log     *zap.Logger
}

// NewReview constructs a Review. logger may be nil.
func NewReview(manager *hold.Manager, cfg ReviewConfig, logger *zap.Logger) *Review {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Review{manager: manager, cfg: cfg, log: logger}
}

// Run scans tasks whose holds are past their review time. Hard-wall
// holds are skipped regardless of elapsed time. For the rest it
// proposes clearing when resume conditions are met, otherwise extends
// the review time. Proposes only; never mutates.
func (r *Review) Run(tasks []*types.Task, rctx Context, now time.Time) ReviewResult {
	result := ReviewResult{At: now}

	for _, t := range tasks {
		if t.Binding == nil || t.Binding.Hold == nil {
			continue
		}
		if t.Binding.Hold.Reason == types.HoldHardWall {
			continue
		}
		if !r.manager.IsHoldDueForReview(t, now) {
			continue
		}
		result.Scanned++

		rel := ComputeRelevance(Candidate{Task: t}, rctx, now)
		if rel >= r.cfg.ResumeThreshold {
			result.Proposals = append(result.Proposals, Proposal{
				TaskID:    t.ID,
				Action:    ReviewClear,
				Relevance: rel,
				Rationale: fmt.Sprintf("resume conditions met (relevance %.2f)", rel),
				Effects: []tasksync.Effect{
					tasksync.ClearHold{TaskID: t.ID},
					tasksync.UpdateTaskStatus{TaskID: t.ID, Status: types.TaskActive},
				},
			})
			continue
		}

		result.Proposals = append(result.Proposals, Proposal{
			TaskID:    t.ID,
			Action:    ReviewExtend,
			Relevance: rel,
			Rationale: fmt.Sprintf("resume conditions unmet (relevance %.2f), extending review by %s", rel, r.cfg.ExtendBy),
			ExtendBy:  r.cfg.ExtendBy,
		})
	}

	r.log.Debug("periodic review complete",
		zap.Int("scanned", result.Scanned),
		zap.Int("proposals", len(result.Proposals)))
	return result
}
