// Package resolver implements atomic resolve-or-create for goal
// bindings: given an inbound intent it returns exactly one non-terminal
// task bound to that goal identity, creating one only when no existing
// candidate scores past the satisfaction threshold.
package resolver

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"goalbind/internal/identity"
	"goalbind/internal/keymutex"
	"goalbind/internal/types"
)

// Config tunes candidate scoring.
type Config struct {
	// SatisfactionThreshold is the minimum weighted score an existing
	// binding must reach to satisfy a new intent.
	SatisfactionThreshold float64

	WeightType    float64
	WeightRegion  float64
	WeightRecency float64

	// RecencyHalfLife controls how fast the recency component decays.
	RecencyHalfLife time.Duration
}

// DefaultConfig returns the scoring defaults.
func DefaultConfig() Config {
	return Config{
		SatisfactionThreshold: 0.6,
		WeightType:            0.5,
		WeightRegion:          0.3,
		WeightRecency:         0.2,
		RecencyHalfLife:       10 * time.Minute,
	}
}

// Intent is an inbound strategic intent to be bound to a task.
type Intent struct {
	GoalType  types.GoalType
	GoalID    string
	Title     string
	Priority  float64
	Position  *types.Position
	Qualifier string
}

// Resolution reports the outcome of a resolve.
type Resolution struct {
	Task    *types.Task
	Created bool    // true when a new task was minted
	Score   float64 // score of the matched candidate; 1.0 for created
}

// Resolver performs resolve-or-create under per-key exclusion.
type Resolver struct {
	store types.Store
	mu    *keymutex.KeyedMutex
	cfg   Config
	log   *zap.Logger
	clock func() time.Time
}

// New constructs a Resolver. logger may be nil.
func New(st types.Store, mu *keymutex.KeyedMutex, cfg Config, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{store: st, mu: mu, cfg: cfg, log: logger, clock: time.Now}
}

// SetClock overrides the resolver's clock. Tests only.
func (r *Resolver) SetClock(clock func() time.Time) { r.clock = clock }

// Resolve returns the one non-terminal task bound to the intent's goal
// identity, creating it when absent. N concurrent resolves sharing a
// key yield exactly one creation; every caller observes the same task.
// Store errors propagate; the key lock releases on every path.
func (r *Resolver) Resolve(ctx context.Context, intent Intent) (Resolution, error) {
	if intent.GoalType == "" {
		return Resolution{}, fmt.Errorf("resolver: intent requires a goal type")
	}
	if err := ctx.Err(); err != nil {
		return Resolution{}, err
	}

	key := identity.ComputeProvisionalKey(identity.ProvisionalInput{
		GoalType:  intent.GoalType,
		Position:  intent.Position,
		Qualifier: intent.Qualifier,
	})

	var res Resolution
	err := keymutex.WithKeyLock(r.mu, key, func() error {
		candidates, err := r.store.FindBindings(intent.GoalType)
		if err != nil {
			return fmt.Errorf("resolver: querying bindings: %w", err)
		}

		now := r.clock()
		if best, score := r.pickCandidate(candidates, intent, key, now); best != nil {
			r.log.Debug("resolved to existing task",
				zap.String("key", key),
				zap.String("task_id", best.ID),
				zap.Float64("score", score))
			res = Resolution{Task: best, Created: false, Score: score}
			return nil
		}

		task := r.mintTask(intent, key, now)
		if err := r.store.SetTask(task); err != nil {
			return fmt.Errorf("resolver: persisting new task: %w", err)
		}
		r.log.Info("created task for goal",
			zap.String("key", key),
			zap.String("task_id", task.ID),
			zap.String("goal_type", string(intent.GoalType)))
		res = Resolution{Task: task, Created: true, Score: 1.0}
		return nil
	})
	if err != nil {
		return Resolution{}, err
	}
	return res, nil
}

// pickCandidate scores key-matching candidates and returns the best one
// if it clears the satisfaction threshold. Ties break by earliest
// creation time, then id.
func (r *Resolver) pickCandidate(candidates []*types.Task, intent Intent, key string, now time.Time) (*types.Task, float64) {
	type scored struct {
		task  *types.Task
		score float64
	}
	var matches []scored
	for _, t := range candidates {
		if t.Binding == nil || !t.Binding.MatchesKey(key) {
			continue
		}
		matches = append(matches, scored{t, r.score(t, intent, now)})
	}
	if len(matches) == 0 {
		return nil, 0
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		if !matches[i].task.CreatedAt.Equal(matches[j].task.CreatedAt) {
			return matches[i].task.CreatedAt.Before(matches[j].task.CreatedAt)
		}
		return matches[i].task.ID < matches[j].task.ID
	})

	if matches[0].score < r.cfg.SatisfactionThreshold {
		return nil, 0
	}
	return matches[0].task, matches[0].score
}

// score computes the weighted type/region/recency match for a candidate.
func (r *Resolver) score(t *types.Task, intent Intent, now time.Time) float64 {
	total := r.cfg.WeightType + r.cfg.WeightRegion + r.cfg.WeightRecency
	if total == 0 {
		return 0
	}

	var s float64
	if t.Binding.GoalType == intent.GoalType {
		s += r.cfg.WeightType
	}
	if regionMatches(t.Binding, intent) {
		s += r.cfg.WeightRegion
	}
	if r.cfg.RecencyHalfLife > 0 {
		age := now.Sub(t.UpdatedAt)
		if age < 0 {
			age = 0
		}
		decay := math.Exp2(-float64(age) / float64(r.cfg.RecencyHalfLife))
		s += r.cfg.WeightRecency * decay
	}
	return s / total
}

// regionMatches reports whether the candidate's identity sits in the
// same region bucket as the intent.
func regionMatches(b *types.GoalBinding, intent Intent) bool {
	intentKey := identity.ComputeProvisionalKey(identity.ProvisionalInput{
		GoalType:  intent.GoalType,
		Position:  intent.Position,
		Qualifier: intent.Qualifier,
	})
	if b.MatchesKey(intentKey) {
		return true
	}
	// An anchored binding whose position falls in the intent's region
	// still counts as a region match.
	if b.Anchors != nil && b.Anchors.Position != nil {
		anchoredProvisional := identity.ComputeProvisionalKey(identity.ProvisionalInput{
			GoalType:  b.GoalType,
			Position:  b.Anchors.Position,
			Qualifier: b.Anchors.Qualifier,
		})
		return regionPart(anchoredProvisional) == regionPart(intentKey)
	}
	return false
}

// regionPart extracts the "@r..." region segment of a provisional key.
func regionPart(key string) string {
	i := strings.Index(key, "@r")
	if i < 0 {
		return ""
	}
	rest := key[i:]
	if j := strings.Index(rest, "#"); j >= 0 {
		rest = rest[:j]
	}
	return rest
}

// mintTask builds a fresh pending task bound to the intent's identity.
func (r *Resolver) mintTask(intent Intent, key string, now time.Time) *types.Task {
	return &types.Task{
		ID:        uuid.NewString(),
		GoalID:    intent.GoalID,
		Title:     intent.Title,
		Status:    types.TaskPending,
		Priority:  intent.Priority,
		CreatedAt: now,
		UpdatedAt: now,
		Binding: &types.GoalBinding{
			InstanceID: uuid.NewString(),
			GoalType:   intent.GoalType,
			GoalKey:    key,
			GoalID:     intent.GoalID,
		},
	}
}
