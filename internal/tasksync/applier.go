package tasksync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"goalbind/internal/hold"
	"goalbind/internal/types"
)

// ErrUnknownEffect is returned when the Applier meets an effect variant
// it has no handler for. The Applier fails closed: a new variant added
// without updating the dispatch is immediately visible, never dropped.
var ErrUnknownEffect = errors.New("unknown sync effect")

// Applier mutates the store according to reducer effects. It is the
// only writer in this package.
type Applier struct {
	store types.Store
	holds *hold.Manager
	log   *zap.Logger
	clock func() time.Time
}

// NewApplier constructs an Applier. logger may be nil.
func NewApplier(st types.Store, holds *hold.Manager, logger *zap.Logger) *Applier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Applier{store: st, holds: holds, log: logger, clock: time.Now}
}

// SetClock overrides the applier's clock. Tests only.
func (a *Applier) SetClock(clock func() time.Time) { a.clock = clock }

// Apply executes effects in order, stopping at the first error.
func (a *Applier) Apply(ctx context.Context, effects []Effect) error {
	for _, e := range effects {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := a.applyOne(e); err != nil {
			return fmt.Errorf("tasksync: applying %s: %w", e, err)
		}
	}
	return nil
}

func (a *Applier) applyOne(effect Effect) error {
	now := a.clock()

	switch e := effect.(type) {
	case UpdateTaskStatus:
		task, err := a.store.GetTask(e.TaskID)
		if err != nil {
			return err
		}
		if task.Status == e.Status {
			return nil
		}
		a.log.Debug("task status updated",
			zap.String("task_id", e.TaskID),
			zap.String("from", string(task.Status)),
			zap.String("to", string(e.Status)))
		task.Status = e.Status
		task.UpdatedAt = now
		return a.store.SetTask(task)

	case UpdateGoalStatus:
		return a.store.UpdateGoalStatus(e.GoalID, e.Status, e.Reason)

	case ApplyHold:
		task, err := a.store.GetTask(e.TaskID)
		if err != nil {
			return err
		}
		// Reducers may emit ApplyHold alongside a paused-status effect;
		// a hold already present means the work is done.
		if task.Binding != nil && task.Binding.Hold != nil {
			return nil
		}
		if err := a.holds.RequestHold(task, e.Reason, e.Hints, nil, now); err != nil {
			return err
		}
		return a.store.SetTask(task)

	case ClearHold:
		task, err := a.store.GetTask(e.TaskID)
		if err != nil {
			return err
		}
		if err := a.holds.ClearHold(task, now); err != nil {
			return err
		}
		return a.store.SetTask(task)

	case UpdateGoalPriority:
		return a.store.UpdateGoalPriority(e.GoalID, e.Priority)

	case Noop:
		return nil

	default:
		// Fail closed. Compile-time exhaustiveness covers effects built
		// in-process; this branch catches variants that outlived the
		// type checker, e.g. deserialized from a replayed log.
		a.log.Error("refusing to apply unknown sync effect",
			zap.String("effect", effect.String()))
		return fmt.Errorf("%w: %T", ErrUnknownEffect, effect)
	}
}
