// Package identity computes deduplication keys for goal bindings.
//
// All functions here are pure: no I/O, no clock reads, no store access.
// A binding starts with a provisional key computed from coarse
// discriminators, then transitions exactly once to an anchored key
// computed from precise anchors. The transition is one-way; conflicting
// re-anchoring is a programmer error and fails loudly.
package identity

import (
	"errors"
	"fmt"

	"goalbind/internal/types"
)

// RegionSize is the bucket edge used to coarsen positions into regions
// for provisional keys. Two intents inside the same region bucket are
// candidates for the same ongoing goal.
const RegionSize = 16

// ErrAnchorConflict is returned when a binding that is already anchored
// is anchored again with different anchors. Identity must never drift.
var ErrAnchorConflict = errors.New("binding already anchored with different anchors")

// ProvisionalInput carries the coarse discriminators available when an
// intent first arrives, before precise anchors are known.
type ProvisionalInput struct {
	GoalType  types.GoalType
	Position  *types.Position
	Qualifier string
}

// ComputeProvisionalKey derives the coarse dedup key for an intent.
// Positions are bucketed to RegionSize so that nearby intents collapse
// onto one key. Deterministic: equal inputs always yield equal keys.
func ComputeProvisionalKey(in ProvisionalInput) string {
	key := string(in.GoalType)
	if in.Position != nil {
		key += fmt.Sprintf("@r%d,%d,%d",
			bucket(in.Position.X), bucket(in.Position.Y), bucket(in.Position.Z))
	}
	if in.Qualifier != "" {
		key += "#" + in.Qualifier
	}
	return key
}

// ComputeAnchoredKey derives the precise dedup key once anchors are known.
func ComputeAnchoredKey(goalType types.GoalType, anchors types.Anchors) string {
	key := string(goalType)
	if anchors.Position != nil {
		key += fmt.Sprintf("@p%d,%d,%d", anchors.Position.X, anchors.Position.Y, anchors.Position.Z)
	}
	if anchors.TargetID != "" {
		key += "#" + anchors.TargetID
	}
	if anchors.Qualifier != "" {
		key += "#" + anchors.Qualifier
	}
	return key
}

// Anchor freezes a binding's identity. It returns a new binding; the
// input is never mutated.
//
// Provisional binding: the current key moves to the alias list, the key
// becomes the anchored key, and the anchors are recorded. Anchoring an
// already-anchored binding with equal anchors is idempotent and returns
// an identical copy. Anchoring with different anchors returns
// ErrAnchorConflict.
func Anchor(b *types.GoalBinding, anchors types.Anchors) (*types.GoalBinding, error) {
	if b.Anchored() {
		if b.Anchors.Equal(anchors) {
			return b.Clone(), nil
		}
		return nil, fmt.Errorf("%w: binding %s key %q", ErrAnchorConflict, b.InstanceID, b.GoalKey)
	}

	out := b.Clone()
	anchored := ComputeAnchoredKey(b.GoalType, anchors)
	if anchored != out.GoalKey {
		out.KeyAliases = append(out.KeyAliases, out.GoalKey)
	}
	out.GoalKey = anchored
	a := anchors
	if anchors.Position != nil {
		p := *anchors.Position
		a.Position = &p
	}
	out.Anchors = &a
	return out, nil
}

// bucket floors v into its region bucket, negative-safe.
func bucket(v int) int {
	if v < 0 {
		return -((-v - 1) / RegionSize) - 1
	}
	return v / RegionSize
}
