// Package types provides the shared data model for the goal binding
// protocol. This package exists to break import cycles between the
// resolver, verification, and hold packages. Types here should be
// foundational data structures with no complex dependencies.
package types

import (
	"errors"
	"time"
)

// =============================================================================
// STATUS ATOMS
// =============================================================================

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "/pending"   // Not started
	TaskActive    TaskStatus = "/active"    // Currently executing
	TaskPaused    TaskStatus = "/paused"    // Held (see Hold on the binding)
	TaskBlocked   TaskStatus = "/blocked"   // Blocked by dependency
	TaskCompleted TaskStatus = "/completed" // Finished and verified
	TaskFailed    TaskStatus = "/failed"    // Failed (unrecoverable)
	TaskCancelled TaskStatus = "/cancelled" // Cancelled by goal or user
)

// IsTerminal reports whether the status admits no further transitions.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskCompleted, TaskFailed, TaskCancelled:
		return true
	}
	return false
}

// GoalStatus represents the recorded state of a goal.
type GoalStatus string

const (
	GoalProposed  GoalStatus = "/proposed"
	GoalActive    GoalStatus = "/active"
	GoalPaused    GoalStatus = "/paused"
	GoalCompleted GoalStatus = "/completed"
	GoalFailed    GoalStatus = "/failed"
	GoalCancelled GoalStatus = "/cancelled"
)

// GoalType categorizes the strategic intent a goal expresses.
// Values are slash atoms, e.g. "/build_shelter", "/gather_resource".
type GoalType string

// HoldReason explains why a task is paused.
type HoldReason string

const (
	HoldPreempted       HoldReason = "/preempted"        // Preemption signal wound the task down
	HoldBlocked         HoldReason = "/blocked"          // Owning goal paused or dependency missing
	HoldResourceStarved HoldReason = "/resource_starved" // Needed resource unavailable
	HoldScheduled       HoldReason = "/scheduled"        // Deliberately deferred to a later window
	HoldHardWall        HoldReason = "/hard_wall"        // Reserved: only an explicit external action clears it
)

// =============================================================================
// CORE RECORDS
// =============================================================================

// Position is an exact spatial discriminator.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// Anchors are the precise discriminators that freeze a binding's identity.
// Once set on a GoalBinding the identity never changes again.
type Anchors struct {
	Position  *Position `json:"position,omitempty"`
	TargetID  string    `json:"target_id,omitempty"`
	Qualifier string    `json:"qualifier,omitempty"`
}

// Equal reports whether two anchor sets describe the same identity.
func (a Anchors) Equal(b Anchors) bool {
	if (a.Position == nil) != (b.Position == nil) {
		return false
	}
	if a.Position != nil && *a.Position != *b.Position {
		return false
	}
	return a.TargetID == b.TargetID && a.Qualifier == b.Qualifier
}

// HoldWitness anchors where execution stopped when a hold was applied.
// Verified=false forces a conservative rescan on resume.
type HoldWitness struct {
	LastStepID   string    `json:"last_step_id,omitempty"`
	ModuleCursor string    `json:"module_cursor,omitempty"`
	Verified     bool      `json:"verified"`
	CreatedAt    time.Time `json:"created_at"`
}

// Hold marks a task as paused. Exists iff the task status is /paused.
type Hold struct {
	Reason       HoldReason   `json:"reason"`
	HeldAt       time.Time    `json:"held_at"`
	ResumeHints  []string     `json:"resume_hints,omitempty"`
	NextReviewAt time.Time    `json:"next_review_at"`
	Witness      *HoldWitness `json:"witness,omitempty"`
}

// VerifyReport is the output contract of an external verifier.
type VerifyReport struct {
	Done     bool     `json:"done"`
	Score    float64  `json:"score,omitempty"`
	Blockers []string `json:"blockers,omitempty"`
	Evidence []string `json:"evidence,omitempty"`
}

// CompletionRecord tracks the stability window for a binding.
type CompletionRecord struct {
	VerifierName      string        `json:"verifier_name,omitempty"`
	DefinitionVersion int           `json:"definition_version,omitempty"`
	ConsecutivePasses int           `json:"consecutive_passes"`
	LastResult        *VerifyReport `json:"last_result,omitempty"`
	LastCheckedAt     time.Time     `json:"last_checked_at,omitempty"`
}

// GoalBinding binds a task to a goal identity.
//
// Identity invariant: GoalKey transitions at most once, from a
// provisional key (Anchors == nil) to an anchored key (Anchors != nil).
// On that transition the old key moves to KeyAliases and the key never
// changes again.
type GoalBinding struct {
	InstanceID string   `json:"instance_id"` // Immutable, set at creation
	GoalType   GoalType `json:"goal_type"`
	GoalKey    string   `json:"goal_key"`
	KeyAliases []string `json:"key_aliases,omitempty"`
	GoalID     string   `json:"goal_id,omitempty"`

	Anchors *Anchors `json:"anchors,omitempty"` // nil while provisional

	Hold       *Hold            `json:"hold,omitempty"`
	Completion CompletionRecord `json:"completion"`

	SupersedesID string `json:"supersedes_id,omitempty"`
}

// Anchored reports whether the binding's identity is frozen.
func (b *GoalBinding) Anchored() bool { return b.Anchors != nil }

// MatchesKey reports whether key equals the current key or any alias.
func (b *GoalBinding) MatchesKey(key string) bool {
	if b.GoalKey == key {
		return true
	}
	for _, alias := range b.KeyAliases {
		if alias == key {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the binding.
func (b *GoalBinding) Clone() *GoalBinding {
	if b == nil {
		return nil
	}
	cp := *b
	cp.KeyAliases = append([]string(nil), b.KeyAliases...)
	if b.Anchors != nil {
		a := *b.Anchors
		if b.Anchors.Position != nil {
			p := *b.Anchors.Position
			a.Position = &p
		}
		cp.Anchors = &a
	}
	if b.Hold != nil {
		h := *b.Hold
		h.ResumeHints = append([]string(nil), b.Hold.ResumeHints...)
		if b.Hold.Witness != nil {
			w := *b.Hold.Witness
			h.Witness = &w
		}
		cp.Hold = &h
	}
	if b.Completion.LastResult != nil {
		r := *b.Completion.LastResult
		r.Blockers = append([]string(nil), b.Completion.LastResult.Blockers...)
		r.Evidence = append([]string(nil), b.Completion.LastResult.Evidence...)
		cp.Completion.LastResult = &r
	}
	return &cp
}

// Task is a unit of execution bound to at most one active goal.
type Task struct {
	ID       string     `json:"id"`
	GoalID   string     `json:"goal_id,omitempty"`
	Title    string     `json:"title"`
	Status   TaskStatus `json:"status"`
	Priority float64    `json:"priority"`
	Progress float64    `json:"progress"` // 0.0-1.0

	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
	StartedAt      time.Time     `json:"started_at,omitempty"`
	CompletedAt    time.Time     `json:"completed_at,omitempty"`
	ActualDuration time.Duration `json:"actual_duration,omitempty"`

	// Resumption anchors, maintained by the executor as steps finish.
	LastCompletedStepID string `json:"last_completed_step_id,omitempty"`
	ModuleCursor        string `json:"module_cursor,omitempty"`

	Binding *GoalBinding `json:"binding,omitempty"`
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	cp := *t
	cp.Binding = t.Binding.Clone()
	return &cp
}

// Goal is a strategic intent with a lifecycle independent of any one task.
type Goal struct {
	ID        string     `json:"id"`
	Type      GoalType   `json:"type"`
	Title     string     `json:"title"`
	Status    GoalStatus `json:"status"`
	Priority  float64    `json:"priority"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// =============================================================================
// EXTERNAL CONTRACTS
// =============================================================================

// ErrTaskNotFound is returned by stores when a task id is unknown.
var ErrTaskNotFound = errors.New("task not found")

// ErrGoalNotFound is returned by stores when a goal id is unknown.
var ErrGoalNotFound = errors.New("goal not found")

// Store is the work-item store contract the protocol is wired against.
// Implementations must provide read-your-writes consistency within one
// process; reads outside a held key lock must tolerate staleness.
type Store interface {
	GetTask(id string) (*Task, error)
	SetTask(task *Task) error
	GetGoal(id string) (*Goal, error)
	UpdateGoalStatus(goalID string, status GoalStatus, reason string) error
	UpdateGoalPriority(goalID string, priority float64) error
	// TasksForGoal returns every task bound to the goal, any status.
	TasksForGoal(goalID string) ([]*Task, error)
	// FindBindings returns non-terminal tasks carrying a binding of the
	// given goal type.
	FindBindings(goalType GoalType) ([]*Task, error)
}

// Verifier checks whether a task's goal condition currently holds in
// the world. Implementations are treated as pure: no side effects.
type Verifier func(task *Task, world map[string]any) VerifyReport
