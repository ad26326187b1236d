// Package verification implements flicker-resistant completion
// detection. A single verification run never completes a task; the
// checker requires StabilityThreshold consecutive passes before
// declaring completion, and reopens tasks whose completion a later run
// invalidates.
package verification

import (
	"fmt"
	"sync"

	"goalbind/internal/types"
)

// Registry holds named, versioned verifiers. It is an explicit
// instance rather than a process-wide singleton so tests can build
// isolated state.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

type entry struct {
	fn      types.Verifier
	version int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds a verifier under name at definition version 1.
// Registering the same name twice is a programmer error; use Replace
// to swap a definition.
func (r *Registry) Register(name string, fn types.Verifier) error {
	if name == "" {
		return fmt.Errorf("verification: verifier name required")
	}
	if fn == nil {
		return fmt.Errorf("verification: verifier %q is nil", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("verification: verifier %q already registered", name)
	}
	r.entries[name] = entry{fn: fn, version: 1}
	return nil
}

// Replace swaps the verifier under name and bumps its definition
// version. Stability passes a binding accumulated under the old
// version stop counting at the next check.
func (r *Registry) Replace(name string, fn types.Verifier) error {
	if fn == nil {
		return fmt.Errorf("verification: verifier %q is nil", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, exists := r.entries[name]
	if !exists {
		return fmt.Errorf("verification: verifier %q not registered", name)
	}
	r.entries[name] = entry{fn: fn, version: e.version + 1}
	return nil
}

// Verify runs the named verifier and reports its current definition
// version. The last return is false when the name is not registered.
func (r *Registry) Verify(name string, task *types.Task, world map[string]any) (types.VerifyReport, int, bool) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return types.VerifyReport{}, 0, false
	}
	return e.fn(task, world), e.version, true
}

// Names returns the registered verifier names. Diagnostic only.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for n := range r.entries {
		names = append(names, n)
	}
	return names
}
