// Package keymutex provides per-key mutual exclusion with FIFO fairness.
//
// Different keys proceed fully concurrently; callers sharing a key are
// serialized in arrival order. This is the primitive the goal resolver
// relies on for exactly-once creation. It is single-process only — a
// cross-process deployment should replace it with store-level
// compare-and-swap.
package keymutex

import "sync"

// KeyedMutex serializes callers per key. The zero value is not usable;
// construct with New.
type KeyedMutex struct {
	mu     sync.Mutex
	queues map[string]*waitQueue
}

// waitQueue tracks the holder and FIFO waiters for one key.
type waitQueue struct {
	held    bool
	waiters []chan struct{}
}

// New returns an empty KeyedMutex.
func New() *KeyedMutex {
	return &KeyedMutex{queues: make(map[string]*waitQueue)}
}

// Handle releases an acquired key. Release is idempotent: extra calls
// are no-ops and never corrupt the queue.
type Handle struct {
	once sync.Once
	m    *KeyedMutex
	key  string
}

// Acquire blocks until every earlier caller of the same key has
// released, then returns a release handle. Waiters are woken in FIFO
// order, so same-key acquisition is fair.
func (m *KeyedMutex) Acquire(key string) *Handle {
	m.mu.Lock()
	q, ok := m.queues[key]
	if !ok {
		q = &waitQueue{}
		m.queues[key] = q
	}
	if !q.held {
		q.held = true
		m.mu.Unlock()
		return &Handle{m: m, key: key}
	}
	ready := make(chan struct{})
	q.waiters = append(q.waiters, ready)
	m.mu.Unlock()

	<-ready
	return &Handle{m: m, key: key}
}

// Release hands the key to the next waiter in order, or removes the
// queue entirely when nobody is waiting.
func (h *Handle) Release() {
	h.once.Do(func() {
		m := h.m
		m.mu.Lock()
		defer m.mu.Unlock()

		q, ok := m.queues[h.key]
		if !ok {
			return
		}
		if len(q.waiters) == 0 {
			delete(m.queues, h.key)
			return
		}
		next := q.waiters[0]
		q.waiters = q.waiters[1:]
		close(next)
	})
}

// WithKeyLock acquires key, runs body, and releases on every exit path.
// An error from body propagates unchanged; a panic re-panics after the
// release.
func WithKeyLock(m *KeyedMutex, key string, body func() error) error {
	h := m.Acquire(key)
	defer h.Release()
	return body()
}

// IsLocked reports whether key currently has a holder. Diagnostic only:
// the answer may be stale by the time the caller acts on it, so it must
// never drive a synchronization decision.
func (m *KeyedMutex) IsLocked(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.queues[key]
	return ok && q.held
}

// Size returns the number of keys with a holder or waiters. Diagnostic
// only, same caveat as IsLocked.
func (m *KeyedMutex) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queues)
}
