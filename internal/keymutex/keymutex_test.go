package keymutex

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestAcquireReleaseSingleKey(t *testing.T) {
	m := New()

	h := m.Acquire("k")
	assert.True(t, m.IsLocked("k"))
	assert.Equal(t, 1, m.Size())

	h.Release()
	assert.False(t, m.IsLocked("k"))
	assert.Equal(t, 0, m.Size())
}

func TestConcurrentAcquireSingleHolder(t *testing.T) {
	const n = 50
	m := New()

	var inside int32
	var maxInside int32
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			h := m.Acquire("k")
			defer h.Release()

			cur := atomic.AddInt32(&inside, 1)
			for {
				prev := atomic.LoadInt32(&maxInside)
				if cur <= prev || atomic.CompareAndSwapInt32(&maxInside, prev, cur) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), maxInside, "at most one holder at any instant")
	assert.Equal(t, 0, m.Size(), "queue drains after all release")
}

func TestDistinctKeysDoNotBlock(t *testing.T) {
	m := New()

	// Keep k1 held for the whole test.
	h1 := m.Acquire("k1")
	defer h1.Release()

	done := make(chan struct{})
	go func() {
		h2 := m.Acquire("k2")
		h2.Release()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("acquire of k2 blocked on held k1")
	}
}

func TestFIFOOrderWithinKey(t *testing.T) {
	const n = 10
	m := New()

	first := m.Acquire("k")

	var mu sync.Mutex
	var order []int
	ready := make(chan struct{}, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ready <- struct{}{}
			h := m.Acquire("k")
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			h.Release()
		}(i)
		// Give each goroutine time to enqueue before the next one starts,
		// so arrival order is deterministic.
		<-ready
		time.Sleep(5 * time.Millisecond)
	}

	first.Release()
	wg.Wait()

	for i := 0; i < n; i++ {
		assert.Equal(t, i, order[i], "waiters must be served in arrival order")
	}
}

func TestReleaseIdempotent(t *testing.T) {
	m := New()

	h := m.Acquire("k")
	h.Release()
	h.Release()
	h.Release()

	// A double release must not hand the key to a phantom holder.
	h2 := m.Acquire("k")
	assert.True(t, m.IsLocked("k"))
	h2.Release()
	assert.Equal(t, 0, m.Size())
}

func TestWithKeyLockPropagatesErrorAndReleases(t *testing.T) {
	m := New()
	boom := errors.New("boom")

	err := WithKeyLock(m, "k", func() error {
		assert.True(t, m.IsLocked("k"))
		return boom
	})
	require.ErrorIs(t, err, boom, "body error must propagate unchanged")
	assert.False(t, m.IsLocked("k"), "lock must release on error path")
}

func TestWithKeyLockReleasesOnPanic(t *testing.T) {
	m := New()

	require.Panics(t, func() {
		_ = WithKeyLock(m, "k", func() error { panic("boom") })
	})
	assert.Equal(t, 0, m.Size())
}
