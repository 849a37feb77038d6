package core_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	dispatch "github.com/mivens/go-dispatch"
	core "github.com/mivens/go-dispatch/core"
)

// TestParallelFor_EveryIndexExactlyOnce verifies full, non-overlapping coverage
// Given: A 1000-element buffer and a 4-worker pool
// When: ParallelFor writes each slot from its own index
// Then: Every slot is written exactly once
func TestParallelFor_EveryIndexExactlyOnce(t *testing.T) {
	// Arrange
	pool := dispatch.NewWorkerPool("pf-pool", 4)
	pool.Start(context.Background())
	defer pool.Stop()

	n := 1000
	hits := make([]int32, n)

	// Act
	core.ParallelFor(pool, n, func(i int) {
		atomic.AddInt32(&hits[i], 1)
	})

	// Assert
	for i, h := range hits {
		if h != 1 {
			t.Fatalf("index %d executed %d times, want 1", i, h)
		}
	}
}

// TestParallelFor_ComputesDisjointSlots verifies the result hand-off
// Given: A pre-sized output buffer
// When: ParallelFor fills buf[i] = i*i
// Then: The buffer is fully computed when the call returns
func TestParallelFor_ComputesDisjointSlots(t *testing.T) {
	// Arrange
	pool := dispatch.NewWorkerPool("pf-compute-pool", 4)
	pool.Start(context.Background())
	defer pool.Stop()

	n := 256
	buf := make([]int, n)

	// Act
	pool.ParallelFor(n, func(i int) {
		buf[i] = i * i
	})

	// Assert - ParallelFor blocked until all chunks finished
	for i, v := range buf {
		if v != i*i {
			t.Fatalf("buf[%d] = %d, want %d", i, v, i*i)
		}
	}
}

// TestParallelFor_ZeroAndNegative verifies the empty range is a no-op
// Given: A pool
// When: ParallelFor is called with n = 0 and n = -5
// Then: It returns immediately and the body never runs
func TestParallelFor_ZeroAndNegative(t *testing.T) {
	// Arrange
	pool := dispatch.NewWorkerPool("pf-zero-pool", 2)
	pool.Start(context.Background())
	defer pool.Stop()

	var calls atomic.Int32
	body := func(i int) { calls.Add(1) }

	// Act
	core.ParallelFor(pool, 0, body)
	core.ParallelFor(pool, -5, body)

	// Assert
	if calls.Load() != 0 {
		t.Errorf("body ran %d times, want 0", calls.Load())
	}
}

// TestParallelFor_SingleIndex verifies the degenerate single-element range
// Given: A pool with more workers than indices
// When: ParallelFor runs with n = 1
// Then: The body runs exactly once for index 0
func TestParallelFor_SingleIndex(t *testing.T) {
	// Arrange
	pool := dispatch.NewWorkerPool("pf-one-pool", 4)
	pool.Start(context.Background())
	defer pool.Stop()

	var calls atomic.Int32
	var seenIndex atomic.Int32
	seenIndex.Store(-1)

	// Act
	core.ParallelFor(pool, 1, func(i int) {
		calls.Add(1)
		seenIndex.Store(int32(i))
	})

	// Assert
	if calls.Load() != 1 {
		t.Errorf("body ran %d times, want 1", calls.Load())
	}
	if seenIndex.Load() != 0 {
		t.Errorf("body saw index %d, want 0", seenIndex.Load())
	}
}

// TestParallelFor_PanicInBodyDoesNotHang verifies panic containment
// Given: A body that panics on one index
// When: ParallelFor runs over many indices
// Then: The call still returns and other chunks complete
func TestParallelFor_PanicInBodyDoesNotHang(t *testing.T) {
	// Arrange
	config := core.DefaultSchedulerConfig()
	config.Logger = core.NewNoOpLogger()
	config.PanicHandler = &core.LogPanicHandler{Logger: core.NewNoOpLogger()}
	pool := dispatch.NewWorkerPoolWithConfig("pf-panic-pool", 4, config)
	pool.Start(context.Background())
	defer pool.Stop()

	n := 100
	var calls atomic.Int32

	// Act - must return despite the panic
	done := make(chan struct{})
	go func() {
		core.ParallelFor(pool, n, func(i int) {
			if i == 37 {
				panic("bad index")
			}
			calls.Add(1)
		})
		close(done)
	}()

	// Assert
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("ParallelFor hung after a body panic")
	}
	if calls.Load() == 0 {
		t.Error("no indices executed")
	}
}

// TestParallelFor_StoppedPoolReturns verifies shutdown does not strand the caller
// Given: A pool that has already been stopped
// When: ParallelFor is called against it
// Then: The call returns promptly instead of waiting on rejected chunks
func TestParallelFor_StoppedPoolReturns(t *testing.T) {
	// Arrange
	config := core.DefaultSchedulerConfig()
	config.Logger = core.NewNoOpLogger()
	pool := dispatch.NewWorkerPoolWithConfig("pf-stopped-pool", 4, config)
	pool.Start(context.Background())
	pool.Stop()

	var calls atomic.Int32

	// Act
	done := make(chan struct{})
	go func() {
		pool.ParallelFor(1000, func(i int) {
			calls.Add(1)
		})
		close(done)
	}()

	// Assert - the rejected chunks must release the join
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ParallelFor did not return after the pool was stopped")
	}
	if calls.Load() != 0 {
		t.Errorf("body ran %d times on a stopped pool, want 0", calls.Load())
	}
}
