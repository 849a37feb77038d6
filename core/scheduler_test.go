package core_test

import (
	"context"
	"testing"
	"time"

	core "github.com/mivens/go-dispatch/core"
)

// collectReady pops every ready task through GetWork and executes it.
func collectReady(t *testing.T, s *core.Scheduler) {
	t.Helper()
	for s.QueuedTaskCount() > 0 {
		stop := make(chan struct{})
		task, ok := s.GetWork(stop)
		close(stop)
		if !ok {
			t.Fatal("GetWork() returned no task while tasks were queued")
		}
		task(context.Background())
	}
}

// TestScheduler_PriorityOrdering verifies higher classes run first
// Given: A scheduler with one task per priority class, posted lowest first
// When: An idle worker pulls them one by one
// Then: Tasks come out highest class first
func TestScheduler_PriorityOrdering(t *testing.T) {
	// Arrange
	scheduler := core.NewScheduler(1)
	defer scheduler.Shutdown()

	var order []core.TaskPriority
	for _, p := range core.Priorities() {
		priority := p
		scheduler.PostInternal(func(ctx context.Context) {
			order = append(order, priority)
		}, core.TraitsWithPriority(priority))
	}

	// Act
	collectReady(t, scheduler)

	// Assert - highest first
	want := []core.TaskPriority{
		core.PriorityInteractive,
		core.PriorityInitiated,
		core.PriorityDefault,
		core.PriorityUtility,
		core.PriorityBackground,
	}
	if len(order) != len(want) {
		t.Fatalf("executed = %d tasks, want %d", len(order), len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %v, want %v", i, order[i], want[i])
		}
	}
}

// TestScheduler_FIFOWithinPriority verifies admission order breaks ties
// Given: A scheduler with several tasks of the same priority class
// When: A worker pulls them
// Then: They come out in admission order
func TestScheduler_FIFOWithinPriority(t *testing.T) {
	// Arrange
	scheduler := core.NewScheduler(1)
	defer scheduler.Shutdown()

	var order []int
	taskCount := 10
	for i := 0; i < taskCount; i++ {
		id := i
		scheduler.PostInternal(func(ctx context.Context) {
			order = append(order, id)
		}, core.DefaultTaskTraits())
	}

	// Act
	collectReady(t, scheduler)

	// Assert
	if len(order) != taskCount {
		t.Fatalf("executed = %d, want %d", len(order), taskCount)
	}
	for i, id := range order {
		if id != i {
			t.Errorf("order[%d] = %d, want %d", i, id, i)
		}
	}
}

// TestScheduler_LowPriorityNeverSkipped verifies starvation-freedom at drain
// Given: A mix of background and interactive tasks
// When: The ready list is fully drained
// Then: Every background task ran, after the interactive ones
func TestScheduler_LowPriorityNeverSkipped(t *testing.T) {
	// Arrange
	scheduler := core.NewScheduler(1)
	defer scheduler.Shutdown()

	var background, interactive int
	for i := 0; i < 5; i++ {
		scheduler.PostInternal(func(ctx context.Context) {
			background++
		}, core.TraitsWithPriority(core.PriorityBackground))
		scheduler.PostInternal(func(ctx context.Context) {
			if background > 0 {
				t.Error("background task ran before an interactive task")
			}
			interactive++
		}, core.TraitsWithPriority(core.PriorityInteractive))
	}

	// Act
	collectReady(t, scheduler)

	// Assert
	if background != 5 || interactive != 5 {
		t.Errorf("background = %d, interactive = %d, want 5 each", background, interactive)
	}
}

// TestScheduler_GetWork_StopsOnChannelClose verifies worker shutdown
// Given: A scheduler with no ready tasks
// When: The stop channel closes while a worker blocks in GetWork
// Then: GetWork returns ok=false
func TestScheduler_GetWork_StopsOnChannelClose(t *testing.T) {
	// Arrange
	scheduler := core.NewScheduler(1)
	defer scheduler.Shutdown()

	stop := make(chan struct{})
	result := make(chan bool, 1)

	go func() {
		_, ok := scheduler.GetWork(stop)
		result <- ok
	}()

	// Act
	close(stop)

	// Assert
	select {
	case ok := <-result:
		if ok {
			t.Error("GetWork() = ok, want !ok after stop")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("GetWork() did not return after stop channel closed")
	}
}

// TestScheduler_RejectsAfterShutdown verifies admission ends at shutdown
// Given: A scheduler that has been shut down
// When: A task is posted
// Then: PostInternal reports the rejection and the ready list stays empty
func TestScheduler_RejectsAfterShutdown(t *testing.T) {
	// Arrange
	config := core.DefaultSchedulerConfig()
	config.Logger = core.NewNoOpLogger()
	config.RejectedTaskHandler = &core.LogRejectedTaskHandler{Logger: core.NewNoOpLogger()}
	scheduler := core.NewSchedulerWithConfig(1, config)

	// Act
	scheduler.Shutdown()
	accepted := scheduler.PostInternal(func(ctx context.Context) {}, core.DefaultTaskTraits())

	// Assert
	if accepted {
		t.Error("PostInternal() = true after shutdown, want false")
	}
	if scheduler.QueuedTaskCount() != 0 {
		t.Errorf("QueuedTaskCount() = %d, want 0", scheduler.QueuedTaskCount())
	}
}

// TestScheduler_ShutdownDropsReadyTasks verifies immediate shutdown semantics
// Given: A scheduler with queued tasks and no workers
// When: Shutdown is called
// Then: The ready list is dropped
func TestScheduler_ShutdownDropsReadyTasks(t *testing.T) {
	// Arrange
	scheduler := core.NewScheduler(1)
	for i := 0; i < 5; i++ {
		scheduler.PostInternal(func(ctx context.Context) {}, core.DefaultTaskTraits())
	}
	if scheduler.QueuedTaskCount() != 5 {
		t.Fatalf("QueuedTaskCount() = %d, want 5", scheduler.QueuedTaskCount())
	}

	// Act
	scheduler.Shutdown()

	// Assert
	if scheduler.QueuedTaskCount() != 0 {
		t.Errorf("QueuedTaskCount() after shutdown = %d, want 0", scheduler.QueuedTaskCount())
	}
}

// TestScheduler_ShutdownGraceful_TimesOutWithStuckWork verifies the deadline
// Given: A scheduler with a queued task and no worker to run it
// When: ShutdownGraceful is called with a short timeout
// Then: It returns an error and drops the task
func TestScheduler_ShutdownGraceful_TimesOutWithStuckWork(t *testing.T) {
	// Arrange
	scheduler := core.NewScheduler(1)
	scheduler.PostInternal(func(ctx context.Context) {}, core.DefaultTaskTraits())

	// Act
	err := scheduler.ShutdownGraceful(150 * time.Millisecond)

	// Assert
	if err == nil {
		t.Error("ShutdownGraceful() = nil, want timeout error")
	}
	if scheduler.QueuedTaskCount() != 0 {
		t.Errorf("QueuedTaskCount() = %d, want 0 after drop", scheduler.QueuedTaskCount())
	}
}

// TestScheduler_ShutdownGraceful_ReturnsWhenDrained verifies the happy path
// Given: A scheduler with an empty ready list
// When: ShutdownGraceful is called
// Then: It returns nil promptly
func TestScheduler_ShutdownGraceful_ReturnsWhenDrained(t *testing.T) {
	scheduler := core.NewScheduler(1)

	if err := scheduler.ShutdownGraceful(time.Second); err != nil {
		t.Errorf("ShutdownGraceful() error = %v, want nil", err)
	}
}

// TestScheduler_DelayedTaskCount verifies delayed submissions are tracked
// Given: A scheduler with a delayed task targeting a recording runner
// When: The delay has not yet expired, then expires
// Then: The count reflects the pending delay and the task is re-posted
func TestScheduler_DelayedTaskCount(t *testing.T) {
	// Arrange
	scheduler := core.NewScheduler(1)
	defer scheduler.Shutdown()

	runner := newRecordingRunner()

	// Act
	scheduler.PostDelayedInternal(func(ctx context.Context) {}, 50*time.Millisecond, core.DefaultTaskTraits(), runner)

	// Assert - pending
	if scheduler.DelayedTaskCount() != 1 {
		t.Errorf("DelayedTaskCount() = %d, want 1", scheduler.DelayedTaskCount())
	}

	select {
	case <-runner.posted:
	case <-time.After(2 * time.Second):
		t.Fatal("delayed task never re-posted to its target")
	}
	if scheduler.DelayedTaskCount() != 0 {
		t.Errorf("DelayedTaskCount() after expiry = %d, want 0", scheduler.DelayedTaskCount())
	}
}
