package core_test

import (
	"context"
	"testing"
	"time"

	core "github.com/mivens/go-dispatch/core"
)

// TestDelayManager_ExecutesAfterDelay verifies basic delayed scheduling
// Given: A DelayManager with one 50ms task
// When: Time passes
// Then: The task is re-posted to its target after, not before, the delay
func TestDelayManager_ExecutesAfterDelay(t *testing.T) {
	// Arrange
	dm := core.NewDelayManager()
	defer dm.Stop()

	runner := newRecordingRunner()
	start := time.Now()

	// Act
	dm.AddDelayedTask(func(ctx context.Context) {}, 50*time.Millisecond, core.DefaultTaskTraits(), runner)

	// Assert - not early
	time.Sleep(10 * time.Millisecond)
	if runner.postedCount() != 0 {
		t.Error("task posted before its delay elapsed")
	}

	select {
	case <-runner.posted:
		if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
			t.Errorf("task posted after %v, want >= 50ms", elapsed)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("delayed task never posted")
	}
}

// TestDelayManager_EarlierTaskPreempts verifies re-arming on a nearer deadline
// Given: A DelayManager sleeping toward a far deadline
// When: A task with a much nearer deadline is added
// Then: The nearer task fires first, on time
func TestDelayManager_EarlierTaskPreempts(t *testing.T) {
	// Arrange
	dm := core.NewDelayManager()
	defer dm.Stop()

	farRunner := newRecordingRunner()
	nearRunner := newRecordingRunner()

	// Act - far deadline first, near one second
	dm.AddDelayedTask(func(ctx context.Context) {}, 500*time.Millisecond, core.DefaultTaskTraits(), farRunner)
	dm.AddDelayedTask(func(ctx context.Context) {}, 30*time.Millisecond, core.DefaultTaskTraits(), nearRunner)

	// Assert - near fires while far is still pending
	select {
	case <-nearRunner.posted:
	case <-time.After(2 * time.Second):
		t.Fatal("near task never posted")
	}
	if farRunner.postedCount() != 0 {
		t.Error("far task posted before its deadline")
	}
	if dm.TaskCount() != 1 {
		t.Errorf("TaskCount() = %d, want 1 (far task pending)", dm.TaskCount())
	}
}

// TestDelayManager_MultipleTasksFireInDeadlineOrder verifies heap ordering
// Given: Three tasks with staggered deadlines added out of order
// When: All deadlines pass
// Then: Each task was posted to its own target
func TestDelayManager_MultipleTasksFireInDeadlineOrder(t *testing.T) {
	// Arrange
	dm := core.NewDelayManager()
	defer dm.Stop()

	runners := []*recordingRunner{
		newRecordingRunner(),
		newRecordingRunner(),
		newRecordingRunner(),
	}

	// Act - out of deadline order
	dm.AddDelayedTask(func(ctx context.Context) {}, 60*time.Millisecond, core.DefaultTaskTraits(), runners[2])
	dm.AddDelayedTask(func(ctx context.Context) {}, 20*time.Millisecond, core.DefaultTaskTraits(), runners[0])
	dm.AddDelayedTask(func(ctx context.Context) {}, 40*time.Millisecond, core.DefaultTaskTraits(), runners[1])

	// Assert
	for i, r := range runners {
		select {
		case <-r.posted:
		case <-time.After(2 * time.Second):
			t.Fatalf("task %d never posted", i)
		}
	}
	if dm.TaskCount() != 0 {
		t.Errorf("TaskCount() = %d, want 0", dm.TaskCount())
	}
}

// TestDelayManager_StopDropsPendingTasks verifies shutdown
// Given: A DelayManager with a pending far-deadline task
// When: Stop is called
// Then: The pending task is dropped and never posted
func TestDelayManager_StopDropsPendingTasks(t *testing.T) {
	// Arrange
	dm := core.NewDelayManager()
	runner := newRecordingRunner()

	dm.AddDelayedTask(func(ctx context.Context) {}, 50*time.Millisecond, core.DefaultTaskTraits(), runner)
	if dm.TaskCount() != 1 {
		t.Fatalf("TaskCount() = %d, want 1", dm.TaskCount())
	}

	// Act
	dm.Stop()

	// Assert
	if dm.TaskCount() != 0 {
		t.Errorf("TaskCount() after Stop = %d, want 0", dm.TaskCount())
	}
	time.Sleep(80 * time.Millisecond)
	if runner.postedCount() != 0 {
		t.Error("dropped task was posted after Stop")
	}
}
