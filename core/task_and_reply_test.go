package core_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	dispatch "github.com/mivens/go-dispatch"
	core "github.com/mivens/go-dispatch/core"
)

// TestPostTaskAndReply verifies the task-then-reply hand-off
// Given: A worker queue and a main queue
// When: PostTaskAndReply runs a task on the worker queue
// Then: The reply runs on the main queue after the task finished
func TestPostTaskAndReply(t *testing.T) {
	// Arrange
	pool := dispatch.NewWorkerPool("reply-pool", 2)
	pool.Start(context.Background())
	defer pool.Stop()

	workQueue := core.NewSerialQueue(pool, "work", core.PriorityBackground)
	mainQueue := core.NewMainQueue("reply-main")
	defer mainQueue.Stop()

	var taskRan atomic.Bool
	replyDone := make(chan bool, 1)

	// Act
	workQueue.PostTaskAndReply(
		func(ctx context.Context) {
			time.Sleep(10 * time.Millisecond)
			taskRan.Store(true)
		},
		func(ctx context.Context) {
			replyDone <- taskRan.Load()
		},
		mainQueue,
	)

	// Assert
	select {
	case sawTask := <-replyDone:
		if !sawTask {
			t.Error("reply ran before the task finished")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("reply never ran")
	}
}

// TestPostTaskAndReply_PanickedTaskSuppressesReply verifies panics block replies
// Given: A task that panics before completing
// When: PostTaskAndReply runs it
// Then: The reply is never posted and the queue keeps working
func TestPostTaskAndReply_PanickedTaskSuppressesReply(t *testing.T) {
	// Arrange
	config := core.DefaultSchedulerConfig()
	config.Logger = core.NewNoOpLogger()
	config.PanicHandler = &core.LogPanicHandler{Logger: core.NewNoOpLogger()}
	pool := dispatch.NewWorkerPoolWithConfig("reply-panic-pool", 2, config)
	pool.Start(context.Background())
	defer pool.Stop()

	workQueue := core.NewSerialQueue(pool, "panicky-work", core.PriorityDefault)
	replyQueue := core.NewSerialQueue(pool, "replies", core.PriorityDefault)

	var replyRan atomic.Bool

	// Act
	workQueue.PostTaskAndReply(
		func(ctx context.Context) { panic("task failed") },
		func(ctx context.Context) { replyRan.Store(true) },
		replyQueue,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := workQueue.WaitIdle(ctx); err != nil {
		t.Fatalf("WaitIdle(work) error = %v", err)
	}
	if err := replyQueue.WaitIdle(ctx); err != nil {
		t.Fatalf("WaitIdle(replies) error = %v", err)
	}

	// Assert
	if replyRan.Load() {
		t.Error("reply ran despite the task panicking")
	}
}

// TestPostTaskAndReplyWithResult verifies the typed result hand-off
// Given: A task producing a value and a nil error
// When: PostTaskAndReplyWithResult runs it
// Then: The reply receives the value on the reply queue
func TestPostTaskAndReplyWithResult(t *testing.T) {
	// Arrange
	pool := dispatch.NewWorkerPool("result-pool", 2)
	pool.Start(context.Background())
	defer pool.Stop()

	workQueue := core.NewConcurrentQueue(pool, "result-work", core.PriorityDefault)
	replyQueue := core.NewSerialQueue(pool, "result-replies", core.PriorityDefault)

	type resultPair struct {
		value int
		err   error
	}
	got := make(chan resultPair, 1)

	// Act
	core.PostTaskAndReplyWithResult(
		workQueue,
		func(ctx context.Context) (int, error) {
			return 42, nil
		},
		func(ctx context.Context, result int, err error) {
			got <- resultPair{result, err}
		},
		replyQueue,
	)

	// Assert
	select {
	case pair := <-got:
		if pair.value != 42 {
			t.Errorf("reply value = %d, want 42", pair.value)
		}
		if pair.err != nil {
			t.Errorf("reply err = %v, want nil", pair.err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("reply never received the result")
	}
}

// TestPostTaskAndReplyWithResult_PropagatesError verifies error hand-off
// Given: A task returning an error
// When: The reply runs
// Then: It receives that error unchanged
func TestPostTaskAndReplyWithResult_PropagatesError(t *testing.T) {
	// Arrange
	pool := dispatch.NewWorkerPool("err-pool", 2)
	pool.Start(context.Background())
	defer pool.Stop()

	workQueue := core.NewSerialQueue(pool, "err-work", core.PriorityDefault)
	replyQueue := core.NewSerialQueue(pool, "err-replies", core.PriorityDefault)

	wantErr := errors.New("fetch failed")
	got := make(chan error, 1)

	// Act
	core.PostTaskAndReplyWithResult(
		workQueue,
		func(ctx context.Context) (string, error) {
			return "", wantErr
		},
		func(ctx context.Context, result string, err error) {
			got <- err
		},
		replyQueue,
	)

	// Assert
	select {
	case err := <-got:
		if !errors.Is(err, wantErr) {
			t.Errorf("reply err = %v, want %v", err, wantErr)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("reply never ran")
	}
}

// TestPostTaskAndReplyWithResultAndTraits verifies per-leg traits
// Given: A background-class task with an interactive-class reply
// When: The pair runs
// Then: Both legs execute and the reply sees the task's result
func TestPostTaskAndReplyWithResultAndTraits(t *testing.T) {
	// Arrange
	pool := dispatch.NewWorkerPool("traits-pool", 2)
	pool.Start(context.Background())
	defer pool.Stop()

	workQueue := core.NewConcurrentQueue(pool, "traits-work", core.PriorityBackground)
	replyQueue := core.NewSerialQueue(pool, "traits-replies", core.PriorityInteractive)

	got := make(chan []byte, 1)

	// Act
	core.PostTaskAndReplyWithResultAndTraits(
		workQueue,
		func(ctx context.Context) ([]byte, error) {
			return []byte("payload"), nil
		},
		core.TraitsWithPriority(core.PriorityBackground),
		func(ctx context.Context, result []byte, err error) {
			got <- result
		},
		core.TraitsWithPriority(core.PriorityInteractive),
		replyQueue,
	)

	// Assert
	select {
	case payload := <-got:
		if string(payload) != "payload" {
			t.Errorf("reply payload = %q, want %q", payload, "payload")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("reply never ran")
	}
}
