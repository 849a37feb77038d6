package core

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

const mainQueueBuffer = 100

// MainQueue is the well-known UI/main execution context: a single dedicated
// goroutine draining a FIFO run list. It is serial with thread affinity
// (every task runs on the same goroutine), which is what makes it a safe
// publication point: worker tasks post their results here and the consumer
// reads them without any locking, exactly like an event-loop thread.
//
// Differences from SerialQueue:
//   - SerialQueue: tasks run sequentially but on varying pool workers.
//   - MainQueue: tasks run sequentially AND always on the same goroutine.
type MainQueue struct {
	workQueue chan Task

	ctx    context.Context
	cancel context.CancelFunc

	stopped      chan struct{}
	once         sync.Once
	closed       atomic.Bool
	shutdownChan chan struct{}
	shutdownOnce sync.Once

	panicHandler PanicHandler

	name    string
	history executionHistory
}

// NewMainQueue creates the queue and immediately starts its dedicated
// goroutine.
func NewMainQueue(name string) *MainQueue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &MainQueue{
		workQueue:    make(chan Task, mainQueueBuffer),
		ctx:          ctx,
		cancel:       cancel,
		stopped:      make(chan struct{}),
		shutdownChan: make(chan struct{}),
		panicHandler: &LogPanicHandler{},
		name:         name,
		history:      newExecutionHistory(defaultTaskHistoryCapacity),
	}

	go q.runLoop()

	return q
}

// Name returns the queue label.
func (q *MainQueue) Name() string { return q.name }

// SetPanicHandler replaces the sink task panics are reported to.
func (q *MainQueue) SetPanicHandler(h PanicHandler) {
	if h != nil {
		q.panicHandler = h
	}
}

// PendingTaskCount returns the number of tasks waiting in the run list.
func (q *MainQueue) PendingTaskCount() int { return len(q.workQueue) }

// IsClosed returns true if the queue has been shut down.
func (q *MainQueue) IsClosed() bool { return q.closed.Load() }

// Stats returns current observability data for this queue.
func (q *MainQueue) Stats() QueueStats {
	stats := QueueStats{
		Name:       q.name,
		Discipline: "main",
		Priority:   PriorityInteractive,
		Pending:    q.PendingTaskCount(),
		Closed:     q.IsClosed(),
	}
	if last, ok := q.history.Last(); ok {
		stats.LastTaskName = last.Name
		stats.LastTaskAt = last.FinishedAt
	}
	return stats
}

// RecentTasks returns completed task execution records in newest-first order.
func (q *MainQueue) RecentTasks(limit int) []TaskExecutionRecord {
	return q.history.Recent(limit)
}

// PostTask appends task to the run list and returns immediately.
func (q *MainQueue) PostTask(task Task) {
	q.PostTaskWithTraits(task, TraitsWithPriority(PriorityInteractive))
}

// PostTaskWithTraits appends task to the run list. Priority is recorded for
// observability only: the run list is strictly FIFO.
func (q *MainQueue) PostTaskWithTraits(task Task, traits TaskTraits) {
	if q.closed.Load() {
		return
	}

	wrapped := wrapObservedTask(task, "", traits, q.name, "main", q.history.Add)

	select {
	case <-q.ctx.Done():
		// Queue stopped, drop task.
	case q.workQueue <- wrapped:
	}
}

// PostDelayedTask appends task to the run list after delay.
func (q *MainQueue) PostDelayedTask(task Task, delay time.Duration) {
	q.PostDelayedTaskWithTraits(task, delay, TraitsWithPriority(PriorityInteractive))
}

// PostDelayedTaskWithTraits uses time.AfterFunc rather than the shared delay
// manager, so the main queue works even without a pool.
func (q *MainQueue) PostDelayedTaskWithTraits(task Task, delay time.Duration, traits TaskTraits) {
	if q.closed.Load() {
		return
	}

	select {
	case <-q.ctx.Done():
	default:
		time.AfterFunc(delay, func() {
			q.PostTaskWithTraits(task, traits)
		})
	}
}

// PostTaskAndWait appends task and blocks the caller until it has finished.
// Calling it from a task already running on this queue returns ErrWaitOnSelf
// instead of deadlocking the dedicated goroutine.
func (q *MainQueue) PostTaskAndWait(ctx context.Context, task Task) error {
	if q.closed.Load() {
		return ErrQueueClosed
	}
	if current, ok := GetCurrentTaskRunner(ctx).(*MainQueue); ok && current == q {
		return ErrWaitOnSelf
	}

	done := make(chan struct{})
	q.PostTask(func(taskCtx context.Context) {
		defer close(done)
		task(taskCtx)
	})

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PostRepeatingTask appends a task that repeats at a fixed interval until
// the handle is stopped or the queue is shut down.
func (q *MainQueue) PostRepeatingTask(task Task, interval time.Duration) RepeatingTaskHandle {
	return startRepeatingTask(q, task, 0, interval, TraitsWithPriority(PriorityInteractive))
}

// PostTaskAndReply executes task on this queue, then posts reply to
// replyQueue. If task panics, reply does not run.
func (q *MainQueue) PostTaskAndReply(task Task, reply Task, replyQueue TaskRunner) {
	postTaskAndReplyInternal(q, task, reply, replyQueue, TraitsWithPriority(PriorityInteractive))
}

// WaitIdle blocks until every task appended before the call has completed.
// Implemented with a barrier task: the run list is FIFO, so when the barrier
// runs everything before it has finished.
func (q *MainQueue) WaitIdle(ctx context.Context) error {
	if q.IsClosed() {
		return ErrQueueClosed
	}

	done := make(chan struct{})
	q.PostTask(func(taskCtx context.Context) {
		close(done)
	})

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// FlushAsync runs callback on the dedicated goroutine once every task
// appended before the call has completed.
func (q *MainQueue) FlushAsync(callback func()) {
	if callback == nil {
		return
	}
	q.PostTask(func(ctx context.Context) {
		callback()
	})
}

// Shutdown marks the queue closed and signals WaitShutdown waiters. It does
// not terminate the run loop, so a task may call Shutdown on its own queue;
// call Stop to actually end the goroutine.
func (q *MainQueue) Shutdown() {
	q.shutdownOnce.Do(func() {
		q.closed.Store(true)
		close(q.shutdownChan)
	})
}

// WaitShutdown blocks until Shutdown is called, or ctx is cancelled.
func (q *MainQueue) WaitShutdown(ctx context.Context) error {
	select {
	case <-q.shutdownChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop shuts the queue down and waits for the dedicated goroutine to exit.
// The task in flight, if any, runs to completion.
func (q *MainQueue) Stop() {
	q.once.Do(func() {
		q.Shutdown()
		q.cancel()
		<-q.stopped
	})
}

// runLoop occupies the dedicated goroutine for the queue's whole lifetime.
func (q *MainQueue) runLoop() {
	defer close(q.stopped)

	runCtx := withTaskRunner(q.ctx, q)

	for {
		select {
		case task := <-q.workQueue:
			func() {
				defer func() {
					if rec := recover(); rec != nil {
						q.panicHandler.HandlePanic(runCtx, q.name, -1, rec, debug.Stack())
					}
				}()
				task(runCtx)
			}()

		case <-q.ctx.Done():
			return
		}
	}
}
