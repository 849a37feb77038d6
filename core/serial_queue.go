package core

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// SerialQueue is an execution context with serial discipline: tasks begin
// strictly in admission order and task n+1 never starts before task n has
// fully finished, success or panic. It owns no goroutine of its own; it
// contributes at most one ready task at a time to the shared pool and
// re-posts itself after each task, yielding to the scheduler between tasks.
//
// Resources owned by a serial queue therefore never need a lock: only one
// task touches them at a time, in a deterministic order.
type SerialQueue struct {
	threadPool ThreadPool
	pending    *FIFOTaskQueue
	priority   TaskPriority

	mu        sync.Mutex
	isRunning bool

	activeRunners int32 // atomic guard for the single-runner invariant
	closed        atomic.Bool

	name    string
	history executionHistory
}

// NewSerialQueue creates a serial queue backed by threadPool. The priority
// class only biases when the queue's head task is picked by an idle worker;
// it never changes ordering within the queue.
func NewSerialQueue(threadPool ThreadPool, name string, priority TaskPriority) *SerialQueue {
	if threadPool == nil {
		panic("SerialQueue: threadPool must not be nil")
	}
	return &SerialQueue{
		threadPool: threadPool,
		pending:    NewFIFOTaskQueue(),
		priority:   priority,
		name:       name,
		history:    newExecutionHistory(defaultTaskHistoryCapacity),
	}
}

// Name returns the queue label.
func (q *SerialQueue) Name() string { return q.name }

// Priority returns the queue's scheduling class.
func (q *SerialQueue) Priority() TaskPriority { return q.priority }

// PendingTaskCount returns the number of admitted, not-yet-started tasks.
func (q *SerialQueue) PendingTaskCount() int { return q.pending.Len() }

// RunningTaskCount returns 0 or 1.
func (q *SerialQueue) RunningTaskCount() int {
	return int(atomic.LoadInt32(&q.activeRunners))
}

// IsClosed returns true if the queue has been shut down.
func (q *SerialQueue) IsClosed() bool { return q.closed.Load() }

// Stats returns current observability data for this queue.
func (q *SerialQueue) Stats() QueueStats {
	stats := QueueStats{
		Name:       q.name,
		Discipline: "serial",
		Priority:   q.priority,
		Pending:    q.PendingTaskCount(),
		Running:    q.RunningTaskCount(),
		Closed:     q.IsClosed(),
	}
	if last, ok := q.history.Last(); ok {
		stats.LastTaskName = last.Name
		stats.LastTaskAt = last.FinishedAt
	}
	return stats
}

// RecentTasks returns completed task execution records in newest-first order.
func (q *SerialQueue) RecentTasks(limit int) []TaskExecutionRecord {
	return q.history.Recent(limit)
}

// PostTask admits task with the queue's priority class and returns without
// waiting for it to run.
func (q *SerialQueue) PostTask(task Task) {
	q.PostTaskWithTraits(task, TraitsWithPriority(q.priority))
}

// PostTaskWithTraits admits task with explicit traits.
func (q *SerialQueue) PostTaskWithTraits(task Task, traits TaskTraits) {
	q.postNamed("", task, traits)
}

// PostTaskNamed admits task with a caller-provided display name.
func (q *SerialQueue) PostTaskNamed(name string, task Task) {
	q.postNamed(name, task, TraitsWithPriority(q.priority))
}

func (q *SerialQueue) postNamed(name string, task Task, traits TaskTraits) {
	if q.closed.Load() {
		q.reportRejected("shutdown")
		return
	}
	wrapped := wrapObservedTask(task, name, traits, q.name, "serial", q.recordExecution)
	q.pending.Push(wrapped, traits)
	q.emitQueueDepth()
	q.scheduleRunLoop(traits)
}

// recordExecution stores the record and forwards the duration to the pool's
// metrics sink.
func (q *SerialQueue) recordExecution(record TaskExecutionRecord) {
	q.history.Add(record)
	if sp, ok := q.threadPool.(schedulerProvider); ok {
		if metrics := sp.GetScheduler().GetMetrics(); metrics != nil {
			metrics.RecordTaskDuration(q.name, record.Priority, record.Duration)
		}
	}
}

func (q *SerialQueue) emitQueueDepth() {
	if sp, ok := q.threadPool.(schedulerProvider); ok {
		if metrics := sp.GetScheduler().GetMetrics(); metrics != nil {
			metrics.RecordQueueDepth(q.name, q.pending.Len())
		}
	}
}

// PostDelayedTask admits task after delay.
func (q *SerialQueue) PostDelayedTask(task Task, delay time.Duration) {
	q.PostDelayedTaskWithTraits(task, delay, TraitsWithPriority(q.priority))
}

// PostDelayedTaskWithTraits admits task after delay with explicit traits.
func (q *SerialQueue) PostDelayedTaskWithTraits(task Task, delay time.Duration, traits TaskTraits) {
	if q.closed.Load() {
		return
	}
	q.threadPool.PostDelayedInternal(task, delay, traits, q)
}

// PostTaskAndWait admits task and blocks the caller until it has finished,
// success or panic. Returns ErrWaitOnSelf when called from a task currently
// running on this queue: the admitted task could never start while the
// caller occupies the queue. Cross-queue waits are safe.
func (q *SerialQueue) PostTaskAndWait(ctx context.Context, task Task) error {
	if q.closed.Load() {
		return ErrQueueClosed
	}
	if current, ok := GetCurrentTaskRunner(ctx).(*SerialQueue); ok && current == q {
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

// PostRepeatingTask admits a task that repeats at a fixed interval until the
// handle is stopped or the queue is shut down.
func (q *SerialQueue) PostRepeatingTask(task Task, interval time.Duration) RepeatingTaskHandle {
	return startRepeatingTask(q, task, 0, interval, TraitsWithPriority(q.priority))
}

// PostRepeatingTaskWithInitialDelay first runs the task after initialDelay,
// then repeats every interval.
func (q *SerialQueue) PostRepeatingTaskWithInitialDelay(
	task Task,
	initialDelay, interval time.Duration,
	traits TaskTraits,
) RepeatingTaskHandle {
	return startRepeatingTask(q, task, initialDelay, interval, traits)
}

// PostTaskAndReply executes task on this queue, then posts reply to
// replyQueue. If task panics, reply does not run.
func (q *SerialQueue) PostTaskAndReply(task Task, reply Task, replyQueue TaskRunner) {
	postTaskAndReplyInternal(q, task, reply, replyQueue, TraitsWithPriority(q.priority))
}

// WaitIdle blocks until all tasks admitted before the call have completed.
// Tasks admitted afterwards are not waited for.
func (q *SerialQueue) WaitIdle(ctx context.Context) error {
	if q.IsClosed() {
		return ErrQueueClosed
	}

	done := make(chan struct{})
	q.PostTask(func(ctx context.Context) {
		close(done)
	})

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// FlushAsync runs callback on this queue once every task admitted before the
// call has completed. Non-blocking alternative to WaitIdle.
func (q *SerialQueue) FlushAsync(callback func()) {
	if callback == nil {
		return
	}
	q.PostTask(func(ctx context.Context) {
		callback()
	})
}

// Shutdown stops admission and drops pending tasks. The currently running
// task, if any, finishes normally.
func (q *SerialQueue) Shutdown() {
	q.closed.Store(true)

	// Clear in place: runLoop reads q.pending without the queue mutex, so
	// the pointer must stay stable for the queue's lifetime.
	q.pending.Clear()

	q.mu.Lock()
	q.isRunning = false
	q.mu.Unlock()
}

// scheduleRunLoop posts the run loop to the pool unless it is already
// contributed as a ready task.
func (q *SerialQueue) scheduleRunLoop(traits TaskTraits) {
	q.mu.Lock()
	if !q.isRunning {
		q.isRunning = true
		q.mu.Unlock()
		if !q.threadPool.PostInternal(q.runLoop, traits) {
			q.mu.Lock()
			q.isRunning = false
			q.mu.Unlock()
		}
	} else {
		q.mu.Unlock()
	}
}

// runLoop executes exactly one task, then re-posts itself if more are
// pending. Yielding between tasks keeps one long serial queue from
// monopolizing a worker.
func (q *SerialQueue) runLoop(ctx context.Context) {
	// Invariant: strictly one run loop at a time.
	if n := atomic.AddInt32(&q.activeRunners, 1); n > 1 {
		panic(fmt.Sprintf("SerialQueue %q: concurrent run loop detected (count=%d)", q.name, n))
	}
	defer atomic.AddInt32(&q.activeRunners, -1)

	runCtx := withTaskRunner(ctx, q)

	item, ok := q.pending.Pop()
	if ok {
		q.emitQueueDepth()
		q.runOne(runCtx, item)
	}

	q.mu.Lock()
	if q.pending.IsEmpty() {
		q.isRunning = false
		q.mu.Unlock()
		return
	}
	q.mu.Unlock()

	nextTraits, _ := q.pending.PeekTraits()
	if !q.threadPool.PostInternal(q.runLoop, nextTraits) {
		q.mu.Lock()
		q.isRunning = false
		q.mu.Unlock()
	}
}

// runOne executes a single task with panic recovery. A failing task is
// reported to the pool's panic handler and never blocks the next task.
func (q *SerialQueue) runOne(ctx context.Context, item TaskItem) {
	defer func() {
		if rec := recover(); rec != nil {
			q.reportPanic(ctx, rec, debug.Stack())
		}
	}()
	item.Task(ctx)
}

func (q *SerialQueue) reportPanic(ctx context.Context, panicInfo any, stack []byte) {
	if sp, ok := q.threadPool.(schedulerProvider); ok {
		scheduler := sp.GetScheduler()
		if handler := scheduler.GetPanicHandler(); handler != nil {
			handler.HandlePanic(ctx, q.name, -1, panicInfo, stack)
		}
		if metrics := scheduler.GetMetrics(); metrics != nil {
			metrics.RecordTaskPanic(q.name, panicInfo)
		}
	}
}

func (q *SerialQueue) reportRejected(reason string) {
	if sp, ok := q.threadPool.(schedulerProvider); ok {
		scheduler := sp.GetScheduler()
		if metrics := scheduler.GetMetrics(); metrics != nil {
			metrics.RecordTaskRejected(q.name, reason)
		}
	}
}

// schedulerProvider is satisfied by the worker pool, giving queues access to
// the shared panic handler and metrics sink.
type schedulerProvider interface {
	GetScheduler() *Scheduler
}
