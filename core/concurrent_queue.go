package core

import (
	"context"
	"runtime/debug"
	"sync/atomic"
	"time"
)

// ConcurrentQueue is an execution context with concurrent discipline:
// admission is FIFO, but the scheduler may run any number of its tasks
// simultaneously, bounded only by the pool's worker budget. Completion order
// is unspecified and must not be relied on.
//
// Every admitted task goes straight into the shared ready list stamped with
// the queue's priority class, so a concurrent queue contributes as many
// ready tasks as it has pending.
type ConcurrentQueue struct {
	threadPool ThreadPool
	priority   TaskPriority

	runningCount atomic.Int32
	inflight     *JoinGroup // admitted tasks not yet finished
	closed       atomic.Bool

	name    string
	history executionHistory
}

// NewConcurrentQueue creates a concurrent queue backed by threadPool.
func NewConcurrentQueue(threadPool ThreadPool, name string, priority TaskPriority) *ConcurrentQueue {
	if threadPool == nil {
		panic("ConcurrentQueue: threadPool must not be nil")
	}
	return &ConcurrentQueue{
		threadPool: threadPool,
		priority:   priority,
		inflight:   NewJoinGroup(),
		name:       name,
		history:    newExecutionHistory(defaultTaskHistoryCapacity),
	}
}

// Name returns the queue label.
func (q *ConcurrentQueue) Name() string { return q.name }

// Priority returns the queue's scheduling class.
func (q *ConcurrentQueue) Priority() TaskPriority { return q.priority }

// RunningTaskCount returns the number of currently executing tasks.
func (q *ConcurrentQueue) RunningTaskCount() int {
	return int(q.runningCount.Load())
}

// PendingTaskCount returns the number of admitted, not-yet-started tasks.
func (q *ConcurrentQueue) PendingTaskCount() int {
	pending := q.inflight.Outstanding() - q.RunningTaskCount()
	if pending < 0 {
		return 0
	}
	return pending
}

// IsClosed returns true if the queue has been shut down.
func (q *ConcurrentQueue) IsClosed() bool { return q.closed.Load() }

// Stats returns current observability data for this queue.
func (q *ConcurrentQueue) Stats() QueueStats {
	stats := QueueStats{
		Name:       q.name,
		Discipline: "concurrent",
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
func (q *ConcurrentQueue) RecentTasks(limit int) []TaskExecutionRecord {
	return q.history.Recent(limit)
}

// PostTask admits task with the queue's priority class and returns without
// waiting for it to run.
func (q *ConcurrentQueue) PostTask(task Task) {
	q.PostTaskWithTraits(task, TraitsWithPriority(q.priority))
}

// PostTaskWithTraits admits task with explicit traits.
func (q *ConcurrentQueue) PostTaskWithTraits(task Task, traits TaskTraits) {
	q.postNamed("", task, traits)
}

// PostTaskNamed admits task with a caller-provided display name.
func (q *ConcurrentQueue) PostTaskNamed(name string, task Task) {
	q.postNamed(name, task, TraitsWithPriority(q.priority))
}

func (q *ConcurrentQueue) postNamed(name string, task Task, traits TaskTraits) {
	if q.closed.Load() {
		q.reportRejected("shutdown")
		return
	}
	observed := wrapObservedTask(task, name, traits, q.name, "concurrent", q.recordExecution)
	q.inflight.Enter()
	if !q.threadPool.PostInternal(q.wrap(observed), traits) {
		// Pool rejected the task (stopping); undo the inflight count so
		// WaitIdle and Notify are not stranded.
		q.inflight.Leave()
	}
}

// PostDelayedTask admits task after delay.
func (q *ConcurrentQueue) PostDelayedTask(task Task, delay time.Duration) {
	q.PostDelayedTaskWithTraits(task, delay, TraitsWithPriority(q.priority))
}

// PostDelayedTaskWithTraits admits task after delay with explicit traits.
func (q *ConcurrentQueue) PostDelayedTaskWithTraits(task Task, delay time.Duration, traits TaskTraits) {
	if q.closed.Load() {
		return
	}
	q.threadPool.PostDelayedInternal(task, delay, traits, q)
}

// PostTaskAndWait admits task and blocks the caller until it has finished.
// Re-entrant waits from a task running on this queue are safe under
// concurrent discipline (no self-deadlock), though they do occupy a pool
// worker while blocked.
func (q *ConcurrentQueue) PostTaskAndWait(ctx context.Context, task Task) error {
	if q.closed.Load() {
		return ErrQueueClosed
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
func (q *ConcurrentQueue) PostRepeatingTask(task Task, interval time.Duration) RepeatingTaskHandle {
	return startRepeatingTask(q, task, 0, interval, TraitsWithPriority(q.priority))
}

// PostTaskAndReply executes task on this queue, then posts reply to
// replyQueue. If task panics, reply does not run.
func (q *ConcurrentQueue) PostTaskAndReply(task Task, reply Task, replyQueue TaskRunner) {
	postTaskAndReplyInternal(q, task, reply, replyQueue, TraitsWithPriority(q.priority))
}

// WaitIdle blocks until every admitted task has finished, or ctx is
// cancelled. Tasks admitted while waiting extend the wait.
func (q *ConcurrentQueue) WaitIdle(ctx context.Context) error {
	if q.IsClosed() {
		return ErrQueueClosed
	}
	return q.inflight.Wait(ctx)
}

// FlushAsync runs callback on this queue once every currently admitted task
// has finished. Non-blocking alternative to WaitIdle.
func (q *ConcurrentQueue) FlushAsync(callback func()) {
	if callback == nil {
		return
	}
	go func() {
		if q.inflight.Wait(context.Background()) == nil && !q.IsClosed() {
			q.PostTask(func(ctx context.Context) {
				callback()
			})
		}
	}()
}

// Shutdown stops admission. Tasks already admitted to the shared ready list
// still run to completion; use WaitIdle first for a drained stop.
func (q *ConcurrentQueue) Shutdown() {
	q.closed.Store(true)
}

// wrap adds running-count accounting, context injection, and panic recovery
// around a task before it enters the shared ready list.
func (q *ConcurrentQueue) wrap(task Task) Task {
	return func(ctx context.Context) {
		q.runningCount.Add(1)
		defer func() {
			q.runningCount.Add(-1)
			q.inflight.Leave()
		}()

		runCtx := withTaskRunner(ctx, q)

		defer func() {
			if rec := recover(); rec != nil {
				q.reportPanic(runCtx, rec, debug.Stack())
			}
		}()
		task(runCtx)
	}
}

func (q *ConcurrentQueue) reportPanic(ctx context.Context, panicInfo any, stack []byte) {
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

// recordExecution stores the record and forwards the duration to the pool's
// metrics sink.
func (q *ConcurrentQueue) recordExecution(record TaskExecutionRecord) {
	q.history.Add(record)
	if sp, ok := q.threadPool.(schedulerProvider); ok {
		if metrics := sp.GetScheduler().GetMetrics(); metrics != nil {
			metrics.RecordTaskDuration(q.name, record.Priority, record.Duration)
		}
	}
}

func (q *ConcurrentQueue) reportRejected(reason string) {
	if sp, ok := q.threadPool.(schedulerProvider); ok {
		if metrics := sp.GetScheduler().GetMetrics(); metrics != nil {
			metrics.RecordTaskRejected(q.name, reason)
		}
	}
}
