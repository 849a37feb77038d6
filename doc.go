// Package dispatch provides named execution contexts ("queues") with serial
// or concurrent semantics on top of a shared worker pool, plus the
// coordination primitives that make task-based designs composable: blocking
// and non-blocking submission, a join group that fires a one-shot
// continuation when a dynamic set of tasks drains, and a blocking parallel
// range helper.
//
// # Quick Start
//
// Construct a dispatcher (or initialize the process-wide one) at startup:
//
//	d := dispatch.NewDispatcher(4) // 4 workers
//	defer d.Shutdown()
//
// Create a serial queue and post tasks to it:
//
//	q, _ := d.NewSerialQueue("state", dispatch.PriorityDefault)
//	q.PostTask(func(ctx context.Context) {
//		// Runs strictly after every previously posted task finished.
//	})
//
// # Key Concepts
//
// Queue: an ordered admission point. Admission is always FIFO; the queue's
// discipline governs execution concurrency. A SerialQueue runs one task at a
// time in admission order, so resources owned by it need no locks. A
// ConcurrentQueue lets the pool run its tasks simultaneously with no
// completion-order guarantee. The MainQueue is a serial queue with thread
// affinity: one dedicated goroutine, the safe publication point for worker
// results (the UI-thread pattern).
//
// Priority class: a per-queue scheduling preference (background, utility,
// default, initiated, interactive). Idle workers pick higher classes first,
// ties resolved by admission order. Priority never affects correctness and a
// running task is never preempted.
//
// JoinGroup: callers pair Enter with Leave around outstanding work; the
// continuation registered with Notify is scheduled on its target queue
// exactly once, when the count reaches zero.
//
// Submission is unbounded: there is no queue-depth limit or rejection policy
// under load, excess tasks simply wait. Tasks run to completion; there is no
// cancellation or preemption of admitted work. Task panics are recovered at
// the execution boundary, reported to the configured PanicHandler, and never
// affect other tasks.
//
// # Example
//
//	d := dispatch.NewDispatcher(4)
//	defer d.Shutdown()
//
//	group := dispatch.NewJoinGroup()
//	results := make([]string, 3)
//	for i := range results {
//		group.Enter()
//		i := i
//		d.Global(dispatch.PriorityInitiated).PostTask(func(ctx context.Context) {
//			defer group.Leave()
//			results[i] = fetch(i) // disjoint writes, caller-synchronized
//		})
//	}
//	group.Notify(d.Main(), func(ctx context.Context) {
//		render(results) // observes the main queue's serialization
//	})
package dispatch
