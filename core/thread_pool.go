package core

import "time"

// =============================================================================
// ThreadPool: the execution backend queues submit ready tasks to
// =============================================================================

// ThreadPool is implemented by the worker pool in the root package. Queues
// never spawn goroutines themselves; they hand ready tasks to the pool and
// the pool's scheduler matches them to idle workers.
type ThreadPool interface {
	// PostInternal admits a ready task to the pool's scheduler. Returns
	// false when the scheduler is shutting down and the task was rejected;
	// callers holding completion state (join counts, wait groups) must
	// release it on rejection.
	PostInternal(task Task, traits TaskTraits) bool

	// PostDelayedInternal schedules task to be re-posted to target after delay.
	PostDelayedInternal(task Task, delay time.Duration, traits TaskTraits, target TaskRunner)

	// WorkerCount returns the pool's worker budget.
	WorkerCount() int
}
