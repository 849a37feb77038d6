package core

import "errors"

var (
	// ErrQueueClosed is returned when a blocking operation targets a queue
	// that has been shut down.
	ErrQueueClosed = errors.New("queue is closed")

	// ErrWaitOnSelf is returned when PostTaskAndWait is called from a task
	// currently running on the same serial queue. Waiting would deadlock:
	// the queued task can never start while the caller occupies the queue.
	ErrWaitOnSelf = errors.New("PostTaskAndWait called from a task on the same serial queue")
)
