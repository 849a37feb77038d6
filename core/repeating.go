package core

import (
	"context"
	"sync/atomic"
	"time"
)

// RepeatingTaskHandle controls the lifecycle of a repeating task.
type RepeatingTaskHandle interface {
	// Stop prevents further executions. The current execution, if any,
	// runs to completion.
	Stop()
	IsStopped() bool
}

type closable interface {
	IsClosed() bool
}

// repeatingTaskHandle re-posts itself through the runner found in the task
// context, so one implementation serves every queue kind. It stops
// automatically when its queue is shut down.
type repeatingTaskHandle struct {
	task     Task
	interval time.Duration
	traits   TaskTraits
	stopped  atomic.Bool
}

func (h *repeatingTaskHandle) Stop() {
	h.stopped.Store(true)
}

func (h *repeatingTaskHandle) IsStopped() bool {
	return h.stopped.Load()
}

func (h *repeatingTaskHandle) createRepeatingTask() Task {
	return func(ctx context.Context) {
		runner := GetCurrentTaskRunner(ctx)

		if c, ok := runner.(closable); ok && c.IsClosed() {
			return
		}
		if h.IsStopped() {
			return
		}

		h.task(ctx)

		if h.IsStopped() || runner == nil {
			return
		}
		if c, ok := runner.(closable); ok && c.IsClosed() {
			return
		}
		runner.PostDelayedTaskWithTraits(h.createRepeatingTask(), h.interval, h.traits)
	}
}

// startRepeatingTask posts the first execution and returns the handle.
func startRepeatingTask(
	r TaskRunner,
	task Task,
	initialDelay, interval time.Duration,
	traits TaskTraits,
) RepeatingTaskHandle {
	handle := &repeatingTaskHandle{
		task:     task,
		interval: interval,
		traits:   traits,
	}

	repeatingTask := handle.createRepeatingTask()

	if initialDelay > 0 {
		r.PostDelayedTaskWithTraits(repeatingTask, initialDelay, traits)
	} else {
		r.PostTaskWithTraits(repeatingTask, traits)
	}

	return handle
}
