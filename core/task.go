package core

import (
	"context"
	"time"
)

// Task is the unit of work (Closure)
type Task func(ctx context.Context)

// =============================================================================
// TaskTraits: Define task attributes (priority class, category)
// =============================================================================

// TaskPriority is the scheduling-preference class attached to a task.
// It affects the order in which ready tasks are handed to idle workers,
// never correctness: a lower class only waits longer, it is never skipped.
type TaskPriority int

const (
	// PriorityBackground: lowest class, maintenance work the user never sees.
	PriorityBackground TaskPriority = iota

	// PriorityUtility: long-running work with progress the user may observe.
	PriorityUtility

	// PriorityDefault: the class used when the caller expresses no preference.
	PriorityDefault

	// PriorityInitiated: work the user started and is waiting on.
	PriorityInitiated

	// PriorityInteractive: highest class, work gating the UI itself.
	PriorityInteractive
)

// String returns the canonical lower-case label for the priority class.
func (p TaskPriority) String() string {
	switch p {
	case PriorityBackground:
		return "background"
	case PriorityUtility:
		return "utility"
	case PriorityDefault:
		return "default"
	case PriorityInitiated:
		return "initiated"
	case PriorityInteractive:
		return "interactive"
	default:
		return "unknown"
	}
}

// Priorities lists all classes from lowest to highest.
func Priorities() []TaskPriority {
	return []TaskPriority{
		PriorityBackground,
		PriorityUtility,
		PriorityDefault,
		PriorityInitiated,
		PriorityInteractive,
	}
}

type TaskTraits struct {
	Priority TaskPriority
	Category string
}

func DefaultTaskTraits() TaskTraits {
	return TaskTraits{Priority: PriorityDefault}
}

func TraitsWithPriority(p TaskPriority) TaskTraits {
	return TaskTraits{Priority: p}
}

// =============================================================================
// TaskRunner: Task submission interface shared by all queue kinds
// =============================================================================

// TaskRunner is implemented by every execution context (serial queue,
// concurrent queue, main queue). Admission is always FIFO per runner;
// the runner's discipline governs execution concurrency, not admission order.
type TaskRunner interface {
	PostTask(task Task)
	PostTaskWithTraits(task Task, traits TaskTraits)
	PostDelayedTask(task Task, delay time.Duration)
	PostDelayedTaskWithTraits(task Task, delay time.Duration, traits TaskTraits)
}

// =============================================================================
// Context Helper
// =============================================================================

type taskRunnerKeyType struct{}

var taskRunnerKey taskRunnerKeyType

// GetCurrentTaskRunner returns the runner executing the current task, or nil
// when the context does not originate from a queue-run task. Used by
// PostTaskAndWait to detect self-deadlocking waits on serial queues.
func GetCurrentTaskRunner(ctx context.Context) TaskRunner {
	if v := ctx.Value(taskRunnerKey); v != nil {
		return v.(TaskRunner)
	}
	return nil
}

func withTaskRunner(ctx context.Context, r TaskRunner) context.Context {
	return context.WithValue(ctx, taskRunnerKey, r)
}
