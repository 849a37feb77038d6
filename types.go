package dispatch

import "github.com/mivens/go-dispatch/core"

// Re-export commonly used types from the core package so most callers only
// import this package.

// Task is the unit of work (Closure)
type Task = core.Task

// TaskTraits defines task attributes (priority class, category)
type TaskTraits = core.TaskTraits

// TaskPriority is the scheduling-preference class
type TaskPriority = core.TaskPriority

// TaskRunner is the submission interface shared by all queue kinds
type TaskRunner = core.TaskRunner

// SerialQueue runs tasks one at a time in strict admission order
type SerialQueue = core.SerialQueue

// ConcurrentQueue runs tasks simultaneously, bounded only by the pool
type ConcurrentQueue = core.ConcurrentQueue

// MainQueue is the single-goroutine UI/main context
type MainQueue = core.MainQueue

// JoinGroup fires a one-shot continuation when its outstanding count drains
type JoinGroup = core.JoinGroup

// RepeatingTaskHandle controls the lifecycle of a repeating task
type RepeatingTaskHandle = core.RepeatingTaskHandle

// Priority class constants, lowest to highest
const (
	PriorityBackground  TaskPriority = core.PriorityBackground
	PriorityUtility     TaskPriority = core.PriorityUtility
	PriorityDefault     TaskPriority = core.PriorityDefault
	PriorityInitiated   TaskPriority = core.PriorityInitiated
	PriorityInteractive TaskPriority = core.PriorityInteractive
)

// Convenience constructors re-exported from core
var (
	DefaultTaskTraits  = core.DefaultTaskTraits
	TraitsWithPriority = core.TraitsWithPriority
	NewJoinGroup       = core.NewJoinGroup
	ParallelFor        = core.ParallelFor

	// GetCurrentTaskRunner retrieves the queue executing the current task
	GetCurrentTaskRunner = core.GetCurrentTaskRunner
)

// Sentinel errors re-exported from core
var (
	ErrQueueClosed = core.ErrQueueClosed
	ErrWaitOnSelf  = core.ErrWaitOnSelf
)

// NewSerialQueue creates a serial queue on a custom pool. Most callers should
// use Dispatcher.NewSerialQueue, which also registers the label.
func NewSerialQueue(pool *WorkerPool, label string, priority TaskPriority) *SerialQueue {
	return core.NewSerialQueue(pool, label, priority)
}

// NewConcurrentQueue creates a concurrent queue on a custom pool.
func NewConcurrentQueue(pool *WorkerPool, label string, priority TaskPriority) *ConcurrentQueue {
	return core.NewConcurrentQueue(pool, label, priority)
}

// NewMainQueue creates a dedicated single-goroutine queue. The dispatcher
// already owns one; this is for callers wiring their own pools.
func NewMainQueue(label string) *MainQueue {
	return core.NewMainQueue(label)
}
