package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mivens/go-dispatch/core"
)

var (
	// ErrDuplicateQueue is returned when a queue label is already registered.
	ErrDuplicateQueue = errors.New("queue label already registered")

	// ErrUnknownQueue is returned when a label resolves to no queue.
	ErrUnknownQueue = errors.New("no queue registered with that label")
)

// MainQueueLabel is the label of the well-known UI/main context.
const MainQueueLabel = "main"

// Discipline selects the execution semantics of a created queue.
type Discipline string

const (
	// Serial: at most one task runs at a time, strictly in admission order.
	Serial Discipline = "serial"

	// Concurrent: any number of tasks may run simultaneously, bounded only
	// by the pool; completion order unspecified.
	Concurrent Discipline = "concurrent"
)

// Queue is the surface every execution context exposes to callers.
type Queue interface {
	core.TaskRunner

	Name() string
	PostTaskAndWait(ctx context.Context, task core.Task) error
	PostTaskAndReply(task core.Task, reply core.Task, replyQueue core.TaskRunner)
	PostRepeatingTask(task core.Task, interval time.Duration) core.RepeatingTaskHandle
	WaitIdle(ctx context.Context) error
	FlushAsync(callback func())
	Shutdown()
	IsClosed() bool
	Stats() core.QueueStats
	RecentTasks(limit int) []core.TaskExecutionRecord
}

// Compile-time conformance of the three queue kinds.
var (
	_ Queue = (*core.SerialQueue)(nil)
	_ Queue = (*core.ConcurrentQueue)(nil)
	_ Queue = (*core.MainQueue)(nil)
)

// Dispatcher owns a worker pool, the well-known contexts, and a registry of
// caller-created queues. It is an explicitly constructed, passed-down handle:
// nothing in the library depends on a hidden process-wide instance, though
// package-level singleton helpers exist for convenience.
//
// Well-known contexts:
//   - Main(): the single-goroutine UI/main queue (serial, thread-affine).
//   - Global(priority): one pre-registered concurrent queue per priority class.
type Dispatcher struct {
	pool *WorkerPool
	main *core.MainQueue

	globals map[core.TaskPriority]*core.ConcurrentQueue

	mu     sync.RWMutex
	queues map[string]Queue

	logger core.Logger
}

// NewDispatcher creates a dispatcher with a started pool of the given width
// and default handlers.
func NewDispatcher(workers int) *Dispatcher {
	return NewDispatcherWithConfig(workers, core.DefaultSchedulerConfig())
}

// NewDispatcherWithConfig creates a dispatcher with explicit handlers.
func NewDispatcherWithConfig(workers int, config *core.SchedulerConfig) *Dispatcher {
	if config == nil {
		config = core.DefaultSchedulerConfig()
	}

	pool := NewWorkerPoolWithConfig("dispatch-pool", workers, config)
	pool.Start(context.Background())

	d := &Dispatcher{
		pool:    pool,
		main:    core.NewMainQueue(MainQueueLabel),
		globals: make(map[core.TaskPriority]*core.ConcurrentQueue, len(core.Priorities())),
		queues:  make(map[string]Queue),
		logger:  config.Logger,
	}
	if d.logger == nil {
		d.logger = core.NewSimpleLogger()
	}
	d.main.SetPanicHandler(config.PanicHandler)

	for _, p := range core.Priorities() {
		label := fmt.Sprintf("global-%s", p)
		q := core.NewConcurrentQueue(pool, label, p)
		d.globals[p] = q
		d.queues[label] = q
	}
	d.queues[MainQueueLabel] = d.main

	return d
}

// Pool returns the shared worker pool.
func (d *Dispatcher) Pool() *WorkerPool { return d.pool }

// Main returns the well-known UI/main queue.
func (d *Dispatcher) Main() *core.MainQueue { return d.main }

// Global returns the pre-registered concurrent queue for the given priority
// class. Unknown classes fall back to the default class.
func (d *Dispatcher) Global(priority core.TaskPriority) *core.ConcurrentQueue {
	if q, ok := d.globals[priority]; ok {
		return q
	}
	return d.globals[core.PriorityDefault]
}

// NewSerialQueue creates and registers a serial queue. Labels are unique per
// dispatcher.
func (d *Dispatcher) NewSerialQueue(label string, priority core.TaskPriority) (*core.SerialQueue, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.queues[label]; exists {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateQueue, label)
	}

	q := core.NewSerialQueue(d.pool, label, priority)
	d.queues[label] = q
	d.logger.Debug("queue created",
		core.F("label", label), core.F("discipline", "serial"), core.F("priority", priority))
	return q, nil
}

// NewConcurrentQueue creates and registers a concurrent queue.
func (d *Dispatcher) NewConcurrentQueue(label string, priority core.TaskPriority) (*core.ConcurrentQueue, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.queues[label]; exists {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateQueue, label)
	}

	q := core.NewConcurrentQueue(d.pool, label, priority)
	d.queues[label] = q
	d.logger.Debug("queue created",
		core.F("label", label), core.F("discipline", "concurrent"), core.F("priority", priority))
	return q, nil
}

// NewQueue creates and registers a queue of the given discipline.
func (d *Dispatcher) NewQueue(label string, discipline Discipline, priority core.TaskPriority) (Queue, error) {
	switch discipline {
	case Serial:
		return d.NewSerialQueue(label, priority)
	case Concurrent:
		return d.NewConcurrentQueue(label, priority)
	default:
		return nil, fmt.Errorf("unknown discipline %q", discipline)
	}
}

// Queue looks a registered queue up by label.
func (d *Dispatcher) Queue(label string) (Queue, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	q, ok := d.queues[label]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownQueue, label)
	}
	return q, nil
}

// Queues returns a snapshot of all registered queues.
func (d *Dispatcher) Queues() []Queue {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]Queue, 0, len(d.queues))
	for _, q := range d.queues {
		out = append(out, q)
	}
	return out
}

// ParallelFor partitions [0, n) across the pool and blocks until every chunk
// has completed. body must tolerate concurrent execution on disjoint indices.
func (d *Dispatcher) ParallelFor(n int, body func(i int)) {
	core.ParallelFor(d.pool, n, body)
}

// Shutdown stops every registered queue, then the pool. Running tasks finish;
// pending ones are dropped.
func (d *Dispatcher) Shutdown() {
	d.mu.RLock()
	for _, q := range d.queues {
		q.Shutdown()
	}
	d.mu.RUnlock()

	d.main.Stop()
	d.pool.Stop()
}

// ShutdownGraceful drains queued work before stopping the pool, or errors
// after timeout.
func (d *Dispatcher) ShutdownGraceful(timeout time.Duration) error {
	err := d.pool.StopGraceful(timeout)

	d.mu.RLock()
	for _, q := range d.queues {
		q.Shutdown()
	}
	d.mu.RUnlock()

	d.main.Stop()
	return err
}

// =============================================================================
// Global Dispatcher Helper (Singleton)
// =============================================================================

var (
	globalDispatcher *Dispatcher
	globalMu         sync.Mutex
)

// InitGlobal initializes the process-wide dispatcher with the given worker
// count. Repeated calls are no-ops.
func InitGlobal(workers int) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalDispatcher != nil {
		return
	}
	globalDispatcher = NewDispatcher(workers)
}

// Global returns the process-wide dispatcher. It panics if InitGlobal has
// not been called.
func Global() *Dispatcher {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalDispatcher == nil {
		panic("dispatch: global dispatcher not initialized, call InitGlobal() first")
	}
	return globalDispatcher
}

// ShutdownGlobal stops the process-wide dispatcher.
func ShutdownGlobal() {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalDispatcher != nil {
		globalDispatcher.Shutdown()
		globalDispatcher = nil
	}
}

// GlobalMain returns the global dispatcher's main queue.
func GlobalMain() *core.MainQueue {
	return Global().Main()
}

// GlobalQueue returns the global dispatcher's concurrent queue for the given
// priority class.
func GlobalQueue(priority core.TaskPriority) *core.ConcurrentQueue {
	return Global().Global(priority)
}
