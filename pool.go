package dispatch

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/mivens/go-dispatch/core"
)

// WorkerPool manages a bounded set of worker goroutines shared by every
// queue wired to it. Workers pull ready tasks from the scheduler's
// priority-ordered ready list; a running task is never preempted.
type WorkerPool struct {
	id        string
	workers   int
	scheduler *core.Scheduler
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	running   bool
	runningMu sync.RWMutex
}

// NewWorkerPool creates a pool with default handlers. The pool does not run
// until Start is called.
func NewWorkerPool(id string, workers int) *WorkerPool {
	return NewWorkerPoolWithConfig(id, workers, core.DefaultSchedulerConfig())
}

// NewWorkerPoolWithConfig creates a pool with explicit handlers (panic sink,
// metrics, rejection handler, logger).
func NewWorkerPoolWithConfig(id string, workers int, config *core.SchedulerConfig) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	return &WorkerPool{
		id:        id,
		workers:   workers,
		scheduler: core.NewSchedulerWithConfig(workers, config),
	}
}

// Start launches the worker goroutines. Starting a running pool is a no-op.
func (p *WorkerPool) Start(ctx context.Context) {
	p.runningMu.Lock()
	defer p.runningMu.Unlock()

	if p.running {
		return
	}

	p.ctx, p.cancel = context.WithCancel(ctx)
	p.running = true

	p.scheduler.GetLogger().Info("worker pool started",
		core.F("pool", p.id), core.F("workers", p.workers))

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.workerLoop(i, p.ctx)
	}
}

// Stop stops the pool immediately: admission ends, the ready list is
// dropped, and workers exit after their current task.
func (p *WorkerPool) Stop() {
	// Shut the scheduler down even if the pool never started, so delayed
	// tasks and queue references are released.
	p.scheduler.Shutdown()

	p.runningMu.Lock()
	if !p.running {
		p.runningMu.Unlock()
		return
	}
	p.runningMu.Unlock()

	if p.cancel != nil {
		p.cancel()
	}
	p.Join()

	p.runningMu.Lock()
	p.running = false
	p.runningMu.Unlock()

	p.scheduler.GetLogger().Info("worker pool stopped", core.F("pool", p.id))
}

// StopGraceful drains queued work before stopping. Returns an error if the
// timeout elapses first; remaining tasks are then dropped.
func (p *WorkerPool) StopGraceful(timeout time.Duration) error {
	p.runningMu.Lock()
	if !p.running {
		p.runningMu.Unlock()
		return nil
	}
	p.runningMu.Unlock()

	err := p.scheduler.ShutdownGraceful(timeout)

	if p.cancel != nil {
		p.cancel()
	}
	p.Join()

	p.runningMu.Lock()
	p.running = false
	p.runningMu.Unlock()

	if err != nil {
		p.scheduler.GetLogger().Warn("worker pool stopped before draining",
			core.F("pool", p.id), core.F("error", err))
		return err
	}

	p.scheduler.GetLogger().Info("worker pool drained and stopped", core.F("pool", p.id))
	return nil
}

// ID returns the pool identifier.
func (p *WorkerPool) ID() string {
	return p.id
}

// IsRunning reports whether the workers are active.
func (p *WorkerPool) IsRunning() bool {
	p.runningMu.RLock()
	defer p.runningMu.RUnlock()
	return p.running
}

// workerLoop is the main loop for each worker.
func (p *WorkerPool) workerLoop(id int, ctx context.Context) {
	defer p.wg.Done()
	stopCh := ctx.Done()

	for {
		task, ok := p.scheduler.GetWork(stopCh)
		if !ok {
			return
		}

		p.scheduler.OnTaskStart()

		// Queues recover their own task panics; this recovery is the last
		// line of defense so a stray panic never kills a worker.
		func() {
			defer func() {
				p.scheduler.OnTaskEnd()
				if rec := recover(); rec != nil {
					p.scheduler.GetPanicHandler().HandlePanic(ctx, p.id, id, rec, debug.Stack())
				}
			}()
			task(ctx)
		}()
	}
}

// Join waits for all worker goroutines to finish.
func (p *WorkerPool) Join() {
	p.wg.Wait()
}

// WorkerCount returns the pool's thread budget.
func (p *WorkerPool) WorkerCount() int {
	return p.workers
}

func (p *WorkerPool) QueuedTaskCount() int {
	return p.scheduler.QueuedTaskCount()
}

func (p *WorkerPool) ActiveTaskCount() int {
	return p.scheduler.ActiveTaskCount()
}

func (p *WorkerPool) DelayedTaskCount() int {
	return p.scheduler.DelayedTaskCount()
}

// Stats returns current observability data for this pool.
func (p *WorkerPool) Stats() core.PoolStats {
	return core.PoolStats{
		ID:      p.id,
		Workers: p.workers,
		Queued:  p.QueuedTaskCount(),
		Active:  p.ActiveTaskCount(),
		Delayed: p.DelayedTaskCount(),
		Running: p.IsRunning(),
	}
}

// GetScheduler exposes the scheduler for queues and observability adapters.
func (p *WorkerPool) GetScheduler() *core.Scheduler {
	return p.scheduler
}

// PostInternal admits a ready task to the scheduler. Queues call this; most
// callers should post to a queue instead. Returns false if the scheduler
// rejected the task because the pool is stopping.
func (p *WorkerPool) PostInternal(task core.Task, traits core.TaskTraits) bool {
	return p.scheduler.PostInternal(task, traits)
}

// PostDelayedInternal schedules a delayed re-post of task to target.
func (p *WorkerPool) PostDelayedInternal(task core.Task, delay time.Duration, traits core.TaskTraits, target core.TaskRunner) {
	p.scheduler.PostDelayedInternal(task, delay, traits, target)
}

// ParallelFor partitions [0, n) across this pool's workers and blocks until
// every chunk has completed. See core.ParallelFor.
func (p *WorkerPool) ParallelFor(n int, body func(i int)) {
	core.ParallelFor(p, n, body)
}
