package core

import (
	"container/heap"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// =============================================================================
// Ready list: a single priority-ordered heap spanning all queues
// =============================================================================

type readyItem struct {
	TaskItem
	sequence uint64 // admission order, breaks priority ties (earlier first)
	index    int    // for heap
}

type readyHeap []*readyItem

func (h readyHeap) Len() int { return len(h) }

// Less orders by priority class first, then by admission sequence so that
// equal-priority work stays FIFO.
func (h readyHeap) Less(i, j int) bool {
	if h[i].Traits.Priority != h[j].Traits.Priority {
		return h[i].Traits.Priority > h[j].Traits.Priority
	}
	return h[i].sequence < h[j].sequence
}

func (h readyHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *readyHeap) Push(x any) {
	n := len(*h)
	item := x.(*readyItem)
	item.index = n
	*h = append(*h, item)
}

func (h *readyHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil // avoid memory leak
	item.index = -1
	*h = old[0 : n-1]
	return item
}

// =============================================================================
// Scheduler: matches ready tasks to idle workers
// =============================================================================

// Scheduler holds the process-wide ready list. Serial queues contribute at
// most one ready task at a time (their current head); concurrent queues
// contribute every admitted task. Idle workers call GetWork and receive the
// highest-priority ready task; a task already running is never preempted.
type Scheduler struct {
	mu           sync.Mutex
	ready        readyHeap
	nextSequence uint64

	signal      chan struct{}
	workerCount int

	delayManager *DelayManager

	metricQueued int32 // waiting in the ready list
	metricActive int32 // executing on a worker

	panicHandler        PanicHandler
	metrics             Metrics
	rejectedTaskHandler RejectedTaskHandler
	logger              Logger

	shuttingDown int32 // atomic flag
}

// NewScheduler creates a scheduler with default handlers.
func NewScheduler(workerCount int) *Scheduler {
	return NewSchedulerWithConfig(workerCount, DefaultSchedulerConfig())
}

// NewSchedulerWithConfig creates a scheduler with the given handlers.
func NewSchedulerWithConfig(workerCount int, config *SchedulerConfig) *Scheduler {
	s := &Scheduler{
		ready:        make(readyHeap, 0, defaultQueueCap),
		signal:       make(chan struct{}, workerCount*2),
		workerCount:  workerCount,
		delayManager: NewDelayManager(),
	}

	if config != nil {
		s.panicHandler = config.PanicHandler
		s.metrics = config.Metrics
		s.rejectedTaskHandler = config.RejectedTaskHandler
		s.logger = config.Logger
	}

	if s.panicHandler == nil {
		s.panicHandler = &LogPanicHandler{}
	}
	if s.metrics == nil {
		s.metrics = &NilMetrics{}
	}
	if s.rejectedTaskHandler == nil {
		s.rejectedTaskHandler = &LogRejectedTaskHandler{}
	}
	if s.logger == nil {
		s.logger = NewSimpleLogger()
	}

	return s
}

// PostInternal admits a ready task. Unbounded: under heavy load excess tasks
// simply wait longer, they are never rejected except during shutdown, which
// is reported by returning false.
func (s *Scheduler) PostInternal(task Task, traits TaskTraits) bool {
	if atomic.LoadInt32(&s.shuttingDown) == 1 {
		s.rejectedTaskHandler.HandleRejectedTask("scheduler", "shutting down")
		s.metrics.RecordTaskRejected("scheduler", "shutting down")
		return false
	}

	s.mu.Lock()
	item := &readyItem{
		TaskItem: TaskItem{ID: GenerateTaskID(), Task: task, Traits: traits},
		sequence: s.nextSequence,
	}
	s.nextSequence++
	heap.Push(&s.ready, item)
	s.mu.Unlock()

	atomic.AddInt32(&s.metricQueued, 1)

	select {
	case s.signal <- struct{}{}:
	default:
		// Signal channel full; the task is already in the ready list and
		// will be picked up by the next worker that loops around.
	}
	return true
}

// PostDelayedInternal hands the task to the delay manager, which re-posts it
// to target once the delay expires.
func (s *Scheduler) PostDelayedInternal(task Task, delay time.Duration, traits TaskTraits, target TaskRunner) {
	if atomic.LoadInt32(&s.shuttingDown) == 1 {
		return
	}
	s.delayManager.AddDelayedTask(task, delay, traits, target)
}

// GetWork blocks until a ready task is available or stopCh closes.
// Called by pool workers.
func (s *Scheduler) GetWork(stopCh <-chan struct{}) (Task, bool) {
	for {
		s.mu.Lock()
		if len(s.ready) > 0 {
			item := heap.Pop(&s.ready).(*readyItem)
			s.mu.Unlock()
			atomic.AddInt32(&s.metricQueued, -1)
			return item.Task, true
		}
		s.mu.Unlock()

		select {
		case <-s.signal:
			continue
		case <-stopCh:
			return nil, false
		}
	}
}

func (s *Scheduler) clearReady() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = make(readyHeap, 0, defaultQueueCap)
	atomic.StoreInt32(&s.metricQueued, 0)
}

// Shutdown stops admission immediately and drops the ready list.
func (s *Scheduler) Shutdown() {
	atomic.StoreInt32(&s.shuttingDown, 1)
	s.delayManager.Stop()
	s.clearReady()
}

// ShutdownGraceful stops admission and waits for queued and active tasks to
// complete, or errors after timeout (remaining tasks are then dropped).
func (s *Scheduler) ShutdownGraceful(timeout time.Duration) error {
	atomic.StoreInt32(&s.shuttingDown, 1)
	s.delayManager.Stop()

	deadline := time.After(timeout)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-deadline:
			s.clearReady()
			return fmt.Errorf("graceful shutdown timeout after %v, dropped remaining tasks", timeout)
		case <-ticker.C:
			if s.QueuedTaskCount() == 0 && s.ActiveTaskCount() == 0 {
				return nil
			}
		}
	}
}

// Metrics
func (s *Scheduler) WorkerCount() int     { return s.workerCount }
func (s *Scheduler) QueuedTaskCount() int { return int(atomic.LoadInt32(&s.metricQueued)) }
func (s *Scheduler) ActiveTaskCount() int { return int(atomic.LoadInt32(&s.metricActive)) }
func (s *Scheduler) DelayedTaskCount() int {
	return s.delayManager.TaskCount()
}

func (s *Scheduler) OnTaskStart() {
	atomic.AddInt32(&s.metricActive, 1)
}

func (s *Scheduler) OnTaskEnd() {
	atomic.AddInt32(&s.metricActive, -1)
}

// GetPanicHandler returns the panic handler wired into this scheduler.
func (s *Scheduler) GetPanicHandler() PanicHandler {
	return s.panicHandler
}

// GetMetrics returns the metrics collector wired into this scheduler.
func (s *Scheduler) GetMetrics() Metrics {
	return s.metrics
}

// GetLogger returns the logger wired into this scheduler.
func (s *Scheduler) GetLogger() Logger {
	return s.logger
}
