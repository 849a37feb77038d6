package core

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// delayedEntry is a task scheduled for the future, targeted back at the
// queue it was submitted to.
type delayedEntry struct {
	runAt  time.Time
	task   Task
	traits TaskTraits
	target TaskRunner
	index  int // for heap
}

type delayedHeap []*delayedEntry

func (h delayedHeap) Len() int           { return len(h) }
func (h delayedHeap) Less(i, j int) bool { return h[i].runAt.Before(h[j].runAt) }
func (h delayedHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *delayedHeap) Push(x any) {
	n := len(*h)
	entry := x.(*delayedEntry)
	entry.index = n
	*h = append(*h, entry)
}

func (h *delayedHeap) Pop() any {
	old := *h
	n := len(old)
	entry := old[n-1]
	old[n-1] = nil // avoid memory leak
	entry.index = -1
	*h = old[0 : n-1]
	return entry
}

// DelayManager services delayed submissions for every queue sharing a
// scheduler. A single goroutine sleeps until the earliest deadline and
// re-posts expired tasks to their target queue, so delays never consume a
// pool worker.
type DelayManager struct {
	mu     sync.Mutex
	pq     delayedHeap
	wakeup chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
}

func NewDelayManager() *DelayManager {
	ctx, cancel := context.WithCancel(context.Background())
	dm := &DelayManager{
		pq:     make(delayedHeap, 0),
		wakeup: make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
	}
	heap.Init(&dm.pq)
	go dm.loop()
	return dm
}

// AddDelayedTask schedules task to be posted to target after delay.
func (dm *DelayManager) AddDelayedTask(task Task, delay time.Duration, traits TaskTraits, target TaskRunner) {
	dm.mu.Lock()

	entry := &delayedEntry{
		runAt:  time.Now().Add(delay),
		task:   task,
		traits: traits,
		target: target,
	}
	heap.Push(&dm.pq, entry)
	isNext := entry.index == 0

	dm.mu.Unlock()

	if isNext {
		select {
		case dm.wakeup <- struct{}{}:
		default:
		}
	}
}

func (dm *DelayManager) loop() {
	timer := time.NewTimer(time.Hour)
	timer.Stop()

	for {
		next, ok := dm.nextDeadline()
		if !ok {
			// No tasks scheduled; sleep until a new one arrives.
			next = 1000 * time.Hour
		}

		timer.Reset(next)

		select {
		case <-dm.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			dm.processExpiredTasks()
		case <-dm.wakeup:
			// Earlier deadline arrived; recalculate.
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}
	}
}

// nextDeadline returns the time until the earliest task is due.
// Returns (0, true) when the head task is already expired.
func (dm *DelayManager) nextDeadline() (time.Duration, bool) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if len(dm.pq) == 0 {
		return 0, false
	}

	now := time.Now()
	if dm.pq[0].runAt.Before(now) {
		return 0, true
	}
	return dm.pq[0].runAt.Sub(now), true
}

// processExpiredTasks re-posts every expired task to its target queue.
func (dm *DelayManager) processExpiredTasks() {
	dm.mu.Lock()

	now := time.Now()
	// Collect expired tasks so posting happens outside the lock.
	var expired []*delayedEntry

	for len(dm.pq) > 0 {
		if dm.pq[0].runAt.After(now) {
			break
		}
		expired = append(expired, heap.Pop(&dm.pq).(*delayedEntry))
	}

	dm.mu.Unlock()

	for _, entry := range expired {
		entry.target.PostTaskWithTraits(entry.task, entry.traits)
	}
}

func (dm *DelayManager) Stop() {
	dm.cancel()

	// Drop the heap to release task and queue references.
	dm.mu.Lock()
	dm.pq = make(delayedHeap, 0)
	heap.Init(&dm.pq)
	dm.mu.Unlock()
}

func (dm *DelayManager) TaskCount() int {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return len(dm.pq)
}
