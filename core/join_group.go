package core

import (
	"context"
	"sync"
)

// JoinGroup is a counting coordination primitive: callers register
// outstanding tasks with Enter, tasks report completion with Leave, and a
// continuation registered with Notify fires exactly once, when the
// outstanding count reaches zero. The continuation is scheduled onto its
// target queue, never run inline on the goroutine that called the final
// Leave, so it always observes the target queue's serialization.
//
// Enter/Leave pairs may come from any number of queues and goroutines.
// Misuse is a programmer error and fails fast:
//   - Leave without a paired Enter (counter below zero) panics.
//   - A second Notify before the first has fired panics.
//   - Notify on a group that is at zero and was never entered panics.
type JoinGroup struct {
	mu          sync.Mutex
	count       int
	everEntered bool

	notifyTarget TaskRunner
	notifyTask   Task
	notifyTraits TaskTraits

	// idle is closed whenever count reaches zero and replaced when the
	// group becomes busy again. Wait blocks on it.
	idle chan struct{}
}

// NewJoinGroup creates an empty group (outstanding count zero).
func NewJoinGroup() *JoinGroup {
	return &JoinGroup{}
}

// Enter registers one outstanding task. Every Enter must be paired with
// exactly one later Leave.
func (g *JoinGroup) Enter() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.count++
	g.everEntered = true
	if g.count == 1 {
		g.idle = make(chan struct{})
	}
}

// Leave reports completion of one outstanding task. When the count reaches
// zero the registered continuation, if any, is scheduled on its target queue
// and the registration is cleared so it cannot fire twice.
func (g *JoinGroup) Leave() {
	g.mu.Lock()

	g.count--
	if g.count < 0 {
		g.mu.Unlock()
		panic("JoinGroup: Leave called more times than Enter")
	}

	if g.count > 0 {
		g.mu.Unlock()
		return
	}

	// Count hit zero: release waiters and take the continuation, then post
	// it outside the lock.
	if g.idle != nil {
		close(g.idle)
		g.idle = nil
	}
	target, task, traits := g.notifyTarget, g.notifyTask, g.notifyTraits
	g.notifyTarget, g.notifyTask = nil, nil
	g.mu.Unlock()

	if task != nil {
		target.PostTaskWithTraits(task, traits)
	}
}

// Notify registers continuation to be posted to target once the outstanding
// count reaches zero. If the group has already drained, the continuation is
// scheduled immediately.
func (g *JoinGroup) Notify(target TaskRunner, continuation Task) {
	g.NotifyWithTraits(target, continuation, DefaultTaskTraits())
}

// NotifyWithTraits is Notify with explicit traits for the continuation.
func (g *JoinGroup) NotifyWithTraits(target TaskRunner, continuation Task, traits TaskTraits) {
	if target == nil {
		panic("JoinGroup: Notify target must not be nil")
	}
	if continuation == nil {
		panic("JoinGroup: Notify continuation must not be nil")
	}

	g.mu.Lock()

	if g.notifyTask != nil {
		g.mu.Unlock()
		panic("JoinGroup: Notify already registered and not yet fired")
	}

	if g.count == 0 {
		if !g.everEntered {
			g.mu.Unlock()
			panic("JoinGroup: Notify on a group that was never entered")
		}
		// Already drained: schedule immediately.
		g.mu.Unlock()
		target.PostTaskWithTraits(continuation, traits)
		return
	}

	g.notifyTarget = target
	g.notifyTask = continuation
	g.notifyTraits = traits
	g.mu.Unlock()
}

// Wait blocks the calling goroutine until the outstanding count reaches
// zero, or ctx is cancelled. A group at zero returns immediately.
func (g *JoinGroup) Wait(ctx context.Context) error {
	g.mu.Lock()
	if g.count == 0 {
		g.mu.Unlock()
		return nil
	}
	idle := g.idle
	g.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Outstanding returns the current count. Intended for observability and
// tests; callers must not base coordination decisions on it.
func (g *JoinGroup) Outstanding() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.count
}
