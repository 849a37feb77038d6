package core

import (
	"context"
	"fmt"
	"time"
)

// =============================================================================
// PanicHandler: the configurable error sink for task failures
// =============================================================================

// PanicHandler is called when a task panics during execution. A panic is
// caught at the task-execution boundary, reported here, and never propagates
// to the scheduler or blocks subsequent tasks on the same queue.
//
// Implementations must be safe for concurrent use.
type PanicHandler interface {
	// HandlePanic is called when a task panics.
	//
	// Parameters:
	// - ctx: the context of the panicked task (may carry the current runner)
	// - queueName: the label of the queue the task belonged to
	// - workerID: the pool worker that ran the task (-1 for the main queue)
	// - panicInfo: the recovered panic value
	// - stackTrace: the stack at the time of the panic
	HandlePanic(ctx context.Context, queueName string, workerID int, panicInfo any, stackTrace []byte)
}

// LogPanicHandler reports panics through a Logger. It is the default sink.
type LogPanicHandler struct {
	Logger Logger
}

func (h *LogPanicHandler) HandlePanic(ctx context.Context, queueName string, workerID int, panicInfo any, stackTrace []byte) {
	logger := h.Logger
	if logger == nil {
		logger = NewSimpleLogger()
	}
	logger.Error("task panicked",
		F("queue", queueName),
		F("worker", workerID),
		F("panic", fmt.Sprintf("%v", panicInfo)),
		F("stack", string(stackTrace)),
	)
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics collects task execution metrics. Implementations can forward to
// monitoring systems (see observability/prometheus). Methods must be fast
// and non-blocking; the zero implementation is NilMetrics.
type Metrics interface {
	// RecordTaskDuration records how long a task took to execute.
	RecordTaskDuration(queueName string, priority TaskPriority, duration time.Duration)

	// RecordTaskPanic records that a task panicked during execution.
	RecordTaskPanic(queueName string, panicInfo any)

	// RecordQueueDepth records the current pending-queue depth.
	RecordQueueDepth(queueName string, depth int)

	// RecordTaskRejected records that a task was rejected (e.g. shutdown).
	RecordTaskRejected(queueName string, reason string)
}

// NilMetrics is a no-op Metrics implementation, used when none is configured.
type NilMetrics struct{}

func (m *NilMetrics) RecordTaskDuration(queueName string, priority TaskPriority, duration time.Duration) {
}

func (m *NilMetrics) RecordTaskPanic(queueName string, panicInfo any) {}

func (m *NilMetrics) RecordQueueDepth(queueName string, depth int) {}

func (m *NilMetrics) RecordTaskRejected(queueName string, reason string) {}

// =============================================================================
// RejectedTaskHandler: Interface for handling rejected tasks
// =============================================================================

// RejectedTaskHandler is called when a task is rejected. Admission is
// unbounded, so the only rejection reason today is shutdown.
//
// Implementations must be safe for concurrent use.
type RejectedTaskHandler interface {
	HandleRejectedTask(queueName string, reason string)
}

// LogRejectedTaskHandler logs rejected tasks through a Logger.
type LogRejectedTaskHandler struct {
	Logger Logger
}

func (h *LogRejectedTaskHandler) HandleRejectedTask(queueName string, reason string) {
	logger := h.Logger
	if logger == nil {
		logger = NewSimpleLogger()
	}
	logger.Warn("task rejected", F("queue", queueName), F("reason", reason))
}

// =============================================================================
// SchedulerConfig: Configuration for Scheduler
// =============================================================================

// SchedulerConfig holds the handlers wired into a Scheduler. All fields are
// optional; nil fields get default implementations.
type SchedulerConfig struct {
	// PanicHandler is called when a task panics. Defaults to LogPanicHandler.
	PanicHandler PanicHandler

	// Metrics records task execution metrics. Defaults to NilMetrics.
	Metrics Metrics

	// RejectedTaskHandler is called when a task is rejected during shutdown.
	// Defaults to LogRejectedTaskHandler.
	RejectedTaskHandler RejectedTaskHandler

	// Logger is used for lifecycle events. Defaults to NewSimpleLogger().
	Logger Logger
}

// DefaultSchedulerConfig returns a config with default handlers.
func DefaultSchedulerConfig() *SchedulerConfig {
	logger := NewSimpleLogger()
	return &SchedulerConfig{
		PanicHandler:        &LogPanicHandler{Logger: logger},
		Metrics:             &NilMetrics{},
		RejectedTaskHandler: &LogRejectedTaskHandler{Logger: logger},
		Logger:              logger,
	}
}
