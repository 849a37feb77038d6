package core

import "time"

// TaskExecutionRecord captures a completed task execution event.
type TaskExecutionRecord struct {
	TaskID     TaskID
	Name       string
	QueueName  string
	Discipline string
	Priority   TaskPriority
	StartedAt  time.Time
	FinishedAt time.Time
	Duration   time.Duration
	Panicked   bool
}

// QueueStats represents runtime observability state for an execution context.
type QueueStats struct {
	Name         string
	Discipline   string
	Priority     TaskPriority
	Pending      int
	Running      int
	Closed       bool
	LastTaskName string
	LastTaskAt   time.Time
}

// PoolStats represents runtime observability state for a worker pool.
type PoolStats struct {
	ID      string
	Workers int
	Queued  int
	Active  int
	Delayed int
	Running bool
}
