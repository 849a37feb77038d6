package core

import "github.com/google/uuid"

// TaskID uniquely identifies a single task admission for observability.
type TaskID string

// GenerateTaskID returns a new random TaskID.
func GenerateTaskID() TaskID {
	return TaskID(uuid.NewString())
}

func (id TaskID) String() string {
	return string(id)
}
