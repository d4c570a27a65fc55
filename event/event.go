// Package event defines the engine's output stream: ordered records of
// task output and status transitions, fanned out to observers through a
// bounded, blocking bus.
package event

import (
	"time"

	"github.com/seqra/seqra/id"
	"github.com/seqra/seqra/task"
)

// Record is one entry in a workflow's output stream. Records carry both
// task output lines (Message set) and bare status transitions (Message
// empty).
type Record struct {
	ID         id.EventID    `json:"id"`
	WorkflowID id.WorkflowID `json:"workflow_id"`
	Task       string        `json:"task"`
	Status     task.Status   `json:"status"`
	Progress   float64       `json:"progress"`
	Message    string        `json:"message,omitempty"`
	Timestamp  time.Time     `json:"timestamp"`
}
