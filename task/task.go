// Package task defines the task model: the task specification within a
// workflow definition, its run status, the body variants a task can
// execute, and progress bookkeeping.
package task

import "fmt"

// Status represents the lifecycle state of a single task.
type Status string

const (
	// StatusPending means the task has not started yet.
	StatusPending Status = "pending"
	// StatusRunning means the task body is currently executing.
	StatusRunning Status = "running"
	// StatusCompleted means the task finished successfully.
	StatusCompleted Status = "completed"
	// StatusFailed means the task body returned an error.
	StatusFailed Status = "failed"
	// StatusSkipped means the task was never run: a prior task failed
	// under the Stop policy, or the workflow was cancelled.
	StatusSkipped Status = "skipped"
)

// Terminal reports whether the status is a final one.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusSkipped:
		return true
	default:
		return false
	}
}

// ErrorPolicy governs what happens to the rest of the workflow when a
// task fails.
type ErrorPolicy string

const (
	// PolicyStop fails the workflow and skips all remaining tasks.
	PolicyStop ErrorPolicy = "stop"
	// PolicyContinue records the failure and advances to the next task.
	PolicyContinue ErrorPolicy = "continue"
)

// Spec describes one task within a workflow definition.
type Spec struct {
	// Name uniquely identifies the task within its definition.
	Name string `json:"name"`

	// Body is the unit of work to execute.
	Body Body `json:"-"`

	// Weight is the task's share of overall workflow progress.
	// Zero means "equal share", resolved at definition validation.
	// Non-zero weights must sum to 100 across the definition.
	Weight float64 `json:"weight"`

	// OnError selects the failure policy. Empty defaults to PolicyStop.
	OnError ErrorPolicy `json:"on_error"`

	// Reboot marks the task as reboot-inducing: after it completes the
	// host must restart before the workflow can continue.
	Reboot bool `json:"reboot,omitempty"`
}

// Validate checks the spec in isolation. Definition-level rules
// (unique names, weight sum) live on workflow.Definition.
func (s Spec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("task: name must not be empty")
	}
	if s.Weight < 0 {
		return fmt.Errorf("task %q: weight must not be negative, got %v", s.Name, s.Weight)
	}
	if s.OnError != "" && s.OnError != PolicyStop && s.OnError != PolicyContinue {
		return fmt.Errorf("task %q: unknown error policy %q", s.Name, s.OnError)
	}
	return s.Body.Validate(s.Name)
}

// Policy returns the effective error policy, defaulting to PolicyStop.
func (s Spec) Policy() ErrorPolicy {
	if s.OnError == "" {
		return PolicyStop
	}
	return s.OnError
}
