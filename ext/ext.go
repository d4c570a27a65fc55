package ext

import (
	"context"
	"time"

	"github.com/seqra/seqra/workflow"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Task lifecycle hooks
// ──────────────────────────────────────────────────

// TaskStarted is called when a task transitions Pending → Running.
type TaskStarted interface {
	OnTaskStarted(ctx context.Context, st *workflow.State, taskName string) error
}

// TaskCompleted is called after a task completes successfully.
type TaskCompleted interface {
	OnTaskCompleted(ctx context.Context, st *workflow.State, taskName string, elapsed time.Duration) error
}

// TaskFailed is called when a task body returns an error.
type TaskFailed interface {
	OnTaskFailed(ctx context.Context, st *workflow.State, taskName string, err error) error
}

// TaskSkipped is called when a task is skipped without running.
type TaskSkipped interface {
	OnTaskSkipped(ctx context.Context, st *workflow.State, taskName string) error
}

// ──────────────────────────────────────────────────
// Workflow lifecycle hooks
// ──────────────────────────────────────────────────

// WorkflowStarted is called when a workflow run begins or resumes.
type WorkflowStarted interface {
	OnWorkflowStarted(ctx context.Context, st *workflow.State) error
}

// WorkflowCompleted is called when a workflow reaches OutcomeCompleted
// or OutcomeCompletedWithFailures; the outcome is on the state.
type WorkflowCompleted interface {
	OnWorkflowCompleted(ctx context.Context, st *workflow.State, elapsed time.Duration) error
}

// WorkflowFailed is called when a workflow reaches OutcomeFailed.
type WorkflowFailed interface {
	OnWorkflowFailed(ctx context.Context, st *workflow.State, err error) error
}

// WorkflowCancelled is called when a workflow reaches OutcomeCancelled.
type WorkflowCancelled interface {
	OnWorkflowCancelled(ctx context.Context, st *workflow.State) error
}

// WorkflowAwaitingResume is called when a reboot-inducing task parks the
// workflow until the next host start.
type WorkflowAwaitingResume interface {
	OnWorkflowAwaitingResume(ctx context.Context, st *workflow.State) error
}

// Shutdown is called during graceful engine shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
