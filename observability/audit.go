package observability

import (
	"context"
	"log/slog"
	"time"

	"github.com/seqra/seqra/ext"
	"github.com/seqra/seqra/workflow"
)

// Compile-time interface checks.
var (
	_ ext.Extension              = (*AuditExtension)(nil)
	_ ext.TaskStarted            = (*AuditExtension)(nil)
	_ ext.TaskCompleted          = (*AuditExtension)(nil)
	_ ext.TaskFailed             = (*AuditExtension)(nil)
	_ ext.TaskSkipped            = (*AuditExtension)(nil)
	_ ext.WorkflowStarted        = (*AuditExtension)(nil)
	_ ext.WorkflowCompleted      = (*AuditExtension)(nil)
	_ ext.WorkflowFailed         = (*AuditExtension)(nil)
	_ ext.WorkflowCancelled      = (*AuditExtension)(nil)
	_ ext.WorkflowAwaitingResume = (*AuditExtension)(nil)
)

// AuditExtension emits one structured log record per lifecycle
// transition, forming a queryable audit trail of who ran what and how
// it ended. Point the logger at a file handler to keep a durable trail
// separate from operational logs.
type AuditExtension struct {
	log *slog.Logger
}

// NewAuditExtension creates an AuditExtension writing through logger.
// A nil logger uses slog.Default().
func NewAuditExtension(logger *slog.Logger) *AuditExtension {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditExtension{log: logger}
}

// Name implements ext.Extension.
func (a *AuditExtension) Name() string { return "audit-trail" }

func (a *AuditExtension) record(ctx context.Context, action string, st *workflow.State, attrs ...slog.Attr) {
	base := []slog.Attr{
		slog.String("action", action),
		slog.String("workflow_id", st.WorkflowID.String()),
		slog.String("run_id", st.RunID.String()),
		slog.String("identity", st.Identity.String()),
	}
	a.log.LogAttrs(ctx, slog.LevelInfo, "audit", append(base, attrs...)...)
}

// OnTaskStarted implements ext.TaskStarted.
func (a *AuditExtension) OnTaskStarted(ctx context.Context, st *workflow.State, taskName string) error {
	a.record(ctx, "task.started", st, slog.String("task", taskName))
	return nil
}

// OnTaskCompleted implements ext.TaskCompleted.
func (a *AuditExtension) OnTaskCompleted(ctx context.Context, st *workflow.State, taskName string, elapsed time.Duration) error {
	a.record(ctx, "task.completed", st,
		slog.String("task", taskName),
		slog.Duration("elapsed", elapsed),
	)
	return nil
}

// OnTaskFailed implements ext.TaskFailed.
func (a *AuditExtension) OnTaskFailed(ctx context.Context, st *workflow.State, taskName string, err error) error {
	a.record(ctx, "task.failed", st,
		slog.String("task", taskName),
		slog.String("error", err.Error()),
	)
	return nil
}

// OnTaskSkipped implements ext.TaskSkipped.
func (a *AuditExtension) OnTaskSkipped(ctx context.Context, st *workflow.State, taskName string) error {
	a.record(ctx, "task.skipped", st, slog.String("task", taskName))
	return nil
}

// OnWorkflowStarted implements ext.WorkflowStarted.
func (a *AuditExtension) OnWorkflowStarted(ctx context.Context, st *workflow.State) error {
	a.record(ctx, "workflow.started", st, slog.Int("next_task", st.NextIndex))
	return nil
}

// OnWorkflowCompleted implements ext.WorkflowCompleted.
func (a *AuditExtension) OnWorkflowCompleted(ctx context.Context, st *workflow.State, elapsed time.Duration) error {
	a.record(ctx, "workflow.completed", st,
		slog.String("outcome", string(st.Outcome)),
		slog.Int("failed_tasks", st.FailedTasks()),
		slog.Duration("elapsed", elapsed),
	)
	return nil
}

// OnWorkflowFailed implements ext.WorkflowFailed.
func (a *AuditExtension) OnWorkflowFailed(ctx context.Context, st *workflow.State, _ error) error {
	a.record(ctx, "workflow.failed", st, slog.String("error", st.Error))
	return nil
}

// OnWorkflowCancelled implements ext.WorkflowCancelled.
func (a *AuditExtension) OnWorkflowCancelled(ctx context.Context, st *workflow.State) error {
	a.record(ctx, "workflow.cancelled", st)
	return nil
}

// OnWorkflowAwaitingResume implements ext.WorkflowAwaitingResume.
func (a *AuditExtension) OnWorkflowAwaitingResume(ctx context.Context, st *workflow.State) error {
	a.record(ctx, "workflow.awaiting_resume", st, slog.Int("next_task", st.NextIndex))
	return nil
}
