package ext

import (
	"context"
	"log/slog"
	"time"

	"github.com/seqra/seqra/workflow"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time. This avoids type-asserting back to
// Extension inside the emit methods.
type taskStartedEntry struct {
	name string
	hook TaskStarted
}

type taskCompletedEntry struct {
	name string
	hook TaskCompleted
}

type taskFailedEntry struct {
	name string
	hook TaskFailed
}

type taskSkippedEntry struct {
	name string
	hook TaskSkipped
}

type workflowStartedEntry struct {
	name string
	hook WorkflowStarted
}

type workflowCompletedEntry struct {
	name string
	hook WorkflowCompleted
}

type workflowFailedEntry struct {
	name string
	hook WorkflowFailed
}

type workflowCancelledEntry struct {
	name string
	hook WorkflowCancelled
}

type workflowAwaitingResumeEntry struct {
	name string
	hook WorkflowAwaitingResume
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	// Type-cached slices for each lifecycle hook.
	taskStarted            []taskStartedEntry
	taskCompleted          []taskCompletedEntry
	taskFailed             []taskFailedEntry
	taskSkipped            []taskSkippedEntry
	workflowStarted        []workflowStartedEntry
	workflowCompleted      []workflowCompletedEntry
	workflowFailed         []workflowFailedEntry
	workflowCancelled      []workflowCancelledEntry
	workflowAwaitingResume []workflowAwaitingResumeEntry
	shutdown               []shutdownEntry
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(TaskStarted); ok {
		r.taskStarted = append(r.taskStarted, taskStartedEntry{name, h})
	}
	if h, ok := e.(TaskCompleted); ok {
		r.taskCompleted = append(r.taskCompleted, taskCompletedEntry{name, h})
	}
	if h, ok := e.(TaskFailed); ok {
		r.taskFailed = append(r.taskFailed, taskFailedEntry{name, h})
	}
	if h, ok := e.(TaskSkipped); ok {
		r.taskSkipped = append(r.taskSkipped, taskSkippedEntry{name, h})
	}
	if h, ok := e.(WorkflowStarted); ok {
		r.workflowStarted = append(r.workflowStarted, workflowStartedEntry{name, h})
	}
	if h, ok := e.(WorkflowCompleted); ok {
		r.workflowCompleted = append(r.workflowCompleted, workflowCompletedEntry{name, h})
	}
	if h, ok := e.(WorkflowFailed); ok {
		r.workflowFailed = append(r.workflowFailed, workflowFailedEntry{name, h})
	}
	if h, ok := e.(WorkflowCancelled); ok {
		r.workflowCancelled = append(r.workflowCancelled, workflowCancelledEntry{name, h})
	}
	if h, ok := e.(WorkflowAwaitingResume); ok {
		r.workflowAwaitingResume = append(r.workflowAwaitingResume, workflowAwaitingResumeEntry{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// ──────────────────────────────────────────────────
// Task event emitters
// ──────────────────────────────────────────────────

// EmitTaskStarted notifies all extensions that implement TaskStarted.
func (r *Registry) EmitTaskStarted(ctx context.Context, st *workflow.State, taskName string) {
	for _, e := range r.taskStarted {
		if err := e.hook.OnTaskStarted(ctx, st, taskName); err != nil {
			r.logHookError("OnTaskStarted", e.name, err)
		}
	}
}

// EmitTaskCompleted notifies all extensions that implement TaskCompleted.
func (r *Registry) EmitTaskCompleted(ctx context.Context, st *workflow.State, taskName string, elapsed time.Duration) {
	for _, e := range r.taskCompleted {
		if err := e.hook.OnTaskCompleted(ctx, st, taskName, elapsed); err != nil {
			r.logHookError("OnTaskCompleted", e.name, err)
		}
	}
}

// EmitTaskFailed notifies all extensions that implement TaskFailed.
func (r *Registry) EmitTaskFailed(ctx context.Context, st *workflow.State, taskName string, taskErr error) {
	for _, e := range r.taskFailed {
		if err := e.hook.OnTaskFailed(ctx, st, taskName, taskErr); err != nil {
			r.logHookError("OnTaskFailed", e.name, err)
		}
	}
}

// EmitTaskSkipped notifies all extensions that implement TaskSkipped.
func (r *Registry) EmitTaskSkipped(ctx context.Context, st *workflow.State, taskName string) {
	for _, e := range r.taskSkipped {
		if err := e.hook.OnTaskSkipped(ctx, st, taskName); err != nil {
			r.logHookError("OnTaskSkipped", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Workflow event emitters
// ──────────────────────────────────────────────────

// EmitWorkflowStarted notifies all extensions that implement WorkflowStarted.
func (r *Registry) EmitWorkflowStarted(ctx context.Context, st *workflow.State) {
	for _, e := range r.workflowStarted {
		if err := e.hook.OnWorkflowStarted(ctx, st); err != nil {
			r.logHookError("OnWorkflowStarted", e.name, err)
		}
	}
}

// EmitWorkflowCompleted notifies all extensions that implement WorkflowCompleted.
func (r *Registry) EmitWorkflowCompleted(ctx context.Context, st *workflow.State, elapsed time.Duration) {
	for _, e := range r.workflowCompleted {
		if err := e.hook.OnWorkflowCompleted(ctx, st, elapsed); err != nil {
			r.logHookError("OnWorkflowCompleted", e.name, err)
		}
	}
}

// EmitWorkflowFailed notifies all extensions that implement WorkflowFailed.
func (r *Registry) EmitWorkflowFailed(ctx context.Context, st *workflow.State, wfErr error) {
	for _, e := range r.workflowFailed {
		if err := e.hook.OnWorkflowFailed(ctx, st, wfErr); err != nil {
			r.logHookError("OnWorkflowFailed", e.name, err)
		}
	}
}

// EmitWorkflowCancelled notifies all extensions that implement WorkflowCancelled.
func (r *Registry) EmitWorkflowCancelled(ctx context.Context, st *workflow.State) {
	for _, e := range r.workflowCancelled {
		if err := e.hook.OnWorkflowCancelled(ctx, st); err != nil {
			r.logHookError("OnWorkflowCancelled", e.name, err)
		}
	}
}

// EmitWorkflowAwaitingResume notifies all extensions that implement
// WorkflowAwaitingResume.
func (r *Registry) EmitWorkflowAwaitingResume(ctx context.Context, st *workflow.State) {
	for _, e := range r.workflowAwaitingResume {
		if err := e.hook.OnWorkflowAwaitingResume(ctx, st); err != nil {
			r.logHookError("OnWorkflowAwaitingResume", e.name, err)
		}
	}
}

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a hook failure without interrupting the engine —
// extension errors never affect workflow execution.
func (r *Registry) logHookError(hook, extension string, err error) {
	if r.logger == nil {
		return
	}
	r.logger.Error("extension hook failed",
		slog.String("hook", hook),
		slog.String("extension", extension),
		slog.String("error", err.Error()),
	)
}
