// Package ext defines the extension system for Seqra.
//
// Extensions are notified of lifecycle events and can react to them —
// recording metrics, writing audit logs, relaying output to a rendering
// host. Each lifecycle hook is a separate interface so extensions opt in
// only to the events they care about.
//
// # Implementing an Extension
//
//	type MyExtension struct{}
//
//	func (e *MyExtension) Name() string { return "my-extension" }
//
//	// Opt in to specific hooks by implementing their interfaces.
//	func (e *MyExtension) OnTaskCompleted(ctx context.Context, st *workflow.State, name string, elapsed time.Duration) error {
//	    log.Printf("task %s completed in %s", name, elapsed)
//	    return nil
//	}
//
// # Task Lifecycle Hooks
//
//   - [TaskStarted] — a task began executing
//   - [TaskCompleted] — a task finished successfully
//   - [TaskFailed] — a task body returned an error
//   - [TaskSkipped] — a task was skipped without running
//
// # Workflow Lifecycle Hooks
//
//   - [WorkflowStarted] — a run began or resumed
//   - [WorkflowCompleted] — the run finished (check the state's Outcome
//     for completed-with-failures)
//   - [WorkflowFailed] — the run failed terminally
//   - [WorkflowCancelled] — the run was cancelled
//   - [WorkflowAwaitingResume] — the run is parked until host restart
//   - [Shutdown] — the engine is shutting down gracefully
//
// The [Registry] fans out each event to all registered extensions that
// implement the corresponding hook interface.
package ext
