package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/seqra/seqra/event"
	"github.com/seqra/seqra/id"
	"github.com/seqra/seqra/sandbox"
	"github.com/seqra/seqra/task"
	"github.com/seqra/seqra/workflow"
)

// Run is the caller's handle to a launched workflow run.
type Run struct {
	r *run
}

// WorkflowID returns the id of the workflow being run.
func (h *Run) WorkflowID() id.WorkflowID { return h.r.def.ID }

// RunID returns the id of this run.
func (h *Run) RunID() id.RunID { return h.r.runID }

// Done returns a channel closed when the run has settled: terminal
// outcome reached or awaiting a reboot resume.
func (h *Run) Done() <-chan struct{} { return h.r.done }

// Wait blocks until the run settles and returns its final state. The
// error reflects engine-side problems such as a checkpoint that could
// not be written; task failures are reported through the state's
// outcome, not the error.
func (h *Run) Wait(ctx context.Context) (*workflow.State, error) {
	select {
	case <-h.r.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	h.r.mu.Lock()
	defer h.r.mu.Unlock()
	return h.r.st.Clone(), h.r.err
}

// run holds the mutable execution state of one workflow run.
type run struct {
	eng   *Engine
	def   *workflow.Definition
	runID id.RunID
	grace time.Duration

	mu      sync.Mutex
	st      *workflow.State
	tracker *task.Tracker
	cancel  context.CancelFunc
	err     error

	cancelRequested atomic.Bool
	done            chan struct{}
}

func newRun(e *Engine, def *workflow.Definition, st *workflow.State) *run {
	grace := def.CancelGrace
	if grace <= 0 {
		grace = e.cfg.CancelGrace
	}
	tracker := task.NewTracker(def.Weights())
	tracker.Restore(st.Statuses, st.Progress)
	return &run{
		eng:     e,
		def:     def,
		runID:   st.RunID,
		grace:   grace,
		st:      st,
		tracker: tracker,
		done:    make(chan struct{}),
	}
}

// requestCancel flips the run into cancellation: the current task's
// context is cancelled and no further task starts.
func (r *run) requestCancel() {
	if !r.cancelRequested.CompareAndSwap(false, true) {
		return
	}
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// snapshot returns a copy of the live state.
func (r *run) snapshot() *workflow.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st.Clone()
}

// loop drives the task sequence to a settled state. It runs on its own
// goroutine; the engine releases the workflow lock when it returns.
func (r *run) loop() {
	ctx := context.Background()
	started := time.Now()

	r.mu.Lock()
	r.st.Outcome = workflow.OutcomeRunning
	first := r.st.NextIndex
	snap := r.st.Clone()
	r.mu.Unlock()

	r.eng.extensions.EmitWorkflowStarted(ctx, snap)
	r.eng.logger.Info("workflow started",
		slog.String("workflow_id", r.def.ID.String()),
		slog.String("run_id", r.runID.String()),
		slog.Int("first_task", first),
	)

	for i := first; i < len(r.def.Tasks); i++ {
		if r.cancelRequested.Load() {
			r.finishCancelled(ctx)
			return
		}

		spec := r.def.Tasks[i]
		taskErr := r.runTask(ctx, i, spec)

		if r.cancelRequested.Load() {
			r.finishCancelled(ctx)
			return
		}

		if taskErr != nil {
			if spec.Policy() == task.PolicyStop {
				r.finishFailed(ctx, i)
				return
			}
			continue
		}

		if spec.Reboot {
			r.finishAwaitingResume(ctx, i)
			return
		}
	}

	r.finishCompleted(ctx, started)
}

// runTask executes one task body inside its sandbox, streaming output
// records and persisting the state transitions. It returns the body's
// failure, nil on success or cancellation.
func (r *run) runTask(ctx context.Context, i int, spec task.Spec) error {
	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.mu.Lock()
	r.cancel = cancel
	r.st.NextIndex = i
	r.st.Statuses[i] = task.StatusRunning
	r.tracker.Start(i)
	snap := r.st.Clone()
	r.mu.Unlock()

	taskStart := time.Now()
	r.eng.extensions.EmitTaskStarted(ctx, snap, spec.Name)
	r.publish(ctx, spec.Name, task.StatusRunning, snap.Progress, "")

	sb := sandbox.New(spec.Body, r.grace)

	var g errgroup.Group
	g.Go(func() error { return sb.Run(taskCtx) })

	// The running state is persisted lazily, on the first output event:
	// a task that produces no output and completes synchronously costs
	// one checkpoint write, not two. The output channel closes before
	// Run returns, so this loop cannot outlive the body.
	persisted := false
	for line := range sb.Output() {
		r.mu.Lock()
		r.st.Progress = r.tracker.Observe()
		progress := r.st.Progress
		r.mu.Unlock()
		if !persisted {
			r.save(ctx)
			persisted = true
		}
		r.publish(ctx, spec.Name, task.StatusRunning, progress, line)
	}

	bodyErr := g.Wait()

	r.mu.Lock()
	r.cancel = nil
	r.mu.Unlock()

	if r.cancelRequested.Load() {
		// The interrupted task is not marked failed: it was stopped,
		// not broken. finishCancelled records the skip.
		return nil
	}

	if bodyErr != nil {
		r.mu.Lock()
		r.st.Statuses[i] = task.StatusFailed
		r.st.Progress = r.tracker.Freeze()
		if r.st.Error == "" {
			r.st.Error = spec.Name + ": " + bodyErr.Error()
		}
		r.st.NextIndex = i + 1
		snap = r.st.Clone()
		r.mu.Unlock()

		r.save(ctx)
		r.eng.extensions.EmitTaskFailed(ctx, snap, spec.Name, bodyErr)
		r.publish(ctx, spec.Name, task.StatusFailed, snap.Progress, bodyErr.Error())
		r.eng.logger.Warn("task failed",
			slog.String("workflow_id", r.def.ID.String()),
			slog.String("task", spec.Name),
			slog.String("error", bodyErr.Error()),
			slog.String("policy", string(spec.Policy())),
		)
		return bodyErr
	}

	r.mu.Lock()
	r.st.Statuses[i] = task.StatusCompleted
	r.st.Progress = r.tracker.Complete()
	r.st.NextIndex = i + 1
	snap = r.st.Clone()
	r.mu.Unlock()

	r.save(ctx)
	r.eng.extensions.EmitTaskCompleted(ctx, snap, spec.Name, time.Since(taskStart))
	r.publish(ctx, spec.Name, task.StatusCompleted, snap.Progress, "")
	return nil
}

// finishCompleted settles a run whose sequence reached the end.
func (r *run) finishCompleted(ctx context.Context, started time.Time) {
	r.mu.Lock()
	failures := r.st.FailedTasks()
	if failures > 0 {
		r.st.Outcome = workflow.OutcomeCompletedWithFailures
	} else {
		r.st.Outcome = workflow.OutcomeCompleted
		r.st.Progress = 100
	}
	snap := r.st.Clone()
	r.mu.Unlock()

	if failures > 0 {
		// State stays queryable until the caller clears it.
		r.save(ctx)
	} else {
		r.deleteState(ctx)
	}

	r.eng.extensions.EmitWorkflowCompleted(ctx, snap, time.Since(started))
	r.eng.logger.Info("workflow completed",
		slog.String("workflow_id", r.def.ID.String()),
		slog.String("outcome", string(snap.Outcome)),
		slog.Int("failed_tasks", failures),
	)
}

// finishFailed settles a run stopped by a Stop-policy task failure.
// The remaining tasks are skipped and the bulk transition is persisted
// in a single write.
func (r *run) finishFailed(ctx context.Context, failedIdx int) {
	r.mu.Lock()
	var skipped []string
	for i := failedIdx + 1; i < len(r.st.Statuses); i++ {
		if r.st.Statuses[i] == task.StatusPending {
			r.st.Statuses[i] = task.StatusSkipped
			skipped = append(skipped, r.st.TaskNames[i])
		}
	}
	r.st.Outcome = workflow.OutcomeFailed
	r.st.Progress = r.tracker.Freeze()
	snap := r.st.Clone()
	r.mu.Unlock()

	r.save(ctx)

	for _, name := range skipped {
		r.eng.extensions.EmitTaskSkipped(ctx, snap, name)
		r.publish(ctx, name, task.StatusSkipped, snap.Progress, "")
	}
	r.eng.extensions.EmitWorkflowFailed(ctx, snap, nil)
	r.eng.logger.Warn("workflow failed",
		slog.String("workflow_id", r.def.ID.String()),
		slog.String("error", snap.Error),
		slog.Int("skipped_tasks", len(skipped)),
	)
}

// finishCancelled settles a cancelled run: the interrupted task and all
// remaining tasks are skipped and the checkpoint is removed.
func (r *run) finishCancelled(ctx context.Context) {
	r.mu.Lock()
	var skipped []string
	for i := range r.st.Statuses {
		if r.st.Statuses[i] == task.StatusPending || r.st.Statuses[i] == task.StatusRunning {
			r.st.Statuses[i] = task.StatusSkipped
			skipped = append(skipped, r.st.TaskNames[i])
		}
	}
	r.st.Outcome = workflow.OutcomeCancelled
	r.st.Progress = r.tracker.Freeze()
	snap := r.st.Clone()
	r.mu.Unlock()

	for _, name := range skipped {
		r.eng.extensions.EmitTaskSkipped(ctx, snap, name)
		r.publish(ctx, name, task.StatusSkipped, snap.Progress, "")
	}

	r.deleteState(ctx)
	r.eng.extensions.EmitWorkflowCancelled(ctx, snap)
	r.eng.logger.Info("workflow cancelled",
		slog.String("workflow_id", r.def.ID.String()),
		slog.Int("skipped_tasks", len(skipped)),
	)
}

// finishAwaitingResume settles a run whose last completed task requires
// a reboot: the checkpoint is written, the restart hook registered, and
// the loop returns so the process can exit cleanly.
func (r *run) finishAwaitingResume(ctx context.Context, rebootIdx int) {
	r.mu.Lock()
	r.st.Outcome = workflow.OutcomeAwaitingResume
	snap := r.st.Clone()
	r.mu.Unlock()

	r.save(ctx)

	wfID := r.def.ID
	if err := r.eng.hook.Register(ctx, wfID, r.eng.store.Path(wfID)); err != nil {
		r.setErr(err)
		r.eng.logger.Error("register resume hook failed",
			slog.String("workflow_id", wfID.String()),
			slog.String("error", err.Error()),
		)
	}

	r.eng.extensions.EmitWorkflowAwaitingResume(ctx, snap)
	r.eng.logger.Info("workflow awaiting resume after reboot",
		slog.String("workflow_id", wfID.String()),
		slog.String("reboot_task", r.def.Tasks[rebootIdx].Name),
		slog.Int("next_task", snap.NextIndex),
	)
}

// save persists the current state, remembering the first failure.
func (r *run) save(ctx context.Context) {
	r.mu.Lock()
	err := r.eng.store.Save(ctx, r.st)
	r.mu.Unlock()
	if err != nil {
		r.setErr(err)
		r.eng.logger.Error("checkpoint write failed",
			slog.String("workflow_id", r.def.ID.String()),
			slog.String("error", err.Error()),
		)
	}
}

func (r *run) deleteState(ctx context.Context) {
	if err := r.eng.store.Delete(ctx, r.def.ID); err != nil {
		r.setErr(err)
		r.eng.logger.Error("checkpoint delete failed",
			slog.String("workflow_id", r.def.ID.String()),
			slog.String("error", err.Error()),
		)
	}
}

func (r *run) setErr(err error) {
	r.mu.Lock()
	if r.err == nil {
		r.err = err
	}
	r.mu.Unlock()
}

// publish emits one record on the engine's bus. Delivery blocks when an
// observer's buffer is full; records are never dropped.
func (r *run) publish(ctx context.Context, taskName string, status task.Status, progress float64, message string) {
	rec := &event.Record{
		ID:         id.NewEventID(),
		WorkflowID: r.def.ID,
		Task:       taskName,
		Status:     status,
		Progress:   progress,
		Message:    message,
		Timestamp:  time.Now().UTC(),
	}
	if err := r.eng.bus.Publish(ctx, rec); err != nil {
		r.eng.logger.Warn("event publish interrupted",
			slog.String("workflow_id", r.def.ID.String()),
			slog.String("error", err.Error()),
		)
	}
}
