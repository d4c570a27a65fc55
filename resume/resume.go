// Package resume validates persisted checkpoints against the workflow
// definition and the local identity before a run is continued, and
// registers restart hooks so a reboot-spanning workflow picks itself
// back up at next login.
package resume

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/seqra/seqra"
	"github.com/seqra/seqra/checkpoint"
	"github.com/seqra/seqra/task"
	"github.com/seqra/seqra/workflow"
)

// Controller loads and vets a checkpoint so the engine can continue a
// run from where it stopped.
type Controller struct {
	store checkpoint.Store
	log   *slog.Logger
}

// NewController creates a Controller over the given store.
func NewController(store checkpoint.Store, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	return &Controller{store: store, log: log}
}

// Prepare loads the checkpoint for def and validates that it belongs to
// this definition and this identity, returning a state the engine can
// continue from. Interrupted tasks are reset to pending so they re-run
// from the start. Every failure wraps seqra.ErrResume.
func (c *Controller) Prepare(ctx context.Context, def *workflow.Definition, ident workflow.Identity) (*workflow.State, error) {
	st, err := c.store.Load(ctx, def.ID)
	if err != nil {
		return nil, fmt.Errorf("resume %s: load checkpoint: %w: %w", def.ID, seqra.ErrResume, err)
	}

	if err := c.validate(st, def, ident); err != nil {
		return nil, err
	}

	// A task persisted as running was interrupted mid-flight; its side
	// effects are unknown, so it runs again from the beginning.
	rerun := 0
	for i, status := range st.Statuses {
		if status == task.StatusRunning {
			st.Statuses[i] = task.StatusPending
			if i < st.NextIndex {
				st.NextIndex = i
			}
			rerun++
		}
	}
	st.Outcome = workflow.OutcomeRunning

	c.log.InfoContext(ctx, "checkpoint validated for resume",
		slog.String("workflow_id", def.ID.String()),
		slog.Int("next_index", st.NextIndex),
		slog.Int("rerun_tasks", rerun),
	)
	return st, nil
}

func (c *Controller) validate(st *workflow.State, def *workflow.Definition, ident workflow.Identity) error {
	if st.Identity != ident {
		return fmt.Errorf("resume %s: checkpoint belongs to %s, current identity is %s: %w",
			def.ID, st.Identity, ident, seqra.ErrResume)
	}
	if !st.Outcome.InFlight() {
		return fmt.Errorf("resume %s: outcome %s is not resumable: %w", def.ID, st.Outcome, seqra.ErrResume)
	}
	if len(st.Statuses) != len(st.TaskNames) {
		return fmt.Errorf("resume %s: %d statuses for %d tasks: %w: %w",
			def.ID, len(st.Statuses), len(st.TaskNames), seqra.ErrInvalidState, seqra.ErrResume)
	}

	names := def.TaskNames()
	if len(names) != len(st.TaskNames) {
		return fmt.Errorf("resume %s: definition has %d tasks, checkpoint has %d: %w",
			def.ID, len(names), len(st.TaskNames), seqra.ErrResume)
	}
	for i, name := range names {
		if st.TaskNames[i] != name {
			return fmt.Errorf("resume %s: task %d is %q in definition but %q in checkpoint: %w",
				def.ID, i, name, st.TaskNames[i], seqra.ErrResume)
		}
	}

	if st.NextIndex < 0 || st.NextIndex > len(names) {
		return fmt.Errorf("resume %s: next index %d out of range: %w: %w",
			def.ID, st.NextIndex, seqra.ErrInvalidState, seqra.ErrResume)
	}
	return nil
}
