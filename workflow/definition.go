// Package workflow defines workflow definitions, checkpointed run state,
// and the identity a checkpoint is bound to.
package workflow

import (
	"fmt"
	"math"
	"time"

	"github.com/seqra/seqra"
	"github.com/seqra/seqra/id"
	"github.com/seqra/seqra/task"
)

// weightEpsilon absorbs float accumulation error when checking that
// task weights sum to 100.
const weightEpsilon = 1e-6

// Definition is an immutable workflow definition: an identity and an
// ordered sequence of task specs. Insertion order is execution order.
// Definitions are produced by an external builder layer and handed to
// the engine; the engine copies the task slice so later mutation by the
// builder has no effect on a running workflow.
type Definition struct {
	// ID identifies the workflow across restarts. Checkpoints are keyed
	// by it.
	ID id.WorkflowID `json:"id"`

	// Title is a human-readable name for display surfaces.
	Title string `json:"title"`

	// Tasks is the ordered task sequence.
	Tasks []task.Spec `json:"tasks"`

	// CancelGrace overrides the engine's cooperative-cancellation grace
	// period for this workflow. Zero means use the engine default.
	CancelGrace time.Duration `json:"cancel_grace,omitempty"`
}

// Validate checks the definition and resolves defaulted weights in
// place: if every task weight is zero, each task receives an equal share
// of 100; otherwise the declared weights must sum to 100. All failures
// wrap seqra.ErrValidation.
func (d *Definition) Validate() error {
	if d.ID.IsNil() {
		return fmt.Errorf("definition has no workflow id: %w", seqra.ErrValidation)
	}
	if len(d.Tasks) == 0 {
		return fmt.Errorf("definition %s has no tasks: %w", d.ID, seqra.ErrValidation)
	}

	seen := make(map[string]struct{}, len(d.Tasks))
	var sum float64
	allZero := true
	for i := range d.Tasks {
		spec := &d.Tasks[i]
		if err := spec.Validate(); err != nil {
			return fmt.Errorf("%v: %w", err, seqra.ErrValidation)
		}
		if _, dup := seen[spec.Name]; dup {
			return fmt.Errorf("duplicate task name %q: %w", spec.Name, seqra.ErrValidation)
		}
		seen[spec.Name] = struct{}{}

		if spec.Weight != 0 {
			allZero = false
		}
		sum += spec.Weight
	}

	if allZero {
		share := 100 / float64(len(d.Tasks))
		for i := range d.Tasks {
			d.Tasks[i].Weight = share
		}
		return nil
	}

	if math.Abs(sum-100) > weightEpsilon {
		return fmt.Errorf("task weights sum to %v, want 100: %w", sum, seqra.ErrValidation)
	}
	return nil
}

// Clone returns a copy of the definition with its own task slice. The
// engine clones every definition it accepts; mutating the original
// after that has no effect on the run.
func (d *Definition) Clone() *Definition {
	out := *d
	out.Tasks = make([]task.Spec, len(d.Tasks))
	copy(out.Tasks, d.Tasks)
	return &out
}

// Weights returns the resolved per-task weights in execution order.
func (d *Definition) Weights() []float64 {
	out := make([]float64, len(d.Tasks))
	for i, spec := range d.Tasks {
		out[i] = spec.Weight
	}
	return out
}

// TaskNames returns the task names in execution order.
func (d *Definition) TaskNames() []string {
	out := make([]string, len(d.Tasks))
	for i, spec := range d.Tasks {
		out[i] = spec.Name
	}
	return out
}
