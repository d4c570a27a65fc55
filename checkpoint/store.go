// Package checkpoint persists workflow state snapshots. The file-backed
// store writes through the seal layer so checkpoints are encrypted and
// tamper-evident at rest, performs atomic replace-by-rename writes, and
// enforces single-writer ownership per workflow id with a lock file.
package checkpoint

import (
	"context"

	"github.com/seqra/seqra/id"
	"github.com/seqra/seqra/workflow"
)

// Store defines the persistence contract for workflow checkpoints.
type Store interface {
	// Acquire takes exclusive write ownership of the given workflow id.
	// A second holder fails fast with seqra.ErrWorkflowLocked.
	Acquire(ctx context.Context, wfID id.WorkflowID) error

	// Release gives up ownership taken by Acquire. Releasing an
	// unheld id is a no-op.
	Release(wfID id.WorkflowID) error

	// Save persists a snapshot. It increments the state's sequence
	// number before writing; a crash mid-write never corrupts the
	// previously persisted snapshot.
	Save(ctx context.Context, st *workflow.State) error

	// Load retrieves the persisted snapshot for a workflow id.
	// Returns seqra.ErrStateNotFound when none exists and
	// seqra.ErrStaleState when the snapshot's sequence number has
	// regressed below one previously observed.
	Load(ctx context.Context, wfID id.WorkflowID) (*workflow.State, error)

	// Delete removes the persisted snapshot. Deleting a missing
	// snapshot is a no-op.
	Delete(ctx context.Context, wfID id.WorkflowID) error

	// Path reports the checkpoint location for a workflow id, for
	// restart-resume hook registration. Stores without a filesystem
	// location return "".
	Path(wfID id.WorkflowID) string

	// Close releases all held locks.
	Close() error
}
