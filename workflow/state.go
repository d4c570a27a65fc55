package workflow

import (
	"fmt"
	"os"
	"os/user"
	"time"

	"github.com/seqra/seqra/id"
	"github.com/seqra/seqra/task"
)

// Outcome represents the workflow-level lifecycle state.
type Outcome string

const (
	// OutcomeNotStarted means no task has run yet.
	OutcomeNotStarted Outcome = "not_started"
	// OutcomeRunning means the workflow is executing.
	OutcomeRunning Outcome = "running"
	// OutcomeCompleted means every task completed successfully.
	OutcomeCompleted Outcome = "completed"
	// OutcomeCompletedWithFailures means the sequence ran to the end but
	// at least one Continue-policy task failed along the way.
	OutcomeCompletedWithFailures Outcome = "completed_with_failures"
	// OutcomeFailed means a Stop-policy task failed and the remainder
	// was skipped.
	OutcomeFailed Outcome = "failed"
	// OutcomeCancelled means the workflow was cancelled by request.
	OutcomeCancelled Outcome = "cancelled"
	// OutcomeAwaitingResume means a reboot-inducing task completed and
	// the workflow is waiting for the host to restart.
	OutcomeAwaitingResume Outcome = "awaiting_resume"
)

// Terminal reports whether the outcome is final for this process.
// OutcomeAwaitingResume is terminal for the current process but the
// workflow itself is still in flight.
func (o Outcome) Terminal() bool {
	switch o {
	case OutcomeCompleted, OutcomeCompletedWithFailures, OutcomeFailed, OutcomeCancelled:
		return true
	default:
		return false
	}
}

// InFlight reports whether a persisted outcome is resumable.
func (o Outcome) InFlight() bool {
	return o == OutcomeRunning || o == OutcomeAwaitingResume
}

// Identity is the account and host a checkpoint is bound to. Blob
// encryption is keyed to the same pair; the explicit fields exist so a
// mismatch produces a precise error instead of a bare decryption
// failure.
type Identity struct {
	User string `json:"user"`
	Host string `json:"host"`
}

// CurrentIdentity resolves the local account and hostname.
func CurrentIdentity() (Identity, error) {
	u, err := user.Current()
	if err != nil {
		return Identity{}, fmt.Errorf("workflow: resolve current user: %w", err)
	}
	host, err := os.Hostname()
	if err != nil {
		return Identity{}, fmt.Errorf("workflow: resolve hostname: %w", err)
	}
	return Identity{User: u.Username, Host: host}, nil
}

// String renders the identity as "user@host", the form used as the seal
// key-derivation salt.
func (i Identity) String() string { return i.User + "@" + i.Host }

// State is the checkpointed snapshot of one workflow run. It is created
// on first task start, updated after every task transition, and deleted
// on terminal success, cancellation, or explicit clear.
type State struct {
	WorkflowID id.WorkflowID `json:"workflow_id"`
	RunID      id.RunID      `json:"run_id"`

	// NextIndex is the index of the next task to run. Monotonically
	// non-decreasing across the lifetime of one run.
	NextIndex int `json:"next_index"`

	// TaskNames mirrors the definition's task names so a resume against
	// a different definition is detected.
	TaskNames []string `json:"task_names"`

	// Statuses holds one status per task, in execution order.
	Statuses []task.Status `json:"statuses"`

	// Progress is cumulative workflow progress in [0, 100].
	Progress float64 `json:"progress"`

	// Outcome is the workflow-level state.
	Outcome Outcome `json:"outcome"`

	// Error records the first task failure message, if any.
	Error string `json:"error,omitempty"`

	// Seq strictly increases on every persisted update. Readers reject
	// a snapshot whose Seq does not advance past the last one observed.
	Seq uint64 `json:"seq"`

	// Identity binds the snapshot to the account and host that wrote it.
	Identity Identity `json:"identity"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewState builds the initial snapshot for a fresh run of def.
func NewState(def *Definition, ident Identity) *State {
	statuses := make([]task.Status, len(def.Tasks))
	for i := range statuses {
		statuses[i] = task.StatusPending
	}
	now := time.Now().UTC()
	return &State{
		WorkflowID: def.ID,
		RunID:      id.NewRunID(),
		TaskNames:  def.TaskNames(),
		Statuses:   statuses,
		Outcome:    OutcomeNotStarted,
		Identity:   ident,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Clone returns a deep copy safe to hand to observers and callers.
func (s *State) Clone() *State {
	cp := *s
	cp.TaskNames = append([]string(nil), s.TaskNames...)
	cp.Statuses = append([]task.Status(nil), s.Statuses...)
	return &cp
}

// FailedTasks returns the number of tasks in StatusFailed.
func (s *State) FailedTasks() int {
	n := 0
	for _, st := range s.Statuses {
		if st == task.StatusFailed {
			n++
		}
	}
	return n
}

// TaskStatus returns the status of the named task.
func (s *State) TaskStatus(name string) (task.Status, bool) {
	for i, n := range s.TaskNames {
		if n == name {
			return s.Statuses[i], true
		}
	}
	return "", false
}
