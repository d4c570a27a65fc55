package checkpoint_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/seqra/seqra"
	"github.com/seqra/seqra/checkpoint"
	"github.com/seqra/seqra/id"
	"github.com/seqra/seqra/seal"
	"github.com/seqra/seqra/task"
	"github.com/seqra/seqra/workflow"
)

func testProtector(t *testing.T) seal.Protector {
	t.Helper()
	master := make([]byte, 32)
	for i := range master {
		master[i] = byte(i)
	}
	ks, err := seal.NewKeyset(master, "tester@localhost")
	if err != nil {
		t.Fatalf("NewKeyset: %v", err)
	}
	return ks
}

func testState(wfID id.WorkflowID) *workflow.State {
	return &workflow.State{
		WorkflowID: wfID,
		RunID:      id.NewRunID(),
		TaskNames:  []string{"prepare", "install", "verify"},
		Statuses:   []task.Status{task.StatusCompleted, task.StatusRunning, task.StatusPending},
		NextIndex:  1,
		Progress:   33.4,
		Outcome:    workflow.OutcomeRunning,
		Identity:   workflow.Identity{User: "tester", Host: "localhost"},
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
}

func newFileStore(t *testing.T, fs afero.Fs) *checkpoint.FileStore {
	t.Helper()
	store, err := checkpoint.NewFileStore(fs, "/state", testProtector(t))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return store
}

func TestFileStoreSaveLoadRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := newFileStore(t, fs)
	defer store.Close()

	ctx := context.Background()
	wfID := id.NewWorkflowID()
	st := testState(wfID)

	if err := store.Save(ctx, st); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if st.Seq != 1 {
		t.Fatalf("Seq after first save = %d, want 1", st.Seq)
	}

	got, err := store.Load(ctx, wfID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.WorkflowID.String() != wfID.String() {
		t.Errorf("WorkflowID = %s, want %s", got.WorkflowID, wfID)
	}
	if got.NextIndex != st.NextIndex {
		t.Errorf("NextIndex = %d, want %d", got.NextIndex, st.NextIndex)
	}
	if got.Progress != st.Progress {
		t.Errorf("Progress = %v, want %v", got.Progress, st.Progress)
	}
	if got.Outcome != workflow.OutcomeRunning {
		t.Errorf("Outcome = %s, want %s", got.Outcome, workflow.OutcomeRunning)
	}
	if len(got.Statuses) != 3 || got.Statuses[0] != task.StatusCompleted {
		t.Errorf("Statuses = %v", got.Statuses)
	}
}

func TestFileStoreSnapshotIsSealedOnDisk(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := newFileStore(t, fs)
	defer store.Close()

	st := testState(id.NewWorkflowID())
	if err := store.Save(context.Background(), st); err != nil {
		t.Fatalf("Save: %v", err)
	}

	raw, err := afero.ReadFile(fs, store.Path(st.WorkflowID))
	if err != nil {
		t.Fatalf("read snapshot file: %v", err)
	}
	for _, leak := range []string{"install", "tester", st.RunID.String()} {
		if bytes.Contains(raw, []byte(leak)) {
			t.Errorf("snapshot leaks %q in cleartext", leak)
		}
	}
}

func TestFileStoreLoadMissing(t *testing.T) {
	store := newFileStore(t, afero.NewMemMapFs())
	defer store.Close()

	_, err := store.Load(context.Background(), id.NewWorkflowID())
	if !errors.Is(err, seqra.ErrStateNotFound) {
		t.Fatalf("Load missing = %v, want ErrStateNotFound", err)
	}
}

func TestFileStoreTamperedSnapshot(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := newFileStore(t, fs)
	defer store.Close()

	st := testState(id.NewWorkflowID())
	if err := store.Save(context.Background(), st); err != nil {
		t.Fatalf("Save: %v", err)
	}

	path := store.Path(st.WorkflowID)
	raw, _ := afero.ReadFile(fs, path)
	raw[len(raw)-1] ^= 0x01
	if err := afero.WriteFile(fs, path, raw, 0o600); err != nil {
		t.Fatalf("rewrite snapshot: %v", err)
	}

	_, err := store.Load(context.Background(), st.WorkflowID)
	if !errors.Is(err, seqra.ErrIntegrity) && !errors.Is(err, seqra.ErrUnsupportedFormat) {
		t.Fatalf("Load tampered = %v, want integrity or format error", err)
	}
}

func TestFileStoreStaleSequenceRejected(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := newFileStore(t, fs)
	defer store.Close()

	ctx := context.Background()
	st := testState(id.NewWorkflowID())
	path := store.Path(st.WorkflowID)

	if err := store.Save(ctx, st); err != nil {
		t.Fatalf("Save 1: %v", err)
	}
	old, err := afero.ReadFile(fs, path)
	if err != nil {
		t.Fatalf("read seq-1 snapshot: %v", err)
	}

	st.NextIndex = 2
	if err := store.Save(ctx, st); err != nil {
		t.Fatalf("Save 2: %v", err)
	}

	// Put the seq-1 snapshot back, as if an attacker rolled back the file.
	if err := afero.WriteFile(fs, path, old, 0o600); err != nil {
		t.Fatalf("restore old snapshot: %v", err)
	}

	if _, err := store.Load(ctx, st.WorkflowID); !errors.Is(err, seqra.ErrStaleState) {
		t.Fatalf("Load rolled-back snapshot = %v, want ErrStaleState", err)
	}
}

func TestFileStoreReloadSameSequenceAllowed(t *testing.T) {
	store := newFileStore(t, afero.NewMemMapFs())
	defer store.Close()

	ctx := context.Background()
	st := testState(id.NewWorkflowID())
	if err := store.Save(ctx, st); err != nil {
		t.Fatalf("Save: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := store.Load(ctx, st.WorkflowID); err != nil {
			t.Fatalf("Load %d: %v", i, err)
		}
	}
}

func TestFileStoreLeftoverTempFileIgnored(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := newFileStore(t, fs)
	defer store.Close()

	ctx := context.Background()
	st := testState(id.NewWorkflowID())
	if err := store.Save(ctx, st); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Simulate a crash mid-write: a half-written temp file next to the
	// real snapshot.
	junk := "/state/" + st.WorkflowID.String() + ".tmp-12345"
	if err := afero.WriteFile(fs, junk, []byte("partial"), 0o600); err != nil {
		t.Fatalf("write junk temp file: %v", err)
	}

	got, err := store.Load(ctx, st.WorkflowID)
	if err != nil {
		t.Fatalf("Load with leftover temp file: %v", err)
	}
	if got.Seq != st.Seq {
		t.Errorf("Seq = %d, want %d", got.Seq, st.Seq)
	}
}

func TestFileStoreDelete(t *testing.T) {
	store := newFileStore(t, afero.NewMemMapFs())
	defer store.Close()

	ctx := context.Background()
	st := testState(id.NewWorkflowID())
	if err := store.Save(ctx, st); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Delete(ctx, st.WorkflowID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Load(ctx, st.WorkflowID); !errors.Is(err, seqra.ErrStateNotFound) {
		t.Fatalf("Load after delete = %v, want ErrStateNotFound", err)
	}
	// Deleting twice is not an error.
	if err := store.Delete(ctx, st.WorkflowID); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
}

func TestFileStoreLockExcludesSecondEngine(t *testing.T) {
	fs := afero.NewMemMapFs()
	first := newFileStore(t, fs)
	defer first.Close()
	second := newFileStore(t, fs)
	defer second.Close()

	ctx := context.Background()
	wfID := id.NewWorkflowID()

	if err := first.Acquire(ctx, wfID); err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	if err := second.Acquire(ctx, wfID); !errors.Is(err, seqra.ErrWorkflowLocked) {
		t.Fatalf("second Acquire = %v, want ErrWorkflowLocked", err)
	}

	if err := first.Release(wfID); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := second.Acquire(ctx, wfID); err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
}

func TestFileStoreStaleLockReclaimed(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := newFileStore(t, fs)
	defer store.Close()
	checkpoint.SetAliveProbe(store, func(int) bool { return false })

	wfID := id.NewWorkflowID()
	lock := "/state/" + wfID.String() + ".lock"
	if err := afero.WriteFile(fs, lock, []byte("99999"), 0o600); err != nil {
		t.Fatalf("plant stale lock: %v", err)
	}

	if err := store.Acquire(context.Background(), wfID); err != nil {
		t.Fatalf("Acquire over stale lock: %v", err)
	}
}

func TestFileStoreCloseReleasesLocks(t *testing.T) {
	fs := afero.NewMemMapFs()
	first := newFileStore(t, fs)
	wfID := id.NewWorkflowID()
	if err := first.Acquire(context.Background(), wfID); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	second := newFileStore(t, fs)
	defer second.Close()
	if err := second.Acquire(context.Background(), wfID); err != nil {
		t.Fatalf("Acquire after Close: %v", err)
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	defer store.Close()

	ctx := context.Background()
	st := testState(id.NewWorkflowID())
	if err := store.Save(ctx, st); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Load(ctx, st.WorkflowID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	// Stored copy must be isolated from later caller mutations.
	st.Statuses[2] = task.StatusFailed
	if got.Statuses[2] == task.StatusFailed {
		t.Error("Load returned a snapshot aliased to the saved state")
	}

	if err := store.Delete(ctx, st.WorkflowID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Load(ctx, st.WorkflowID); !errors.Is(err, seqra.ErrStateNotFound) {
		t.Fatalf("Load after delete = %v, want ErrStateNotFound", err)
	}
}

func TestMemoryStoreLock(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	defer store.Close()

	ctx := context.Background()
	wfID := id.NewWorkflowID()
	if err := store.Acquire(ctx, wfID); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := store.Acquire(ctx, wfID); !errors.Is(err, seqra.ErrWorkflowLocked) {
		t.Fatalf("double Acquire = %v, want ErrWorkflowLocked", err)
	}
	if err := store.Release(wfID); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := store.Acquire(ctx, wfID); err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
}
