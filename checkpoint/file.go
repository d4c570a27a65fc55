package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/afero"

	"github.com/seqra/seqra"
	"github.com/seqra/seqra/id"
	"github.com/seqra/seqra/seal"
	"github.com/seqra/seqra/workflow"
)

const (
	stateSuffix = ".ckpt"
	lockSuffix  = ".lock"
)

// FileStore persists checkpoints as sealed files in a single directory,
// one state file and one lock file per workflow id.
type FileStore struct {
	fs        afero.Fs
	dir       string
	protector seal.Protector

	mu      sync.Mutex
	lastSeq map[string]uint64
	held    map[string]struct{}

	// alive probes whether the pid in a foreign lock file still runs.
	// Replaced in tests.
	alive func(pid int) bool
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a FileStore rooted at dir, creating the directory
// if needed.
func NewFileStore(fsys afero.Fs, dir string, protector seal.Protector) (*FileStore, error) {
	if err := fsys.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("checkpoint: create state dir %s: %w", dir, err)
	}
	return &FileStore{
		fs:        fsys,
		dir:       dir,
		protector: protector,
		lastSeq:   make(map[string]uint64),
		held:      make(map[string]struct{}),
		alive:     processAlive,
	}, nil
}

// Acquire implements Store. A lock file records the holder's pid; a lock
// whose process no longer exists (crash, reboot) is reclaimed.
func (s *FileStore) Acquire(_ context.Context, wfID id.WorkflowID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.lockPath(wfID)
	for attempt := 0; attempt < 2; attempt++ {
		f, err := s.fs.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			_, werr := f.WriteString(strconv.Itoa(os.Getpid()))
			cerr := f.Close()
			if werr != nil || cerr != nil {
				s.fs.Remove(path)
				return fmt.Errorf("checkpoint: write lock file %s: %w", path, errors.Join(werr, cerr))
			}
			s.held[wfID.String()] = struct{}{}
			return nil
		}

		if !s.lockIsStale(path) {
			return fmt.Errorf("checkpoint: %s held by another engine: %w", wfID, seqra.ErrWorkflowLocked)
		}
		// Stale holder: reclaim and retry the exclusive create once.
		if rmErr := s.fs.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			return fmt.Errorf("checkpoint: reclaim stale lock %s: %w", path, rmErr)
		}
	}
	return fmt.Errorf("checkpoint: %s lock contention: %w", wfID, seqra.ErrWorkflowLocked)
}

// lockIsStale reports whether the lock file's recorded pid is gone.
// Unreadable or malformed lock files count as stale.
func (s *FileStore) lockIsStale(path string) bool {
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return os.IsNotExist(err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return true
	}
	if pid == os.Getpid() {
		// Our own pid but not in held: a leftover from a previous
		// incarnation that recycled the pid, or a double-acquire.
		// held is checked by the caller path; treat as live.
		return false
	}
	return !s.alive(pid)
}

// Release implements Store.
func (s *FileStore) Release(wfID id.WorkflowID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.releaseLocked(wfID)
}

func (s *FileStore) releaseLocked(wfID id.WorkflowID) error {
	key := wfID.String()
	if _, ok := s.held[key]; !ok {
		return nil
	}
	delete(s.held, key)
	if err := s.fs.Remove(s.lockPath(wfID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("checkpoint: remove lock for %s: %w", wfID, err)
	}
	return nil
}

// Save implements Store. The snapshot is serialized, sealed, written to
// a temporary file in the same directory, and moved into place with a
// single rename — readers always see either the prior snapshot or the
// new one, never a partial write.
func (s *FileStore) Save(_ context.Context, st *workflow.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st.Seq++
	st.UpdatedAt = time.Now().UTC()

	plain, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("checkpoint: marshal state for %s: %w", st.WorkflowID, err)
	}
	blob, err := s.protector.Protect(plain)
	if err != nil {
		return fmt.Errorf("checkpoint: seal state for %s: %w", st.WorkflowID, err)
	}

	tmp, err := afero.TempFile(s.fs, s.dir, st.WorkflowID.String()+".tmp-*")
	if err != nil {
		return fmt.Errorf("checkpoint: create temp file for %s: %w", st.WorkflowID, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(blob); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return fmt.Errorf("checkpoint: write temp file for %s: %w", st.WorkflowID, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return fmt.Errorf("checkpoint: sync temp file for %s: %w", st.WorkflowID, err)
	}
	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("checkpoint: close temp file for %s: %w", st.WorkflowID, err)
	}

	if err := s.fs.Rename(tmpName, s.statePath(st.WorkflowID)); err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("checkpoint: move snapshot into place for %s: %w", st.WorkflowID, err)
	}

	s.lastSeq[st.WorkflowID.String()] = st.Seq
	return nil
}

// Load implements Store.
func (s *FileStore) Load(_ context.Context, wfID id.WorkflowID) (*workflow.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	blob, err := afero.ReadFile(s.fs, s.statePath(wfID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("checkpoint: %s: %w", wfID, seqra.ErrStateNotFound)
		}
		return nil, fmt.Errorf("checkpoint: read snapshot for %s: %w", wfID, err)
	}

	plain, err := s.protector.Unprotect(blob)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: unseal snapshot for %s: %w", wfID, err)
	}

	var st workflow.State
	if err := json.Unmarshal(plain, &st); err != nil {
		return nil, fmt.Errorf("checkpoint: decode snapshot for %s: %w", wfID, err)
	}

	// A snapshot older than one already observed means something
	// replaced the file with stale state. Equal sequence numbers are
	// accepted: re-reading the current snapshot is not a replay.
	if last, ok := s.lastSeq[wfID.String()]; ok && st.Seq < last {
		return nil, fmt.Errorf("checkpoint: %s seq %d behind observed %d: %w",
			wfID, st.Seq, last, seqra.ErrStaleState)
	}
	s.lastSeq[wfID.String()] = st.Seq

	return &st, nil
}

// Delete implements Store.
func (s *FileStore) Delete(_ context.Context, wfID id.WorkflowID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fs.Remove(s.statePath(wfID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("checkpoint: delete snapshot for %s: %w", wfID, err)
	}
	return nil
}

// Path implements Store.
func (s *FileStore) Path(wfID id.WorkflowID) string { return s.statePath(wfID) }

// Close implements Store, releasing every held lock.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for key := range s.held {
		wfID, err := id.Parse(key)
		if err != nil {
			continue
		}
		if err := s.releaseLocked(wfID); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *FileStore) statePath(wfID id.WorkflowID) string {
	return filepath.Join(s.dir, wfID.String()+stateSuffix)
}

func (s *FileStore) lockPath(wfID id.WorkflowID) string {
	return filepath.Join(s.dir, wfID.String()+lockSuffix)
}

// processAlive reports whether a pid refers to a live process.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
