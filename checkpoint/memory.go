package checkpoint

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/seqra/seqra"
	"github.com/seqra/seqra/id"
	"github.com/seqra/seqra/workflow"
)

// MemoryStore keeps checkpoints in process memory. It honors the same
// locking and sequencing contract as FileStore and is intended for
// tests and embedded use where persistence across restarts is not
// needed.
type MemoryStore struct {
	mu     sync.Mutex
	states map[string]*workflow.State
	held   map[string]struct{}
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states: make(map[string]*workflow.State),
		held:   make(map[string]struct{}),
	}
}

// Acquire implements Store.
func (s *MemoryStore) Acquire(_ context.Context, wfID id.WorkflowID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := wfID.String()
	if _, ok := s.held[key]; ok {
		return fmt.Errorf("checkpoint: %s held by another engine: %w", wfID, seqra.ErrWorkflowLocked)
	}
	s.held[key] = struct{}{}
	return nil
}

// Release implements Store.
func (s *MemoryStore) Release(wfID id.WorkflowID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.held, wfID.String())
	return nil
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, st *workflow.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st.Seq++
	st.UpdatedAt = time.Now().UTC()
	s.states[st.WorkflowID.String()] = st.Clone()
	return nil
}

// Load implements Store.
func (s *MemoryStore) Load(_ context.Context, wfID id.WorkflowID) (*workflow.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[wfID.String()]
	if !ok {
		return nil, fmt.Errorf("checkpoint: %s: %w", wfID, seqra.ErrStateNotFound)
	}
	return st.Clone(), nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, wfID id.WorkflowID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, wfID.String())
	return nil
}

// Path implements Store. Memory snapshots have no on-disk location.
func (s *MemoryStore) Path(id.WorkflowID) string { return "" }

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.held = make(map[string]struct{})
	return nil
}
