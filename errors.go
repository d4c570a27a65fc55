package seqra

import "errors"

var (
	// Definition errors.
	ErrValidation = errors.New("seqra: invalid workflow definition")

	// Task errors.
	ErrTaskExecution = errors.New("seqra: task execution failed")

	// Secure store errors.
	ErrIntegrity         = errors.New("seqra: blob integrity verification failed")
	ErrDecryption        = errors.New("seqra: blob decryption failed")
	ErrUnsupportedFormat = errors.New("seqra: unsupported blob format")

	// Checkpoint errors.
	ErrStateNotFound  = errors.New("seqra: checkpoint state not found")
	ErrStaleState     = errors.New("seqra: stale checkpoint sequence")
	ErrWorkflowLocked = errors.New("seqra: workflow locked by another engine")

	// Engine state errors.
	ErrInvalidState = errors.New("seqra: invalid workflow state transition")
	ErrNotRunning   = errors.New("seqra: workflow is not running")

	// Resume errors.
	ErrResume = errors.New("seqra: cannot resume from checkpoint")
)
