package seqra

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds configuration shared by the engine and its subsystems.
type Config struct {
	// StateDir is the directory holding checkpoint files, lock files,
	// and the per-install master key.
	StateDir string

	// CancelGrace is how long a cancelled task body is given to stop
	// cooperatively before it is forcibly terminated. A workflow
	// definition may override it per run.
	CancelGrace time.Duration

	// OutputBuffer is the per-observer buffer for output events.
	// When an observer's buffer is full, publishing blocks — output is
	// never dropped.
	OutputBuffer int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		StateDir:     defaultStateDir(),
		CancelGrace:  10 * time.Second,
		OutputBuffer: 64,
	}
}

// defaultStateDir resolves the per-user state directory, falling back
// to a fixed location under the system temp dir when the user config
// dir cannot be determined.
func defaultStateDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "seqra")
	}
	return filepath.Join(os.TempDir(), "seqra")
}
