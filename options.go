package seqra

import (
	"fmt"
	"time"
)

// Option configures a Config.
type Option func(*Config) error

// NewConfig builds a Config from defaults plus the given options.
func NewConfig(opts ...Option) (Config, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}

// WithStateDir sets the directory for checkpoint and key files.
func WithStateDir(dir string) Option {
	return func(c *Config) error {
		if dir == "" {
			return fmt.Errorf("seqra: state dir must not be empty")
		}
		c.StateDir = dir
		return nil
	}
}

// WithCancelGrace sets the cooperative cancellation grace period.
func WithCancelGrace(d time.Duration) Option {
	return func(c *Config) error {
		if d <= 0 {
			return fmt.Errorf("seqra: cancel grace must be positive, got %v", d)
		}
		c.CancelGrace = d
		return nil
	}
}

// WithOutputBuffer sets the per-observer output event buffer size.
func WithOutputBuffer(n int) Option {
	return func(c *Config) error {
		if n < 1 {
			return fmt.Errorf("seqra: output buffer must be at least 1, got %d", n)
		}
		c.OutputBuffer = n
		return nil
	}
}
