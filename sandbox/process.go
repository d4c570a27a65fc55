package sandbox

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/seqra/seqra"
	"github.com/seqra/seqra/task"
)

// processContext executes an external script reference as a subprocess,
// scanning its combined stdout/stderr line by line.
type processContext struct {
	script string
	args   []string
	grace  time.Duration
	out    chan string
}

func newProcessContext(body task.Body, grace time.Duration) *processContext {
	return &processContext{
		script: body.Script,
		args:   body.Args,
		grace:  grace,
		out:    make(chan string),
	}
}

// Run implements Context.
func (p *processContext) Run(ctx context.Context) error {
	defer close(p.out)

	cmd := exec.CommandContext(ctx, p.script, p.args...)
	// Cooperative stop first: forward an interrupt on ctx cancel, then
	// let WaitDelay escalate to a kill after the grace period.
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = p.grace

	pr, pw, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("sandbox: output pipe for %s: %w", p.script, err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return fmt.Errorf("sandbox: start %s: %w", p.script, err)
	}
	// Close the parent's write end so the scanner sees EOF when the
	// child exits.
	pw.Close()
	defer pr.Close()

	scanner := bufio.NewScanner(pr)
	for scanner.Scan() {
		select {
		case p.out <- scanner.Text():
		case <-ctx.Done():
			// The reader is gone. Keep draining so the pipe never
			// blocks the dying process, but stop forwarding.
			for scanner.Scan() {
			}
		}
	}

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("sandbox: %s: %w: %w", p.script, seqra.ErrTaskExecution, err)
	}
	return ctx.Err()
}

// Output implements Context.
func (p *processContext) Output() <-chan string { return p.out }
