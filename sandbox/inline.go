package sandbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/seqra/seqra"
	"github.com/seqra/seqra/task"
)

// inlineContext executes an inline body in its own goroutine. A goroutine
// cannot be killed, so "forced termination" here means abandoning the
// body after the grace period: Run returns and the orphaned goroutine's
// emits are discarded.
type inlineContext struct {
	fn    task.InlineFunc
	grace time.Duration

	mu     sync.RWMutex
	out    chan string
	closed bool
}

func newInlineContext(body task.Body, grace time.Duration) *inlineContext {
	return &inlineContext{
		fn:    body.Inline,
		grace: grace,
		out:   make(chan string),
	}
}

// Run implements Context.
func (c *inlineContext) Run(ctx context.Context) error {
	bodyCtx, cancel := context.WithCancel(ctx)
	// Cancel before closing the channel: a blocked emit unblocks via
	// bodyCtx and releases its read lock, letting closeOut proceed.
	defer c.closeOut()
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("sandbox: task body panicked: %v", r)
			}
		}()
		done <- c.fn(bodyCtx, func(line string) { c.emit(bodyCtx, line) })
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%w: %w", seqra.ErrTaskExecution, err)
		}
		return ctx.Err()
	case <-ctx.Done():
	}

	// Cooperative window: the body saw ctx cancellation; give it the
	// grace period to return before abandoning it.
	timer := time.NewTimer(c.grace)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
	}
	return ctx.Err()
}

// emit delivers one output line, blocking until the reader takes it.
// Lines are discarded once the body context ends or the channel is
// closed, so an abandoned goroutine never blocks or panics.
func (c *inlineContext) emit(bodyCtx context.Context, line string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.out <- line:
	case <-bodyCtx.Done():
	}
}

func (c *inlineContext) closeOut() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.out)
	}
}

// Output implements Context.
func (c *inlineContext) Output() <-chan string { return c.out }
