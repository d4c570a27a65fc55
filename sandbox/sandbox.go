// Package sandbox runs task bodies inside isolated execution contexts.
// External script references run as subprocesses; inline bodies run in
// their own goroutine. Both stream output lines through a common Context
// interface and honour cooperative cancellation with a bounded grace
// period before forced termination.
package sandbox

import (
	"context"
	"time"

	"github.com/seqra/seqra/task"
)

// Context is the isolated execution context for one task body.
type Context interface {
	// Run executes the body to completion, delivering output lines on
	// the Output channel. Cancelling ctx requests a cooperative stop;
	// if the body does not exit within the grace period it is forcibly
	// terminated. The Output channel is closed before Run returns.
	Run(ctx context.Context) error

	// Output returns the channel output lines are delivered on. The
	// channel is unbuffered: a blocked reader back-pressures the body.
	Output() <-chan string
}

// New builds the execution context matching the body's variant.
func New(body task.Body, grace time.Duration) Context {
	if body.Kind() == task.KindScript {
		return newProcessContext(body, grace)
	}
	return newInlineContext(body, grace)
}
