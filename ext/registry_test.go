package ext_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/seqra/seqra/ext"
	"github.com/seqra/seqra/id"
	"github.com/seqra/seqra/workflow"
)

// allHooksExt implements every lifecycle hook for testing.
type allHooksExt struct {
	calls []string
}

func (e *allHooksExt) Name() string { return "all-hooks" }

func (e *allHooksExt) OnTaskStarted(_ context.Context, _ *workflow.State, _ string) error {
	e.calls = append(e.calls, "OnTaskStarted")
	return nil
}

func (e *allHooksExt) OnTaskCompleted(_ context.Context, _ *workflow.State, _ string, _ time.Duration) error {
	e.calls = append(e.calls, "OnTaskCompleted")
	return nil
}

func (e *allHooksExt) OnTaskFailed(_ context.Context, _ *workflow.State, _ string, _ error) error {
	e.calls = append(e.calls, "OnTaskFailed")
	return nil
}

func (e *allHooksExt) OnTaskSkipped(_ context.Context, _ *workflow.State, _ string) error {
	e.calls = append(e.calls, "OnTaskSkipped")
	return nil
}

func (e *allHooksExt) OnWorkflowStarted(_ context.Context, _ *workflow.State) error {
	e.calls = append(e.calls, "OnWorkflowStarted")
	return nil
}

func (e *allHooksExt) OnWorkflowCompleted(_ context.Context, _ *workflow.State, _ time.Duration) error {
	e.calls = append(e.calls, "OnWorkflowCompleted")
	return nil
}

func (e *allHooksExt) OnWorkflowFailed(_ context.Context, _ *workflow.State, _ error) error {
	e.calls = append(e.calls, "OnWorkflowFailed")
	return nil
}

func (e *allHooksExt) OnWorkflowCancelled(_ context.Context, _ *workflow.State) error {
	e.calls = append(e.calls, "OnWorkflowCancelled")
	return nil
}

func (e *allHooksExt) OnWorkflowAwaitingResume(_ context.Context, _ *workflow.State) error {
	e.calls = append(e.calls, "OnWorkflowAwaitingResume")
	return nil
}

func (e *allHooksExt) OnShutdown(_ context.Context) error {
	e.calls = append(e.calls, "OnShutdown")
	return nil
}

// startedOnlyExt implements only the TaskStarted hook.
type startedOnlyExt struct {
	count int
}

func (e *startedOnlyExt) Name() string { return "started-only" }

func (e *startedOnlyExt) OnTaskStarted(_ context.Context, _ *workflow.State, _ string) error {
	e.count++
	return nil
}

// failingExt returns an error from every hook it implements.
type failingExt struct{}

func (e *failingExt) Name() string { return "failing" }

func (e *failingExt) OnTaskStarted(_ context.Context, _ *workflow.State, _ string) error {
	return errors.New("hook exploded")
}

func testState() *workflow.State {
	return &workflow.State{
		WorkflowID: id.NewWorkflowID(),
		RunID:      id.NewRunID(),
		Outcome:    workflow.OutcomeRunning,
	}
}

func newRegistry() *ext.Registry {
	return ext.NewRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRegistryEmitsAllHooks(t *testing.T) {
	reg := newRegistry()
	e := &allHooksExt{}
	reg.Register(e)

	ctx := context.Background()
	st := testState()

	reg.EmitTaskStarted(ctx, st, "t1")
	reg.EmitTaskCompleted(ctx, st, "t1", time.Second)
	reg.EmitTaskFailed(ctx, st, "t1", errors.New("boom"))
	reg.EmitTaskSkipped(ctx, st, "t2")
	reg.EmitWorkflowStarted(ctx, st)
	reg.EmitWorkflowCompleted(ctx, st, time.Second)
	reg.EmitWorkflowFailed(ctx, st, errors.New("boom"))
	reg.EmitWorkflowCancelled(ctx, st)
	reg.EmitWorkflowAwaitingResume(ctx, st)
	reg.EmitShutdown(ctx)

	want := []string{
		"OnTaskStarted", "OnTaskCompleted", "OnTaskFailed", "OnTaskSkipped",
		"OnWorkflowStarted", "OnWorkflowCompleted", "OnWorkflowFailed",
		"OnWorkflowCancelled", "OnWorkflowAwaitingResume", "OnShutdown",
	}
	if len(e.calls) != len(want) {
		t.Fatalf("got %d calls, want %d: %v", len(e.calls), len(want), e.calls)
	}
	for i, name := range want {
		if e.calls[i] != name {
			t.Errorf("call %d = %q, want %q", i, e.calls[i], name)
		}
	}
}

func TestRegistryOnlyNotifiesImplementedHooks(t *testing.T) {
	reg := newRegistry()
	e := &startedOnlyExt{}
	reg.Register(e)

	ctx := context.Background()
	st := testState()

	reg.EmitTaskStarted(ctx, st, "t1")
	reg.EmitTaskCompleted(ctx, st, "t1", time.Second)
	reg.EmitWorkflowFailed(ctx, st, errors.New("boom"))

	if e.count != 1 {
		t.Errorf("count = %d, want 1", e.count)
	}
}

func TestRegistryHookErrorDoesNotStopOthers(t *testing.T) {
	reg := newRegistry()
	reg.Register(&failingExt{})
	after := &startedOnlyExt{}
	reg.Register(after)

	reg.EmitTaskStarted(context.Background(), testState(), "t1")

	if after.count != 1 {
		t.Error("extension registered after a failing one was not notified")
	}
}

func TestExtensions(t *testing.T) {
	reg := newRegistry()
	reg.Register(&allHooksExt{})
	reg.Register(&startedOnlyExt{})

	if got := len(reg.Extensions()); got != 2 {
		t.Errorf("Extensions() = %d, want 2", got)
	}
}
