package sandbox_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/seqra/seqra"
	"github.com/seqra/seqra/sandbox"
	"github.com/seqra/seqra/task"
)

func drain(t *testing.T, sb sandbox.Context) ([]string, error) {
	t.Helper()

	var lines []string
	done := make(chan error, 1)
	go func() { done <- sb.Run(context.Background()) }()
	for line := range sb.Output() {
		lines = append(lines, line)
	}
	return lines, <-done
}

func TestInlineBodyStreamsOutput(t *testing.T) {
	body := task.InlineBody(func(_ context.Context, emit func(string)) error {
		emit("step one")
		emit("step two")
		return nil
	})

	lines, err := drain(t, sandbox.New(body, time.Second))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(lines) != 2 || lines[0] != "step one" || lines[1] != "step two" {
		t.Errorf("lines = %v", lines)
	}
}

func TestInlineBodyError(t *testing.T) {
	wantErr := errors.New("install failed")
	body := task.InlineBody(func(_ context.Context, _ func(string)) error {
		return wantErr
	})

	_, err := drain(t, sandbox.New(body, time.Second))
	if !errors.Is(err, wantErr) {
		t.Errorf("got %v, want %v", err, wantErr)
	}
	if !errors.Is(err, seqra.ErrTaskExecution) {
		t.Errorf("got %v, want ErrTaskExecution", err)
	}
}

func TestInlineBodyPanicIsAnError(t *testing.T) {
	body := task.InlineBody(func(_ context.Context, _ func(string)) error {
		panic("unexpected")
	})

	_, err := drain(t, sandbox.New(body, time.Second))
	if err == nil {
		t.Fatal("expected error from panicking body")
	}
}

func TestInlineCooperativeCancel(t *testing.T) {
	started := make(chan struct{})
	body := task.InlineBody(func(ctx context.Context, _ func(string)) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})

	sb := sandbox.New(body, time.Second)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- sb.Run(ctx) }()
	go func() {
		for range sb.Output() {
		}
	}()

	<-started
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("got %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cooperative cancel did not complete")
	}
}

func TestInlineAbandonedAfterGrace(t *testing.T) {
	blocked := make(chan struct{})
	body := task.InlineBody(func(_ context.Context, _ func(string)) error {
		<-blocked // ignores cancellation
		return nil
	})
	defer close(blocked)

	sb := sandbox.New(body, 30*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- sb.Run(ctx) }()
	go func() {
		for range sb.Output() {
		}
	}()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("got %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not abandon an uncooperative body after the grace period")
	}
}

func writeScript(t *testing.T, content string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script tests are unix-only")
	}
	path := filepath.Join(t.TempDir(), "body.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+content), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestScriptBodyStreamsOutput(t *testing.T) {
	path := writeScript(t, "echo alpha\necho beta 1>&2\necho gamma\n")

	lines, err := drain(t, sandbox.New(task.ScriptBody(path), time.Second))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(lines) != 3 {
		t.Fatalf("lines = %v, want 3 entries", lines)
	}
}

func TestScriptBodyNonZeroExit(t *testing.T) {
	path := writeScript(t, "exit 3\n")

	_, err := drain(t, sandbox.New(task.ScriptBody(path), time.Second))
	if !errors.Is(err, seqra.ErrTaskExecution) {
		t.Fatalf("got %v, want ErrTaskExecution", err)
	}
}

func TestScriptBodyMissingFile(t *testing.T) {
	sb := sandbox.New(task.ScriptBody("/nonexistent/script.sh"), time.Second)
	_, err := drain(t, sb)
	if err == nil {
		t.Fatal("expected error for missing script")
	}
}

func TestScriptForceKillAfterGrace(t *testing.T) {
	// The script traps the interrupt and refuses to die; WaitDelay must
	// escalate to a kill.
	path := writeScript(t, "trap '' INT TERM\necho running\nexec sleep 60\n")

	sb := sandbox.New(task.ScriptBody(path), 50*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- sb.Run(ctx) }()
	for range sb.Output() {
		cancel() // saw "running": request stop
	}

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("got %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("process was not force-terminated after the grace period")
	}
}
