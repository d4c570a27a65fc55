package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/seqra/seqra/engine"
	"github.com/seqra/seqra/event"
	"github.com/seqra/seqra/task"
	"github.com/seqra/seqra/workflow"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <definition.yaml>",
		Short: "Start a fresh run of a workflow definition.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, args[0], false)
		},
	}
}

func newResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume <definition.yaml>",
		Short: "Continue a workflow from its persisted checkpoint.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, args[0], true)
		},
	}
}

// execute drives one run or resume: it streams output records to
// stdout, converts the first interrupt into a cooperative cancellation,
// and maps the final outcome to the process exit status.
func execute(cmd *cobra.Command, definitionPath string, resuming bool) error {
	def, err := workflow.LoadDefinition(afero.NewOsFs(), definitionPath)
	if err != nil {
		return err
	}

	eng, err := buildEngine(cmd, definitionPath)
	if err != nil {
		return err
	}
	defer eng.Close(context.Background())

	sub := eng.Subscribe("cli")
	defer eng.Unsubscribe("cli")

	out := cmd.OutOrStdout()
	var wg sync.WaitGroup
	wg.Add(1)
	printRecord := func(rec *event.Record) {
		switch {
		case rec.Message != "":
			fmt.Fprintf(out, "[%s] %s\n", rec.Task, rec.Message)
		case rec.Status == task.StatusRunning:
			fmt.Fprintf(out, "── %s (%.0f%%)\n", rec.Task, rec.Progress)
		default:
			fmt.Fprintf(out, "── %s: %s (%.0f%%)\n", rec.Task, rec.Status, rec.Progress)
		}
	}
	go func() {
		defer wg.Done()
		for {
			select {
			case rec := <-sub.C():
				printRecord(rec)
			case <-sub.Done():
				// Flush whatever is still buffered.
				for {
					select {
					case rec := <-sub.C():
						printRecord(rec)
					default:
						return
					}
				}
			}
		}
	}()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	var run *engine.Run
	if resuming {
		run, err = eng.Resume(sigCtx, def)
	} else {
		run, err = eng.Start(sigCtx, def)
	}
	if err != nil {
		return err
	}

	// First interrupt cancels cooperatively; the engine escalates to a
	// forced kill after the grace period.
	go func() {
		<-sigCtx.Done()
		if ctx.Err() == nil {
			eng.Cancel(context.Background(), def.ID)
		}
	}()

	waitCtx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	st, err := run.Wait(waitCtx)
	if err != nil {
		return err
	}

	eng.Unsubscribe("cli")
	wg.Wait()

	fmt.Fprintf(out, "workflow %s: %s (%.0f%%)\n", def.ID, st.Outcome, st.Progress)
	switch st.Outcome {
	case workflow.OutcomeCompleted, workflow.OutcomeAwaitingResume:
		if st.Outcome == workflow.OutcomeAwaitingResume {
			fmt.Fprintln(out, "reboot required; the run resumes at next login")
		}
		return nil
	case workflow.OutcomeCompletedWithFailures:
		return fmt.Errorf("completed with %d failed task(s): %s", st.FailedTasks(), st.Error)
	case workflow.OutcomeCancelled:
		return fmt.Errorf("cancelled")
	default:
		return fmt.Errorf("failed: %s", st.Error)
	}
}
