package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/seqra/seqra/id"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <workflow-id>",
		Short: "Show the persisted state of a workflow.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wfID, err := id.ParseWorkflowID(args[0])
			if err != nil {
				return err
			}

			eng, err := buildEngine(cmd, "")
			if err != nil {
				return err
			}
			defer eng.Close(context.Background())

			st, err := eng.Status(cmd.Context(), wfID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "workflow:  %s\n", st.WorkflowID)
			fmt.Fprintf(out, "run:       %s\n", st.RunID)
			fmt.Fprintf(out, "outcome:   %s\n", st.Outcome)
			fmt.Fprintf(out, "progress:  %.0f%%\n", st.Progress)
			fmt.Fprintf(out, "identity:  %s\n", st.Identity)
			fmt.Fprintf(out, "updated:   %s\n", st.UpdatedAt.Local())
			if st.Error != "" {
				fmt.Fprintf(out, "error:     %s\n", st.Error)
			}

			w := tabwriter.NewWriter(out, 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "\nTASK\tSTATUS")
			for i, name := range st.TaskNames {
				fmt.Fprintf(w, "%s\t%s\n", name, st.Statuses[i])
			}
			return w.Flush()
		},
	}
}
