package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seqra/seqra/id"
)

func newClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <workflow-id>",
		Short: "Discard the persisted state and restart hook of a workflow.",
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

			if err := eng.ClearState(cmd.Context(), wfID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cleared %s\n", wfID)
			return nil
		},
	}
}
