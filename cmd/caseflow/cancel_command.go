package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"caseflow/internal/api"
)

func newCancelCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "cancel <id>",
		Short: "Request cancellation of a running workflow instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				inst, err := client.Cancel(cmd.Context(), strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, inst)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Cancellation requested for instance %s\n", inst.ID)
				fmt.Fprintf(out, "Current status: %s at %s\n", inst.Status, inst.CurrentStageLabel)
				fmt.Fprintln(out, "The instance stops at its next stage boundary")
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine readable output")
	return cmd
}
