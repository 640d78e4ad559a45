package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"caseflow/internal/api"
)

func newSweepCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run an expiry and reclaim pass immediately",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				result, err := client.Sweep(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, result)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Expired %d instance(s)\n", result.Expired)
				fmt.Fprintf(out, "Reclaimed %d stale attempt(s)\n", result.Reclaimed)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine readable output")
	return cmd
}
