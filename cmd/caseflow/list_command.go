package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"caseflow/internal/api"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List workflow instances",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				instances, err := client.List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, map[string]any{"instances": instances})
				}

				out := cmd.OutOrStdout()
				if len(instances) == 0 {
					fmt.Fprintln(out, "No workflow instances found")
					return nil
				}
				rows := make([][]string, 0, len(instances))
				for _, inst := range instances {
					rows = append(rows, []string{
						inst.ID,
						inst.ApplicationID,
						inst.Status,
						inst.CurrentStageLabel,
						fmt.Sprintf("%d%%", inst.ProgressPercent),
						inst.UpdatedAt,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Instance", "Application", "Status", "Stage", "Progress", "Updated"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Filter by status (repeatable)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine readable output")
	return cmd
}
