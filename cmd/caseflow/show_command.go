package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"caseflow/internal/api"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show progress for an application or workflow instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				inst, err := client.Report(cmd.Context(), strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, inst)
				}
				printInstance(cmd, inst)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine readable output")
	return cmd
}

func printInstance(cmd *cobra.Command, inst api.InstanceView) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	for _, line := range renderSectionHeader("Application "+inst.ApplicationID, colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("Instance", statusInfo, inst.ID, colorize))
	fmt.Fprintln(out, renderStatusLine("Status", statusKindForInstance(inst.Status), inst.Status, colorize))
	fmt.Fprintln(out, renderStatusLine("Stage", statusInfo, inst.CurrentStageLabel, colorize))
	fmt.Fprintln(out, renderStatusLine("Progress", statusInfo, fmt.Sprintf("%d%%", inst.ProgressPercent), colorize))
	if inst.EstimatedSecondsRemaining > 0 {
		fmt.Fprintln(out, renderStatusLine("Remaining", statusInfo, formatSeconds(inst.EstimatedSecondsRemaining), colorize))
	}
	if inst.CancelRequested {
		fmt.Fprintln(out, renderStatusLine("Cancellation", statusWarn, "requested", colorize))
	}

	if len(inst.Steps) > 0 {
		fmt.Fprintln(out)
		rows := make([][]string, 0, len(inst.Steps))
		for _, step := range inst.Steps {
			rows = append(rows, []string{
				step.Label,
				fmt.Sprintf("%d", step.Attempt),
				step.Outcome,
				fmt.Sprintf("%.1fs", step.DurationSeconds),
				step.Message,
			})
		}
		fmt.Fprintln(out, renderTable(
			[]string{"Stage", "Attempt", "Outcome", "Duration", "Message"},
			rows,
			[]columnAlignment{alignLeft, alignRight, alignLeft, alignRight, alignLeft},
		))
	}

	if len(inst.Errors) > 0 {
		fmt.Fprintln(out)
		for _, failure := range inst.Errors {
			detail := fmt.Sprintf("%s (attempt %d): %s", failure.Stage, failure.Attempt, failure.Reason)
			fmt.Fprintln(out, renderStatusLine("Failure", statusError, detail, colorize))
		}
	}
}

func statusKindForInstance(status string) statusKind {
	switch status {
	case "completed":
		return statusOK
	case "failed", "expired":
		return statusError
	case "in_progress":
		return statusInfo
	default:
		return statusWarn
	}
}

func formatSeconds(seconds int64) string {
	if seconds >= 120 {
		return fmt.Sprintf("about %d minutes", (seconds+30)/60)
	}
	return fmt.Sprintf("about %d seconds", seconds)
}
