package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"caseflow/internal/api"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show engine and stage health status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				status, err := client.Status(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, status)
				}
				printEngineStatus(cmd, status)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine readable output")
	return cmd
}

func printEngineStatus(cmd *cobra.Command, status api.EngineStatus) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	for _, line := range renderSectionHeader("Engine Status", colorize) {
		fmt.Fprintln(out, line)
	}
	runningKind := statusError
	runningText := "stopped"
	if status.Running {
		runningKind = statusOK
		runningText = "running"
	}
	fmt.Fprintln(out, renderStatusLine("Engine", runningKind, runningText, colorize))
	fmt.Fprintln(out, renderStatusLine("Instances", statusInfo, fmt.Sprintf("%d total", status.Total), colorize))

	if len(status.StageHealth) > 0 {
		fmt.Fprintln(out)
		for _, line := range renderSectionHeader("Stage Health", colorize) {
			fmt.Fprintln(out, line)
		}
		for _, health := range status.StageHealth {
			if health.Ready {
				fmt.Fprintln(out, renderStatusLine(health.Name, statusOK, "Ready", colorize))
				continue
			}
			detail := health.Detail
			if detail == "" {
				detail = "not ready"
			}
			fmt.Fprintln(out, renderStatusLine(health.Name, statusWarn, detail, colorize))
		}
	}

	if status.Database != nil {
		fmt.Fprintln(out)
		for _, line := range renderSectionHeader("Database", colorize) {
			fmt.Fprintln(out, line)
		}
		db := status.Database
		kind := statusOK
		detail := db.Path
		if !db.Readable || !db.IntegrityOK {
			kind = statusError
			if db.Error != "" {
				detail = db.Error
			}
		}
		fmt.Fprintln(out, renderStatusLine("Store", kind, detail, colorize))
		fmt.Fprintln(out, renderStatusLine("Open attempts", statusInfo, fmt.Sprintf("%d", db.OpenAttempts), colorize))
	}

	fmt.Fprintln(out)
	for _, line := range renderSectionHeader("Instances", colorize) {
		fmt.Fprintln(out, line)
	}
	rows := buildStatusRows(status.ByStatus)
	if len(rows) == 0 {
		fmt.Fprintln(out, "No workflow instances yet")
		return
	}
	fmt.Fprintln(out, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
}

func buildStatusRows(byStatus map[string]int) [][]string {
	keys := make([]string, 0, len(byStatus))
	for key, count := range byStatus {
		if count > 0 {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{key, fmt.Sprintf("%d", byStatus[key])})
	}
	return rows
}
