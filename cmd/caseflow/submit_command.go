package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"caseflow/internal/api"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var formPath string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "submit <application-id>",
		Short: "Submit a benefit application for processing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			applicationID := strings.TrimSpace(args[0])
			if applicationID == "" {
				return fmt.Errorf("application id is required")
			}

			form, err := readForm(cmd, formPath)
			if err != nil {
				return err
			}

			return ctx.withClient(func(client *api.Client) error {
				inst, err := client.Submit(cmd.Context(), applicationID, form)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, inst)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Submitted application %s\n", inst.ApplicationID)
				fmt.Fprintf(out, "Instance: %s\n", inst.ID)
				fmt.Fprintf(out, "Stage: %s\n", inst.CurrentStageLabel)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&formPath, "form", "f", "", "Path to the application form JSON (use - for stdin)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine readable output")
	return cmd
}

func readForm(cmd *cobra.Command, path string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, fmt.Errorf("--form is required")
	}

	var raw []byte
	var err error
	if trimmed == "-" {
		raw, err = io.ReadAll(cmd.InOrStdin())
	} else {
		raw, err = os.ReadFile(trimmed)
	}
	if err != nil {
		return nil, fmt.Errorf("read form: %w", err)
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("form %s is not valid JSON", trimmed)
	}
	return json.RawMessage(raw), nil
}
