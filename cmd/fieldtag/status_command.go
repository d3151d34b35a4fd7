package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			status, err := client.Status(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, status)
			}

			out := cmd.OutOrStdout()
			running := "stopped"
			if status.Running {
				running = "running"
			}
			fmt.Fprintf(out, "Daemon: %s (pid %d)\n", running, status.PID)
			fmt.Fprintf(out, "Store: %s\n", status.StorePath)
			fmt.Fprintf(out, "Entries: %d  Studies: %d  Staging rows: %d\n", status.Entries, status.Studies, status.StagingRows)

			if len(status.Preflight) > 0 {
				colorize := isTerminal(out)
				rows := make([][]string, 0, len(status.Preflight))
				for _, check := range status.Preflight {
					state := "ok"
					if !check.Passed {
						state = "failed"
					}
					if colorize {
						if check.Passed {
							state = ansiGreen + state + ansiReset
						} else {
							state = ansiRed + state + ansiReset
						}
					}
					rows = append(rows, []string{check.Name, state, check.Detail})
				}
				fmt.Fprintln(out, renderTable([]string{"Check", "State", "Detail"}, rows))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON output")
	return cmd
}
