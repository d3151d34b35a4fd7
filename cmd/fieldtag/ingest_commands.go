package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fieldtag/internal/api"
)

func newIngestCommand(ctx *commandContext) *cobra.Command {
	ingestCmd := &cobra.Command{
		Use:   "ingest",
		Short: "Run the two-stage ingestion pipeline",
	}

	ingestCmd.AddCommand(newIngestMetadataCommand(ctx))
	ingestCmd.AddCommand(newIngestArchiveCommand(ctx))
	return ingestCmd
}

func newIngestMetadataCommand(ctx *commandContext) *cobra.Command {
	var dataset string
	var actor string

	cmd := &cobra.Command{
		Use:   "metadata <file>",
		Short: "Stage a delimited metadata file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			report, err := client.IngestMetadata(cmd.Context(), dataset, actor, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Staged %d rows (session %s)\n", report.RowsStaged, report.SessionID)
			fmt.Fprintln(out, "Upload the matching archive with: fieldtag ingest archive --session", report.SessionID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&dataset, "dataset", "d", "", "Dataset label for the staged rows")
	cmd.Flags().StringVar(&actor, "actor", "", "Identity recorded as the ingesting actor")
	_ = cmd.MarkFlagRequired("dataset")
	return cmd
}

func newIngestArchiveCommand(ctx *commandContext) *cobra.Command {
	var session string

	cmd := &cobra.Command{
		Use:   "archive <file>",
		Short: "Reconcile a media archive against staged metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			report, err := client.IngestArchive(cmd.Context(), session, args[0])
			if err != nil {
				return err
			}
			printIngestReport(cmd, report)
			return nil
		},
	}

	cmd.Flags().StringVarP(&session, "session", "s", "", "Session id from the metadata stage")
	return cmd
}

func printIngestReport(cmd *cobra.Command, report *api.IngestReport) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Outcome: %s\n", report.Outcome)
	fmt.Fprintf(out, "Entries created: %d\n", len(report.EntriesCreated))
	if len(report.Warnings) == 0 {
		return
	}

	rows := make([][]string, 0, len(report.Warnings))
	for _, warning := range report.Warnings {
		rows = append(rows, []string{warning.Place, warning.Message})
	}
	fmt.Fprintln(out, renderTable([]string{"Place", "Warning"}, rows))
}
