package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"fieldtag/internal/api"
)

func newStudiesCommand(ctx *commandContext) *cobra.Command {
	studiesCmd := &cobra.Command{
		Use:   "studies",
		Short: "Inspect and manage tagging studies",
	}

	studiesCmd.AddCommand(newStudiesListCommand(ctx))
	studiesCmd.AddCommand(newStudiesCreateCommand(ctx))
	studiesCmd.AddCommand(newStudiesDeleteCommand(ctx))
	return studiesCmd
}

func newStudiesListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List studies",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			studies, err := client.Studies(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, studies)
			}

			if len(studies) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No studies defined")
				return nil
			}
			rows := make([][]string, 0, len(studies))
			for _, study := range studies {
				rows = append(rows, []string{
					strconv.FormatInt(study.ID, 10),
					study.Name,
					strconv.Itoa(study.TagsPerEntry),
					study.CreatedAt,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"ID", "Name", "Tags/Entry", "Created"}, rows))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON output")
	return cmd
}

func newStudiesCreateCommand(ctx *commandContext) *cobra.Command {
	var definitionPath string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a study from a JSON definition file",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(definitionPath)
			if err != nil {
				return fmt.Errorf("read study definition: %w", err)
			}
			var req api.CreateStudyRequest
			if err := json.Unmarshal(data, &req); err != nil {
				return fmt.Errorf("decode study definition: %w", err)
			}

			client, err := ctx.client()
			if err != nil {
				return err
			}
			study, err := client.CreateStudy(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created study %q (id %d)\n", study.Name, study.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&definitionPath, "file", "f", "", "Path to the study definition JSON")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newStudiesDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a study and its tags",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid study id %q", args[0])
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			if err := client.DeleteStudy(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted study %d\n", id)
			return nil
		},
	}
}
