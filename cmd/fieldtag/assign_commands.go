package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"fieldtag/internal/api"
)

func newAssignCommand(ctx *commandContext) *cobra.Command {
	assignCmd := &cobra.Command{
		Use:   "assign",
		Short: "Request and complete tagging assignments",
	}

	assignCmd.AddCommand(newAssignNextCommand(ctx, "next", "Request the next regular assignment", false))
	assignCmd.AddCommand(newAssignNextCommand(ctx, "training", "Request the next training assignment", true))
	assignCmd.AddCommand(newAssignCompleteCommand(ctx))
	return assignCmd
}

func newAssignNextCommand(ctx *commandContext, use, short string, training bool) *cobra.Command {
	var userID string
	var studyID int64

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}

			req := api.AssignmentRequest{UserID: userID, StudyID: studyID}
			var assignment *api.Assignment
			if training {
				assignment, err = client.NextTrainingAssignment(cmd.Context(), req)
			} else {
				assignment, err = client.NextAssignment(cmd.Context(), req)
			}
			if err != nil {
				return err
			}
			if assignment == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "No work available for this study")
				return nil
			}
			return writeJSON(cmd, assignment)
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "Contributor id requesting work")
	cmd.Flags().Int64Var(&studyID, "study", 0, "Study id to draw work from")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("study")
	return cmd
}

func newAssignCompleteCommand(ctx *commandContext) *cobra.Command {
	var payload string

	cmd := &cobra.Command{
		Use:   "complete <tag-id>",
		Short: "Submit the form payload completing a tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid tag id %q", args[0])
			}
			if !json.Valid([]byte(payload)) {
				return fmt.Errorf("payload is not valid JSON")
			}

			client, err := ctx.client()
			if err != nil {
				return err
			}
			if err := client.CompleteTag(cmd.Context(), id, json.RawMessage(payload)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Completed tag %d\n", id)
			return nil
		},
	}

	cmd.Flags().StringVarP(&payload, "payload", "p", "", "JSON payload matching the study schema")
	_ = cmd.MarkFlagRequired("payload")
	return cmd
}
