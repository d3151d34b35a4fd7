package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

// writeJSON renders a response as indented JSON on the command's stdout.
// Every list command's --json flag funnels through here so scripted
// callers get one stable output shape.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
