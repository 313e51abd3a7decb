package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var tipCmd = &cobra.Command{
	Use:   "tip",
	Short: "Print the tip of the node.",
	RunE:  tipRun,
}

func init() {
	rootCmd.AddCommand(tipCmd)
}

func tipRun(cmd *cobra.Command, args []string) error {
	tip, err := FetchTip(newClient(), url)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(tip, "", "  ")
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
