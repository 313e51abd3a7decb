package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	data   string
	submit string
)

var mineCmd = &cobra.Command{
	Use:   "mine",
	Short: "Mine a block on the node's tip and submit it.",
	RunE:  mineRun,
}

func init() {
	rootCmd.AddCommand(mineCmd)
	mineCmd.Flags().StringVarP(&data, "data", "d", "hello from miner", "Payload of the block.")
	mineCmd.Flags().StringVarP(&submit, "submit", "s", SubmitBlock, "How to submit: block or mine.")
}

func mineRun(cmd *cobra.Command, args []string) error {
	start := time.Now()

	res, err := MineAndSubmit(newClient(), url, apiKey, data, submit)
	if res.Block.Hash != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "mined block %d with hash %s nonce %d in %s\n", res.Block.Index, res.Block.Hash, res.Block.Nonce, time.Since(start).Round(time.Millisecond))
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "submitted via /%s: %d %s\n", submit, res.Status, res.Body)
	return nil
}
