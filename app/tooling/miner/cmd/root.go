// Package cmd contains the miner app.
package cmd

import (
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	url     string
	apiKey  string
	timeout time.Duration
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&url, "url", "u", "http://localhost:8080", "Url of the node.")
	rootCmd.PersistentFlags().StringVarP(&apiKey, "api-key", "k", "secretkey", "Shared secret for the protected routes.")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "Timeout for each request to the node.")
}

var rootCmd = &cobra.Command{
	Use:          "miner",
	Short:        "Standalone proof of work miner",
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func newClient() *http.Client {
	return &http.Client{Timeout: timeout}
}
