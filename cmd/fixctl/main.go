// Package main implements fixctl, the command-line client for the fixd daemon.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// version information
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type options struct {
	serverURL string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "fixctl",
		Short: "CLI for the fixd remediation daemon",
		Long: `fixctl sends vulnerable code to a running fixd daemon and prints the
remediated code, diff and explanation. It also reports daemon health and
request statistics.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&opts.serverURL, "server", envOr("FIXD_URL", "http://127.0.0.1:8000"), "fixd server URL")

	root.AddCommand(newFixCmd(opts))
	root.AddCommand(newStatsCmd(opts))
	root.AddCommand(newHealthCmd(opts))
	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
