package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	httpserver "github.com/fyrsmithlabs/fixd/internal/http"
	"github.com/fyrsmithlabs/fixd/internal/metrics"
)

func newStatsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show request statistics",
		Long: `Show the request log summary of a running fixd daemon.
Statistics cover requests handled since the daemon started.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var s metrics.Summary
			if err := newClient(opts.serverURL, 5*time.Second).do(cmd.Context(), "GET", "/stats", nil, &s); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Requests:          %d\n", s.Count)
			fmt.Fprintf(out, "Avg latency:       %.2f ms\n", s.AvgLatencyMS)
			fmt.Fprintf(out, "Min/max latency:   %d / %d ms\n", s.MinLatencyMS, s.MaxLatencyMS)
			fmt.Fprintf(out, "Avg input tokens:  %.2f\n", s.AvgInputTokens)
			fmt.Fprintf(out, "Avg output tokens: %.2f\n", s.AvgOutputTokens)
			return nil
		},
	}
}

func newHealthCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check fixd server health",
		Long: `Check the health status of the fixd daemon.

Examples:
  # Check health
  fixctl health

  # Check health on a different server
  fixctl health --server http://localhost:9000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var h httpserver.HealthResponse
			if err := newClient(opts.serverURL, 5*time.Second).do(cmd.Context(), "GET", "/health", nil, &h); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Server Status:  %s\n", h.Status)
			fmt.Fprintf(out, "Server URL:     %s\n", opts.serverURL)
			fmt.Fprintf(out, "Model loaded:   %t\n", h.ModelLoaded)
			fmt.Fprintf(out, "Recipes:        %d\n", h.Recipes)
			fmt.Fprintf(out, "Embedder ready: %t\n", h.EmbedderReady)
			return nil
		},
	}
}
