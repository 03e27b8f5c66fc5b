package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "callisto",
	Short: "Callisto - resilient provider management for content analysis",
	Long: `Callisto manages the external providers a content-analysis service
depends on: inference runtimes, identity servers, file storage, and
knowledge bases.

Every outbound call runs through retry with exponential backoff and a
per-provider circuit breaker. Unhealthy providers are detected by
scheduled health sweeps and traffic falls back to the next provider in
priority order.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
