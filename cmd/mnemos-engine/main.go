// Package main is the entry point for the mnemos-engine CLI.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the mnemos-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "mnemos-engine",
	Short: "Knowledge ingestion, deduplication and search",
	Long: `mnemos-engine ingests heterogeneous knowledge entries (imported documents,
extracted facts, crawled content) from JSON or YAML files, removes duplicates
through content-addressable hashing, and maintains a multi-dimensional search
index supporting full-text, entity, domain, and temporal queries.

Configuration comes from config.yaml in the working directory with environment
variable overrides; pass --config to point at a different file.`,
	SilenceUsage: true,
}

var configPath string

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "config file path")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
