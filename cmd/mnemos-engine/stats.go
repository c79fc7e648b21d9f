package main

import (
	"context"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show entry store and search index statistics",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	eng, err := newEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.close()

	count, err := eng.store.Count(ctx)
	if err != nil {
		return err
	}
	if err := eng.loadIndex(ctx); err != nil {
		return err
	}
	stats := eng.index.Stats(ctx)

	cmd.Printf("Store:\n")
	cmd.Printf("  Backend:        %s\n", eng.cfg.Storage.Backend)
	cmd.Printf("  Entries:        %d\n", count)
	cmd.Printf("Index:\n")
	cmd.Printf("  Backend:        %s\n", eng.cfg.TermIndex.Backend)
	cmd.Printf("  Entries:        %d\n", stats.EntryCount)
	cmd.Printf("  Entity types:   %d\n", stats.EntityTypeCount)
	cmd.Printf("  Domains:        %d\n", stats.DomainCount)
	cmd.Printf("  Terms:          %d\n", stats.TermCount)
	cmd.Printf("  Terms/entry:    %.1f\n", stats.AvgTermsPerEntry)
	cmd.Printf("  Cache entries:  %d\n", stats.CacheSize)
	return nil
}
