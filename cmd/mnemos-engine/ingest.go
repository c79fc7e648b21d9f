package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mnemos-ai/mnemos-engine/pkg/models"
)

var (
	ingestNoSanitize bool
	ingestNoDedupe   bool
	ingestBatchSize  int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [files...]",
	Short: "Import knowledge entries from JSON or YAML files",
	Long: `Ingest runs entry files through the import pipeline: validation,
sanitization, deduplication, and storage. Each file holds a single entry
document or a list of them. Per-entry failures are reported and skipped;
the batch always runs to completion.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestNoSanitize, "no-sanitize", false, "skip the sanitization stage")
	ingestCmd.Flags().BoolVar(&ingestNoDedupe, "no-dedupe", false, "skip the deduplication stage")
	ingestCmd.Flags().IntVar(&ingestBatchSize, "batch-size", 0, "entries per storage batch (0 = config default)")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	eng, err := newEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.close()

	pcfg := eng.pipelineConfig()
	if ingestNoSanitize {
		pcfg.SanitizeContent = false
	}
	if ingestNoDedupe {
		pcfg.DeduplicateEntries = false
	}
	if ingestBatchSize > 0 {
		pcfg.StorageBatchSize = ingestBatchSize
	}

	result, err := eng.newPipeline(pcfg).ImportFiles(ctx, args, progressPrinter(cmd))
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	cmd.Println()
	cmd.Println(result.Summary())

	if result.Imported > 0 {
		if err := eng.loadIndex(ctx); err != nil {
			return err
		}
		stats := eng.index.Stats(ctx)
		cmd.Printf("index: %d entries, %d terms\n", stats.EntryCount, stats.TermCount)
	}

	if result.Imported == 0 && len(result.Errors) > 0 {
		return fmt.Errorf("no entries imported (%d errors)", len(result.Errors))
	}
	return nil
}

// progressPrinter renders stage-local progress on a single rewritten
// line, breaking the line when the stage changes.
func progressPrinter(cmd *cobra.Command) models.ProgressFunc {
	var lastStage models.ImportStage
	return func(p models.Progress) {
		if p.Stage != lastStage {
			if lastStage != "" {
				cmd.Println()
			}
			lastStage = p.Stage
		}
		cmd.Printf("\r%-13s %d/%d (%.0f%%)", p.Stage, p.CurrentItem, p.TotalItems, p.Percentage())
	}
}
