package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mnemos-ai/mnemos-engine/pkg/loader"
	"github.com/mnemos-ai/mnemos-engine/pkg/services"
	"github.com/mnemos-ai/mnemos-engine/pkg/validate"
)

var validateCmd = &cobra.Command{
	Use:   "validate [files...]",
	Short: "Check entry files without importing them",
	Long: `Validate loads entry files and runs the validation stage alone.
Nothing is sanitized, deduplicated, or stored. The exit code is non-zero
when any file or entry fails.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	_, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ldr := loader.NewFileLoader(logger)
	loaded, err := ldr.ImportBatch(ctx, args)
	if err != nil {
		return fmt.Errorf("failed to load batch: %w", err)
	}

	failures := len(loaded.Errors)
	for _, fe := range loaded.Errors {
		cmd.Printf("  %s\n", fe.Error())
	}

	pipeline := services.NewImportPipeline(
		ldr, validate.NewSchemaValidator(), nil, nil, nil, services.PipelineConfig{}, logger)
	for _, ie := range pipeline.ValidateEntries(ctx, loaded.Entries) {
		cmd.Printf("  %s\n", ie.Error())
		failures++
	}

	if failures > 0 {
		return fmt.Errorf("%d problem(s) in %d file(s)", failures, len(args))
	}
	cmd.Printf("%d entries from %d file(s) are valid\n", len(loaded.Entries), len(args))
	return nil
}
