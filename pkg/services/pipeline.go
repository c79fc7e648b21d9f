package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mnemos-ai/mnemos-engine/pkg/loader"
	"github.com/mnemos-ai/mnemos-engine/pkg/logging"
	"github.com/mnemos-ai/mnemos-engine/pkg/models"
	"github.com/mnemos-ai/mnemos-engine/pkg/sanitize"
	"github.com/mnemos-ai/mnemos-engine/pkg/storage"
	"github.com/mnemos-ai/mnemos-engine/pkg/validate"
)

// defaultStorageBatchSize bounds sequential persistence chunks.
// Cancellation is honored between chunks, not within one.
const defaultStorageBatchSize = 100

// PipelineConfig toggles the optional pipeline stages.
type PipelineConfig struct {
	SanitizeContent    bool
	DeduplicateEntries bool
	StorageBatchSize   int
}

// ImportPipeline runs entry batches through the fixed stage order
// validation → sanitization → deduplication → storage. Entry-level
// failures are collected into the result; only wholesale loader failure
// propagates as an error.
type ImportPipeline interface {
	// ImportFiles loads entries from files and runs the full pipeline.
	ImportFiles(ctx context.Context, paths []string, onProgress models.ProgressFunc) (*models.ImportResult, error)

	// ImportEntries runs the pipeline over a pre-built entry batch,
	// skipping the load stage.
	ImportEntries(ctx context.Context, entries []*models.KnowledgeEntry, onProgress models.ProgressFunc) (*models.ImportResult, error)

	// ValidateEntries runs the validation stage alone, with no side
	// effects, and returns the collected errors.
	ValidateEntries(ctx context.Context, entries []*models.KnowledgeEntry) []models.ImportError
}

type importPipeline struct {
	loader     loader.Loader
	validator  validate.Validator
	sanitizers sanitize.Factory
	dedupe     DedupeService
	store      storage.EntryStore // nil disables the storage stage
	config     PipelineConfig
	logger     *zap.Logger
}

var _ ImportPipeline = (*importPipeline)(nil)

// NewImportPipeline wires the pipeline collaborators. A nil store skips
// persistence; sanitization and deduplication follow the config toggles.
func NewImportPipeline(
	ldr loader.Loader,
	validator validate.Validator,
	sanitizers sanitize.Factory,
	dedupe DedupeService,
	store storage.EntryStore,
	config PipelineConfig,
	logger *zap.Logger,
) ImportPipeline {
	if config.StorageBatchSize <= 0 {
		config.StorageBatchSize = defaultStorageBatchSize
	}
	return &importPipeline{
		loader:     ldr,
		validator:  validator,
		sanitizers: sanitizers,
		dedupe:     dedupe,
		store:      store,
		config:     config,
		logger:     logger.Named("import-pipeline"),
	}
}

func (p *importPipeline) ImportFiles(ctx context.Context, paths []string, onProgress models.ProgressFunc) (*models.ImportResult, error) {
	start := time.Now()
	result := &models.ImportResult{TotalFiles: len(paths)}

	report(onProgress, models.Progress{Stage: models.StageLoading, TotalItems: len(paths)})

	loaded, err := p.loader.ImportBatch(ctx, paths)
	if err != nil {
		return nil, fmt.Errorf("failed to load batch: %w", err)
	}
	for _, fe := range loaded.Errors {
		result.Errors = append(result.Errors, models.ImportError{
			FileName: fe.FileName,
			Stage:    remapLoaderStage(fe.Stage),
			Message:  fe.Message,
		})
	}
	report(onProgress, models.Progress{
		Stage:       models.StageLoading,
		CurrentItem: len(paths),
		TotalItems:  len(paths),
	})

	p.runEntryFlow(ctx, loaded.Entries, result, onProgress)
	finalize(result, start)

	p.logger.Info("file import finished",
		zap.Int("files", result.TotalFiles),
		zap.Int("imported", result.Imported),
		zap.Int("rejected", result.Rejected),
		zap.Duration("took", result.Duration))
	return result, nil
}

func (p *importPipeline) ImportEntries(ctx context.Context, entries []*models.KnowledgeEntry, onProgress models.ProgressFunc) (*models.ImportResult, error) {
	start := time.Now()
	result := &models.ImportResult{TotalFiles: len(entries)}

	p.runEntryFlow(ctx, entries, result, onProgress)
	finalize(result, start)

	p.logger.Info("entry import finished",
		zap.Int("entries", result.TotalFiles),
		zap.Int("imported", result.Imported),
		zap.Int("rejected", result.Rejected),
		zap.Duration("took", result.Duration))
	return result, nil
}

func (p *importPipeline) ValidateEntries(ctx context.Context, entries []*models.KnowledgeEntry) []models.ImportError {
	_, errs := p.validateStage(ctx, entries, nil)
	return errs
}

// runEntryFlow applies the staged entry transformations, accumulating
// errors and counters into result.
func (p *importPipeline) runEntryFlow(ctx context.Context, entries []*models.KnowledgeEntry, result *models.ImportResult, onProgress models.ProgressFunc) {
	survivors, validationErrs := p.validateStage(ctx, entries, onProgress)
	result.Errors = append(result.Errors, validationErrs...)

	if p.config.SanitizeContent && p.sanitizers != nil {
		var sanitizeErrs []models.ImportError
		survivors, sanitizeErrs = p.sanitizeStage(ctx, survivors, onProgress)
		result.Errors = append(result.Errors, sanitizeErrs...)
	}

	if p.config.DeduplicateEntries && p.dedupe != nil {
		report(onProgress, models.Progress{Stage: models.StageDeduplication, TotalItems: len(survivors)})
		var stats *models.DedupeStats
		survivors, stats = p.dedupe.Deduplicate(ctx, survivors)
		result.DedupeStats = stats
		result.Deduplicated = stats.EntriesRemoved
		report(onProgress, models.Progress{
			Stage:       models.StageDeduplication,
			CurrentItem: len(survivors),
			TotalItems:  len(survivors),
		})
	}

	if p.store == nil {
		result.Imported = len(survivors)
		return
	}
	persisted, storageErr := p.storeStage(ctx, survivors, onProgress)
	result.Imported = persisted
	if storageErr != nil {
		result.Errors = append(result.Errors, *storageErr)
	}
}

// validateStage serializes each entry, checks it against the schema
// validator in lenient mode, and drops failures.
func (p *importPipeline) validateStage(ctx context.Context, entries []*models.KnowledgeEntry, onProgress models.ProgressFunc) ([]*models.KnowledgeEntry, []models.ImportError) {
	survivors := make([]*models.KnowledgeEntry, 0, len(entries))
	var errs []models.ImportError

	for i, entry := range entries {
		if entry == nil {
			continue
		}
		report(onProgress, models.Progress{
			Stage:       models.StageValidation,
			CurrentItem: i + 1,
			TotalItems:  len(entries),
			CurrentFile: entry.Metadata[models.MetaFileName],
		})

		doc, err := entryDocument(entry)
		if err != nil {
			errs = append(errs, entryError(entry, models.StageValidation,
				fmt.Sprintf("failed to serialize entry: %v", err)))
			continue
		}

		verdict, err := p.validator.Validate(ctx, doc, validate.ModeLenient)
		if err != nil {
			errs = append(errs, entryError(entry, models.StageValidation,
				fmt.Sprintf("validator failed: %v", err)))
			continue
		}
		if !verdict.Valid {
			errs = append(errs, entryError(entry, models.StageValidation, joinFieldErrors(verdict.Errors)))
			continue
		}

		survivors = append(survivors, entry)
	}
	return survivors, errs
}

// sanitizeStage passes each entry's content through the sanitizer for
// its content type and drops rejected entries. A rewritten entry is
// cloned so caller-owned entries are never mutated.
func (p *importPipeline) sanitizeStage(ctx context.Context, entries []*models.KnowledgeEntry, onProgress models.ProgressFunc) ([]*models.KnowledgeEntry, []models.ImportError) {
	survivors := make([]*models.KnowledgeEntry, 0, len(entries))
	var errs []models.ImportError

	for i, entry := range entries {
		report(onProgress, models.Progress{
			Stage:       models.StageSanitization,
			CurrentItem: i + 1,
			TotalItems:  len(entries),
			CurrentFile: entry.Metadata[models.MetaFileName],
		})

		sanitizer, err := p.sanitizers.SanitizerFor(entry.MappedData.Type)
		if err != nil {
			errs = append(errs, entryError(entry, models.StageSanitization,
				fmt.Sprintf("no sanitizer for content type %q: %v", entry.MappedData.Type, err)))
			continue
		}

		sanitized, err := sanitizer.Sanitize(ctx, entry.MappedData.Content)
		if err != nil {
			p.logger.Debug("sanitizer rejected content",
				zap.String("entry_id", entry.ID),
				zap.String("content_type", entry.MappedData.Type),
				zap.String("content", logging.Snippet(entry.MappedData.Content)))
			errs = append(errs, entryError(entry, models.StageSanitization,
				fmt.Sprintf("content rejected: %v", err)))
			continue
		}

		if sanitized != entry.MappedData.Content {
			entry = entry.Clone()
			entry.MappedData.Content = sanitized
		}
		survivors = append(survivors, entry)
	}
	return survivors, errs
}

// storeStage persists entries sequentially in fixed-size batches. The
// first failure stops persistence and is reported as one aggregate
// error; already-persisted entries stand.
func (p *importPipeline) storeStage(ctx context.Context, entries []*models.KnowledgeEntry, onProgress models.ProgressFunc) (int, *models.ImportError) {
	persisted := 0

	for offset := 0; offset < len(entries); offset += p.config.StorageBatchSize {
		end := offset + p.config.StorageBatchSize
		if end > len(entries) {
			end = len(entries)
		}
		batchIndex := offset / p.config.StorageBatchSize

		if err := ctx.Err(); err != nil {
			p.logger.Warn("storage stage cancelled",
				zap.Int("batch", batchIndex),
				zap.Int("persisted", persisted))
			importErr := entryError(entries[offset], models.StageStorage,
				fmt.Sprintf("import cancelled before batch %d: %v", batchIndex, err))
			return persisted, &importErr
		}

		for _, entry := range entries[offset:end] {
			if err := p.store.Save(ctx, entry); err != nil {
				p.logger.Error("storage stage aborted",
					zap.String("entry_id", entry.ID),
					zap.Int("batch", batchIndex),
					zap.Int("persisted", persisted),
					zap.Error(err))
				importErr := entryError(entry, models.StageStorage,
					fmt.Sprintf("failed to persist entry in batch %d: %v", batchIndex, err))
				return persisted, &importErr
			}
			persisted++
		}

		report(onProgress, models.Progress{
			Stage:       models.StageStorage,
			CurrentItem: end,
			TotalItems:  len(entries),
		})
	}
	return persisted, nil
}

func entryDocument(entry *models.KnowledgeEntry) (map[string]any, error) {
	data, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func entryError(entry *models.KnowledgeEntry, stage models.ImportStage, message string) models.ImportError {
	return models.ImportError{
		EntryID:  entry.ID,
		FileName: entry.Metadata[models.MetaFileName],
		Stage:    stage,
		Message:  message,
	}
}

func joinFieldErrors(fieldErrs []validate.FieldError) string {
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Path, fe.Message))
	}
	return strings.Join(parts, "; ")
}

// remapLoaderStage translates the loader's stage vocabulary into the
// pipeline's.
func remapLoaderStage(stage string) models.ImportStage {
	switch stage {
	case loader.StageReading:
		return models.StageLoading
	case loader.StageParsing:
		return models.StageParsing
	case loader.StageValidating:
		return models.StageValidation
	case loader.StageStoring, loader.StageComplete:
		return models.StageStorage
	default:
		return models.StageLoading
	}
}

func report(onProgress models.ProgressFunc, progress models.Progress) {
	if onProgress != nil {
		onProgress(progress)
	}
}

func finalize(result *models.ImportResult, start time.Time) {
	result.Rejected = len(result.Errors)
	result.Duration = time.Since(start)
	if result.TotalFiles > 0 {
		result.SuccessRate = float64(result.Imported) / float64(result.TotalFiles) * 100
	}
}
