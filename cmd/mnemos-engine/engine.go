package main

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql (migrations)
	"go.uber.org/zap"

	"github.com/mnemos-ai/mnemos-engine/pkg/cache"
	"github.com/mnemos-ai/mnemos-engine/pkg/config"
	"github.com/mnemos-ai/mnemos-engine/pkg/database"
	"github.com/mnemos-ai/mnemos-engine/pkg/loader"
	"github.com/mnemos-ai/mnemos-engine/pkg/logging"
	"github.com/mnemos-ai/mnemos-engine/pkg/sanitize"
	"github.com/mnemos-ai/mnemos-engine/pkg/services"
	"github.com/mnemos-ai/mnemos-engine/pkg/storage"
	"github.com/mnemos-ai/mnemos-engine/pkg/termindex"
	"github.com/mnemos-ai/mnemos-engine/pkg/validate"
)

// setup loads configuration and builds the process logger. Commands that
// do not touch the entry store (validate, version) stop here.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadFrom(configPath, version)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return cfg, logger, nil
}

// engine bundles the constructed components for one CLI invocation.
type engine struct {
	cfg    *config.Config
	logger *zap.Logger

	store storage.EntryStore
	terms termindex.TermIndex
	index *services.SearchIndex

	dedupe    services.DedupeService
	validator validate.Validator
	sanitizer *sanitize.Registry
	loader    loader.Loader

	db        *database.DB
	termsFile *termindex.SQLiteIndex
}

// newEngine wires the configured backends: the entry store (memory or
// Postgres, with pending migrations applied), the term index (memory or
// SQLite FTS5), the recency cache, and the search index on top of them.
func newEngine(ctx context.Context) (*engine, error) {
	cfg, logger, err := setup()
	if err != nil {
		return nil, err
	}

	eng := &engine{
		cfg:       cfg,
		logger:    logger,
		dedupe:    services.NewDedupeService(logger),
		validator: validate.NewSchemaValidator(),
		sanitizer: sanitize.NewRegistry(),
		loader:    loader.NewFileLoader(logger),
	}
	for _, contentType := range cfg.Pipeline.GuardedTypes {
		eng.sanitizer.Register(contentType, sanitize.NewInjectionGuard())
	}

	switch cfg.Storage.Backend {
	case "postgres":
		db, err := database.NewConnection(ctx, &cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		eng.db = db
		if err := eng.migrate(); err != nil {
			eng.close()
			return nil, err
		}
		eng.store = storage.NewPostgresStore(db, logger)
	default:
		eng.store = storage.NewMemoryStore()
	}

	switch cfg.TermIndex.Backend {
	case "sqlite":
		idx, err := termindex.NewSQLite(cfg.TermIndex.Path)
		if err != nil {
			eng.close()
			return nil, fmt.Errorf("failed to open term index: %w", err)
		}
		eng.termsFile = idx
		eng.terms = idx
	default:
		eng.terms = termindex.NewMemory()
	}

	entryCache, err := cache.NewLRU(cfg.Cache.Capacity)
	if err != nil {
		eng.close()
		return nil, fmt.Errorf("failed to create entry cache: %w", err)
	}
	eng.index = services.NewSearchIndex(eng.terms, entryCache, logger)

	return eng, nil
}

// migrate applies pending schema migrations through database/sql, which
// golang-migrate requires.
func (e *engine) migrate() error {
	resolved := e.cfg.Database
	resolved.Host = database.ResolveHost(resolved.Host)

	sqlDB, err := sql.Open("pgx", resolved.ConnectionString())
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}
	defer sqlDB.Close()

	path, err := database.LocateMigrations()
	if err != nil {
		return err
	}
	return database.RunMigrations(sqlDB, path, e.logger)
}

// newPipeline builds an import pipeline over the engine's collaborators
// with the given stage configuration.
func (e *engine) newPipeline(cfg services.PipelineConfig) services.ImportPipeline {
	return services.NewImportPipeline(
		e.loader, e.validator, e.sanitizer, e.dedupe, e.store, cfg, e.logger)
}

// pipelineConfig translates the pipeline section of the configuration.
func (e *engine) pipelineConfig() services.PipelineConfig {
	return services.PipelineConfig{
		SanitizeContent:    e.cfg.Pipeline.SanitizeContent,
		DeduplicateEntries: e.cfg.Pipeline.DeduplicateEntries,
		StorageBatchSize:   e.cfg.Pipeline.StorageBatchSize,
	}
}

// loadIndex rebuilds the search index from the entry store.
func (e *engine) loadIndex(ctx context.Context) error {
	entries, err := e.store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to load entries: %w", err)
	}
	e.index.Rebuild(ctx, entries)
	return nil
}

func (e *engine) close() {
	if e.termsFile != nil {
		if err := e.termsFile.Close(); err != nil {
			e.logger.Warn("failed to close term index", zap.Error(err))
		}
	}
	if e.db != nil {
		e.db.Close()
	}
	_ = e.logger.Sync()
}
