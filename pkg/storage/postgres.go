package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/mnemos-ai/mnemos-engine/pkg/apperrors"
	"github.com/mnemos-ai/mnemos-engine/pkg/database"
	"github.com/mnemos-ai/mnemos-engine/pkg/models"
)

// postgresStore persists entries in the knowledge_entries table with
// the structured payload and metadata held as jsonb.
type postgresStore struct {
	db     *database.DB
	logger *zap.Logger
}

var _ EntryStore = (*postgresStore)(nil)

// NewPostgresStore creates an EntryStore backed by PostgreSQL.
func NewPostgresStore(db *database.DB, logger *zap.Logger) EntryStore {
	return &postgresStore{
		db:     db,
		logger: logger.Named("postgres-store"),
	}
}

func (s *postgresStore) Save(ctx context.Context, entry *models.KnowledgeEntry) error {
	if entry == nil || entry.ID == "" {
		return fmt.Errorf("entry must have an id: %w", apperrors.ErrInvalidEntry)
	}

	mappedData, err := json.Marshal(entry.MappedData)
	if err != nil {
		return fmt.Errorf("failed to encode mapped data: %w", err)
	}
	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	query := `
		INSERT INTO knowledge_entries (
			id, domain_id, original_submission, mapped_data,
			schema_version, entry_timestamp, status, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id)
		DO UPDATE SET
			domain_id = EXCLUDED.domain_id,
			original_submission = EXCLUDED.original_submission,
			mapped_data = EXCLUDED.mapped_data,
			schema_version = EXCLUDED.schema_version,
			entry_timestamp = EXCLUDED.entry_timestamp,
			status = EXCLUDED.status,
			metadata = EXCLUDED.metadata,
			updated_at = now()`

	_, err = s.db.Exec(ctx, query,
		entry.ID, entry.DomainID, entry.OriginalSubmission, mappedData,
		entry.SchemaVersion, entry.Timestamp, entry.Status.String(), metadata,
	)
	if err != nil {
		return fmt.Errorf("failed to save entry: %w", err)
	}
	return nil
}

func (s *postgresStore) Get(ctx context.Context, id string) (*models.KnowledgeEntry, error) {
	query := `
		SELECT id, domain_id, original_submission, mapped_data,
		       schema_version, entry_timestamp, status, metadata
		FROM knowledge_entries
		WHERE id = $1`

	entry, err := scanEntryRow(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("entry %s: %w", id, apperrors.ErrNotFound)
		}
		return nil, err
	}
	return entry, nil
}

func (s *postgresStore) List(ctx context.Context) ([]*models.KnowledgeEntry, error) {
	query := `
		SELECT id, domain_id, original_submission, mapped_data,
		       schema_version, entry_timestamp, status, metadata
		FROM knowledge_entries
		ORDER BY entry_timestamp, id`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()

	entries := make([]*models.KnowledgeEntry, 0)
	for rows.Next() {
		entry, err := scanEntryRow(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entries: %w", err)
	}
	return entries, nil
}

func (s *postgresStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.Exec(ctx, `DELETE FROM knowledge_entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("entry %s: %w", id, apperrors.ErrNotFound)
	}
	return nil
}

func (s *postgresStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM knowledge_entries`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return count, nil
}

func scanEntryRow(row pgx.Row) (*models.KnowledgeEntry, error) {
	var e models.KnowledgeEntry
	var mappedData, metadata []byte
	var status string

	err := row.Scan(
		&e.ID, &e.DomainID, &e.OriginalSubmission, &mappedData,
		&e.SchemaVersion, &e.Timestamp, &status, &metadata,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan entry: %w", err)
	}

	if err := json.Unmarshal(mappedData, &e.MappedData); err != nil {
		return nil, fmt.Errorf("failed to decode mapped data: %w", err)
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata: %w", err)
		}
	}
	e.Status = models.EntryStatus(status)

	return &e, nil
}
