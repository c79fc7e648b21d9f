// Package storage persists knowledge entries. Two backends: an
// in-memory store for tests and ephemeral runs, and PostgreSQL.
package storage

import (
	"context"

	"github.com/mnemos-ai/mnemos-engine/pkg/models"
)

// EntryStore persists knowledge entries keyed by entry ID. Save has
// upsert semantics. Get and Delete report missing entries with
// apperrors.ErrNotFound.
type EntryStore interface {
	Save(ctx context.Context, entry *models.KnowledgeEntry) error
	Get(ctx context.Context, id string) (*models.KnowledgeEntry, error)
	List(ctx context.Context) ([]*models.KnowledgeEntry, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}
