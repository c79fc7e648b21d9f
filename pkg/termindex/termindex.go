// Package termindex provides the external term index collaborator used
// by the search index for scored term lookups, with an in-memory
// inverted index and a SQLite FTS5 implementation.
package termindex

import (
	"context"
	"time"
)

// TermHit is one scored match from the term index. Higher scores rank
// better.
type TermHit struct {
	EntryID string
	Score   float64
}

// Stats summarizes index shape.
type Stats struct {
	TermCount        int
	AvgTermsPerEntry float64
}

// TermIndex is the external full-text collaborator. Implementations
// must be safe for concurrent use. Terms arrive already normalized;
// the index never re-tokenizes them.
type TermIndex interface {
	// AddEntry indexes an entry under the given terms. Re-adding an
	// existing id replaces its previous terms.
	AddEntry(ctx context.Context, id string, terms []string, timestamp time.Time, domainID string) error

	// RemoveEntry drops an entry. The terms are those the entry was
	// indexed under; unknown ids are a no-op.
	RemoveEntry(ctx context.Context, id string, terms []string) error

	// Clear drops all indexed entries.
	Clear(ctx context.Context) error

	// Search returns entries matching any of the query terms, scored,
	// best first, at most limit results.
	Search(ctx context.Context, terms []string, limit int) ([]TermHit, error)

	// PrefixSearch returns indexed terms starting with prefix, sorted,
	// at most limit results. An empty prefix returns nothing.
	PrefixSearch(ctx context.Context, prefix string, limit int) ([]string, error)

	// Statistics reports index shape.
	Statistics(ctx context.Context) (*Stats, error)

	// IsHealthy reports whether the index's internal state is
	// consistent.
	IsHealthy(ctx context.Context) bool
}
