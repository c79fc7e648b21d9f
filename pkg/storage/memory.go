package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/mnemos-ai/mnemos-engine/pkg/apperrors"
	"github.com/mnemos-ai/mnemos-engine/pkg/models"
)

// memoryStore keeps entries in a mutex-guarded map. Entries are cloned
// on the way in and out so callers never share mutable state with the
// store.
type memoryStore struct {
	mu      sync.RWMutex
	entries map[string]*models.KnowledgeEntry
}

var _ EntryStore = (*memoryStore)(nil)

// NewMemoryStore creates an empty in-memory entry store.
func NewMemoryStore() EntryStore {
	return &memoryStore{
		entries: make(map[string]*models.KnowledgeEntry),
	}
}

func (s *memoryStore) Save(ctx context.Context, entry *models.KnowledgeEntry) error {
	if entry == nil || entry.ID == "" {
		return fmt.Errorf("entry must have an id: %w", apperrors.ErrInvalidEntry)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.ID] = entry.Clone()
	return nil
}

func (s *memoryStore) Get(ctx context.Context, id string) (*models.KnowledgeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[id]
	if !ok {
		return nil, fmt.Errorf("entry %s: %w", id, apperrors.ErrNotFound)
	}
	return entry.Clone(), nil
}

func (s *memoryStore) List(ctx context.Context) ([]*models.KnowledgeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.KnowledgeEntry, 0, len(s.entries))
	for _, entry := range s.entries {
		out = append(out, entry.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *memoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[id]; !ok {
		return fmt.Errorf("entry %s: %w", id, apperrors.ErrNotFound)
	}
	delete(s.entries, id)
	return nil
}

func (s *memoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}
