// Package cache provides the bounded recency cache used by the search
// index for hot entry lookups.
package cache

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mnemos-ai/mnemos-engine/pkg/models"
)

// EntryCache is a bounded least-recently-used cache of knowledge
// entries keyed by entry ID. Capacity is fixed at construction.
type EntryCache interface {
	Get(id string) (*models.KnowledgeEntry, bool)
	Set(id string, entry *models.KnowledgeEntry)
	Remove(id string)
	Clear()
	Len() int
	Capacity() int
}

type lruCache struct {
	entries  *lru.Cache[string, *models.KnowledgeEntry]
	capacity int
}

var _ EntryCache = (*lruCache)(nil)

// NewLRU creates an EntryCache holding at most capacity entries.
func NewLRU(capacity int) (EntryCache, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("cache capacity must be positive, got %d", capacity)
	}
	entries, err := lru.New[string, *models.KnowledgeEntry](capacity)
	if err != nil {
		return nil, fmt.Errorf("failed to create lru cache: %w", err)
	}
	return &lruCache{entries: entries, capacity: capacity}, nil
}

func (c *lruCache) Get(id string) (*models.KnowledgeEntry, bool) {
	return c.entries.Get(id)
}

func (c *lruCache) Set(id string, entry *models.KnowledgeEntry) {
	c.entries.Add(id, entry)
}

func (c *lruCache) Remove(id string) {
	c.entries.Remove(id)
}

func (c *lruCache) Clear() {
	c.entries.Purge()
}

func (c *lruCache) Len() int {
	return c.entries.Len()
}

func (c *lruCache) Capacity() int {
	return c.capacity
}
