package cache

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemos-ai/mnemos-engine/pkg/models"
)

func entry(id string) *models.KnowledgeEntry {
	return &models.KnowledgeEntry{ID: id, DomainID: "test"}
}

func TestNewLRU_RejectsNonPositiveCapacity(t *testing.T) {
	_, err := NewLRU(0)
	require.Error(t, err)

	_, err = NewLRU(-5)
	require.Error(t, err)
}

func TestLRU_SetGetRemove(t *testing.T) {
	c, err := NewLRU(4)
	require.NoError(t, err)

	c.Set("e1", entry("e1"))

	got, ok := c.Get("e1")
	require.True(t, ok)
	assert.Equal(t, "e1", got.ID)

	_, ok = c.Get("missing")
	assert.False(t, ok)

	c.Remove("e1")
	_, ok = c.Get("e1")
	assert.False(t, ok)
}

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	c, err := NewLRU(2)
	require.NoError(t, err)

	c.Set("e1", entry("e1"))
	c.Set("e2", entry("e2"))

	// Touch e1 so e2 becomes the eviction candidate.
	_, ok := c.Get("e1")
	require.True(t, ok)

	c.Set("e3", entry("e3"))

	_, ok = c.Get("e2")
	assert.False(t, ok, "least recently used entry should be evicted")
	_, ok = c.Get("e1")
	assert.True(t, ok)
	_, ok = c.Get("e3")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestLRU_NeverExceedsCapacity(t *testing.T) {
	c, err := NewLRU(8)
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		id := fmt.Sprintf("e%d", i)
		c.Set(id, entry(id))
	}

	assert.Equal(t, 8, c.Len())
	assert.Equal(t, 8, c.Capacity())
}

func TestLRU_Clear(t *testing.T) {
	c, err := NewLRU(4)
	require.NoError(t, err)

	c.Set("e1", entry("e1"))
	c.Set("e2", entry("e2"))
	c.Clear()

	assert.Equal(t, 0, c.Len())
	_, ok := c.Get("e1")
	assert.False(t, ok)
	// Capacity is unchanged by Clear.
	assert.Equal(t, 4, c.Capacity())
}
