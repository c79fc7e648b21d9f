package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mnemos-ai/mnemos-engine/pkg/models"
)

func dedupeEntry(id, domain, submission, content string, ts time.Time) *models.KnowledgeEntry {
	return &models.KnowledgeEntry{
		ID:                 id,
		DomainID:           domain,
		OriginalSubmission: submission,
		MappedData:         models.MappedData{Type: "text", Content: content},
		SchemaVersion:      1,
		Timestamp:          ts,
		Status:             models.StatusPending,
		Metadata:           map[string]string{},
	}
}

func TestContentHash_DeterministicAcrossEntries(t *testing.T) {
	svc := NewDedupeService(zap.NewNop())
	ts := time.Now()

	a := dedupeEntry("id-1", "d1", "same submission", "same content", ts)
	b := dedupeEntry("id-2", "d1", "same submission", "same content", ts.Add(time.Hour))

	assert.Equal(t, svc.ContentHash(a), svc.ContentHash(b),
		"hash depends only on domain, submission, content and type")
	assert.Len(t, svc.ContentHash(a), 64)
}

func TestContentHash_FieldBoundaries(t *testing.T) {
	svc := NewDedupeService(zap.NewNop())
	ts := time.Now()

	// Without a field delimiter ("a","bc") and ("ab","c") would
	// concatenate identically.
	left := dedupeEntry("id-1", "a", "bc", "", ts)
	right := dedupeEntry("id-2", "ab", "c", "", ts)

	assert.NotEqual(t, svc.ContentHash(left), svc.ContentHash(right))
}

func TestContentHash_EachFieldContributes(t *testing.T) {
	svc := NewDedupeService(zap.NewNop())
	ts := time.Now()
	base := dedupeEntry("base", "d1", "submission", "content", ts)

	variants := []*models.KnowledgeEntry{
		dedupeEntry("v1", "d2", "submission", "content", ts),
		dedupeEntry("v2", "d1", "submission changed", "content", ts),
		dedupeEntry("v3", "d1", "submission", "content changed", ts),
	}
	typed := dedupeEntry("v4", "d1", "submission", "content", ts)
	typed.MappedData.Type = "markdown"
	variants = append(variants, typed)

	baseHash := svc.ContentHash(base)
	for _, v := range variants {
		assert.NotEqual(t, baseHash, svc.ContentHash(v), "variant %s should hash differently", v.ID)
	}
}

func TestContentHash_CachedByEntryID(t *testing.T) {
	svc := NewDedupeService(zap.NewNop())
	entry := dedupeEntry("cached", "d1", "submission", "content", time.Now())

	first := svc.ContentHash(entry)

	// The cache is keyed by ID, so the original hash is returned even
	// after the entry changes.
	entry.MappedData.Content = "mutated"
	assert.Equal(t, first, svc.ContentHash(entry))
}

func TestFindDuplicates_GroupsByContentHash(t *testing.T) {
	svc := NewDedupeService(zap.NewNop())
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	later := dedupeEntry("later", "d1", "dup", "same", base.Add(time.Hour))
	earlier := dedupeEntry("earlier", "d1", "dup", "same", base)
	unique := dedupeEntry("unique", "d1", "something else", "other", base)

	groups := svc.FindDuplicates([]*models.KnowledgeEntry{later, earlier, unique})

	require.Len(t, groups, 1)
	assert.Equal(t, "earlier", groups[0].Canonical.ID, "earliest member is canonical")
	require.Len(t, groups[0].Duplicates, 1)
	assert.Equal(t, "later", groups[0].Duplicates[0].ID)
	assert.Equal(t, svc.ContentHash(earlier), groups[0].ContentHash)
}

func TestFindDuplicates_SourceURLSecondPass(t *testing.T) {
	svc := NewDedupeService(zap.NewNop())
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	// Different content, same provenance URL: a re-scraped page.
	first := dedupeEntry("scrape-1", "d1", "page v1", "old body", base)
	first.Metadata[models.MetaSourceURL] = "https://example.com/page"
	second := dedupeEntry("scrape-2", "d1", "page v2", "new body", base.Add(time.Hour))
	second.Metadata[models.MetaSourceURL] = "https://example.com/page"
	noURL := dedupeEntry("standalone", "d1", "unrelated", "body", base)

	groups := svc.FindDuplicates([]*models.KnowledgeEntry{first, second, noURL})

	require.Len(t, groups, 1)
	assert.Equal(t, "scrape-1", groups[0].Canonical.ID)
	require.Len(t, groups[0].Duplicates, 1)
	assert.Equal(t, "scrape-2", groups[0].Duplicates[0].ID)
}

func TestFindDuplicates_HashGroupedEntriesSkipSecondPass(t *testing.T) {
	svc := NewDedupeService(zap.NewNop())
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	// Same hash AND same URL: the hash pass claims them, the URL pass
	// must not produce a second group.
	a := dedupeEntry("a", "d1", "dup", "same", base)
	a.Metadata[models.MetaSourceURL] = "https://example.com/x"
	b := dedupeEntry("b", "d1", "dup", "same", base.Add(time.Minute))
	b.Metadata[models.MetaSourceURL] = "https://example.com/x"

	groups := svc.FindDuplicates([]*models.KnowledgeEntry{a, b})
	assert.Len(t, groups, 1)
}

func TestMerge_EarlierEntryWinsIdentity(t *testing.T) {
	svc := NewDedupeService(zap.NewNop())
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	older := dedupeEntry("older", "d1", "submission a", "content", base)
	newer := dedupeEntry("newer", "d1", "submission b", "content", base.Add(time.Hour))

	// Argument order must not matter for identity selection.
	for _, merged := range []*models.KnowledgeEntry{
		svc.Merge(older, newer),
		svc.Merge(newer, older),
	} {
		assert.Equal(t, "older", merged.ID)
		assert.Equal(t, "submission a", merged.OriginalSubmission)
		assert.True(t, merged.Timestamp.Equal(base))
		assert.Equal(t, "newer", merged.Metadata[models.MetaMergedFrom])
		assert.NotEmpty(t, merged.Metadata[models.MetaMergedAt])
	}
}

func TestMerge_MetadataPolicy(t *testing.T) {
	svc := NewDedupeService(zap.NewNop())
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	older := dedupeEntry("older", "d1", "s", "c", base)
	older.Metadata = map[string]string{
		models.MetaTags:      "go,search",
		models.MetaSourceURL: "https://example.com/original",
		"author":             "ada",
	}
	newer := dedupeEntry("newer", "d1", "s2", "c2", base.Add(time.Hour))
	newer.Metadata = map[string]string{
		models.MetaTags:      "search,dedupe",
		models.MetaSourceURL: "https://example.com/mirror",
		"reviewer":           "grace",
	}

	merged := svc.Merge(older, newer)

	assert.Equal(t, "dedupe,go,search", merged.Metadata[models.MetaTags], "tag union is sorted and duplicate-free")
	assert.Equal(t, "https://example.com/original", merged.Metadata[models.MetaSourceURL])
	assert.Equal(t, "https://example.com/mirror", merged.Metadata[models.MetaAlternateSourceURL])
	assert.Equal(t, "ada", merged.Metadata["author"], "base keys are kept")
	assert.Equal(t, "grace", merged.Metadata["reviewer"], "missing keys are copied from other")
}

func TestMerge_TagUnionIsIdempotent(t *testing.T) {
	svc := NewDedupeService(zap.NewNop())
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	a := dedupeEntry("a", "d1", "s", "c", base)
	a.Metadata = map[string]string{models.MetaTags: "go,search"}
	b := dedupeEntry("b", "d1", "s2", "c2", base.Add(time.Hour))
	b.Metadata = map[string]string{models.MetaTags: "search,index"}

	once := svc.Merge(a, b)
	twice := svc.Merge(once, b.Clone())

	assert.Equal(t, once.Metadata[models.MetaTags], twice.Metadata[models.MetaTags],
		"merging the same entry again must not grow the tag set")
}

func TestMerge_PayloadPreference(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		mutateBase  func(*models.KnowledgeEntry)
		mutateOther func(*models.KnowledgeEntry)
		wantContent string
	}{
		{
			name:        "error-free side wins",
			mutateBase:  func(e *models.KnowledgeEntry) { e.MappedData.Error = "extraction failed" },
			mutateOther: func(e *models.KnowledgeEntry) {},
			wantContent: "other content",
		},
		{
			name:       "parsed JSON wins over none",
			mutateBase: func(e *models.KnowledgeEntry) {},
			mutateOther: func(e *models.KnowledgeEntry) {
				e.MappedData.ParsedJSON = map[string]any{"k": "v"}
			},
			wantContent: "other content",
		},
		{
			name:       "more entities win",
			mutateBase: func(e *models.KnowledgeEntry) {},
			mutateOther: func(e *models.KnowledgeEntry) {
				e.MappedData.ExtractedEntities = []models.Entity{{Type: "person", Value: "ada"}}
			},
			wantContent: "other content",
		},
		{
			name:        "longer content wins",
			mutateBase:  func(e *models.KnowledgeEntry) { e.MappedData.Content = "short" },
			mutateOther: func(e *models.KnowledgeEntry) { e.MappedData.Content = "a much longer body" },
			wantContent: "a much longer body",
		},
		{
			name:        "full tie keeps base",
			mutateBase:  func(e *models.KnowledgeEntry) {},
			mutateOther: func(e *models.KnowledgeEntry) {},
			wantContent: "base content",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewDedupeService(zap.NewNop())
			baseEntry := dedupeEntry("base", "d1", "s", "base content", base)
			otherEntry := dedupeEntry("other", "d1", "s2", "other content", base.Add(time.Hour))
			tt.mutateBase(baseEntry)
			tt.mutateOther(otherEntry)

			merged := svc.Merge(baseEntry, otherEntry)
			assert.Equal(t, tt.wantContent, merged.MappedData.Content)
		})
	}
}

func TestMerge_StatusAndSchemaVersion(t *testing.T) {
	svc := NewDedupeService(zap.NewNop())
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	older := dedupeEntry("older", "d1", "s", "c", base)
	older.Status = models.StatusFailed
	older.SchemaVersion = 1
	newer := dedupeEntry("newer", "d1", "s2", "c2", base.Add(time.Hour))
	newer.Status = models.StatusSuccess
	newer.SchemaVersion = 3

	merged := svc.Merge(older, newer)
	assert.Equal(t, models.StatusSuccess, merged.Status, "higher-ranked status wins")
	assert.Equal(t, 3, merged.SchemaVersion, "max schema version wins")
}

func TestMerge_DoesNotMutateInputs(t *testing.T) {
	svc := NewDedupeService(zap.NewNop())
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	older := dedupeEntry("older", "d1", "s", "c", base)
	older.Metadata = map[string]string{models.MetaTags: "go"}
	newer := dedupeEntry("newer", "d1", "s2", "c2", base.Add(time.Hour))
	newer.Metadata = map[string]string{models.MetaTags: "search"}

	_ = svc.Merge(older, newer)

	assert.Equal(t, map[string]string{models.MetaTags: "go"}, older.Metadata)
	assert.Equal(t, map[string]string{models.MetaTags: "search"}, newer.Metadata)
}

func TestDeduplicate_SingleDuplicatePair(t *testing.T) {
	svc := NewDedupeService(zap.NewNop())
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	e1 := dedupeEntry("e1", "d1", "foo", "foo", base)
	e2 := dedupeEntry("e2", "d1", "foo", "foo", base.Add(time.Second))

	merged, stats := svc.Deduplicate(ctx, []*models.KnowledgeEntry{e1, e2})

	require.Len(t, merged, 1)
	assert.Equal(t, "e1", merged[0].ID)
	assert.True(t, merged[0].Timestamp.Equal(base))

	assert.Equal(t, 2, stats.EntriesProcessed)
	assert.Equal(t, 1, stats.GroupsFound)
	assert.Equal(t, 1, stats.TotalDuplicates)
	assert.Equal(t, 1, stats.EntriesAfterMerge)
	assert.Equal(t, 1, stats.EntriesRemoved)
	assert.Equal(t, int64(1024), stats.SpaceSavedBytes)
}

func TestDeduplicate_PreservesFirstAppearanceOrder(t *testing.T) {
	svc := NewDedupeService(zap.NewNop())
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	first := dedupeEntry("first", "d1", "alpha", "alpha", base)
	dupLater := dedupeEntry("dup-later", "d1", "beta", "beta", base.Add(2*time.Hour))
	middle := dedupeEntry("middle", "d1", "gamma", "gamma", base)
	dupEarlier := dedupeEntry("dup-earlier", "d1", "beta", "beta", base.Add(time.Hour))

	merged, _ := svc.Deduplicate(ctx, []*models.KnowledgeEntry{first, dupLater, middle, dupEarlier})

	require.Len(t, merged, 3)
	assert.Equal(t, "first", merged[0].ID)
	// The group surfaces at its first appearance, merged into the
	// earlier-timestamped canonical.
	assert.Equal(t, "dup-earlier", merged[1].ID)
	assert.Equal(t, "middle", merged[2].ID)
}

func TestDeduplicate_NoDuplicates(t *testing.T) {
	svc := NewDedupeService(zap.NewNop())
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	entries := []*models.KnowledgeEntry{
		dedupeEntry("a", "d1", "one", "one", base),
		dedupeEntry("b", "d1", "two", "two", base),
	}

	merged, stats := svc.Deduplicate(ctx, entries)

	assert.Len(t, merged, 2)
	assert.Zero(t, stats.GroupsFound)
	assert.Zero(t, stats.EntriesRemoved)
	assert.Zero(t, stats.SpaceSavedBytes)
}

func TestDeduplicate_ThreeWayGroupReducesLeftToRight(t *testing.T) {
	svc := NewDedupeService(zap.NewNop())
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	a := dedupeEntry("a", "d1", "same", "same", base)
	a.Metadata = map[string]string{models.MetaTags: "one"}
	b := dedupeEntry("b", "d1", "same", "same", base.Add(time.Hour))
	b.Metadata = map[string]string{models.MetaTags: "two"}
	c := dedupeEntry("c", "d1", "same", "same", base.Add(2*time.Hour))
	c.Metadata = map[string]string{models.MetaTags: "three"}

	merged, stats := svc.Deduplicate(ctx, []*models.KnowledgeEntry{a, b, c})

	require.Len(t, merged, 1)
	assert.Equal(t, "a", merged[0].ID)
	assert.Equal(t, "one,three,two", merged[0].Metadata[models.MetaTags])
	assert.Equal(t, 2, stats.TotalDuplicates)
	assert.Equal(t, "c", merged[0].Metadata[models.MetaMergedFrom], "last reduction stamps provenance")
}
