package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mnemos-ai/mnemos-engine/pkg/cache"
	"github.com/mnemos-ai/mnemos-engine/pkg/models"
	"github.com/mnemos-ai/mnemos-engine/pkg/termindex"
)

// entityBoost multiplies the relevance score of hits whose extracted
// entities overlap the query tokens.
const entityBoost = 1.5

// timeKey is one time-index element, ordered by (timestamp, id).
type timeKey struct {
	ts time.Time
	id string
}

func (k timeKey) less(other timeKey) bool {
	if k.ts.Equal(other.ts) {
		return k.id < other.id
	}
	return k.ts.Before(other.ts)
}

// SearchIndex maintains the in-memory search views over knowledge
// entries: the authoritative entry map, an entity index (type → value →
// ids), a domain index, a time-ordered index, and a recency cache,
// backed by a pluggable term index for full-text scoring.
//
// A single mutex guards all state; every exported operation holds it
// for its whole duration, so operations are totally ordered and the
// views can never observe each other mid-update. Operations do not
// return errors: collaborator failures are logged and absorbed, and
// inconsistency is surfaced through Health.
type SearchIndex struct {
	mu sync.Mutex

	entries    map[string]*models.KnowledgeEntry
	entityIdx  map[string]map[string]map[string]struct{}
	domainIdx  map[string]map[string]struct{}
	timeIdx    []timeKey
	entryCount int

	terms  termindex.TermIndex
	cache  cache.EntryCache
	logger *zap.Logger
}

// NewSearchIndex creates an empty index over the given term index and
// recency cache.
func NewSearchIndex(terms termindex.TermIndex, entryCache cache.EntryCache, logger *zap.Logger) *SearchIndex {
	return &SearchIndex{
		entries:   make(map[string]*models.KnowledgeEntry),
		entityIdx: make(map[string]map[string]map[string]struct{}),
		domainIdx: make(map[string]map[string]struct{}),
		terms:     terms,
		cache:     entryCache,
		logger:    logger.Named("search-index"),
	}
}

// IndexEntry adds an entry to every view. Re-indexing an existing ID is
// an update: the old state is removed first, then the new state added.
func (idx *SearchIndex) IndexEntry(ctx context.Context, entry *models.KnowledgeEntry) {
	if entry == nil || entry.ID == "" {
		return
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.indexLocked(ctx, entry)
}

func (idx *SearchIndex) indexLocked(ctx context.Context, entry *models.KnowledgeEntry) {
	if existing, ok := idx.entries[entry.ID]; ok {
		idx.removeLocked(ctx, existing)
	}

	owned := entry.Clone()

	terms := DeriveTerms(owned)
	if err := idx.terms.AddEntry(ctx, owned.ID, terms, owned.Timestamp, owned.DomainID); err != nil {
		idx.logger.Warn("failed to add entry to term index",
			zap.String("entry_id", owned.ID), zap.Error(err))
	}

	for _, entity := range owned.MappedData.ExtractedEntities {
		values, ok := idx.entityIdx[entity.Type]
		if !ok {
			values = make(map[string]map[string]struct{})
			idx.entityIdx[entity.Type] = values
		}
		ids, ok := values[entity.Value]
		if !ok {
			ids = make(map[string]struct{})
			values[entity.Value] = ids
		}
		ids[owned.ID] = struct{}{}
	}

	domainIDs, ok := idx.domainIdx[owned.DomainID]
	if !ok {
		domainIDs = make(map[string]struct{})
		idx.domainIdx[owned.DomainID] = domainIDs
	}
	domainIDs[owned.ID] = struct{}{}

	idx.timeIdx = append(idx.timeIdx, timeKey{ts: owned.Timestamp, id: owned.ID})
	sort.Slice(idx.timeIdx, func(i, j int) bool { return idx.timeIdx[i].less(idx.timeIdx[j]) })

	idx.entries[owned.ID] = owned
	idx.cache.Set(owned.ID, owned)
	idx.entryCount++
}

// RemoveEntry drops an entry from every view. Unknown IDs are a no-op.
func (idx *SearchIndex) RemoveEntry(ctx context.Context, id string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	entry, ok := idx.entries[id]
	if !ok {
		return
	}
	idx.removeLocked(ctx, entry)
}

func (idx *SearchIndex) removeLocked(ctx context.Context, entry *models.KnowledgeEntry) {
	terms := DeriveTerms(entry)
	if err := idx.terms.RemoveEntry(ctx, entry.ID, terms); err != nil {
		idx.logger.Warn("failed to remove entry from term index",
			zap.String("entry_id", entry.ID), zap.Error(err))
	}

	for _, entity := range entry.MappedData.ExtractedEntities {
		values, ok := idx.entityIdx[entity.Type]
		if !ok {
			continue
		}
		if ids, ok := values[entity.Value]; ok {
			delete(ids, entry.ID)
			if len(ids) == 0 {
				delete(values, entity.Value)
			}
		}
		if len(values) == 0 {
			delete(idx.entityIdx, entity.Type)
		}
	}

	if ids, ok := idx.domainIdx[entry.DomainID]; ok {
		delete(ids, entry.ID)
		if len(ids) == 0 {
			delete(idx.domainIdx, entry.DomainID)
		}
	}

	if pos, ok := idx.timeIdxPos(entry.Timestamp, entry.ID); ok {
		idx.timeIdx = append(idx.timeIdx[:pos], idx.timeIdx[pos+1:]...)
	}

	delete(idx.entries, entry.ID)
	idx.cache.Remove(entry.ID)
	idx.entryCount--
}

// timeIdxPos locates the (timestamp, id) pair in the sorted time index.
func (idx *SearchIndex) timeIdxPos(ts time.Time, id string) (int, bool) {
	target := timeKey{ts: ts, id: id}
	pos := sort.Search(len(idx.timeIdx), func(i int) bool {
		return !idx.timeIdx[i].less(target)
	})
	if pos < len(idx.timeIdx) && idx.timeIdx[pos].ts.Equal(ts) && idx.timeIdx[pos].id == id {
		return pos, true
	}
	return 0, false
}

// Search runs a full-text query. Candidates come from the term index
// with a 2x over-fetch to compensate for post-filtering; each surviving
// hit reports its matched terms and entities, with the score boosted
// when an entity value overlaps the query.
func (idx *SearchIndex) Search(ctx context.Context, query string, limit int, filters *models.SearchFilters) []models.SearchResult {
	tokens := TokenizeQuery(query)
	if len(tokens) == 0 || limit <= 0 {
		return nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	hits, err := idx.terms.Search(ctx, tokens, limit*2)
	if err != nil {
		idx.logger.Warn("term index search failed", zap.Error(err))
		return nil
	}

	querySet := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		querySet[token] = struct{}{}
	}

	var results []models.SearchResult
	for _, hit := range hits {
		entry := idx.resolveLocked(hit.EntryID)
		if entry == nil {
			continue
		}
		if !matchesFilters(entry, filters) {
			continue
		}

		matchedEntities := matchEntities(entry, querySet)
		score := hit.Score
		if len(matchedEntities) > 0 {
			score *= entityBoost
		}

		results = append(results, models.SearchResult{
			Entry:           entry.Clone(),
			Score:           score,
			MatchedTerms:    matchTerms(entry, querySet),
			MatchedEntities: matchedEntities,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score == results[j].Score {
			return results[i].Entry.ID < results[j].Entry.ID
		}
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// resolveLocked looks an entry up cache-first, falling back to the
// authoritative map and repopulating the cache on a miss.
func (idx *SearchIndex) resolveLocked(id string) *models.KnowledgeEntry {
	if entry, ok := idx.cache.Get(id); ok {
		return entry
	}
	entry, ok := idx.entries[id]
	if !ok {
		return nil
	}
	idx.cache.Set(id, entry)
	return entry
}

func matchesFilters(entry *models.KnowledgeEntry, filters *models.SearchFilters) bool {
	if filters == nil {
		return true
	}
	if filters.Domain != "" && entry.DomainID != filters.Domain {
		return false
	}
	if filters.ContentType != "" && entry.MappedData.Type != filters.ContentType {
		return false
	}
	if filters.From != nil && entry.Timestamp.Before(*filters.From) {
		return false
	}
	if filters.To != nil && entry.Timestamp.After(*filters.To) {
		return false
	}
	if filters.HasEntityType != "" {
		for _, entity := range entry.MappedData.ExtractedEntities {
			if entity.Type == filters.HasEntityType {
				return true
			}
		}
		return false
	}
	return true
}

// matchTerms intersects the query tokens with the entry's derived term
// set, in sorted term order.
func matchTerms(entry *models.KnowledgeEntry, querySet map[string]struct{}) []string {
	var matched []string
	for _, term := range DeriveTerms(entry) {
		if _, ok := querySet[term]; ok {
			matched = append(matched, term)
		}
	}
	return matched
}

// matchEntities returns copies of the entities whose tokenized value
// overlaps the query tokens.
func matchEntities(entry *models.KnowledgeEntry, querySet map[string]struct{}) []models.Entity {
	var matched []models.Entity
	for _, entity := range entry.MappedData.ExtractedEntities {
		for _, token := range tokenize(entity.Value) {
			if !keepToken(token) {
				continue
			}
			if _, ok := querySet[token]; ok {
				matched = append(matched, entity.Clone())
				break
			}
		}
	}
	return matched
}

// SearchByEntity returns the sorted IDs of entries holding an entity of
// the given type and value. An empty value unions every value bucket of
// the type.
func (idx *SearchIndex) SearchByEntity(ctx context.Context, entityType, value string) []string {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	values, ok := idx.entityIdx[entityType]
	if !ok {
		return nil
	}

	set := make(map[string]struct{})
	if value == "" {
		for _, ids := range values {
			for id := range ids {
				set[id] = struct{}{}
			}
		}
	} else {
		for id := range values[value] {
			set[id] = struct{}{}
		}
	}
	if len(set) == 0 {
		return nil
	}

	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// EntriesInDateRange returns the entries whose timestamp falls in
// [from, to], in ascending time order.
func (idx *SearchIndex) EntriesInDateRange(ctx context.Context, from, to time.Time) []*models.KnowledgeEntry {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	start := sort.Search(len(idx.timeIdx), func(i int) bool {
		return !idx.timeIdx[i].ts.Before(from)
	})

	var out []*models.KnowledgeEntry
	for i := start; i < len(idx.timeIdx) && !idx.timeIdx[i].ts.After(to); i++ {
		if entry, ok := idx.entries[idx.timeIdx[i].id]; ok {
			out = append(out, entry.Clone())
		}
	}
	return out
}

// SuggestTerms returns indexed terms starting with the prefix.
func (idx *SearchIndex) SuggestTerms(ctx context.Context, prefix string, limit int) []string {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	suggestions, err := idx.terms.PrefixSearch(ctx, prefix, limit)
	if err != nil {
		idx.logger.Warn("term index prefix search failed", zap.Error(err))
		return nil
	}
	return suggestions
}

// Rebuild clears every view, the term index and the cache, then
// re-indexes the supplied entries in order. Used after external
// corrections or storage reloads.
func (idx *SearchIndex) Rebuild(ctx context.Context, entries []*models.KnowledgeEntry) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.entries = make(map[string]*models.KnowledgeEntry)
	idx.entityIdx = make(map[string]map[string]map[string]struct{})
	idx.domainIdx = make(map[string]map[string]struct{})
	idx.timeIdx = nil
	idx.entryCount = 0
	if err := idx.terms.Clear(ctx); err != nil {
		idx.logger.Warn("failed to clear term index", zap.Error(err))
	}
	idx.cache.Clear()

	for _, entry := range entries {
		if entry == nil || entry.ID == "" {
			continue
		}
		idx.indexLocked(ctx, entry)
	}

	idx.logger.Info("index rebuilt", zap.Int("entries", idx.entryCount))
}

// Health cross-checks every view against the authoritative entry map.
// Entity and domain ids must be subsets of the stored ids; the time
// index must hold exactly one pair per stored entry.
func (idx *SearchIndex) Health(ctx context.Context) models.IndexHealth {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	health := models.IndexHealth{
		TermIndexHealthy:    idx.terms.IsHealthy(ctx),
		EntityIDsConsistent: true,
		DomainIDsConsistent: true,
	}

	for _, values := range idx.entityIdx {
		for _, ids := range values {
			for id := range ids {
				if _, ok := idx.entries[id]; !ok {
					health.EntityIDsConsistent = false
				}
			}
		}
	}

	for _, ids := range idx.domainIdx {
		for id := range ids {
			if _, ok := idx.entries[id]; !ok {
				health.DomainIDsConsistent = false
			}
		}
	}

	timeIDs := make(map[string]struct{}, len(idx.timeIdx))
	for _, key := range idx.timeIdx {
		timeIDs[key.id] = struct{}{}
	}
	health.TimeIndexConsistent = len(idx.timeIdx) == len(idx.entries) &&
		len(timeIDs) == len(idx.timeIdx)
	if health.TimeIndexConsistent {
		for id := range timeIDs {
			if _, ok := idx.entries[id]; !ok {
				health.TimeIndexConsistent = false
				break
			}
		}
	}

	health.Healthy = health.TermIndexHealthy && health.EntityIDsConsistent &&
		health.DomainIDsConsistent && health.TimeIndexConsistent
	return health
}

// Stats reports the size of each view plus term index statistics.
func (idx *SearchIndex) Stats(ctx context.Context) models.IndexStats {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	stats := models.IndexStats{
		EntryCount:      idx.entryCount,
		EntityTypeCount: len(idx.entityIdx),
		DomainCount:     len(idx.domainIdx),
		TimeIndexSize:   len(idx.timeIdx),
		CacheSize:       idx.cache.Len(),
	}

	termStats, err := idx.terms.Statistics(ctx)
	if err != nil {
		idx.logger.Warn("term index statistics failed", zap.Error(err))
		return stats
	}
	stats.TermCount = termStats.TermCount
	stats.AvgTermsPerEntry = termStats.AvgTermsPerEntry
	return stats
}
