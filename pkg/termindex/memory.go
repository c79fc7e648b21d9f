package termindex

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"
)

// memoryEntry records what an entry was indexed under.
type memoryEntry struct {
	terms     []string
	indexedAt time.Time
	domainID  string
}

// memoryIndex is an inverted index held in process memory: a posting
// set per term plus the reverse mapping for replacement and removal.
type memoryIndex struct {
	mu       sync.RWMutex
	postings map[string]map[string]struct{} // term -> entry id set
	entries  map[string]memoryEntry         // entry id -> indexed terms
}

var _ TermIndex = (*memoryIndex)(nil)

// NewMemory creates an empty in-memory term index.
func NewMemory() TermIndex {
	return &memoryIndex{
		postings: make(map[string]map[string]struct{}),
		entries:  make(map[string]memoryEntry),
	}
}

func (m *memoryIndex) AddEntry(ctx context.Context, id string, terms []string, timestamp time.Time, domainID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.entries[id]; ok {
		m.dropPostings(id, old.terms)
	}

	stored := make([]string, len(terms))
	copy(stored, terms)

	for _, term := range stored {
		set, ok := m.postings[term]
		if !ok {
			set = make(map[string]struct{})
			m.postings[term] = set
		}
		set[id] = struct{}{}
	}

	m.entries[id] = memoryEntry{terms: stored, indexedAt: timestamp, domainID: domainID}
	return nil
}

func (m *memoryIndex) RemoveEntry(ctx context.Context, id string, terms []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.entries[id]
	if !ok {
		return nil
	}
	// The stored terms are authoritative over the caller-supplied ones.
	m.dropPostings(id, stored.terms)
	delete(m.entries, id)
	return nil
}

// dropPostings removes id from each term's posting set, pruning sets
// that become empty. Callers hold the write lock.
func (m *memoryIndex) dropPostings(id string, terms []string) {
	for _, term := range terms {
		set, ok := m.postings[term]
		if !ok {
			continue
		}
		delete(set, id)
		if len(set) == 0 {
			delete(m.postings, term)
		}
	}
}

func (m *memoryIndex) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.postings = make(map[string]map[string]struct{})
	m.entries = make(map[string]memoryEntry)
	return nil
}

func (m *memoryIndex) Search(ctx context.Context, terms []string, limit int) ([]TermHit, error) {
	if len(terms) == 0 || limit <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	total := len(m.entries)
	scores := make(map[string]float64)
	for _, term := range terms {
		set, ok := m.postings[term]
		if !ok {
			continue
		}
		// Rare terms weigh more than ubiquitous ones.
		weight := 1.0 + math.Log(float64(total)/float64(len(set)))
		for id := range set {
			scores[id] += weight
		}
	}

	hits := make([]TermHit, 0, len(scores))
	for id, score := range scores {
		hits = append(hits, TermHit{EntryID: id, Score: score})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].EntryID < hits[j].EntryID
	})

	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (m *memoryIndex) PrefixSearch(ctx context.Context, prefix string, limit int) ([]string, error) {
	if prefix == "" || limit <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []string
	for term := range m.postings {
		if strings.HasPrefix(term, prefix) {
			matched = append(matched, term)
		}
	}
	sort.Strings(matched)
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (m *memoryIndex) Statistics(ctx context.Context) (*Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &Stats{TermCount: len(m.postings)}
	if len(m.entries) > 0 {
		totalTerms := 0
		for _, e := range m.entries {
			totalTerms += len(e.terms)
		}
		stats.AvgTermsPerEntry = float64(totalTerms) / float64(len(m.entries))
	}
	return stats, nil
}

func (m *memoryIndex) IsHealthy(ctx context.Context) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Every posted id must be a known entry.
	for _, set := range m.postings {
		for id := range set {
			if _, ok := m.entries[id]; !ok {
				return false
			}
		}
	}
	// Every entry term must have a posting that contains the entry.
	for id, e := range m.entries {
		for _, term := range e.terms {
			set, ok := m.postings[term]
			if !ok {
				return false
			}
			if _, ok := set[id]; !ok {
				return false
			}
		}
	}
	return true
}
