package models

import "time"

// SearchFilters narrows full-text search results. Zero values mean
// "no constraint"; From/To bound the entry timestamp inclusively.
type SearchFilters struct {
	Domain        string     `json:"domain,omitempty"`
	ContentType   string     `json:"content_type,omitempty"`
	From          *time.Time `json:"from,omitempty"`
	To            *time.Time `json:"to,omitempty"`
	HasEntityType string     `json:"has_entity_type,omitempty"` // entry must carry at least one entity of this type
}

// SearchResult is a single scored hit. MatchedTerms are the query terms
// the entry was indexed under; MatchedEntities are entities whose value
// overlaps the query tokens.
type SearchResult struct {
	Entry           *KnowledgeEntry `json:"entry"`
	Score           float64         `json:"score"`
	MatchedTerms    []string        `json:"matched_terms,omitempty"`
	MatchedEntities []Entity        `json:"matched_entities,omitempty"`
}

// IndexStats reports the size of each index view.
type IndexStats struct {
	EntryCount       int     `json:"entry_count"`
	EntityTypeCount  int     `json:"entity_type_count"`
	DomainCount      int     `json:"domain_count"`
	TimeIndexSize    int     `json:"time_index_size"`
	CacheSize        int     `json:"cache_size"`
	TermCount        int     `json:"term_count"`
	AvgTermsPerEntry float64 `json:"avg_terms_per_entry"`
}

// IndexHealth reports consistency between the index views and the
// authoritative entry map. Healthy is the conjunction of all checks.
type IndexHealth struct {
	Healthy             bool `json:"healthy"`
	TermIndexHealthy    bool `json:"term_index_healthy"`
	EntityIDsConsistent bool `json:"entity_ids_consistent"` // every entity-indexed id exists
	DomainIDsConsistent bool `json:"domain_ids_consistent"` // every domain-indexed id exists
	TimeIndexConsistent bool `json:"time_index_consistent"` // time index ids match the entry map exactly
}
