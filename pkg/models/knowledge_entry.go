// Package models contains domain types for mnemos-engine.
package models

import "time"

// EntryStatus represents the processing state of a knowledge entry.
type EntryStatus string

// Entry status constants, ordered by precedence (see Rank).
const (
	StatusPending    EntryStatus = "pending"
	StatusProcessing EntryStatus = "processing"
	StatusSuccess    EntryStatus = "success"
	StatusFailed     EntryStatus = "failed"
)

// String returns the string representation of an EntryStatus.
func (s EntryStatus) String() string {
	return string(s)
}

// IsValid returns true if the status is a known entry status.
func (s EntryStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusSuccess, StatusFailed:
		return true
	default:
		return false
	}
}

// Rank returns the precedence of the status for merge resolution.
// success outranks processing outranks pending outranks failed,
// so merging never downgrades a successfully processed entry.
func (s EntryStatus) Rank() int {
	switch s {
	case StatusSuccess:
		return 3
	case StatusProcessing:
		return 2
	case StatusPending:
		return 1
	default:
		return 0
	}
}

// Entity is a single extracted entity (person, link, concept, ...)
// carried inside an entry's mapped payload. Order within the payload
// is meaningful and preserved.
type Entity struct {
	Type     string            `json:"type" yaml:"type"`
	Value    string            `json:"value" yaml:"value"`
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Clone returns a deep copy of the entity.
func (e Entity) Clone() Entity {
	out := Entity{Type: e.Type, Value: e.Value}
	if e.Metadata != nil {
		out.Metadata = make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// MappedData is the structured payload extracted from an entry's
// original submission. Content, ParsedJSON and Error are optional;
// an empty Content string and a nil ParsedJSON both mean "absent".
type MappedData struct {
	Type              string         `json:"type" yaml:"type"` // content type tag ("markdown", "html", "fact", ...)
	Content           string         `json:"content,omitempty" yaml:"content,omitempty"`
	ParsedJSON        map[string]any `json:"parsed_json,omitempty" yaml:"parsed_json,omitempty"`
	ExtractedEntities []Entity       `json:"extracted_entities,omitempty" yaml:"extracted_entities,omitempty"`
	Error             string         `json:"error,omitempty" yaml:"error,omitempty"` // extraction failure marker
}

// HasError returns true if extraction recorded a failure for this payload.
func (d MappedData) HasError() bool {
	return d.Error != ""
}

// Clone returns a deep copy of the payload.
func (d MappedData) Clone() MappedData {
	out := MappedData{Type: d.Type, Content: d.Content, Error: d.Error}
	if d.ParsedJSON != nil {
		out.ParsedJSON = cloneJSONMap(d.ParsedJSON)
	}
	if d.ExtractedEntities != nil {
		out.ExtractedEntities = make([]Entity, len(d.ExtractedEntities))
		for i, ent := range d.ExtractedEntities {
			out.ExtractedEntities[i] = ent.Clone()
		}
	}
	return out
}

// KnowledgeEntry is the unit of ingested knowledge: an imported document,
// an extracted fact, or crawled content. ID is immutable; Timestamp is the
// creation time of the earliest constituent once entries have been merged.
type KnowledgeEntry struct {
	ID                 string            `json:"id" yaml:"id"`
	DomainID           string            `json:"domain_id" yaml:"domain_id"` // source domain / namespace
	OriginalSubmission string            `json:"original_submission" yaml:"original_submission"`
	MappedData         MappedData        `json:"mapped_data" yaml:"mapped_data"`
	SchemaVersion      int               `json:"schema_version" yaml:"schema_version"`
	Timestamp          time.Time         `json:"timestamp" yaml:"timestamp"`
	Status             EntryStatus       `json:"status" yaml:"status"`
	Metadata           map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"` // tags, sourceURL, provenance
}

// Well-known metadata keys.
const (
	MetaTags               = "tags"
	MetaSourceURL          = "sourceURL"
	MetaAlternateSourceURL = "alternateSourceURL"
	MetaMergedFrom         = "mergedFrom"
	MetaMergedAt           = "mergedAt"
	MetaFileName           = "fileName"
)

// Clone returns a deep copy of the entry. Merge and index operations
// work on clones so callers never observe mutation of their inputs.
func (e *KnowledgeEntry) Clone() *KnowledgeEntry {
	if e == nil {
		return nil
	}
	out := &KnowledgeEntry{
		ID:                 e.ID,
		DomainID:           e.DomainID,
		OriginalSubmission: e.OriginalSubmission,
		MappedData:         e.MappedData.Clone(),
		SchemaVersion:      e.SchemaVersion,
		Timestamp:          e.Timestamp,
		Status:             e.Status,
	}
	if e.Metadata != nil {
		out.Metadata = make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// cloneJSONMap deep-copies a JSON-shaped map (maps, slices, scalars).
func cloneJSONMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneJSONValue(v)
	}
	return out
}

func cloneJSONValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneJSONMap(t)
	case []any:
		out := make([]any, len(t))
		for i, el := range t {
			out[i] = cloneJSONValue(el)
		}
		return out
	default:
		return v
	}
}
