package models

import "time"

// DuplicateGroup is a set of entries identified as duplicates of each
// other. Canonical is the earliest-timestamped member; Duplicates holds
// the remaining members in ascending timestamp order.
type DuplicateGroup struct {
	Canonical   *KnowledgeEntry   `json:"canonical"`
	Duplicates  []*KnowledgeEntry `json:"duplicates"`
	ContentHash string            `json:"content_hash"`
}

// Size returns the total number of entries in the group.
func (g *DuplicateGroup) Size() int {
	return 1 + len(g.Duplicates)
}

// duplicateSizeBytes is the fixed per-duplicate size assumption used
// for the space-saved estimate. No actual sizes are measured.
const duplicateSizeBytes = 1024

// DedupeStats summarizes a deduplication run.
type DedupeStats struct {
	EntriesProcessed  int           `json:"entries_processed"`
	GroupsFound       int           `json:"groups_found"`
	TotalDuplicates   int           `json:"total_duplicates"` // sum of len(Duplicates) across groups
	EntriesAfterMerge int           `json:"entries_after_merge"`
	EntriesRemoved    int           `json:"entries_removed"`
	SpaceSavedBytes   int64         `json:"space_saved_bytes"` // TotalDuplicates * fixed size assumption
	ProcessingTime    time.Duration `json:"processing_time"`
}

// EstimateSpaceSaved computes the space-saved figure for a number of
// removed duplicates.
func EstimateSpaceSaved(duplicates int) int64 {
	return int64(duplicates) * duplicateSizeBytes
}
