package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mnemos-ai/mnemos-engine/pkg/models"
)

// hashDelimiter separates the hashed fields so adjacent field values
// cannot collide across the field boundary.
const hashDelimiter = "\x1f"

// DedupeService finds and merges duplicate knowledge entries.
type DedupeService interface {
	// ContentHash returns the hex-encoded SHA-256 of the entry's
	// identity fields. Results are cached by entry ID.
	ContentHash(entry *models.KnowledgeEntry) string

	// FindDuplicates groups entries that share a content hash, then
	// groups remaining entries that share a source URL.
	FindDuplicates(entries []*models.KnowledgeEntry) []*models.DuplicateGroup

	// Merge combines two duplicate entries into one. The earlier entry
	// wins identity; payload, status and metadata follow the merge
	// policy. Neither input is mutated.
	Merge(base, other *models.KnowledgeEntry) *models.KnowledgeEntry

	// Deduplicate merges every duplicate group in the batch and returns
	// the surviving entries in first-appearance order with run
	// statistics. Entry-level problems degrade, they never fail the run.
	Deduplicate(ctx context.Context, entries []*models.KnowledgeEntry) ([]*models.KnowledgeEntry, *models.DedupeStats)
}

type dedupeService struct {
	mu        sync.Mutex
	hashCache map[string]string // entry ID → content hash
	logger    *zap.Logger
}

var _ DedupeService = (*dedupeService)(nil)

// NewDedupeService creates a deduplication service.
func NewDedupeService(logger *zap.Logger) DedupeService {
	return &dedupeService{
		hashCache: make(map[string]string),
		logger:    logger.Named("dedupe"),
	}
}

func (s *dedupeService) ContentHash(entry *models.KnowledgeEntry) string {
	if entry == nil {
		return ""
	}

	s.mu.Lock()
	if hash, ok := s.hashCache[entry.ID]; ok {
		s.mu.Unlock()
		return hash
	}
	s.mu.Unlock()

	canonical := strings.Join([]string{
		entry.DomainID,
		entry.OriginalSubmission,
		entry.MappedData.Content,
		entry.MappedData.Type,
	}, hashDelimiter)

	digest := sha256.Sum256([]byte(canonical))
	hash := hex.EncodeToString(digest[:])

	s.mu.Lock()
	s.hashCache[entry.ID] = hash
	s.mu.Unlock()

	return hash
}

func (s *dedupeService) FindDuplicates(entries []*models.KnowledgeEntry) []*models.DuplicateGroup {
	var groups []*models.DuplicateGroup
	grouped := make(map[string]struct{})

	// Primary pass: identical content hash.
	hashGroups := collectGroups(entries, func(e *models.KnowledgeEntry) string {
		return s.ContentHash(e)
	})
	for _, members := range hashGroups {
		group := &models.DuplicateGroup{
			Canonical:   members[0],
			Duplicates:  members[1:],
			ContentHash: s.ContentHash(members[0]),
		}
		groups = append(groups, group)
		for _, m := range members {
			grouped[m.ID] = struct{}{}
		}
	}

	// Secondary pass: same source URL among the still-ungrouped. Catches
	// re-scraped pages whose content drifted slightly.
	var remaining []*models.KnowledgeEntry
	for _, e := range entries {
		if _, ok := grouped[e.ID]; !ok {
			remaining = append(remaining, e)
		}
	}
	urlGroups := collectGroups(remaining, func(e *models.KnowledgeEntry) string {
		return e.Metadata[models.MetaSourceURL]
	})
	for _, members := range urlGroups {
		groups = append(groups, &models.DuplicateGroup{
			Canonical:   members[0],
			Duplicates:  members[1:],
			ContentHash: s.ContentHash(members[0]),
		})
	}

	return groups
}

// collectGroups buckets entries by key, skipping empty keys, and
// returns the buckets with two or more members in first-appearance
// order. Members are sorted by ascending timestamp with ID tie-break,
// so the earliest entry leads each bucket.
func collectGroups(entries []*models.KnowledgeEntry, keyFn func(*models.KnowledgeEntry) string) [][]*models.KnowledgeEntry {
	buckets := make(map[string][]*models.KnowledgeEntry)
	var order []string

	for _, e := range entries {
		if e == nil {
			continue
		}
		key := keyFn(e)
		if key == "" {
			continue
		}
		if _, seen := buckets[key]; !seen {
			order = append(order, key)
		}
		buckets[key] = append(buckets[key], e)
	}

	var groups [][]*models.KnowledgeEntry
	for _, key := range order {
		members := buckets[key]
		if len(members) < 2 {
			continue
		}
		sort.SliceStable(members, func(i, j int) bool {
			if members[i].Timestamp.Equal(members[j].Timestamp) {
				return members[i].ID < members[j].ID
			}
			return members[i].Timestamp.Before(members[j].Timestamp)
		})
		groups = append(groups, members)
	}
	return groups
}

func (s *dedupeService) Merge(base, other *models.KnowledgeEntry) *models.KnowledgeEntry {
	if base == nil {
		return other.Clone()
	}
	if other == nil {
		return base.Clone()
	}

	// The earlier entry is the base; ties keep the left argument.
	if other.Timestamp.Before(base.Timestamp) {
		base, other = other, base
	}

	merged := base.Clone()
	merged.Metadata = mergeMetadata(base, other)
	if preferOtherPayload(base.MappedData, other.MappedData) {
		merged.MappedData = other.MappedData.Clone()
	}
	if other.Status.Rank() > base.Status.Rank() {
		merged.Status = other.Status
	}
	if other.SchemaVersion > merged.SchemaVersion {
		merged.SchemaVersion = other.SchemaVersion
	}

	return merged
}

// mergeMetadata combines metadata for a merge with base precedence:
// missing keys copy over, tags union, a conflicting source URL is
// preserved under alternateSourceURL, and the merge is stamped with
// provenance keys.
func mergeMetadata(base, other *models.KnowledgeEntry) map[string]string {
	merged := make(map[string]string, len(base.Metadata)+len(other.Metadata)+2)
	for k, v := range base.Metadata {
		merged[k] = v
	}

	for k, v := range other.Metadata {
		existing, present := merged[k]
		switch {
		case !present:
			merged[k] = v
		case k == models.MetaTags:
			merged[k] = unionTags(existing, v)
		case k == models.MetaSourceURL && existing != v:
			merged[models.MetaAlternateSourceURL] = v
		}
	}

	merged[models.MetaMergedFrom] = other.ID
	merged[models.MetaMergedAt] = time.Now().UTC().Format(time.RFC3339)
	return merged
}

// unionTags merges two comma-separated tag lists into a sorted,
// duplicate-free list.
func unionTags(a, b string) string {
	set := make(map[string]struct{})
	for _, raw := range strings.Split(a+","+b, ",") {
		tag := strings.TrimSpace(raw)
		if tag != "" {
			set[tag] = struct{}{}
		}
	}

	tags := make([]string, 0, len(set))
	for tag := range set {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return strings.Join(tags, ",")
}

// preferOtherPayload applies the payload selection policy: no
// extraction error, then parsed JSON present, then strictly more
// entities, then longer content. Ties keep the base payload.
func preferOtherPayload(base, other models.MappedData) bool {
	if base.HasError() != other.HasError() {
		return base.HasError()
	}
	if (base.ParsedJSON != nil) != (other.ParsedJSON != nil) {
		return other.ParsedJSON != nil
	}
	if len(base.ExtractedEntities) != len(other.ExtractedEntities) {
		return len(other.ExtractedEntities) > len(base.ExtractedEntities)
	}
	return len(other.Content) > len(base.Content)
}

func (s *dedupeService) Deduplicate(ctx context.Context, entries []*models.KnowledgeEntry) ([]*models.KnowledgeEntry, *models.DedupeStats) {
	start := time.Now()

	groups := s.FindDuplicates(entries)

	groupByMember := make(map[string]*models.DuplicateGroup)
	for _, g := range groups {
		groupByMember[g.Canonical.ID] = g
		for _, d := range g.Duplicates {
			groupByMember[d.ID] = g
		}
	}

	survivors := make([]*models.KnowledgeEntry, 0, len(entries))
	emitted := make(map[*models.DuplicateGroup]struct{})
	totalDuplicates := 0

	for _, e := range entries {
		if e == nil {
			continue
		}
		group, inGroup := groupByMember[e.ID]
		if !inGroup {
			survivors = append(survivors, e)
			continue
		}
		if _, done := emitted[group]; done {
			continue
		}
		emitted[group] = struct{}{}

		merged := group.Canonical
		for _, d := range group.Duplicates {
			merged = s.Merge(merged, d)
		}
		survivors = append(survivors, merged)
		totalDuplicates += len(group.Duplicates)
	}

	stats := &models.DedupeStats{
		EntriesProcessed:  len(entries),
		GroupsFound:       len(groups),
		TotalDuplicates:   totalDuplicates,
		EntriesAfterMerge: len(survivors),
		EntriesRemoved:    len(entries) - len(survivors),
		SpaceSavedBytes:   models.EstimateSpaceSaved(totalDuplicates),
		ProcessingTime:    time.Since(start),
	}

	s.logger.Info("deduplication finished",
		zap.Int("entries", stats.EntriesProcessed),
		zap.Int("groups", stats.GroupsFound),
		zap.Int("removed", stats.EntriesRemoved),
		zap.Duration("took", stats.ProcessingTime))

	return survivors, stats
}
