package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mnemos-ai/mnemos-engine/pkg/models"
)

func TestDeriveTerms_CollectsAllSources(t *testing.T) {
	entry := &models.KnowledgeEntry{
		ID:                 "e1",
		DomainID:           "Docs",
		OriginalSubmission: "The Quick brown fox",
		MappedData: models.MappedData{
			Type:    "Markdown",
			Content: "Fox jumps over lazy dogs",
			ExtractedEntities: []models.Entity{
				{Type: "Person", Value: "Ada Lovelace"},
			},
		},
		Timestamp: time.Now(),
		Status:    models.StatusSuccess,
		Metadata:  map[string]string{"sourceURL": "https://example.com/foxes"},
	}

	terms := DeriveTerms(entry)

	assert.Contains(t, terms, "quick")
	assert.Contains(t, terms, "brown")
	assert.Contains(t, terms, "fox")
	assert.Contains(t, terms, "jumps")
	assert.Contains(t, terms, "ada")
	assert.Contains(t, terms, "lovelace")
	assert.Contains(t, terms, "example")

	assert.Contains(t, terms, "entity:person")
	assert.Contains(t, terms, "meta:sourceurl")
	assert.Contains(t, terms, "domain:docs")
	assert.Contains(t, terms, "status:success")
	assert.Contains(t, terms, "type:markdown")

	assert.NotContains(t, terms, "the", "stop words are dropped")
	assert.NotContains(t, terms, "over")
	assert.IsIncreasing(t, terms)
}

func TestDeriveTerms_Deduplicates(t *testing.T) {
	entry := &models.KnowledgeEntry{
		ID:                 "e1",
		DomainID:           "docs",
		OriginalSubmission: "alpha alpha Alpha",
		MappedData:         models.MappedData{Type: "text", Content: "alpha beta"},
	}

	terms := DeriveTerms(entry)

	seen := map[string]int{}
	for _, term := range terms {
		seen[term]++
	}
	assert.Equal(t, 1, seen["alpha"])
	assert.Equal(t, 1, seen["beta"])
}

func TestDeriveTerms_NilEntry(t *testing.T) {
	assert.Nil(t, DeriveTerms(nil))
}

func TestDeriveTerms_DropsShortTokens(t *testing.T) {
	entry := &models.KnowledgeEntry{
		ID:       "e1",
		DomainID: "d",
		MappedData: models.MappedData{
			Type:    "text",
			Content: "x go 7 gopher",
		},
	}

	terms := DeriveTerms(entry)

	assert.NotContains(t, terms, "x")
	assert.NotContains(t, terms, "7")
	assert.Contains(t, terms, "go")
	assert.Contains(t, terms, "gopher")
	assert.Contains(t, terms, "domain:d", "synthetic tokens bypass length filtering")
}

func TestTokenizeQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"lowercases and splits", "Quick BROWN-fox", []string{"quick", "brown", "fox"}},
		{"drops stop words", "the fox and the hound", []string{"fox", "hound"}},
		{"drops short tokens", "a x go", []string{"go"}},
		{"keeps synthetic tokens", "entity:person status:success", []string{"entity:person", "status:success"}},
		{"trims edge colons", ":fox: gopher:", []string{"fox", "gopher"}},
		{"punctuation only", "!!! ...", nil},
		{"empty", "", nil},
		{"digits survive", "rfc 9110", []string{"rfc", "9110"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := TokenizeQuery(tc.query)
			if tc.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestTokenizeQuery_AlignsWithDerivedTerms(t *testing.T) {
	entry := &models.KnowledgeEntry{
		ID:                 "e1",
		DomainID:           "docs",
		OriginalSubmission: "Structured logging in Go services",
		MappedData:         models.MappedData{Type: "markdown"},
		Status:             models.StatusSuccess,
	}
	indexed := map[string]struct{}{}
	for _, term := range DeriveTerms(entry) {
		indexed[term] = struct{}{}
	}

	for _, token := range TokenizeQuery("Structured LOGGING type:markdown domain:docs") {
		_, ok := indexed[token]
		assert.True(t, ok, "query token %q must match an indexed term", token)
	}
}
