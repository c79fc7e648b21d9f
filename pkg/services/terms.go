package services

import (
	"sort"
	"strings"
	"unicode"

	"github.com/mnemos-ai/mnemos-engine/pkg/models"
)

// stopWords are dropped during term derivation and query tokenization.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "has": {}, "in": {},
	"is": {}, "it": {}, "its": {}, "of": {}, "on": {}, "that": {},
	"the": {}, "to": {}, "was": {}, "were": {}, "will": {}, "with": {},
}

const minTokenLength = 2

// DeriveTerms builds the normalized term set for an entry: tokens from
// the submission, extracted content, entity values and metadata values,
// plus synthetic tokens tagging entity types, metadata keys, domain,
// status and content type. Synthetic tokens are added after filtering
// and are never re-tokenized. The result is sorted and duplicate-free.
func DeriveTerms(entry *models.KnowledgeEntry) []string {
	if entry == nil {
		return nil
	}

	terms := make(map[string]struct{})
	addTokens(terms, entry.OriginalSubmission)
	addTokens(terms, entry.MappedData.Content)
	for _, entity := range entry.MappedData.ExtractedEntities {
		addTokens(terms, entity.Value)
	}
	for _, value := range entry.Metadata {
		addTokens(terms, value)
	}

	for _, entity := range entry.MappedData.ExtractedEntities {
		if entity.Type != "" {
			terms["entity:"+strings.ToLower(entity.Type)] = struct{}{}
		}
	}
	for key := range entry.Metadata {
		terms["meta:"+strings.ToLower(key)] = struct{}{}
	}
	if entry.DomainID != "" {
		terms["domain:"+strings.ToLower(entry.DomainID)] = struct{}{}
	}
	if entry.Status != "" {
		terms["status:"+strings.ToLower(string(entry.Status))] = struct{}{}
	}
	if entry.MappedData.Type != "" {
		terms["type:"+strings.ToLower(entry.MappedData.Type)] = struct{}{}
	}

	sorted := make([]string, 0, len(terms))
	for term := range terms {
		sorted = append(sorted, term)
	}
	sort.Strings(sorted)
	return sorted
}

// TokenizeQuery normalizes a search query with the same tokenization as
// term derivation, so query tokens line up with indexed terms. Synthetic
// tokens typed verbatim (for example "entity:person") survive intact.
func TokenizeQuery(query string) []string {
	tokens := tokenize(query)
	out := tokens[:0]
	for _, token := range tokens {
		if keepToken(token) {
			out = append(out, token)
		}
	}
	return out
}

func addTokens(terms map[string]struct{}, text string) {
	for _, token := range tokenize(text) {
		if keepToken(token) {
			terms[token] = struct{}{}
		}
	}
}

func keepToken(token string) bool {
	if len([]rune(token)) < minTokenLength {
		return false
	}
	_, stop := stopWords[token]
	return !stop
}

// tokenize lowercases text and splits it on runes that are neither
// letters, digits, nor ':'. Colons are token characters so compound
// tokens survive, mirroring the term index tokenizer; stray edge colons
// are trimmed.
func tokenize(text string) []string {
	if text == "" {
		return nil
	}

	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != ':'
	})

	tokens := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, ":")
		if f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
