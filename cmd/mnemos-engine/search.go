package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mnemos-ai/mnemos-engine/pkg/models"
)

var (
	searchDomain     string
	searchType       string
	searchEntityType string
	searchFrom       string
	searchTo         string
	searchLimit      int
	searchJSON       bool
	suggestLimit     int
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search indexed knowledge entries",
	Long: `Search rebuilds the search index from the entry store and runs a
full-text query over it. Synthetic terms work in queries: entity:person,
domain:docs, status:success, type:markdown, meta:sourceurl.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

var suggestCmd = &cobra.Command{
	Use:   "suggest [prefix]",
	Short: "Suggest indexed terms for a prefix",
	Args:  cobra.ExactArgs(1),
	RunE:  runSuggest,
}

func init() {
	searchCmd.Flags().StringVar(&searchDomain, "domain", "", "filter by domain ID")
	searchCmd.Flags().StringVar(&searchType, "type", "", "filter by content type")
	searchCmd.Flags().StringVar(&searchEntityType, "entity-type", "", "require an extracted entity of this type")
	searchCmd.Flags().StringVar(&searchFrom, "from", "", "earliest entry timestamp (YYYY-MM-DD)")
	searchCmd.Flags().StringVar(&searchTo, "to", "", "latest entry timestamp (YYYY-MM-DD)")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "maximum results (0 = config default)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)

	suggestCmd.Flags().IntVarP(&suggestLimit, "limit", "n", 10, "maximum suggestions")
	rootCmd.AddCommand(suggestCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	eng, err := newEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.close()

	if err := eng.loadIndex(ctx); err != nil {
		return err
	}

	filters, err := searchFilters()
	if err != nil {
		return err
	}
	limit := searchLimit
	if limit <= 0 {
		limit = eng.cfg.Search.DefaultLimit
	}

	results := eng.index.Search(ctx, args[0], limit, filters)

	if searchJSON {
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	for i, r := range results {
		cmd.Printf("[%d] %s (%.2f)\n", i+1, r.Entry.ID, r.Score)
		cmd.Printf("    Domain: %s  Type: %s  Status: %s  %s\n",
			r.Entry.DomainID, r.Entry.MappedData.Type, r.Entry.Status,
			r.Entry.Timestamp.Format("2006-01-02 15:04"))
		if len(r.MatchedTerms) > 0 {
			cmd.Printf("    Matched: %s\n", strings.Join(r.MatchedTerms, ", "))
		}
		for _, ent := range r.MatchedEntities {
			cmd.Printf("    Entity: %s=%s\n", ent.Type, ent.Value)
		}
		if snippet := entrySnippet(r.Entry); snippet != "" {
			cmd.Printf("    %s\n", snippet)
		}
		cmd.Println()
	}
	cmd.Printf("%d results\n", len(results))
	return nil
}

func runSuggest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	eng, err := newEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.close()

	if err := eng.loadIndex(ctx); err != nil {
		return err
	}

	terms := eng.index.SuggestTerms(ctx, strings.ToLower(args[0]), suggestLimit)
	if len(terms) == 0 {
		cmd.Println("No matching terms.")
		return nil
	}
	for _, term := range terms {
		cmd.Println(term)
	}
	return nil
}

func searchFilters() (*models.SearchFilters, error) {
	filters := &models.SearchFilters{
		Domain:        searchDomain,
		ContentType:   searchType,
		HasEntityType: searchEntityType,
	}
	if searchFrom != "" {
		from, err := time.Parse("2006-01-02", searchFrom)
		if err != nil {
			return nil, fmt.Errorf("failed to parse --from: %w", err)
		}
		filters.From = &from
	}
	if searchTo != "" {
		to, err := time.Parse("2006-01-02", searchTo)
		if err != nil {
			return nil, fmt.Errorf("failed to parse --to: %w", err)
		}
		// Inclusive through the named day.
		end := to.Add(24*time.Hour - time.Nanosecond)
		filters.To = &end
	}
	return filters, nil
}

// entrySnippet returns a short single-line preview of the entry content.
func entrySnippet(entry *models.KnowledgeEntry) string {
	text := entry.MappedData.Content
	if text == "" {
		text = entry.OriginalSubmission
	}
	text = strings.Join(strings.Fields(text), " ")
	if len(text) > 80 {
		text = text[:77] + "..."
	}
	return text
}
