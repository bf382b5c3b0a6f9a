package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/givemeone1astkiss/ribo/internal/core/domain"
)

const previewRunes = 160

var (
	searchLimit  int
	searchImages bool
	searchJSON   bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>...",
	Short: "Search indexed literature",
	Long: `Run a semantic search over the indexed literature and print the ranked
passages with their citations. Arguments are joined into one query.

Text passages are ranked by cosine similarity of their embeddings; --images
also searches rendered page images and merges both lists by score.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	f := searchCmd.Flags()
	f.IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
	f.BoolVar(&searchImages, "images", false, "also search page images")
	f.BoolVar(&searchJSON, "json", false, "print citations as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if searchService == nil {
		return errNotConfigured("search")
	}
	query := strings.Join(args, " ")

	hits, err := searchService.Search(commandContext(cmd), query,
		domain.SearchOptions{K: searchLimit, IncludeImages: searchImages})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return writeCitations(cmd.OutOrStdout(), hits)
	}
	writeHits(cmd.OutOrStdout(), query, hits)
	return nil
}

func writeCitations(w io.Writer, hits []domain.SearchResult) error {
	citations := make([]domain.Citation, 0, len(hits))
	for i, h := range hits {
		citations = append(citations, domain.NewCitation(i+1, h))
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(citations)
}

func writeHits(w io.Writer, query string, hits []domain.SearchResult) {
	if len(hits) == 0 {
		fmt.Fprintf(w, "No results for %q.\n", query)
		return
	}

	fmt.Fprintf(w, "%d results for %q\n\n", len(hits), query)
	for i, h := range hits {
		title := h.Bibliography.DisplayTitle()
		if h.Kind == domain.UnitImage {
			title = "[image] " + title
		}
		fmt.Fprintf(w, "  [%d] %s (%.2f)\n", i+1, title, h.Score)
		fmt.Fprintf(w, "      %s\n", resultLocation(h))
		if h.ImagePath != "" {
			fmt.Fprintf(w, "      Image: %s\n", h.ImagePath)
		}
		if text := strings.Join(strings.Fields(h.Content), " "); text != "" {
			fmt.Fprintf(w, "      %s\n", domain.Preview(text, previewRunes))
		}
		fmt.Fprintln(w)
	}
}

// resultLocation renders "file.pdf, page 3" for a hit.
func resultLocation(r domain.SearchResult) string {
	src := r.DocumentID
	if r.Source != "" {
		src = filepath.Base(r.Source)
	}
	switch r.LocationKind {
	case domain.LocationPage:
		return fmt.Sprintf("%s, page %d", src, r.Location)
	case domain.LocationSection:
		return fmt.Sprintf("%s, section %d", src, r.Location)
	}
	return src
}
