package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/givemeone1astkiss/ribo/internal/core/domain"
	"github.com/givemeone1astkiss/ribo/internal/core/ports/driven"
	"github.com/givemeone1astkiss/ribo/internal/core/ports/driving"
	"github.com/givemeone1astkiss/ribo/internal/logger"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

// Retrieval defaults.
const (
	DefaultSearchK      = 30
	DefaultQueryTimeout = 30 * time.Second
)

// SearchService retrieves literature units from the text and image collections.
type SearchService struct {
	index        driven.VectorIndex
	registry     driven.DocumentRegistry
	embedder     driven.EmbeddingService
	defaultK     int
	queryTimeout time.Duration
}

// SearchOption configures a SearchService.
type SearchOption func(*SearchService)

// WithDefaultK sets the result count used when a search asks for none.
func WithDefaultK(k int) SearchOption {
	return func(s *SearchService) {
		if k > 0 {
			s.defaultK = k
		}
	}
}

// WithQueryTimeout bounds query embedding plus index lookup.
func WithQueryTimeout(d time.Duration) SearchOption {
	return func(s *SearchService) {
		if d > 0 {
			s.queryTimeout = d
		}
	}
}

// NewSearchService creates a new search service.
// The registry is optional; without it results carry no bibliography.
func NewSearchService(
	index driven.VectorIndex,
	registry driven.DocumentRegistry,
	embedder driven.EmbeddingService,
	opts ...SearchOption,
) *SearchService {
	s := &SearchService{
		index:        index,
		registry:     registry,
		embedder:     embedder,
		defaultK:     DefaultSearchK,
		queryTimeout: DefaultQueryTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search embeds the query once and looks it up in the text collection and,
// when asked, the image collection. Results are ranked by score, and only
// the best hit per (document, location) is kept.
func (s *SearchService) Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	logger.Section("Search Execution")
	logger.Debug("Query: %q", query)

	query = strings.TrimSpace(query)
	if query == "" {
		logger.Debug("Empty query, returning no results")
		return []domain.SearchResult{}, nil
	}
	if s.index == nil || s.embedder == nil {
		return nil, fmt.Errorf("%w: index or embedder not configured", domain.ErrRetrieval)
	}

	k := opts.K
	if k <= 0 {
		k = s.defaultK
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %w", domain.ErrRetrieval, err)
	}
	logger.Debug("Query embedding: %d dimensions", len(vector))

	textHits, err := s.index.Text().Query(ctx, vector, k)
	if err != nil {
		return nil, fmt.Errorf("%w: query text collection: %w", domain.ErrRetrieval, err)
	}
	results := make([]domain.SearchResult, 0, len(textHits))
	for _, h := range textHits {
		results = append(results, toResult(h, domain.UnitText))
	}
	logger.Debug("Text collection: %d hits", len(textHits))

	if opts.IncludeImages {
		results = append(results, s.searchImages(ctx, vector, k)...)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	results = DedupResults(results)
	if len(results) > k {
		results = results[:k]
	}

	s.hydrate(ctx, results)
	logger.Info("Final results: %d", len(results))
	return results, nil
}

// searchImages queries the image collection. Failures, including a
// dimension mismatch with the query vector, skip image results.
func (s *SearchService) searchImages(ctx context.Context, vector []float32, k int) []domain.SearchResult {
	images := s.index.Image()
	if images == nil {
		return nil
	}
	if dims := images.Dimensions(); dims != 0 && dims != len(vector) {
		logger.Warn("Skipping image search: %v (collection %d, query %d)", domain.ErrDimensionMismatch, dims, len(vector))
		return nil
	}
	hits, err := images.Query(ctx, vector, k)
	if err != nil {
		if errors.Is(err, domain.ErrDimensionMismatch) {
			logger.Warn("Skipping image search: %v", err)
		} else {
			logger.Warn("Image search failed, continuing with text results: %v", err)
		}
		return nil
	}
	logger.Debug("Image collection: %d hits", len(hits))

	out := make([]domain.SearchResult, 0, len(hits))
	for _, h := range hits {
		out = append(out, toResult(h, domain.UnitImage))
	}
	return out
}

// DedupResults keeps the first result of every (document, location) pair.
func DedupResults(results []domain.SearchResult) []domain.SearchResult {
	seen := make(map[string]bool, len(results))
	out := results[:0:0]
	for _, r := range results {
		key := r.DedupKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}

func toResult(h driven.VectorHit, kind domain.UnitKind) domain.SearchResult {
	location, _ := strconv.Atoi(h.Metadata[driven.MetaLocation])
	locKind := domain.LocationKind(h.Metadata[driven.MetaLocationKind])
	if locKind == "" {
		locKind = domain.LocationPage
	}
	return domain.SearchResult{
		UnitID:       h.ID,
		Kind:         kind,
		DocumentID:   h.DocumentID,
		Source:       h.Metadata[driven.MetaSource],
		Location:     location,
		LocationKind: locKind,
		Content:      h.Content,
		ImagePath:    h.Metadata[driven.MetaImagePath],
		Score:        1 - h.Distance,
	}
}

// hydrate fills bibliographic fields from the registry.
func (s *SearchService) hydrate(ctx context.Context, results []domain.SearchResult) {
	if s.registry == nil {
		return
	}
	cache := make(map[string]*domain.Document)
	for i := range results {
		id := results[i].DocumentID
		doc, ok := cache[id]
		if !ok {
			var err error
			doc, err = s.registry.Get(ctx, id)
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				logger.Debug("Registry lookup for %s failed: %v", id, err)
			}
			cache[id] = doc
		}
		if doc != nil {
			results[i].Bibliography = doc.Bibliography
			if results[i].Source == "" {
				results[i].Source = doc.SourcePath
			}
		}
	}
}

// BuildContext formats the best text units for a generation prompt.
// Returns "" and no citations when nothing matches.
func (s *SearchService) BuildContext(ctx context.Context, query string, maxUnits int) (string, []domain.Citation, error) {
	results, err := s.Search(ctx, query, domain.SearchOptions{K: s.defaultK})
	if err != nil {
		return "", nil, err
	}
	results = nonEmpty(results)
	if len(results) > maxUnits && maxUnits > 0 {
		results = results[:maxUnits]
	}
	if len(results) == 0 {
		return "", nil, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "RELEVANT LITERATURE FOR QUERY: '%s'\n", query)
	citations := make([]domain.Citation, 0, len(results))
	for i, r := range results {
		c := domain.NewCitation(i+1, r)
		citations = append(citations, c)
		fmt.Fprintf(&b, "\n[%d] %s\n%s\n", c.Rank, strings.TrimSpace(r.Content), sourceLine(c))
	}
	b.WriteString("\nCite the literature above by its bracketed number. Base the answer on it, including specific details, metrics and figures it reports.")

	logger.Debug("Context built: %d characters, %d citations", b.Len(), len(citations))
	return b.String(), citations, nil
}

// BuildMultimodalContext formats text and image units in separate sections.
// Citations are numbered across both sections.
func (s *SearchService) BuildMultimodalContext(ctx context.Context, query string, maxText, maxImages int) (string, []domain.Citation, error) {
	results, err := s.Search(ctx, query, domain.SearchOptions{K: s.defaultK, IncludeImages: maxImages > 0})
	if err != nil {
		return "", nil, err
	}

	var texts, images []domain.SearchResult
	for _, r := range nonEmpty(results) {
		switch {
		case r.Kind == domain.UnitImage && len(images) < maxImages:
			images = append(images, r)
		case r.Kind == domain.UnitText && len(texts) < maxText:
			texts = append(texts, r)
		}
	}
	if len(texts) == 0 && len(images) == 0 {
		return "", nil, nil
	}

	var (
		b         strings.Builder
		citations []domain.Citation
	)
	fmt.Fprintf(&b, "RELEVANT LITERATURE FOR QUERY: '%s'\n", query)
	if len(texts) > 0 {
		b.WriteString("\nTEXT CONTEXT:\n")
		for _, r := range texts {
			c := domain.NewCitation(len(citations)+1, r)
			citations = append(citations, c)
			fmt.Fprintf(&b, "\n[%d] %s\n%s\n", c.Rank, strings.TrimSpace(r.Content), sourceLine(c))
		}
	}
	if len(images) > 0 {
		b.WriteString("\nIMAGE CONTEXT:\n")
		for _, r := range images {
			c := domain.NewCitation(len(citations)+1, r)
			citations = append(citations, c)
			fmt.Fprintf(&b, "\n[%d] Image: %s\n%s\n", c.Rank, strings.TrimSpace(r.Content), sourceLine(c))
		}
	}
	b.WriteString("\nCite the literature above by its bracketed number. Base the answer on it, including specific details, metrics and figures it reports.")

	return b.String(), citations, nil
}

func nonEmpty(results []domain.SearchResult) []domain.SearchResult {
	out := results[:0:0]
	for _, r := range results {
		if strings.TrimSpace(r.Content) != "" {
			out = append(out, r)
		}
	}
	return out
}

// sourceLine renders "Source: <title> - <authors> (<year>), page 2, DOI: <doi>".
func sourceLine(c domain.Citation) string {
	return fmt.Sprintf("Source: %s - %s (%s), %s %d, DOI: %s",
		c.Title, c.Authors, c.Year, c.LocationKind, c.Location, c.DOI)
}
