package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/givemeone1astkiss/ribo/internal/adapters/driven/storage/memory"
	"github.com/givemeone1astkiss/ribo/internal/core/domain"
	"github.com/givemeone1astkiss/ribo/internal/core/ports/driven"
)

func textRecord(id, doc, source string, location int, content string, vec ...float32) driven.VectorRecord {
	return driven.VectorRecord{
		ID:         id,
		DocumentID: doc,
		Content:    content,
		Embedding:  vec,
		Metadata: map[string]string{
			driven.MetaSource:       source,
			driven.MetaLocation:     strconv.Itoa(location),
			driven.MetaLocationKind: string(domain.LocationPage),
		},
	}
}

// setupSearchIndex builds an index where doc1 page 1 has two chunks.
func setupSearchIndex(t *testing.T) (*memory.Index, *memory.Registry) {
	t.Helper()
	ctx := context.Background()
	index := memory.NewIndex()
	require.NoError(t, index.Text().Upsert(ctx, []driven.VectorRecord{
		textRecord("doc1_l1_c0", "doc1", "a.pdf", 1, "best chunk", 1, 0),
		textRecord("doc1_l1_c1", "doc1", "a.pdf", 1, "second chunk same page", 0.9, 0.1),
		textRecord("doc1_l2_c0", "doc1", "a.pdf", 2, "other page", 0.5, 0.5),
		textRecord("doc2_l1_c0", "doc2", "b.md", 1, "far away", 0, 1),
	}))

	registry := memory.NewRegistry()
	_, err := registry.Add(ctx, &domain.Document{
		ID:           "doc1",
		SourcePath:   "a.pdf",
		Bibliography: domain.Bibliography{Title: "Folding RNA", Authors: "Doe, J.", Year: "2021", DOI: "10.1000/xyz"},
	})
	require.NoError(t, err)
	return index, registry
}

func TestSearchService_Search_EmptyQuery(t *testing.T) {
	index, registry := setupSearchIndex(t)
	service := NewSearchService(index, registry, &mockEmbeddingService{embedding: []float32{1, 0}})

	for _, q := range []string{"", "   \t\n  "} {
		results, err := service.Search(context.Background(), q, domain.SearchOptions{})
		require.NoError(t, err)
		assert.Empty(t, results)
	}
}

func TestSearchService_Search_RanksAndDedups(t *testing.T) {
	index, registry := setupSearchIndex(t)
	service := NewSearchService(index, registry, &mockEmbeddingService{embedding: []float32{1, 0}})

	results, err := service.Search(context.Background(), "fold", domain.SearchOptions{K: 10})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "doc1_l1_c0", results[0].UnitID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.Equal(t, 1, results[0].Location)
	assert.Equal(t, "a.pdf", results[0].Source)
	assert.Equal(t, "doc1_l2_c0", results[1].UnitID)
	assert.Equal(t, "doc2_l1_c0", results[2].UnitID)

	seen := map[string]bool{}
	for i, r := range results {
		assert.False(t, seen[r.DedupKey()], "duplicate (document, location) %s", r.DedupKey())
		seen[r.DedupKey()] = true
		if i > 0 {
			assert.GreaterOrEqual(t, results[i-1].Score, r.Score)
		}
	}
}

func TestSearchService_Search_TruncatesToK(t *testing.T) {
	index, registry := setupSearchIndex(t)
	service := NewSearchService(index, registry, &mockEmbeddingService{embedding: []float32{1, 0}})

	results, err := service.Search(context.Background(), "fold", domain.SearchOptions{K: 1})
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestSearchService_Search_HydratesBibliography(t *testing.T) {
	index, registry := setupSearchIndex(t)
	service := NewSearchService(index, registry, &mockEmbeddingService{embedding: []float32{1, 0}})

	results, err := service.Search(context.Background(), "fold", domain.SearchOptions{K: 10})
	require.NoError(t, err)

	assert.Equal(t, "Folding RNA", results[0].Bibliography.Title)
	assert.Empty(t, results[2].Bibliography.Title, "doc2 is not registered")
}

func TestSearchService_Search_IncludesImages(t *testing.T) {
	index, registry := setupSearchIndex(t)
	require.NoError(t, index.Image().Upsert(context.Background(), []driven.VectorRecord{{
		ID:         "doc2_img_3",
		DocumentID: "doc2",
		Content:    "Page 3 of b",
		Embedding:  []float32{1, 0.05},
		Metadata: map[string]string{
			driven.MetaSource:    "b.pdf",
			driven.MetaLocation:  "3",
			driven.MetaImagePath: "/idx/images/doc2/page-3.png",
		},
	}}))
	service := NewSearchService(index, registry, &mockEmbeddingService{embedding: []float32{1, 0}})

	results, err := service.Search(context.Background(), "fold", domain.SearchOptions{K: 10, IncludeImages: true})
	require.NoError(t, err)
	require.Len(t, results, 4)

	var image *domain.SearchResult
	for i := range results {
		if results[i].Kind == domain.UnitImage {
			image = &results[i]
		}
	}
	require.NotNil(t, image)
	assert.Equal(t, "/idx/images/doc2/page-3.png", image.ImagePath)
	assert.Equal(t, 3, image.Location)
	assert.Equal(t, domain.LocationPage, image.LocationKind)
}

func TestSearchService_Search_ImageDimensionMismatchIsSkipped(t *testing.T) {
	index, registry := setupSearchIndex(t)
	require.NoError(t, index.Image().Upsert(context.Background(), []driven.VectorRecord{{
		ID: "doc2_img_1", DocumentID: "doc2", Content: "img", Embedding: []float32{1, 0, 0},
	}}))
	service := NewSearchService(index, registry, &mockEmbeddingService{embedding: []float32{1, 0}})

	results, err := service.Search(context.Background(), "fold", domain.SearchOptions{K: 10, IncludeImages: true})
	require.NoError(t, err)
	for _, r := range results {
		assert.Equal(t, domain.UnitText, r.Kind)
	}
}

func TestSearchService_Search_EmbeddingFailure(t *testing.T) {
	index, registry := setupSearchIndex(t)
	service := NewSearchService(index, registry, &mockEmbeddingService{embedErr: errors.New("boom")})

	_, err := service.Search(context.Background(), "fold", domain.SearchOptions{})
	assert.ErrorIs(t, err, domain.ErrRetrieval)
}

func TestSearchService_Search_NotConfigured(t *testing.T) {
	service := NewSearchService(nil, nil, nil)
	_, err := service.Search(context.Background(), "fold", domain.SearchOptions{})
	assert.ErrorIs(t, err, domain.ErrRetrieval)
}

func TestDedupResults_KeepsFirstOccurrence(t *testing.T) {
	results := []domain.SearchResult{
		{UnitID: "a", DocumentID: "d", Location: 1, Score: 0.9},
		{UnitID: "b", DocumentID: "d", Location: 2, Score: 0.8},
		{UnitID: "c", DocumentID: "d", Location: 1, Score: 0.7},
		{UnitID: "d", Source: "x.md", Location: 1, Score: 0.6},
		{UnitID: "e", Source: "x.md", Location: 1, Score: 0.5},
	}
	got := DedupResults(results)

	var ids []string
	for _, r := range got {
		ids = append(ids, r.UnitID)
	}
	assert.Equal(t, []string{"a", "b", "d"}, ids)
}

func TestSearchService_BuildContext(t *testing.T) {
	index, registry := setupSearchIndex(t)
	service := NewSearchService(index, registry, &mockEmbeddingService{embedding: []float32{1, 0}})

	ctxText, citations, err := service.BuildContext(context.Background(), "fold", 2)
	require.NoError(t, err)
	require.Len(t, citations, 2)

	assert.True(t, strings.HasPrefix(ctxText, "RELEVANT LITERATURE FOR QUERY: 'fold'"))
	assert.Contains(t, ctxText, "[1] best chunk")
	assert.Contains(t, ctxText, "Source: Folding RNA - Doe, J. (2021), page 1, DOI: 10.1000/xyz")
	assert.Contains(t, ctxText, "[2] other page")
	assert.NotContains(t, ctxText, "far away")

	assert.Equal(t, 1, citations[0].Rank)
	assert.Equal(t, "[1] Doe, J. (2021). Folding RNA. DOI: 10.1000/xyz", citations[0].Reference)
	assert.Equal(t, 2, citations[1].Location)
}

func TestSearchService_BuildContext_NoResults(t *testing.T) {
	service := NewSearchService(memory.NewIndex(), memory.NewRegistry(), &mockEmbeddingService{embedding: []float32{1, 0}})

	ctxText, citations, err := service.BuildContext(context.Background(), "fold", 5)
	require.NoError(t, err)
	assert.Empty(t, ctxText)
	assert.Empty(t, citations)
}

func TestSearchService_BuildContext_UnknownBibliography(t *testing.T) {
	index, _ := setupSearchIndex(t)
	service := NewSearchService(index, nil, &mockEmbeddingService{embedding: []float32{0, 1}})

	ctxText, citations, err := service.BuildContext(context.Background(), "fold", 1)
	require.NoError(t, err)
	require.Len(t, citations, 1)
	assert.Equal(t, domain.UnknownAuthors, citations[0].Authors)
	assert.Equal(t, domain.UnknownTitle, citations[0].Title)
	assert.Contains(t, ctxText, "Untitled - Unknown Authors (Unknown Year)")
}

func TestSearchService_BuildMultimodalContext(t *testing.T) {
	index, registry := setupSearchIndex(t)
	require.NoError(t, index.Image().Upsert(context.Background(), []driven.VectorRecord{{
		ID:         "doc1_img_2",
		DocumentID: "doc1",
		Content:    "Page 2 of Folding RNA",
		Embedding:  []float32{0.95, 0.05},
		Metadata:   map[string]string{driven.MetaSource: "a.pdf", driven.MetaLocation: "5"},
	}}))
	service := NewSearchService(index, registry, &mockEmbeddingService{embedding: []float32{1, 0}})

	ctxText, citations, err := service.BuildMultimodalContext(context.Background(), "fold", 1, 1)
	require.NoError(t, err)
	require.Len(t, citations, 2)

	textAt := strings.Index(ctxText, "TEXT CONTEXT:")
	imageAt := strings.Index(ctxText, "IMAGE CONTEXT:")
	require.GreaterOrEqual(t, textAt, 0)
	require.Greater(t, imageAt, textAt)
	assert.Contains(t, ctxText, "[1] best chunk")
	assert.Contains(t, ctxText, "[2] Image: Page 2 of Folding RNA")
	assert.Equal(t, 5, citations[1].Location)
}

func TestSearchService_BuildMultimodalContext_TextOnly(t *testing.T) {
	index, registry := setupSearchIndex(t)
	service := NewSearchService(index, registry, &mockEmbeddingService{embedding: []float32{1, 0}})

	ctxText, citations, err := service.BuildMultimodalContext(context.Background(), "fold", 5, 3)
	require.NoError(t, err)
	assert.Len(t, citations, 3)
	assert.Contains(t, ctxText, "TEXT CONTEXT:")
	assert.NotContains(t, ctxText, "IMAGE CONTEXT:")
}
