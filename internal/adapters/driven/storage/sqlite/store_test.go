package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/givemeone1astkiss/ribo/internal/core/domain"
	"github.com/givemeone1astkiss/ribo/internal/core/ports/driven"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) (*Store, string) {
	t.Helper()

	dir, err := os.MkdirTemp("", "ribo-test-*")
	require.NoError(t, err)

	store, err := NewStore(dir)
	require.NoError(t, err)
	require.NotNil(t, store)

	t.Cleanup(func() {
		_ = store.Close()
		_ = os.RemoveAll(dir)
	})
	return store, dir
}

func unit(id, doc string, v ...float32) driven.VectorRecord {
	return driven.VectorRecord{
		ID:         id,
		DocumentID: doc,
		Content:    "content of " + id,
		Metadata:   map[string]string{driven.MetaLocation: "1", driven.MetaSource: doc + ".pdf"},
		Embedding:  v,
	}
}

// ==================== Store Creation Tests ====================

func TestNewStore_CreatesDatabase(t *testing.T) {
	store, dir := setupTestStore(t)

	assert.Equal(t, filepath.Join(dir, "index.db"), store.Path())
	_, err := os.Stat(store.Path())
	assert.NoError(t, err)
}

func TestNewStore_MigrationsAreIdempotent(t *testing.T) {
	dir := t.TempDir()

	first, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := NewStore(dir)
	require.NoError(t, err)
	defer second.Close()

	var versions int
	require.NoError(t, second.db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&versions))
	assert.Equal(t, 1, versions)
}

// ==================== Registry Tests ====================

func TestRegistry_AddAndGet(t *testing.T) {
	store, _ := setupTestStore(t)
	reg := store.Registry()
	ctx := context.Background()

	doc := &domain.Document{
		ID:           "hash-1",
		SourcePath:   "data/paper.pdf",
		Format:       domain.FormatPDF,
		Bibliography: domain.Bibliography{Title: "Riboswitch design", Year: "2020"},
		TextUnits:    4,
		ImageUnits:   2,
		IngestedAt:   time.Now().UTC().Truncate(time.Second),
	}

	added, err := reg.Add(ctx, doc)
	require.NoError(t, err)
	assert.True(t, added)

	got, err := reg.Get(ctx, "hash-1")
	require.NoError(t, err)
	assert.Equal(t, "data/paper.pdf", got.SourcePath)
	assert.Equal(t, domain.FormatPDF, got.Format)
	assert.Equal(t, "Riboswitch design", got.Title)
	assert.Equal(t, 4, got.TextUnits)
	assert.Equal(t, 2, got.ImageUnits)

	bySource, err := reg.GetBySource(ctx, "data/paper.pdf")
	require.NoError(t, err)
	assert.Equal(t, "hash-1", bySource.ID)
}

func TestRegistry_AddDuplicateHash(t *testing.T) {
	store, _ := setupTestStore(t)
	reg := store.Registry()
	ctx := context.Background()

	_, err := reg.Add(ctx, &domain.Document{ID: "h", SourcePath: "a.md", Format: domain.FormatMarkdown})
	require.NoError(t, err)

	added, err := reg.Add(ctx, &domain.Document{ID: "h", SourcePath: "b.md", Format: domain.FormatMarkdown})
	require.NoError(t, err)
	assert.False(t, added)

	got, err := reg.Get(ctx, "h")
	require.NoError(t, err)
	assert.Equal(t, "a.md", got.SourcePath)
}

func TestRegistry_NotFound(t *testing.T) {
	store, _ := setupTestStore(t)
	reg := store.Registry()

	_, err := reg.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	exists, err := reg.Exists(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRegistry_ListAndRemove(t *testing.T) {
	store, _ := setupTestStore(t)
	reg := store.Registry()
	ctx := context.Background()
	now := time.Now().UTC()

	_, _ = reg.Add(ctx, &domain.Document{ID: "1", SourcePath: "a.md", Format: domain.FormatMarkdown, IngestedAt: now})
	_, _ = reg.Add(ctx, &domain.Document{ID: "2", SourcePath: "b.md", Format: domain.FormatMarkdown, IngestedAt: now.Add(time.Minute)})

	docs, err := reg.List(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "1", docs[0].ID)

	removed, err := reg.Remove(ctx, "1")
	require.NoError(t, err)
	assert.True(t, removed)

	docs, err = reg.List(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

// ==================== Collection Tests ====================

func TestCollection_UpsertQuery(t *testing.T) {
	store, _ := setupTestStore(t)
	text := store.Text()
	ctx := context.Background()

	require.NoError(t, text.Upsert(ctx, []driven.VectorRecord{
		unit("a", "d1", 1, 0, 0),
		unit("b", "d1", 0, 1, 0),
		unit("c", "d2", 0.8, 0.2, 0),
	}))

	hits, err := text.Query(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].ID)
	assert.Equal(t, "c", hits[1].ID)
	assert.Equal(t, "d1.pdf", hits[0].Metadata[driven.MetaSource])
	assert.Equal(t, 3, text.Dimensions())
}

func TestCollection_UpsertIsIdempotent(t *testing.T) {
	store, _ := setupTestStore(t)
	text := store.Text()
	ctx := context.Background()

	recs := []driven.VectorRecord{unit("a", "d1", 1, 0), unit("b", "d1", 0, 1)}
	require.NoError(t, text.Upsert(ctx, recs))
	require.NoError(t, text.Upsert(ctx, recs))

	counts, err := text.CountByDocument(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"d1": 2}, counts)
}

func TestCollection_DimensionMismatch(t *testing.T) {
	store, _ := setupTestStore(t)
	image := store.Image()
	ctx := context.Background()

	require.NoError(t, image.Upsert(ctx, []driven.VectorRecord{unit("a", "d1", 1, 0)}))

	err := image.Upsert(ctx, []driven.VectorRecord{unit("b", "d1", 1, 0, 0)})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	_, err = image.Query(ctx, []float32{1, 0, 0}, 3)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestCollection_CollectionsAreSeparate(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Text().Upsert(ctx, []driven.VectorRecord{unit("a", "d1", 1, 0)}))
	require.NoError(t, store.Image().Upsert(ctx, []driven.VectorRecord{unit("a", "d1", 1, 0, 0, 0)}))

	assert.Equal(t, 2, store.Text().Dimensions())
	assert.Equal(t, 4, store.Image().Dimensions())
}

func TestCollection_DeleteDocument(t *testing.T) {
	store, _ := setupTestStore(t)
	text := store.Text()
	ctx := context.Background()

	require.NoError(t, text.Upsert(ctx, []driven.VectorRecord{unit("a", "d1", 1, 0), unit("b", "d2", 0, 1)}))
	require.NoError(t, text.DeleteDocument(ctx, "d1"))

	hits, err := text.Query(ctx, []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "b", hits[0].ID)

	counts, err := text.CountByDocument(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"d2": 1}, counts)
}

func TestCollection_Records(t *testing.T) {
	store, _ := setupTestStore(t)
	image := store.Image()
	ctx := context.Background()

	records, err := image.Records(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	require.NoError(t, image.Upsert(ctx, []driven.VectorRecord{unit("b", "d2", 0, 1), unit("a", "d1", 1, 0)}))

	records, err = image.Records(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "a", records[0].ID)
	assert.Equal(t, "d1", records[0].DocumentID)
	assert.Equal(t, "content of a", records[0].Content)
	assert.Equal(t, "d1.pdf", records[0].Metadata[driven.MetaSource])
	assert.Nil(t, records[0].Embedding)
	assert.Equal(t, "b", records[1].ID)
}

func TestCollection_EmptiedCollectionAcceptsNewDimension(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	store, err := NewStore(dir)
	require.NoError(t, err)
	text := store.Text()

	require.NoError(t, text.Upsert(ctx, []driven.VectorRecord{unit("a", "d1", 1, 0, 0)}))
	require.NoError(t, text.DeleteDocument(ctx, "d1"))
	assert.Equal(t, 0, text.Dimensions())

	require.NoError(t, text.Upsert(ctx, []driven.VectorRecord{unit("b", "d2", 1, 0, 0, 0)}))
	assert.Equal(t, 4, text.Dimensions())
	require.NoError(t, store.Close())

	reopened, err := NewStore(dir)
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, 4, reopened.Text().Dimensions())
}

func TestCollection_PartialDeleteKeepsDimension(t *testing.T) {
	store, _ := setupTestStore(t)
	text := store.Text()
	ctx := context.Background()

	require.NoError(t, text.Upsert(ctx, []driven.VectorRecord{unit("a", "d1", 1, 0), unit("b", "d2", 0, 1)}))
	require.NoError(t, text.DeleteDocument(ctx, "d1"))

	err := text.Upsert(ctx, []driven.VectorRecord{unit("c", "d3", 1, 0, 0)})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestCollection_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Text().Upsert(ctx, []driven.VectorRecord{unit("a", "d1", 0.5, 0.25)}))
	require.NoError(t, store.Close())

	reopened, err := NewStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	hits, err := reopened.Text().Query(ctx, []float32{0.5, 0.25}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a", hits[0].ID)
	assert.InDelta(t, 0, hits[0].Distance, 1e-6)
	assert.Equal(t, 2, reopened.Text().Dimensions())
}

func TestFloat32Encoding_RoundTrip(t *testing.T) {
	in := []float32{0, -1.5, 3.25, 1e-7}
	assert.Equal(t, in, decodeVector(encodeVector(in)))
	assert.Nil(t, decodeVector(nil))
}
