package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/givemeone1astkiss/ribo/internal/adapters/driven/config/file"
	"github.com/givemeone1astkiss/ribo/internal/adapters/driven/storage/sqlite"
	"github.com/givemeone1astkiss/ribo/internal/core/domain"
	"github.com/givemeone1astkiss/ribo/internal/core/ports/driven"
	"github.com/givemeone1astkiss/ribo/internal/core/services"
)

// isolate clears every environment override so the test only sees its
// own config directory.
func isolate(t *testing.T) string {
	t.Helper()
	for _, b := range file.EnvBindings {
		t.Setenv(b.Var, "")
	}
	return t.TempDir()
}

func newSettings(t *testing.T, dir string, values map[string]string) *services.SettingsService {
	t.Helper()
	settings, err := LoadSettings(dir)
	require.NoError(t, err)
	for k, v := range values {
		require.NoError(t, settings.Set(k, v))
	}
	return settings
}

func TestNew_MemoryBackend(t *testing.T) {
	dir := isolate(t)
	settings := newSettings(t, dir, map[string]string{
		"index.backend":   "memory",
		"ingest.data_dir": filepath.Join(dir, "data"),
	})

	a, err := New(context.Background(), settings, dir)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, domain.IndexBackendMemory, a.Config.Index.Backend)
	require.NotNil(t, a.Chat)
	require.NotNil(t, a.Search)
	require.NotNil(t, a.Ingestion)
	assert.NotEmpty(t, a.Tools.List())
	assert.Equal(t, 10, a.Memory.Capacity())

	// Prompts are materialised next to the config file.
	_, err = os.Stat(filepath.Join(dir, "prompts"))
	assert.NoError(t, err)
}

func TestNew_IngestAndSearch(t *testing.T) {
	dir := isolate(t)
	data := filepath.Join(dir, "data")
	require.NoError(t, os.MkdirAll(data, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(data, "hairpin.md"),
		[]byte("# Hairpin design\n\nA stable RNA hairpin needs a GC-rich stem and a short loop."), 0o600))

	settings := newSettings(t, dir, map[string]string{"index.backend": "memory"})
	a, err := New(context.Background(), settings, dir)
	require.NoError(t, err)
	defer a.Close()

	report, err := a.Ingestion.IngestDirectory(context.Background(), data)
	require.NoError(t, err)
	require.Len(t, report.Added, 1)

	results, err := a.Search.Search(context.Background(), "RNA hairpin stem", domain.SearchOptions{K: 3})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "Hairpin design", results[0].Bibliography.Title)
}

func TestNew_SQLiteBackendPersists(t *testing.T) {
	dir := isolate(t)
	data := filepath.Join(dir, "data")
	require.NoError(t, os.MkdirAll(data, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(data, "notes.txt"),
		[]byte("Riboswitch aptamers fold into a ligand binding pocket."), 0o600))

	settings := newSettings(t, dir, map[string]string{"index.dir": filepath.Join(dir, "index")})

	a, err := New(context.Background(), settings, dir)
	require.NoError(t, err)
	_, err = a.Ingestion.IngestDirectory(context.Background(), data)
	require.NoError(t, err)
	require.NoError(t, a.Close())

	reopened, err := New(context.Background(), settings, dir)
	require.NoError(t, err)
	defer reopened.Close()

	docs, err := reopened.Ingestion.List(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)

	_, err = os.Stat(filepath.Join(dir, "index", "index.db"))
	assert.NoError(t, err)
}

func TestNew_ChatWithoutLLMUsesTemplates(t *testing.T) {
	dir := isolate(t)
	settings := newSettings(t, dir, map[string]string{"index.backend": "memory"})

	a, err := New(context.Background(), settings, dir)
	require.NoError(t, err)
	defer a.Close()

	resp, err := a.Chat.Chat(context.Background(), domain.ChatRequest{Message: "Recommend a good pizza place"})
	require.NoError(t, err)
	assert.Equal(t, domain.LabelOffTopic, resp.Label)
	assert.NotEmpty(t, resp.Response)
	assert.False(t, resp.EvidenceBacked)
	assert.Equal(t, 1, a.Memory.Len())
}

func TestNew_UnreachableMilvus(t *testing.T) {
	dir := isolate(t)
	settings := newSettings(t, dir, map[string]string{
		"index.backend":        "milvus",
		"index.dir":            filepath.Join(dir, "index"),
		"index.milvus_address": "127.0.0.1:1",
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, err := New(ctx, settings, dir)
	assert.Error(t, err)
}

// seedIndex writes one document straight into the sqlite index under dir.
func seedIndex(t *testing.T, dir string, doc *domain.Document, records []driven.VectorRecord) {
	t.Helper()
	store, err := sqlite.NewStore(dir)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	if len(records) > 0 {
		require.NoError(t, store.Text().Upsert(ctx, records))
	}
	_, err = store.Registry().Add(ctx, doc)
	require.NoError(t, err)
}

func TestNew_ReportsRegisteredDocumentWithoutUnits(t *testing.T) {
	dir := isolate(t)
	indexDir := filepath.Join(dir, "index")
	seedIndex(t, indexDir, &domain.Document{
		ID: "deadbeef", SourcePath: "/papers/lost.pdf", Format: domain.FormatPDF, TextUnits: 1,
	}, nil)

	settings := newSettings(t, dir, map[string]string{"index.dir": indexDir})
	a, err := New(context.Background(), settings, dir)
	require.NoError(t, err)
	defer a.Close()

	var found bool
	for _, w := range a.Warnings {
		if strings.Contains(w, "deadbeef") && strings.Contains(w, "missing_units") {
			found = true
		}
	}
	assert.True(t, found, "warnings: %v", a.Warnings)
}

func TestNew_ConsistentIndexHasNoInconsistencyWarning(t *testing.T) {
	dir := isolate(t)
	settings := newSettings(t, dir, map[string]string{"index.dir": filepath.Join(dir, "index")})

	a, err := New(context.Background(), settings, dir)
	require.NoError(t, err)
	defer a.Close()

	for _, w := range a.Warnings {
		assert.NotContains(t, w, "index inconsistency")
	}
}

func TestNew_RefusesFallbackEmbedderOfOtherWidth(t *testing.T) {
	dir := isolate(t)
	indexDir := filepath.Join(dir, "index")
	seedIndex(t, indexDir, &domain.Document{
		ID: "cafe", SourcePath: "/papers/wide.md", Format: domain.FormatMarkdown, TextUnits: 1,
	}, []driven.VectorRecord{{ID: "cafe_l0_c0", DocumentID: "cafe", Content: "x", Embedding: []float32{1, 0, 0}}})

	settings := newSettings(t, dir, map[string]string{
		"index.dir":          indexDir,
		"embedding.provider": "ollama",
		"embedding.base_url": "http://127.0.0.1:1",
	})

	_, err := New(context.Background(), settings, dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	assert.Contains(t, err.Error(), "fallback")
}

func TestNew_WarnsWhenEmbedderWidthChanged(t *testing.T) {
	dir := isolate(t)
	indexDir := filepath.Join(dir, "index")
	seedIndex(t, indexDir, &domain.Document{
		ID: "cafe", SourcePath: "/papers/wide.md", Format: domain.FormatMarkdown, TextUnits: 1,
	}, []driven.VectorRecord{{ID: "cafe_l0_c0", DocumentID: "cafe", Content: "x", Embedding: []float32{1, 0, 0}}})

	settings := newSettings(t, dir, map[string]string{"index.dir": indexDir})
	a, err := New(context.Background(), settings, dir)
	require.NoError(t, err)
	defer a.Close()

	var found bool
	for _, w := range a.Warnings {
		if strings.Contains(w, "3-dimension") {
			found = true
		}
	}
	assert.True(t, found, "warnings: %v", a.Warnings)
}

func TestClose_Idempotent(t *testing.T) {
	dir := isolate(t)
	settings := newSettings(t, dir, map[string]string{"index.backend": "memory"})

	a, err := New(context.Background(), settings, dir)
	require.NoError(t, err)
	assert.NoError(t, a.Close())
	assert.NoError(t, a.Close())
}
