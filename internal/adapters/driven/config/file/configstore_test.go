package file

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigStore_Path(t *testing.T) {
	dir := t.TempDir()

	store, err := NewConfigStore(dir)

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.toml"), store.Path())
}

func TestNewConfigStore_NestedDirectoryCreated(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")

	_, err := NewConfigStore(dir)

	require.NoError(t, err)
	assert.DirExists(t, dir)
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set("llm.model", "deepseek-chat"))
	require.NoError(t, store.Set("retrieval.k", 30))
	require.NoError(t, store.Set("retrieval.min_score", -0.5))
	require.NoError(t, store.Set("server.watch", true))
	require.NoError(t, store.Set("ingest.extensions", []string{".pdf", ".md"}))

	assert.Equal(t, "deepseek-chat", store.GetString("llm.model"))
	assert.Equal(t, 30, store.GetInt("retrieval.k"))
	assert.InDelta(t, -0.5, store.GetFloat("retrieval.min_score"), 1e-9)
	assert.InDelta(t, 30.0, store.GetFloat("retrieval.k"), 1e-9)
	assert.True(t, store.GetBool("server.watch"))
	assert.Equal(t, []string{".pdf", ".md"}, store.GetStringSlice("ingest.extensions"))
}

func TestConfigStore_WrongTypesReturnZero(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Set("key", "text"))

	assert.Equal(t, 0, store.GetInt("key"))
	assert.Zero(t, store.GetFloat("key"))
	assert.False(t, store.GetBool("key"))
	assert.Nil(t, store.GetStringSlice("key"))
	assert.Empty(t, store.GetString("missing"))

	val, ok := store.Get("missing")
	assert.False(t, ok)
	assert.Nil(t, val)
}

func TestConfigStore_LoadsNestedTables(t *testing.T) {
	dir := t.TempDir()
	content := `
[llm]
provider = "openai"
temperature = 0.2

[retrieval]
k = 12
min_score = 0
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0600))

	store, err := NewConfigStore(dir)
	require.NoError(t, err)

	assert.Equal(t, "openai", store.GetString("llm.provider"))
	assert.InDelta(t, 0.2, store.GetFloat("llm.temperature"), 1e-9)
	assert.Equal(t, 12, store.GetInt("retrieval.k"))
	_, ok := store.Get("retrieval.min_score")
	assert.True(t, ok)
}

func TestConfigStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	first, err := NewConfigStore(dir)
	require.NoError(t, err)
	require.NoError(t, first.Set("tools.base_url", "http://tools:5000"))
	require.NoError(t, first.Set("tools.timeout_seconds", 60))

	second, err := NewConfigStore(dir)
	require.NoError(t, err)

	assert.Equal(t, "http://tools:5000", second.GetString("tools.base_url"))
	assert.Equal(t, 60, second.GetInt("tools.timeout_seconds"))
}

func TestConfigStore_FilePermissions(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Set("llm.api_key", "secret"))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestConfigStore_InvalidTOML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("not = [valid"), 0600))

	_, err := NewConfigStore(dir)

	assert.Error(t, err)
}

func TestConfigStore_EmptyFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), nil, 0600))

	store, err := NewConfigStore(dir)

	require.NoError(t, err)
	assert.Empty(t, store.GetString("anything"))
}

func TestConfigStore_ConcurrentAccess(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = store.Set("memory.capacity", n)
			_ = store.GetInt("memory.capacity")
		}(i)
	}
	wg.Wait()

	_, ok := store.Get("memory.capacity")
	assert.True(t, ok)
}

func TestFlatten(t *testing.T) {
	flat := map[string]any{}
	flatten(map[string]any{
		"llm":   map[string]any{"provider": "ollama", "options": map[string]any{"seed": int64(1)}},
		"debug": true,
	}, "", flat)

	assert.Equal(t, "ollama", flat["llm.provider"])
	assert.Equal(t, int64(1), flat["llm.options.seed"])
	assert.Equal(t, true, flat["debug"])
}

func TestNest(t *testing.T) {
	tree := nest(map[string]any{
		"llm.provider":  "ollama",
		"llm.model":     "qwen2.5",
		"retrieval.k":   30,
		"debug":         true,
		"debug.verbose": true,
	})

	assert.Equal(t, map[string]any{"provider": "ollama", "model": "qwen2.5"}, tree["llm"])
	assert.Equal(t, map[string]any{"k": 30}, tree["retrieval"])
	assert.Equal(t, true, tree["debug"])
	assert.Equal(t, true, tree["debug.verbose"])
}

func TestConfigStore_WritesTables(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Set("llm.provider", "deepseek"))
	require.NoError(t, store.Set("retrieval.k", 12))

	raw, err := os.ReadFile(store.Path())
	require.NoError(t, err)

	assert.Contains(t, string(raw), "[llm]")
	assert.Contains(t, string(raw), "[retrieval]")
	assert.NotContains(t, string(raw), "'llm.provider'")
}
