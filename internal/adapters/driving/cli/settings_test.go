package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/givemeone1astkiss/ribo/internal/core/domain"
)

// mockSettingsService keeps settings in memory.
type mockSettingsService struct {
	settings    domain.AppSettings
	values      map[string]string
	validateErr error
}

func newMockSettingsService() *mockSettingsService {
	return &mockSettingsService{settings: domain.DefaultAppSettings(), values: map[string]string{}}
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	s := m.settings
	return &s, nil
}

func (m *mockSettingsService) Save(s *domain.AppSettings) error {
	m.settings = *s
	return nil
}

func (m *mockSettingsService) Set(key, value string) error {
	if !strings.Contains(key, ".") {
		return domain.ErrInvalidInput
	}
	m.values[key] = value
	return nil
}

func (m *mockSettingsService) SetEmbeddingProvider(p domain.AIProvider, model, apiKey string) error {
	m.settings.Embedding = domain.EmbeddingSettings{Provider: p, Model: model, APIKey: apiKey}
	return nil
}

func (m *mockSettingsService) SetLLMProvider(p domain.AIProvider, model, apiKey string) error {
	m.settings.LLM.Provider, m.settings.LLM.Model, m.settings.LLM.APIKey = p, model, apiKey
	return nil
}

func (m *mockSettingsService) Validate() error { return m.validateErr }
func (m *mockSettingsService) GetDefaults() domain.AppSettings { return domain.DefaultAppSettings() }
func (m *mockSettingsService) ValidateEmbeddingConfig() error { return nil }
func (m *mockSettingsService) ValidateLLMConfig() error { return nil }

func withSettings(t *testing.T) *mockSettingsService {
	t.Helper()
	old := settingsService
	svc := newMockSettingsService()
	settingsService = svc
	t.Cleanup(func() { settingsService = old })
	return svc
}

func TestSettingsShow(t *testing.T) {
	svc := withSettings(t)
	svc.validateErr = errors.New("LLM API key is not set")

	stdout, _, err := execute(t, "settings")

	require.NoError(t, err)
	for _, section := range []string{"[Embedding]", "[LLM]", "[Index]", "[Ingest]", "[Retrieval]", "[Memory]", "[Tools]", "[Server]"} {
		assert.Contains(t, stdout, section)
	}
	assert.Contains(t, stdout, "Provider: DeepSeek (cloud)")
	assert.Contains(t, stdout, "API Key: (not set)")
	assert.Contains(t, stdout, "Backend: sqlite")
	assert.Contains(t, stdout, "k: 30")
	assert.Contains(t, stdout, "Address: :8080")
	assert.Contains(t, stdout, "Warning: LLM API key is not set")
}

func TestSettingsSet(t *testing.T) {
	svc := withSettings(t)

	stdout, _, err := execute(t, "settings", "set", "retrieval.k", "40")

	require.NoError(t, err)
	assert.Equal(t, "40", svc.values["retrieval.k"])
	assert.Contains(t, stdout, "retrieval.k = 40")
}

func TestSettingsSet_MasksAPIKey(t *testing.T) {
	withSettings(t)

	stdout, _, err := execute(t, "settings", "set", "llm.api_key", "sk-1234567890abcdef")

	require.NoError(t, err)
	assert.NotContains(t, stdout, "sk-1234567890abcdef")
	assert.Contains(t, stdout, "llm.api_key = "+maskAPIKey("sk-1234567890abcdef"))
}

func TestSettingsSet_InvalidKey(t *testing.T) {
	withSettings(t)

	_, _, err := execute(t, "settings", "set", "bogus", "1")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSettingsSet_RequiresTwoArgs(t *testing.T) {
	withSettings(t)

	_, _, err := execute(t, "settings", "set", "llm.model")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 2 arg(s)")
}

func TestSettingsWizard_LocalProviders(t *testing.T) {
	svc := withSettings(t)

	// Embedding: local with default model. LLM: ollama with a custom model.
	var stdout bytes.Buffer
	settingsWizardCmd.SetIn(strings.NewReader("1\n\n3\nqwen2.5\n"))
	settingsWizardCmd.SetOut(&stdout)
	defer func() {
		settingsWizardCmd.SetIn(nil)
		settingsWizardCmd.SetOut(nil)
	}()

	require.NoError(t, runSettingsWizard(settingsWizardCmd, nil))

	assert.Equal(t, domain.AIProviderLocal, svc.settings.Embedding.Provider)
	assert.Equal(t, domain.DefaultEmbeddingModels()[domain.AIProviderLocal], svc.settings.Embedding.Model)
	assert.Equal(t, domain.AIProviderOllama, svc.settings.LLM.Provider)
	assert.Equal(t, "qwen2.5", svc.settings.LLM.Model)
	assert.Contains(t, stdout.String(), "All settings are valid and saved.")
}

func TestSettingsLLM_RequiresAPIKey(t *testing.T) {
	withSettings(t)

	var stdout bytes.Buffer
	settingsLLMCmd.SetIn(strings.NewReader("1\n\n\n"))
	settingsLLMCmd.SetOut(&stdout)
	defer func() {
		settingsLLMCmd.SetIn(nil)
		settingsLLMCmd.SetOut(nil)
	}()

	err := runSettingsLLM(settingsLLMCmd, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key is required")
}

func TestSettingsCmd_SkipsServiceLoading(t *testing.T) {
	assert.True(t, skipsServices(settingsCmd))
}

func TestMaskAPIKey(t *testing.T) {
	for in, want := range map[string]string{
		"":                                   "****",
		"abc123":                             "****",
		"12345678":                           "****",
		"sk-1234567890abcdef":                "sk-1...cdef",
		"sk-proj-1234567890abcdefghijklmnop": "sk-p...mnop",
	} {
		assert.Equal(t, want, maskAPIKey(in), in)
	}
}

func TestParseChoice(t *testing.T) {
	cases := []struct {
		in   string
		def  int
		want int
	}{
		{"", 1, 1},
		{"3", 1, 3},
		{"5", 1, 5},
		{"1", 3, 1},
		{"0", 1, 1},
		{"6", 1, 1},
		{"-1", 1, 1},
		{"abc", 2, 2},
		{"   ", 1, 1},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, parseChoice(c.in, 5, c.def), "input %q", c.in)
	}
}

func TestSettingsSections_MilvusAddressOnlyForMilvus(t *testing.T) {
	st := domain.DefaultAppSettings()
	st.Index.Backend = domain.IndexBackendMilvus
	st.Index.MilvusAddress = "milvus:19530"

	var index section
	for _, sec := range settingsSections(&st) {
		if sec.title == "Index" {
			index = sec
		}
	}

	assert.Contains(t, index.rows, [2]string{"Milvus", "milvus:19530"})
}
