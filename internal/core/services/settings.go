package services

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/givemeone1astkiss/ribo/internal/core/domain"
	"github.com/givemeone1astkiss/ribo/internal/core/ports/driven"
	"github.com/givemeone1astkiss/ribo/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyEmbedProvider       = "embedding.provider"
	keyEmbedModel          = "embedding.model"
	keyEmbedBaseURL        = "embedding.base_url"
	keyEmbedAPIKey         = "embedding.api_key"
	keyLLMProvider         = "llm.provider"
	keyLLMModel            = "llm.model"
	keyLLMBaseURL          = "llm.base_url"
	keyLLMAPIKey           = "llm.api_key"
	keyLLMTemperature      = "llm.temperature"
	keyLLMMaxTokens        = "llm.max_tokens"
	keyLLMTimeout          = "llm.timeout_seconds"
	keyIndexBackend        = "index.backend"
	keyIndexDir            = "index.dir"
	keyIndexMilvusAddress  = "index.milvus_address"
	keyIngestDataDir       = "ingest.data_dir"
	keyIngestImagesDir     = "ingest.images_dir"
	keyIngestChunkSize     = "ingest.chunk_size"
	keyIngestChunkOverlap  = "ingest.chunk_overlap"
	keyIngestImageDPI      = "ingest.image_dpi"
	keyIngestImageMaxSide  = "ingest.image_max_side"
	keyRetrievalK          = "retrieval.k"
	keyRetrievalUnits      = "retrieval.context_units"
	keyRetrievalImageUnits = "retrieval.image_context_units"
	keyRetrievalMinScore   = "retrieval.min_score"
	keyRetrievalTimeout    = "retrieval.query_timeout_seconds"
	keyMemoryCapacity      = "memory.capacity"
	keyMemoryContext       = "memory.context_entries"
	keyToolsBaseURL        = "tools.base_url"
	keyToolsTimeout        = "tools.timeout_seconds"
	keyToolsRatePerSecond  = "tools.rate_per_second"
	keyToolsCatalog        = "tools.catalog"
	keyServerAddr          = "server.addr"
	defaultIndexDirName    = "index"
	defaultImagesDirName   = "images"
)

type valueKind int

const (
	kindString valueKind = iota
	kindInt
	kindFloat
)

// settingKinds lists every key Set accepts and how its value is parsed.
var settingKinds = map[string]valueKind{
	keyEmbedProvider:       kindString,
	keyEmbedModel:          kindString,
	keyEmbedBaseURL:        kindString,
	keyEmbedAPIKey:         kindString,
	keyLLMProvider:         kindString,
	keyLLMModel:            kindString,
	keyLLMBaseURL:          kindString,
	keyLLMAPIKey:           kindString,
	keyLLMTemperature:      kindFloat,
	keyLLMMaxTokens:        kindInt,
	keyLLMTimeout:          kindInt,
	keyIndexBackend:        kindString,
	keyIndexDir:            kindString,
	keyIndexMilvusAddress:  kindString,
	keyIngestDataDir:       kindString,
	keyIngestImagesDir:     kindString,
	keyIngestChunkSize:     kindInt,
	keyIngestChunkOverlap:  kindInt,
	keyIngestImageDPI:      kindInt,
	keyIngestImageMaxSide:  kindInt,
	keyRetrievalK:          kindInt,
	keyRetrievalUnits:      kindInt,
	keyRetrievalImageUnits: kindInt,
	keyRetrievalMinScore:   kindFloat,
	keyRetrievalTimeout:    kindInt,
	keyMemoryCapacity:      kindInt,
	keyMemoryContext:       kindInt,
	keyToolsBaseURL:        kindString,
	keyToolsTimeout:        kindInt,
	keyToolsRatePerSecond:  kindFloat,
	keyToolsCatalog:        kindString,
	keyServerAddr:          kindString,
}

// SettingKeys returns every configurable key, sorted.
func SettingKeys() []string {
	keys := make([]string, 0, len(settingKinds))
	for k := range settingKinds {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	probe       driven.ProviderProbe
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, probe driven.ProviderProbe) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		probe:       probe,
	}
}

// Get retrieves current application settings.
// The index directory defaults to "index" next to the config file and the
// images directory to "images" inside the index directory.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()

	indexDir := s.getString(keyIndexDir, filepath.Join(filepath.Dir(s.configStore.Path()), defaultIndexDirName))

	settings := &domain.AppSettings{
		Embedding: domain.EmbeddingSettings{
			Provider: s.getProvider(keyEmbedProvider, defaults.Embedding.Provider),
			BaseURL:  s.configStore.GetString(keyEmbedBaseURL), // No default - empty is valid for cloud providers
			APIKey:   s.configStore.GetString(keyEmbedAPIKey),
		},
		LLM: domain.LLMSettings{
			Provider:    s.getProvider(keyLLMProvider, defaults.LLM.Provider),
			BaseURL:     s.configStore.GetString(keyLLMBaseURL),
			APIKey:      s.configStore.GetString(keyLLMAPIKey),
			Temperature: s.getFloat(keyLLMTemperature, defaults.LLM.Temperature),
			MaxTokens:   s.getInt(keyLLMMaxTokens, defaults.LLM.MaxTokens),
			Timeout:     s.getSeconds(keyLLMTimeout, defaults.LLM.Timeout),
		},
		Index: domain.IndexSettings{
			Backend:       s.getBackend(defaults.Index.Backend),
			Dir:           indexDir,
			MilvusAddress: s.getString(keyIndexMilvusAddress, defaults.Index.MilvusAddress),
		},
		Ingest: domain.IngestSettings{
			DataDir:      s.getString(keyIngestDataDir, defaults.Ingest.DataDir),
			ImagesDir:    s.getString(keyIngestImagesDir, filepath.Join(indexDir, defaultImagesDirName)),
			ChunkSize:    s.getInt(keyIngestChunkSize, defaults.Ingest.ChunkSize),
			ChunkOverlap: s.getInt(keyIngestChunkOverlap, defaults.Ingest.ChunkOverlap),
			ImageDPI:     s.getInt(keyIngestImageDPI, defaults.Ingest.ImageDPI),
			ImageMaxSide: s.getInt(keyIngestImageMaxSide, defaults.Ingest.ImageMaxSide),
		},
		Retrieval: domain.RetrievalSettings{
			K:            s.getInt(keyRetrievalK, defaults.Retrieval.K),
			ContextUnits: s.getInt(keyRetrievalUnits, defaults.Retrieval.ContextUnits),
			ImageUnits:   s.getCount(keyRetrievalImageUnits, defaults.Retrieval.ImageUnits),
			MinScore:     s.getFloat(keyRetrievalMinScore, defaults.Retrieval.MinScore),
			QueryTimeout: s.getSeconds(keyRetrievalTimeout, defaults.Retrieval.QueryTimeout),
		},
		Memory: domain.MemorySettings{
			Capacity:       s.getInt(keyMemoryCapacity, defaults.Memory.Capacity),
			ContextEntries: s.getInt(keyMemoryContext, defaults.Memory.ContextEntries),
		},
		Tools: domain.ToolSettings{
			BaseURL:       s.getString(keyToolsBaseURL, defaults.Tools.BaseURL),
			Timeout:       s.getSeconds(keyToolsTimeout, defaults.Tools.Timeout),
			RatePerSecond: s.getFloat(keyToolsRatePerSecond, defaults.Tools.RatePerSecond),
			CatalogPath:   s.configStore.GetString(keyToolsCatalog),
		},
		Server: domain.ServerSettings{
			Addr: s.getString(keyServerAddr, defaults.Server.Addr),
		},
	}

	settings.Embedding.Model = s.getString(keyEmbedModel, domain.DefaultEmbeddingModels()[settings.Embedding.Provider])
	settings.LLM.Model = s.getString(keyLLMModel, domain.DefaultLLMModels()[settings.LLM.Provider])
	if settings.LLM.Provider == domain.AIProviderDeepSeek && settings.LLM.BaseURL == "" {
		settings.LLM.BaseURL = defaults.LLM.BaseURL
	}

	return settings, nil
}

// Save persists application settings.
// API keys are only written when set, so a key supplied through the
// environment is never copied into the config file by accident.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key   string
		value any
	}{
		{keyEmbedProvider, settings.Embedding.Provider.String()},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keyLLMProvider, settings.LLM.Provider.String()},
		{keyLLMModel, settings.LLM.Model},
		{keyLLMBaseURL, settings.LLM.BaseURL},
		{keyLLMTemperature, settings.LLM.Temperature},
		{keyLLMMaxTokens, settings.LLM.MaxTokens},
		{keyLLMTimeout, int(settings.LLM.Timeout / time.Second)},
		{keyIndexBackend, string(settings.Index.Backend)},
		{keyIndexDir, settings.Index.Dir},
		{keyIndexMilvusAddress, settings.Index.MilvusAddress},
		{keyIngestDataDir, settings.Ingest.DataDir},
		{keyIngestImagesDir, settings.Ingest.ImagesDir},
		{keyIngestChunkSize, settings.Ingest.ChunkSize},
		{keyIngestChunkOverlap, settings.Ingest.ChunkOverlap},
		{keyIngestImageDPI, settings.Ingest.ImageDPI},
		{keyIngestImageMaxSide, settings.Ingest.ImageMaxSide},
		{keyRetrievalK, settings.Retrieval.K},
		{keyRetrievalUnits, settings.Retrieval.ContextUnits},
		{keyRetrievalImageUnits, settings.Retrieval.ImageUnits},
		{keyRetrievalMinScore, settings.Retrieval.MinScore},
		{keyRetrievalTimeout, int(settings.Retrieval.QueryTimeout / time.Second)},
		{keyMemoryCapacity, settings.Memory.Capacity},
		{keyMemoryContext, settings.Memory.ContextEntries},
		{keyToolsBaseURL, settings.Tools.BaseURL},
		{keyToolsTimeout, int(settings.Tools.Timeout / time.Second)},
		{keyToolsRatePerSecond, settings.Tools.RatePerSecond},
		{keyToolsCatalog, settings.Tools.CatalogPath},
		{keyServerAddr, settings.Server.Addr},
	}
	if settings.Embedding.APIKey != "" {
		values = append(values, struct {
			key   string
			value any
		}{keyEmbedAPIKey, settings.Embedding.APIKey})
	}
	if settings.LLM.APIKey != "" {
		values = append(values, struct {
			key   string
			value any
		}{keyLLMAPIKey, settings.LLM.APIKey})
	}

	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}
	return nil
}

// Set parses value according to the key and stores it.
// Unknown keys and unparsable values return domain.ErrInvalidInput.
func (s *SettingsService) Set(key, value string) error {
	kind, ok := settingKinds[key]
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}
	value = strings.TrimSpace(value)

	var parsed any
	switch kind {
	case kindInt:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: %s expects an integer, got %q", domain.ErrInvalidInput, key, value)
		}
		parsed = n
	case kindFloat:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%w: %s expects a number, got %q", domain.ErrInvalidInput, key, value)
		}
		parsed = f
	default:
		parsed = value
	}

	switch key {
	case keyEmbedProvider, keyLLMProvider:
		if !domain.AIProvider(value).IsValid() {
			return fmt.Errorf("%w: unknown provider %q", domain.ErrInvalidInput, value)
		}
	case keyIndexBackend:
		if !domain.IndexBackend(value).IsValid() {
			return fmt.Errorf("%w: unknown index backend %q", domain.ErrInvalidInput, value)
		}
	}

	if err := s.configStore.Set(key, parsed); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid embedding provider: %s", provider)
	}
	if !slices.Contains(domain.AllEmbeddingProviders(), provider) {
		return fmt.Errorf("provider %s does not support embeddings", provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.Embedding.Provider = provider
	settings.Embedding.Model = model
	if model == "" {
		settings.Embedding.Model = domain.DefaultEmbeddingModels()[provider]
	}

	switch {
	case provider == domain.AIProviderOllama:
		if settings.Embedding.BaseURL == "" {
			settings.Embedding.BaseURL = "http://localhost:11434"
		}
	default:
		settings.Embedding.BaseURL = ""
	}
	settings.Embedding.APIKey = apiKey

	return s.Save(settings)
}

// SetLLMProvider configures the LLM provider.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid LLM provider: %s", provider)
	}
	if !slices.Contains(domain.AllLLMProviders(), provider) {
		return fmt.Errorf("provider %s does not support chat", provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.LLM.Provider = provider
	settings.LLM.Model = model
	if model == "" {
		settings.LLM.Model = domain.DefaultLLMModels()[provider]
	}

	switch provider {
	case domain.AIProviderOllama:
		if settings.LLM.BaseURL == "" {
			settings.LLM.BaseURL = "http://localhost:11434"
		}
	case domain.AIProviderDeepSeek:
		settings.LLM.BaseURL = domain.DefaultAppSettings().LLM.BaseURL
	default:
		settings.LLM.BaseURL = ""
	}
	settings.LLM.APIKey = apiKey

	return s.Save(settings)
}

// Validate checks that the current settings are usable.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	if !settings.Embedding.IsConfigured() {
		return fmt.Errorf("embedding provider %s is not configured", settings.Embedding.Provider)
	}
	if settings.LLM.Provider.RequiresAPIKey() && settings.LLM.APIKey == "" {
		return fmt.Errorf("LLM provider %s requires an API key", settings.LLM.Provider)
	}
	if settings.Ingest.ChunkOverlap >= settings.Ingest.ChunkSize {
		return fmt.Errorf("%w: chunk overlap %d must be smaller than chunk size %d",
			domain.ErrInvalidInput, settings.Ingest.ChunkOverlap, settings.Ingest.ChunkSize)
	}
	if settings.Memory.ContextEntries > settings.Memory.Capacity {
		return fmt.Errorf("%w: memory context entries %d exceed capacity %d",
			domain.ErrInvalidInput, settings.Memory.ContextEntries, settings.Memory.Capacity)
	}
	if settings.Index.Backend == domain.IndexBackendMilvus && settings.Index.MilvusAddress == "" {
		return fmt.Errorf("%w: milvus backend needs index.milvus_address", domain.ErrInvalidInput)
	}
	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.probe == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.probe.ProbeEmbedding(context.Background(), &settings.Embedding)
}

// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.probe == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.probe.ProbeLLM(context.Background(), &settings.LLM)
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val == 0 {
		return defaultVal
	}
	return val
}

// getFloat treats an explicit zero as a value, since 0 is a meaningful
// temperature or score threshold.
func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

// getCount treats an explicit zero as a value.
func (s *SettingsService) getCount(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getSeconds(key string, defaultVal time.Duration) time.Duration {
	val := s.configStore.GetInt(key)
	if val <= 0 {
		return defaultVal
	}
	return time.Duration(val) * time.Second
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	provider := domain.AIProvider(val)
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

func (s *SettingsService) getBackend(defaultVal domain.IndexBackend) domain.IndexBackend {
	backend := domain.IndexBackend(s.configStore.GetString(keyIndexBackend))
	if !backend.IsValid() {
		return defaultVal
	}
	return backend
}
