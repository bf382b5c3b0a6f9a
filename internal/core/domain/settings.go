package domain

import (
	"slices"
	"time"
)

// AIProvider names a service that embeds text, generates answers, or both.
type AIProvider string

const (
	AIProviderOllama    AIProvider = "ollama"
	AIProviderOpenAI    AIProvider = "openai"
	AIProviderDeepSeek  AIProvider = "deepseek" // OpenAI-compatible
	AIProviderAnthropic AIProvider = "anthropic"
	AIProviderGemini    AIProvider = "gemini"
	AIProviderLocal     AIProvider = "local" // built-in hashing embedder
)

// provider describes what a provider offers. An empty model means the
// provider does not serve that role.
type provider struct {
	description string
	cloud       bool
	embedModel  string
	chatModel   string
}

var providers = map[AIProvider]provider{
	AIProviderLocal:     {description: "Built-in hashing embedder (offline)", embedModel: "hash-384"},
	AIProviderOllama:    {description: "Ollama (local)", embedModel: "nomic-embed-text", chatModel: "llama3.2"},
	AIProviderOpenAI:    {description: "OpenAI (cloud)", cloud: true, embedModel: "text-embedding-3-small", chatModel: "gpt-4o-mini"},
	AIProviderDeepSeek:  {description: "DeepSeek (cloud)", cloud: true, chatModel: "deepseek-chat"},
	AIProviderAnthropic: {description: "Anthropic (cloud)", cloud: true, chatModel: "claude-3-5-sonnet-latest"},
	AIProviderGemini:    {description: "Gemini (cloud)", cloud: true, embedModel: "text-embedding-004", chatModel: "gemini-2.0-flash"},
}

// Menu order for the settings wizard.
var (
	embeddingOrder = []AIProvider{AIProviderLocal, AIProviderOllama, AIProviderOpenAI, AIProviderGemini}
	llmOrder       = []AIProvider{AIProviderDeepSeek, AIProviderOpenAI, AIProviderOllama, AIProviderAnthropic, AIProviderGemini}
)

func (p AIProvider) IsValid() bool {
	_, ok := providers[p]
	return ok
}

// RequiresAPIKey is true for the cloud providers.
func (p AIProvider) RequiresAPIKey() bool { return providers[p].cloud }

func (p AIProvider) String() string { return string(p) }

func (p AIProvider) Description() string {
	if info, ok := providers[p]; ok {
		return info.description
	}
	return "Unknown"
}

// IndexBackend selects where the text and image collections live.
type IndexBackend string

// Index backends.
const (
	IndexBackendSQLite IndexBackend = "sqlite"
	IndexBackendMemory IndexBackend = "memory"
	IndexBackendMilvus IndexBackend = "milvus"
)

// IsValid returns true if the backend is recognised.
func (b IndexBackend) IsValid() bool {
	switch b {
	case IndexBackendSQLite, IndexBackendMemory, IndexBackendMilvus:
		return true
	default:
		return false
	}
}

// EmbeddingSettings picks the embedder. BaseURL applies to Ollama and
// OpenAI-compatible servers; APIKey only to cloud providers.
type EmbeddingSettings struct {
	Provider AIProvider
	Model    string
	BaseURL  string
	APIKey   string
}

func (e EmbeddingSettings) IsConfigured() bool {
	return e.Provider.IsValid() && (e.APIKey != "" || !e.Provider.RequiresAPIKey())
}

// LLMSettings picks the answer model. Timeout bounds non-streaming calls.
type LLMSettings struct {
	Provider    AIProvider
	Model       string
	BaseURL     string
	APIKey      string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// IsConfigured is false for embed-only providers such as local.
func (l LLMSettings) IsConfigured() bool {
	if providers[l.Provider].chatModel == "" {
		return false
	}
	return l.APIKey != "" || !l.Provider.RequiresAPIKey()
}

// IndexSettings holds index store configuration.
type IndexSettings struct {
	Backend       IndexBackend
	Dir           string
	MilvusAddress string
}

// IngestSettings holds ingestion configuration.
type IngestSettings struct {
	DataDir      string
	ImagesDir    string
	ChunkSize    int
	ChunkOverlap int
	ImageDPI     int
	ImageMaxSide int
}

// RetrievalSettings holds retrieval configuration.
type RetrievalSettings struct {
	// K is the default number of results for a search.
	K int

	// ContextUnits caps the text units placed in a chat context.
	ContextUnits int

	// ImageUnits caps the image units placed in a chat context.
	// Zero builds a text-only context.
	ImageUnits int

	// MinScore is the score a citation must exceed to count as evidence.
	MinScore float64

	// QueryTimeout bounds query embedding plus index lookup.
	QueryTimeout time.Duration
}

// MemorySettings holds conversation memory configuration.
type MemorySettings struct {
	Capacity       int
	ContextEntries int
}

// ToolSettings holds external tool configuration.
type ToolSettings struct {
	BaseURL       string
	Timeout       time.Duration
	RatePerSecond float64
	CatalogPath   string
}

// ServerSettings holds HTTP server configuration.
type ServerSettings struct {
	Addr string
}

// AppSettings holds all application settings.
type AppSettings struct {
	Embedding EmbeddingSettings
	LLM       LLMSettings
	Index     IndexSettings
	Ingest    IngestSettings
	Retrieval RetrievalSettings
	Memory    MemorySettings
	Tools     ToolSettings
	Server    ServerSettings
}

// DefaultAppSettings returns settings with sensible defaults.
// The LLM still needs an API key before it is usable.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Embedding: EmbeddingSettings{
			Provider: AIProviderLocal,
			Model:    DefaultEmbeddingModels()[AIProviderLocal],
		},
		LLM: LLMSettings{
			Provider:    AIProviderDeepSeek,
			Model:       DefaultLLMModels()[AIProviderDeepSeek],
			BaseURL:     "https://api.deepseek.com",
			Temperature: 0.7,
			MaxTokens:   2000,
			Timeout:     120 * time.Second,
		},
		Index: IndexSettings{
			Backend:       IndexBackendSQLite,
			MilvusAddress: "localhost:19530",
		},
		Ingest: IngestSettings{
			DataDir:      "data",
			ChunkSize:    1000,
			ChunkOverlap: 200,
			ImageDPI:     200,
			ImageMaxSide: 512,
		},
		Retrieval: RetrievalSettings{
			K:            30,
			ContextUnits: 15,
			ImageUnits:   5,
			MinScore:     -0.5,
			QueryTimeout: 30 * time.Second,
		},
		Memory: MemorySettings{
			Capacity:       10,
			ContextEntries: 3,
		},
		Tools: ToolSettings{
			BaseURL:       "http://localhost:5000",
			Timeout:       300 * time.Second,
			RatePerSecond: 2,
		},
		Server: ServerSettings{
			Addr: ":8080",
		},
	}
}

func AllEmbeddingProviders() []AIProvider { return slices.Clone(embeddingOrder) }
func AllLLMProviders() []AIProvider       { return slices.Clone(llmOrder) }

// DefaultEmbeddingModels maps each embedding provider to its stock model.
func DefaultEmbeddingModels() map[AIProvider]string {
	return defaults(embeddingOrder, func(p provider) string { return p.embedModel })
}

// DefaultLLMModels maps each LLM provider to its stock model.
func DefaultLLMModels() map[AIProvider]string {
	return defaults(llmOrder, func(p provider) string { return p.chatModel })
}

func defaults(order []AIProvider, model func(provider) string) map[AIProvider]string {
	out := make(map[AIProvider]string, len(order))
	for _, p := range order {
		out[p] = model(providers[p])
	}
	return out
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Built-in
		"hash-384": 384,
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
		// Gemini models
		"text-embedding-004": 768,
	}
}
