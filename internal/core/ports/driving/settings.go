package driving

import "github.com/givemeone1astkiss/ribo/internal/core/domain"

// SettingsService reads and edits the persisted configuration that the
// assistant is assembled from at start-up.
type SettingsService interface {
	// Get returns the effective settings: stored values over defaults.
	Get() (*domain.AppSettings, error)

	// Save writes every field of settings. Empty API keys are not written.
	Save(settings *domain.AppSettings) error

	// Set parses and stores one dotted key such as "retrieval.k".
	Set(key, value string) error

	SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error
	SetLLMProvider(provider domain.AIProvider, model, apiKey string) error

	// Validate reports settings that cannot produce a working assistant.
	Validate() error

	GetDefaults() domain.AppSettings

	// ValidateEmbeddingConfig and ValidateLLMConfig contact the configured
	// providers.
	ValidateEmbeddingConfig() error
	ValidateLLMConfig() error
}
