package driven

import (
	"context"

	"github.com/givemeone1astkiss/ribo/internal/core/domain"
)

// ProviderProbe checks that configured model providers answer before the
// settings that name them are relied on. An unconfigured provider probes as
// healthy.
type ProviderProbe interface {
	ProbeEmbedding(ctx context.Context, cfg *domain.EmbeddingSettings) error
	ProbeLLM(ctx context.Context, cfg *domain.LLMSettings) error
}
