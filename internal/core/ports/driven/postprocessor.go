package driven

import (
	"context"

	"github.com/givemeone1astkiss/ribo/internal/core/domain"
)

// PostProcessor is one stage between normalised pages and stored text
// units. The first stage receives nil units and creates them from doc;
// later stages filter or rewrite what they are given.
type PostProcessor interface {
	Name() string
	Process(ctx context.Context, doc *domain.NormalisedDocument, units []domain.TextUnit) ([]domain.TextUnit, error)
}

// PostProcessorPipeline runs a document through every stage in order.
type PostProcessorPipeline interface {
	Process(ctx context.Context, doc *domain.NormalisedDocument) ([]domain.TextUnit, error)
}
