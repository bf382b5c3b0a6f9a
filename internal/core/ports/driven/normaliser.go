package driven

import (
	"context"

	"github.com/givemeone1astkiss/ribo/internal/core/domain"
)

// Normaliser splits one literature file into pages and reads whatever
// bibliographic metadata the format exposes.
type Normaliser interface {
	SupportedFormats() []domain.Format
	Normalise(ctx context.Context, file *domain.SourceFile) (*domain.NormalisedDocument, error)
}
