package driving

import (
	"context"

	"github.com/givemeone1astkiss/ribo/internal/core/domain"
)

// SearchService provides literature retrieval to external actors.
type SearchService interface {
	// Search returns the best matching units across the text (and optionally image) collections.
	Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error)
}

// ToolCatalog lists the external analysis tools.
type ToolCatalog interface {
	// List returns every tool in catalog order.
	List() []domain.ToolDescriptor

	// Get returns one tool descriptor.
	Get(id domain.ToolID) (domain.ToolDescriptor, bool)
}
