package driven

import (
	"context"
	"encoding/json"

	"github.com/givemeone1astkiss/ribo/internal/core/domain"
)

// ToolInvoker calls an external analysis tool endpoint.
type ToolInvoker interface {
	// Invoke posts payload to the tool and returns its JSON result.
	// Failures wrap domain.ErrToolInvocation.
	Invoke(ctx context.Context, tool domain.ToolDescriptor, payload map[string]any) (json.RawMessage, error)
}

// ToolCatalogSource loads tool descriptors.
type ToolCatalogSource interface {
	// Load returns descriptors for the known tools.
	Load() ([]domain.ToolDescriptor, error)
}
