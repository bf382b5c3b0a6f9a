package mcp

import (
	"github.com/givemeone1astkiss/ribo/internal/core/ports/driving"
)

// Ports are the services the MCP server exposes. Search and Chat are
// required.
type Ports struct {
	// Search provides literature retrieval.
	Search driving.SearchService

	// Chat answers questions through the assistant.
	Chat driving.ChatService

	// Ingestion maintains the index. Optional: without it the ingest and
	// list_documents tools report an error.
	Ingestion driving.IngestionService

	// Tools lists the external analysis tools. Optional.
	Tools driving.ToolCatalog

	// DataDir is ingested when the ingest tool is called without a path.
	DataDir string

	// Version is reported to clients during initialisation.
	Version string
}

// Validate reports the first missing required port.
func (p *Ports) Validate() error {
	if p.Search == nil {
		return ErrMissingSearchService
	}
	if p.Chat == nil {
		return ErrMissingChatService
	}
	return nil
}
