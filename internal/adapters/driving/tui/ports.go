// Package tui is the full-screen terminal front end: a menu, the chat
// conversation, literature search and the document list.
package tui

import (
	"errors"

	"github.com/givemeone1astkiss/ribo/internal/core/ports/driving"
)

// Errors returned by Ports.Validate.
var (
	ErrInvalidPorts         = errors.New("tui: invalid ports configuration")
	ErrMissingChatService   = errors.New("tui: chat service is required")
	ErrMissingSearchService = errors.New("tui: search service is required")
)

// Ports are the services the TUI drives. Chat and Search are required;
// without Ingestion the documents view shows an error, and without Memory
// clearing the conversation is a no-op.
type Ports struct {
	Chat      driving.ChatService
	Search    driving.SearchService
	Ingestion driving.IngestionService
	Memory    driving.MemoryService

	// DataDir is what the documents view ingests.
	DataDir string
}

// NewPorts returns Ports with the two required services set.
func NewPorts(chat driving.ChatService, search driving.SearchService) *Ports {
	return &Ports{Chat: chat, Search: search}
}

// Validate reports the first missing required service.
func (p *Ports) Validate() error {
	switch {
	case p == nil:
		return ErrInvalidPorts
	case p.Chat == nil:
		return ErrMissingChatService
	case p.Search == nil:
		return ErrMissingSearchService
	}
	return nil
}
