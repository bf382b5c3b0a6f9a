package driving

import (
	"context"

	"github.com/givemeone1astkiss/ribo/internal/core/domain"
)

// ChatService answers conversational requests.
type ChatService interface {
	// Chat runs one request to completion and returns the formatted response.
	Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error)

	// ChatStream starts one request and returns a handle to its events.
	// The events channel always ends with one complete or error event.
	ChatStream(ctx context.Context, req domain.ChatRequest) (*StreamHandle, error)

	// Cancel stops an in-flight streaming request. Returns false if unknown.
	Cancel(requestID string) bool
}

// StreamHandle is a running streaming request.
type StreamHandle struct {
	// ID identifies the request for Cancel.
	ID string

	// Events delivers tokens, tool status and the terminal event.
	Events <-chan domain.StreamEvent

	// Cancel stops the request. Safe to call more than once.
	Cancel func()
}

// MemoryService exposes the shared conversation memory.
type MemoryService interface {
	// Entries returns the retained exchanges, oldest first.
	Entries() []domain.MemoryEntry

	// Clear drops every entry.
	Clear()
}
