// Package messages defines Bubbletea message types for the TUI.
// Messages represent events and commands that flow through the Elm architecture.
package messages

import (
	"github.com/givemeone1astkiss/ribo/internal/core/domain"
	"github.com/givemeone1astkiss/ribo/internal/core/ports/driving"
)

// ViewChanged is sent when navigating between views.
type ViewChanged struct {
	View ViewType
}

// ViewType identifies which view is currently active.
type ViewType int

const (
	// ViewMenu is the main navigation menu.
	ViewMenu ViewType = iota
	// ViewChat is the conversation with the assistant.
	ViewChat
	// ViewSearch is the literature search view.
	ViewSearch
	// ViewDocuments lists indexed documents.
	ViewDocuments
	// ViewHelp is the help/keybindings view.
	ViewHelp
)

// String returns the string representation of the view type.
func (v ViewType) String() string {
	switch v {
	case ViewMenu:
		return "menu"
	case ViewChat:
		return "chat"
	case ViewSearch:
		return "search"
	case ViewDocuments:
		return "documents"
	case ViewHelp:
		return "help"
	default:
		return "unknown"
	}
}

// StreamStarted carries the handle of a new chat stream.
type StreamStarted struct {
	Handle *driving.StreamHandle
	Err    error
}

// StreamEvent carries one event read from a chat stream. Closed is set
// when the channel was closed without a further event.
type StreamEvent struct {
	RequestID string
	Event     domain.StreamEvent
	Closed    bool
}

// SearchCompleted carries search results back to the model.
type SearchCompleted struct {
	Results []domain.SearchResult
	Err     error
}

// DocumentsLoaded carries the indexed documents.
type DocumentsLoaded struct {
	Documents []domain.DocumentSummary
	Err       error
}

// DocumentRemoved signals a document was removed from the index.
type DocumentRemoved struct {
	SourcePath string
	Err        error
}

// IngestCompleted carries the result of an ingestion run.
type IngestCompleted struct {
	Report *driving.IngestReport
	Err    error
}

// ErrorOccurred signals that an error happened.
type ErrorOccurred struct {
	Err error
}

// Quit signals the application should exit.
type Quit struct{}
