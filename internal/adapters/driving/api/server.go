// Package api serves ribo over HTTP: JSON endpoints for chat, search and
// index management, and server-sent events for streaming chat.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/givemeone1astkiss/ribo/internal/core/ports/driving"
	"github.com/givemeone1astkiss/ribo/internal/logger"
)

// ErrMissingChatService is returned when the chat port is nil.
var ErrMissingChatService = errors.New("chat service is required")

// ErrMissingSearchService is returned when the search port is nil.
var ErrMissingSearchService = errors.New("search service is required")

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 5 * time.Second

// Ports aggregates the driving ports the API exposes.
type Ports struct {
	Chat      driving.ChatService
	Search    driving.SearchService
	Ingestion driving.IngestionService // Optional
	Tools     driving.ToolCatalog      // Optional
	Memory    driving.MemoryService    // Optional

	// DataDir is what POST /api/ingest indexes.
	DataDir string
}

// Validate ensures the required ports are set.
func (p *Ports) Validate() error {
	if p.Chat == nil {
		return ErrMissingChatService
	}
	if p.Search == nil {
		return ErrMissingSearchService
	}
	return nil
}

// Server is the HTTP API.
type Server struct {
	ports *Ports
	mux   *http.ServeMux
}

// NewServer creates a server and registers its routes.
func NewServer(ports *Ports) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, err
	}

	s := &Server{ports: ports, mux: http.NewServeMux()}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("POST /api/chat", s.handleChat)
	s.mux.HandleFunc("POST /api/chat/cancel", s.handleCancel)
	s.mux.HandleFunc("POST /api/ingest", s.handleIngest)
	s.mux.HandleFunc("GET /api/ingest/status", s.handleIngestStatus)
	s.mux.HandleFunc("POST /api/search", s.handleSearch)
	s.mux.HandleFunc("GET /api/documents", s.handleListDocuments)
	s.mux.HandleFunc("DELETE /api/documents", s.handleRemoveDocument)
	s.mux.HandleFunc("GET /api/images", s.handleListImages)
	s.mux.HandleFunc("GET /api/stats", s.handleStats)
	s.mux.HandleFunc("GET /api/tools", s.handleTools)
	s.mux.HandleFunc("GET /api/memory", s.handleMemory)
	s.mux.HandleFunc("DELETE /api/memory", s.handleClearMemory)
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run listens on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		httpServer.Shutdown(shutdownCtx) //nolint:errcheck
	}()

	logger.Info("API listening on %s", addr)
	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
