package mcp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/givemeone1astkiss/ribo/internal/core/domain"
	"github.com/givemeone1astkiss/ribo/internal/core/ports/driving"
)

// mockSearchService is a mock implementation of driving.SearchService.
type mockSearchService struct {
	results  []domain.SearchResult
	err      error
	lastOpts domain.SearchOptions
}

func (m *mockSearchService) Search(
	_ context.Context,
	_ string,
	opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	m.lastOpts = opts
	return m.results, m.err
}

// mockChatService is a mock implementation of driving.ChatService.
type mockChatService struct {
	response *domain.ChatResponse
	err      error
	lastReq  domain.ChatRequest
}

func (m *mockChatService) Chat(_ context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	m.lastReq = req
	return m.response, m.err
}

func (m *mockChatService) ChatStream(_ context.Context, _ domain.ChatRequest) (*driving.StreamHandle, error) {
	return nil, m.err
}

func (m *mockChatService) Cancel(_ string) bool {
	return false
}

// mockIngestionService is a mock implementation of driving.IngestionService.
type mockIngestionService struct {
	docs     []domain.DocumentSummary
	report   *driving.IngestReport
	added    bool
	err      error
	lastPath string
}

func (m *mockIngestionService) IngestDirectory(_ context.Context, dir string) (*driving.IngestReport, error) {
	m.lastPath = dir
	return m.report, m.err
}

func (m *mockIngestionService) IngestFile(_ context.Context, path string) (*domain.Document, bool, error) {
	m.lastPath = path
	return &domain.Document{SourcePath: path}, m.added, m.err
}

func (m *mockIngestionService) Remove(_ context.Context, _ string) error {
	return m.err
}

func (m *mockIngestionService) List(_ context.Context) ([]domain.DocumentSummary, error) {
	return m.docs, m.err
}

func (m *mockIngestionService) ListImages(_ context.Context) ([]domain.ImageSummary, error) {
	return nil, m.err
}

func (m *mockIngestionService) Stats(_ context.Context) (*driving.IndexStats, error) {
	return &driving.IndexStats{Documents: len(m.docs)}, m.err
}

func (m *mockIngestionService) CheckConsistency(_ context.Context) ([]driving.Inconsistency, error) {
	return nil, m.err
}

func (m *mockIngestionService) IsIndexing() bool {
	return false
}

// mockToolCatalog is a mock implementation of driving.ToolCatalog.
type mockToolCatalog struct {
	tools []domain.ToolDescriptor
}

func (m *mockToolCatalog) List() []domain.ToolDescriptor {
	return m.tools
}

func (m *mockToolCatalog) Get(id domain.ToolID) (domain.ToolDescriptor, bool) {
	for _, t := range m.tools {
		if t.ID == id {
			return t, true
		}
	}
	return domain.ToolDescriptor{}, false
}

func newTestServer(t *testing.T, ports *Ports) *Server {
	t.Helper()
	if ports.Search == nil {
		ports.Search = &mockSearchService{}
	}
	if ports.Chat == nil {
		ports.Chat = &mockChatService{}
	}
	server, err := NewServer(ports)
	require.NoError(t, err)
	return server
}
