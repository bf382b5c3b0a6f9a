package tui

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/givemeone1astkiss/ribo/internal/core/domain"
	"github.com/givemeone1astkiss/ribo/internal/core/ports/driving"
)

// MockSearchService implements driving.SearchService for testing.
type MockSearchService struct {
	SearchFunc func(
		ctx context.Context, query string, opts domain.SearchOptions,
	) ([]domain.SearchResult, error)
}

func (m *MockSearchService) Search(
	ctx context.Context, query string, opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, query, opts)
	}
	return nil, nil
}

// MockChatService implements driving.ChatService for testing.
// Every stream answers with a single complete event.
type MockChatService struct {
	Answer    string
	Cancelled bool
}

func (m *MockChatService) Chat(context.Context, domain.ChatRequest) (*domain.ChatResponse, error) {
	return &domain.ChatResponse{Response: m.Answer}, nil
}

func (m *MockChatService) ChatStream(context.Context, domain.ChatRequest) (*driving.StreamHandle, error) {
	ch := make(chan domain.StreamEvent, 1)
	ch <- domain.StreamEvent{
		Type:     domain.EventComplete,
		Response: &domain.ChatResponse{Response: m.Answer, Label: domain.LabelRNADesign},
	}
	close(ch)
	return &driving.StreamHandle{ID: "req-1", Events: ch, Cancel: func() { m.Cancelled = true }}, nil
}

func (m *MockChatService) Cancel(string) bool { return false }

// MockIngestionService implements driving.IngestionService for testing.
type MockIngestionService struct {
	Docs []domain.DocumentSummary
}

func (m *MockIngestionService) IngestDirectory(context.Context, string) (*driving.IngestReport, error) {
	return &driving.IngestReport{}, nil
}

func (m *MockIngestionService) IngestFile(context.Context, string) (*domain.Document, bool, error) {
	return nil, false, nil
}

func (m *MockIngestionService) Remove(context.Context, string) error { return nil }

func (m *MockIngestionService) List(context.Context) ([]domain.DocumentSummary, error) {
	return m.Docs, nil
}

func (m *MockIngestionService) ListImages(context.Context) ([]domain.ImageSummary, error) {
	return nil, nil
}

func (m *MockIngestionService) Stats(context.Context) (*driving.IndexStats, error) {
	return &driving.IndexStats{}, nil
}

func (m *MockIngestionService) CheckConsistency(context.Context) ([]driving.Inconsistency, error) {
	return nil, nil
}

func (m *MockIngestionService) IsIndexing() bool { return false }

func TestNewPorts(t *testing.T) {
	chat := &MockChatService{}
	search := &MockSearchService{}

	ports := NewPorts(chat, search)

	require.NotNil(t, ports)
	assert.Equal(t, chat, ports.Chat)
	assert.Equal(t, search, ports.Search)
	assert.Nil(t, ports.Ingestion)
	assert.NoError(t, ports.Validate())
}

func TestPorts_Validate(t *testing.T) {
	tests := []struct {
		name  string
		ports *Ports
		want  error
	}{
		{"nil ports", nil, ErrInvalidPorts},
		{"missing chat", &Ports{Search: &MockSearchService{}}, ErrMissingChatService},
		{"missing search", &Ports{Chat: &MockChatService{}}, ErrMissingSearchService},
		{"optional ports unset", &Ports{Chat: &MockChatService{}, Search: &MockSearchService{}}, nil},
		{"all ports", &Ports{
			Chat:      &MockChatService{},
			Search:    &MockSearchService{},
			Ingestion: &MockIngestionService{},
			DataDir:   "/data",
		}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ports.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
