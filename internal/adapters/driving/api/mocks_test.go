package api

import (
	"context"
	"sync"

	"github.com/givemeone1astkiss/ribo/internal/core/domain"
	"github.com/givemeone1astkiss/ribo/internal/core/ports/driving"
)

type mockChatService struct {
	response *domain.ChatResponse
	events   []domain.StreamEvent
	err      error

	// hold keeps the stream open after events until the context ends.
	hold bool

	mu        sync.Mutex
	cancelled []string
	ctxDone   chan struct{}
}

func (m *mockChatService) Chat(_ context.Context, _ domain.ChatRequest) (*domain.ChatResponse, error) {
	return m.response, m.err
}

func (m *mockChatService) ChatStream(ctx context.Context, _ domain.ChatRequest) (*driving.StreamHandle, error) {
	if m.err != nil {
		return nil, m.err
	}
	ctx, cancel := context.WithCancel(ctx)
	events := make(chan domain.StreamEvent)
	go func() {
		defer close(events)
		for _, e := range m.events {
			select {
			case events <- e:
			case <-ctx.Done():
				return
			}
		}
		if m.hold {
			<-ctx.Done()
			if m.ctxDone != nil {
				close(m.ctxDone)
			}
		}
	}()
	return &driving.StreamHandle{ID: "req-1", Events: events, Cancel: cancel}, nil
}

func (m *mockChatService) Cancel(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled = append(m.cancelled, id)
	return id == "req-1"
}

type mockSearchService struct {
	results  []domain.SearchResult
	err      error
	lastOpts domain.SearchOptions
}

func (m *mockSearchService) Search(_ context.Context, _ string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	m.lastOpts = opts
	return m.results, m.err
}

type mockIngestionService struct {
	docs     []domain.DocumentSummary
	images   []domain.ImageSummary
	report   *driving.IngestReport
	stats    *driving.IndexStats
	indexing bool
	err      error
	lastPath string
}

func (m *mockIngestionService) IngestDirectory(_ context.Context, dir string) (*driving.IngestReport, error) {
	m.lastPath = dir
	return m.report, m.err
}

func (m *mockIngestionService) IngestFile(_ context.Context, path string) (*domain.Document, bool, error) {
	return nil, false, m.err
}

func (m *mockIngestionService) Remove(_ context.Context, path string) error {
	m.lastPath = path
	return m.err
}

func (m *mockIngestionService) List(_ context.Context) ([]domain.DocumentSummary, error) {
	return m.docs, m.err
}

func (m *mockIngestionService) ListImages(_ context.Context) ([]domain.ImageSummary, error) {
	return m.images, m.err
}

func (m *mockIngestionService) Stats(_ context.Context) (*driving.IndexStats, error) {
	return m.stats, m.err
}

func (m *mockIngestionService) CheckConsistency(_ context.Context) ([]driving.Inconsistency, error) {
	return nil, m.err
}

func (m *mockIngestionService) IsIndexing() bool {
	return m.indexing
}

type mockMemory struct {
	entries []domain.MemoryEntry
	cleared bool
}

func (m *mockMemory) Entries() []domain.MemoryEntry { return m.entries }

func (m *mockMemory) Clear() {
	m.cleared = true
	m.entries = nil
}

type mockToolCatalog struct {
	tools []domain.ToolDescriptor
}

func (m *mockToolCatalog) List() []domain.ToolDescriptor { return m.tools }

func (m *mockToolCatalog) Get(id domain.ToolID) (domain.ToolDescriptor, bool) {
	for _, t := range m.tools {
		if t.ID == id {
			return t, true
		}
	}
	return domain.ToolDescriptor{}, false
}
