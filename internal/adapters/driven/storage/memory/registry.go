package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/givemeone1astkiss/ribo/internal/core/domain"
	"github.com/givemeone1astkiss/ribo/internal/core/ports/driven"
)

// Ensure Registry implements the interface.
var _ driven.DocumentRegistry = (*Registry)(nil)

// Registry is an in-memory implementation of driven.DocumentRegistry.
type Registry struct {
	mu   sync.RWMutex
	docs map[string]domain.Document
}

// NewRegistry creates a new in-memory document registry.
func NewRegistry() *Registry {
	return &Registry{docs: make(map[string]domain.Document)}
}

// Add registers a document unless its hash is already present.
func (r *Registry) Add(_ context.Context, doc *domain.Document) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[doc.ID]; ok {
		return false, nil
	}
	r.docs[doc.ID] = *doc
	return true, nil
}

// Exists reports whether a hash is registered.
func (r *Registry) Exists(_ context.Context, hash string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.docs[hash]
	return ok, nil
}

// Get returns a document by hash.
func (r *Registry) Get(_ context.Context, hash string) (*domain.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[hash]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

// GetBySource returns the latest document ingested from path.
func (r *Registry) GetBySource(_ context.Context, sourcePath string) (*domain.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var latest *domain.Document
	for _, doc := range r.docs {
		if doc.SourcePath == sourcePath && (latest == nil || doc.IngestedAt.After(latest.IngestedAt)) {
			latest = &doc
		}
	}
	if latest == nil {
		return nil, domain.ErrNotFound
	}
	return latest, nil
}

// List returns every registered document, oldest first.
func (r *Registry) List(_ context.Context) ([]domain.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	docs := make([]domain.Document, 0, len(r.docs))
	for _, doc := range r.docs {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].IngestedAt.Equal(docs[j].IngestedAt) {
			return docs[i].IngestedAt.Before(docs[j].IngestedAt)
		}
		return docs[i].SourcePath < docs[j].SourcePath
	})
	return docs, nil
}

// Remove unregisters a document by hash.
func (r *Registry) Remove(_ context.Context, hash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[hash]; !ok {
		return false, nil
	}
	delete(r.docs, hash)
	return true, nil
}
