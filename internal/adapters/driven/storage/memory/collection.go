package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/givemeone1astkiss/ribo/internal/adapters/driven/storage/vecmath"
	"github.com/givemeone1astkiss/ribo/internal/core/domain"
	"github.com/givemeone1astkiss/ribo/internal/core/ports/driven"
)

// Ensure Collection and Index implement the interfaces.
var (
	_ driven.VectorCollection = (*Collection)(nil)
	_ driven.VectorIndex      = (*Index)(nil)
)

// Collection is an in-memory driven.VectorCollection with brute-force cosine search.
type Collection struct {
	mu      sync.RWMutex
	name    string
	dims    int
	records map[string]driven.VectorRecord
}

// NewCollection creates an empty collection.
func NewCollection(name string) *Collection {
	return &Collection{
		name:    name,
		records: make(map[string]driven.VectorRecord),
	}
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.name
}

// Upsert inserts or overwrites records by ID.
func (c *Collection) Upsert(_ context.Context, records []driven.VectorRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	dims := c.dims
	for _, rec := range records {
		if dims == 0 {
			dims = len(rec.Embedding)
		}
		if len(rec.Embedding) != dims {
			return fmt.Errorf("%s: record %s has %d dimensions, want %d: %w",
				c.name, rec.ID, len(rec.Embedding), dims, domain.ErrDimensionMismatch)
		}
	}

	c.dims = dims
	for _, rec := range records {
		rec.Metadata = maps.Clone(rec.Metadata)
		c.records[rec.ID] = rec
	}
	return nil
}

// Query returns the k nearest records to vector.
func (c *Collection) Query(_ context.Context, vector []float32, k int) ([]driven.VectorHit, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.records) == 0 {
		return nil, nil
	}
	if len(vector) != c.dims {
		return nil, fmt.Errorf("%s: query has %d dimensions, want %d: %w",
			c.name, len(vector), c.dims, domain.ErrDimensionMismatch)
	}

	hits := make([]driven.VectorHit, 0, len(c.records))
	for _, rec := range c.records {
		hits = append(hits, driven.VectorHit{
			ID:         rec.ID,
			DocumentID: rec.DocumentID,
			Content:    rec.Content,
			Metadata:   maps.Clone(rec.Metadata),
			Distance:   vecmath.Distance(vector, rec.Embedding),
		})
	}
	return vecmath.TopK(hits, k), nil
}

// DeleteDocument removes every record of a document.
func (c *Collection) DeleteDocument(_ context.Context, documentID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, rec := range c.records {
		if rec.DocumentID == documentID {
			delete(c.records, id)
		}
	}
	if len(c.records) == 0 {
		c.dims = 0
	}
	return nil
}

// CountByDocument returns the number of records per document.
func (c *Collection) CountByDocument(_ context.Context) (map[string]int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	counts := make(map[string]int)
	for _, rec := range c.records {
		counts[rec.DocumentID]++
	}
	return counts, nil
}

// Records returns every stored record without its embedding, ordered by ID.
func (c *Collection) Records(_ context.Context) ([]driven.VectorRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]driven.VectorRecord, 0, len(c.records))
	for _, id := range slices.Sorted(maps.Keys(c.records)) {
		rec := c.records[id]
		rec.Metadata = maps.Clone(rec.Metadata)
		rec.Embedding = nil
		out = append(out, rec)
	}
	return out, nil
}

// Dimensions returns the learned dimension, or 0 when empty.
func (c *Collection) Dimensions() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dims
}

// Index pairs in-memory text and image collections.
type Index struct {
	text  *Collection
	image *Collection
}

// NewIndex creates an empty in-memory index.
func NewIndex() *Index {
	return &Index{
		text:  NewCollection("text_units"),
		image: NewCollection("image_units"),
	}
}

// Text returns the text unit collection.
func (i *Index) Text() driven.VectorCollection { return i.text }

// Image returns the image unit collection.
func (i *Index) Image() driven.VectorCollection { return i.image }

// Close is a no-op.
func (i *Index) Close() error { return nil }
