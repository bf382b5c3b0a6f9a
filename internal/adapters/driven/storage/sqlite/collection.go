package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"sync"

	"github.com/givemeone1astkiss/ribo/internal/adapters/driven/storage/vecmath"
	"github.com/givemeone1astkiss/ribo/internal/core/domain"
	"github.com/givemeone1astkiss/ribo/internal/core/ports/driven"
)

// collection implements driven.VectorCollection over the units table.
type collection struct {
	store *Store
	name  string

	mu      sync.RWMutex
	loaded  bool
	dims    int
	records map[string]driven.VectorRecord
}

var _ driven.VectorCollection = (*collection)(nil)

// Name returns the collection name.
func (c *collection) Name() string {
	return c.name
}

// load fills the cache from the database. Callers hold c.mu for writing.
func (c *collection) load(ctx context.Context) error {
	if c.loaded {
		return nil
	}

	var dims int
	err := c.store.db.QueryRowContext(ctx,
		"SELECT dimensions FROM collections WHERE name = ?", c.name).Scan(&dims)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("reading %s dimensions: %w", c.name, err)
	}

	rows, err := c.store.db.QueryContext(ctx,
		"SELECT id, document_id, content, metadata, embedding FROM units WHERE collection = ?", c.name)
	if err != nil {
		return fmt.Errorf("querying %s: %w", c.name, err)
	}
	defer rows.Close()

	records := make(map[string]driven.VectorRecord)
	for rows.Next() {
		var rec driven.VectorRecord
		var metadataJSON string
		var blob []byte
		if err := rows.Scan(&rec.ID, &rec.DocumentID, &rec.Content, &metadataJSON, &blob); err != nil {
			return fmt.Errorf("scanning %s unit: %w", c.name, err)
		}
		if err := json.Unmarshal([]byte(metadataJSON), &rec.Metadata); err != nil {
			return fmt.Errorf("unmarshalling %s metadata: %w", c.name, err)
		}
		rec.Embedding = decodeVector(blob)
		records[rec.ID] = rec
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating %s: %w", c.name, err)
	}

	c.dims = dims
	c.records = records
	c.loaded = true
	return nil
}

// Upsert inserts or overwrites records by ID inside one transaction.
func (c *collection) Upsert(ctx context.Context, records []driven.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.load(ctx); err != nil {
		return err
	}

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

	tx, err := c.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if c.dims == 0 {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO collections (name, dimensions) VALUES (?, ?)
			ON CONFLICT(name) DO UPDATE SET dimensions = excluded.dimensions
		`, c.name, dims); err != nil {
			return fmt.Errorf("saving %s dimensions: %w", c.name, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO units (collection, id, document_id, content, metadata, embedding)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			document_id = excluded.document_id,
			content = excluded.content,
			metadata = excluded.metadata,
			embedding = excluded.embedding
	`)
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		metadataJSON, err := json.Marshal(rec.Metadata)
		if err != nil {
			return fmt.Errorf("marshalling metadata: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, c.name, rec.ID, rec.DocumentID, rec.Content,
			string(metadataJSON), encodeVector(rec.Embedding)); err != nil {
			return fmt.Errorf("upserting %s unit %s: %w", c.name, rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing %s upsert: %w", c.name, err)
	}

	c.dims = dims
	for _, rec := range records {
		rec.Metadata = maps.Clone(rec.Metadata)
		c.records[rec.ID] = rec
	}
	return nil
}

// Query returns the k nearest records to vector.
func (c *collection) Query(ctx context.Context, vector []float32, k int) ([]driven.VectorHit, error) {
	if err := c.ensureLoaded(ctx); err != nil {
		return nil, err
	}

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
		if err := ctx.Err(); err != nil {
			return nil, err
		}
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
func (c *collection) DeleteDocument(ctx context.Context, documentID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.load(ctx); err != nil {
		return err
	}

	remaining := 0
	for _, rec := range c.records {
		if rec.DocumentID != documentID {
			remaining++
		}
	}

	tx, err := c.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM units WHERE collection = ? AND document_id = ?", c.name, documentID); err != nil {
		return fmt.Errorf("deleting %s units: %w", c.name, err)
	}
	// An emptied collection forgets its dimension so a new embedder can fill it.
	if remaining == 0 {
		if _, err := tx.ExecContext(ctx, "DELETE FROM collections WHERE name = ?", c.name); err != nil {
			return fmt.Errorf("resetting %s dimensions: %w", c.name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing %s delete: %w", c.name, err)
	}

	for id, rec := range c.records {
		if rec.DocumentID == documentID {
			delete(c.records, id)
		}
	}
	if remaining == 0 {
		c.dims = 0
	}
	return nil
}

// CountByDocument returns the number of records per document.
func (c *collection) CountByDocument(ctx context.Context) (map[string]int, error) {
	rows, err := c.store.db.QueryContext(ctx,
		"SELECT document_id, COUNT(*) FROM units WHERE collection = ? GROUP BY document_id", c.name)
	if err != nil {
		return nil, fmt.Errorf("counting %s units: %w", c.name, err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var docID string
		var n int
		if err := rows.Scan(&docID, &n); err != nil {
			return nil, fmt.Errorf("scanning %s count: %w", c.name, err)
		}
		counts[docID] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s counts: %w", c.name, err)
	}
	return counts, nil
}

// Records returns every stored record without its embedding, ordered by ID.
func (c *collection) Records(ctx context.Context) ([]driven.VectorRecord, error) {
	rows, err := c.store.db.QueryContext(ctx,
		"SELECT id, document_id, content, metadata FROM units WHERE collection = ? ORDER BY id", c.name)
	if err != nil {
		return nil, fmt.Errorf("listing %s units: %w", c.name, err)
	}
	defer rows.Close()

	var records []driven.VectorRecord
	for rows.Next() {
		var rec driven.VectorRecord
		var metadataJSON string
		if err := rows.Scan(&rec.ID, &rec.DocumentID, &rec.Content, &metadataJSON); err != nil {
			return nil, fmt.Errorf("scanning %s unit: %w", c.name, err)
		}
		if err := json.Unmarshal([]byte(metadataJSON), &rec.Metadata); err != nil {
			return nil, fmt.Errorf("decoding metadata of %s: %w", rec.ID, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s units: %w", c.name, err)
	}
	return records, nil
}

// Dimensions returns the learned dimension, or 0 while empty.
func (c *collection) Dimensions() int {
	if err := c.ensureLoaded(context.Background()); err != nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dims
}

func (c *collection) ensureLoaded(ctx context.Context) error {
	c.mu.RLock()
	loaded := c.loaded
	c.mu.RUnlock()
	if loaded {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load(ctx)
}
