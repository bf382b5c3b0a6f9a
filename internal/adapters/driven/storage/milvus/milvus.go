// Package milvus provides text and image collections backed by a Milvus server.
//
// Each collection maps to one Milvus collection with a VarChar primary key,
// the owning document ID, the unit content, JSON metadata and a float vector
// indexed with HNSW under the cosine metric. Collections are created lazily
// on the first upsert, when the embedding dimension becomes known.
package milvus

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/givemeone1astkiss/ribo/internal/core/domain"
	"github.com/givemeone1astkiss/ribo/internal/core/ports/driven"
	"github.com/givemeone1astkiss/ribo/internal/logger"
)

// Field names of every ribo collection.
const (
	FieldID         = "id"
	FieldDocumentID = "document_id"
	FieldContent    = "content"
	FieldMetadata   = "metadata"
	FieldVector     = "vector"
)

// Collection names used by the index.
const (
	TextCollection  = "ribo_text"
	ImageCollection = "ribo_image"
)

const (
	maxIDLength      = 256
	maxContentLength = 65535
	hnswM            = 16
	hnswEfConstruct  = 200
	hnswEfSearch     = 100
)

// Ensure Index implements the interface.
var (
	_ driven.VectorIndex      = (*Index)(nil)
	_ driven.VectorCollection = (*Collection)(nil)
)

// Index pairs the Milvus text and image collections over one client.
type Index struct {
	client client.Client
	text   *Collection
	image  *Collection
}

// NewIndex connects to Milvus at addr.
func NewIndex(ctx context.Context, addr string) (*Index, error) {
	c, err := client.NewClient(ctx, client.Config{Address: addr})
	if err != nil {
		return nil, goerr.Wrap(err, "connect to milvus", goerr.V("address", addr))
	}
	logger.Info("connected to milvus at %s", addr)
	return &Index{
		client: c,
		text:   &Collection{client: c, name: TextCollection},
		image:  &Collection{client: c, name: ImageCollection},
	}, nil
}

// Text returns the text unit collection.
func (i *Index) Text() driven.VectorCollection { return i.text }

// Image returns the image unit collection.
func (i *Index) Image() driven.VectorCollection { return i.image }

// Close closes the Milvus connection.
func (i *Index) Close() error {
	return i.client.Close()
}

// Collection is one Milvus collection.
type Collection struct {
	client client.Client
	name   string

	mu    sync.Mutex
	dims  int
	ready bool
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.name
}

// ensure creates the collection if needed and learns its dimension.
// With dims 0 an absent collection is left absent.
func (c *Collection) ensure(ctx context.Context, dims int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ready {
		return nil
	}

	exists, err := c.client.HasCollection(ctx, c.name)
	if err != nil {
		return goerr.Wrap(err, "check milvus collection", goerr.V("collection", c.name))
	}

	if exists {
		coll, err := c.client.DescribeCollection(ctx, c.name)
		if err != nil {
			return goerr.Wrap(err, "describe milvus collection", goerr.V("collection", c.name))
		}
		c.dims = vectorDims(coll.Schema)
	} else {
		if dims == 0 {
			return nil
		}
		if err := c.client.CreateCollection(ctx, Schema(c.name, dims), 1); err != nil {
			return goerr.Wrap(err, "create milvus collection", goerr.V("collection", c.name))
		}
		idx, err := entity.NewIndexHNSW(entity.COSINE, hnswM, hnswEfConstruct)
		if err != nil {
			return goerr.Wrap(err, "build hnsw index")
		}
		if err := c.client.CreateIndex(ctx, c.name, FieldVector, idx, false); err != nil {
			return goerr.Wrap(err, "create milvus index", goerr.V("collection", c.name))
		}
		c.dims = dims
		logger.Info("created milvus collection %s (dim %d)", c.name, dims)
	}

	if err := c.client.LoadCollection(ctx, c.name, false); err != nil {
		return goerr.Wrap(err, "load milvus collection", goerr.V("collection", c.name))
	}
	c.ready = true
	return nil
}

// Upsert inserts or overwrites records by ID.
func (c *Collection) Upsert(ctx context.Context, records []driven.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := c.ensure(ctx, len(records[0].Embedding)); err != nil {
		return err
	}

	columns, err := Columns(records, c.Dimensions())
	if err != nil {
		return fmt.Errorf("%s: %w", c.name, err)
	}
	if _, err := c.client.Upsert(ctx, c.name, "", columns...); err != nil {
		return goerr.Wrap(err, "milvus upsert", goerr.V("collection", c.name), goerr.V("records", len(records)))
	}
	if err := c.client.Flush(ctx, c.name, false); err != nil {
		return goerr.Wrap(err, "milvus flush", goerr.V("collection", c.name))
	}
	return nil
}

// Query returns the k nearest records to vector.
func (c *Collection) Query(ctx context.Context, vector []float32, k int) ([]driven.VectorHit, error) {
	if err := c.ensure(ctx, 0); err != nil {
		return nil, err
	}
	if !c.isReady() {
		return nil, nil
	}
	if dims := c.Dimensions(); len(vector) != dims {
		return nil, fmt.Errorf("%s: query has %d dimensions, want %d: %w",
			c.name, len(vector), dims, domain.ErrDimensionMismatch)
	}

	sp, err := entity.NewIndexHNSWSearchParam(hnswEfSearch)
	if err != nil {
		return nil, goerr.Wrap(err, "build search params")
	}
	results, err := c.client.Search(
		ctx,
		c.name,
		[]string{},
		"",
		[]string{FieldID, FieldDocumentID, FieldContent, FieldMetadata},
		[]entity.Vector{entity.FloatVector(vector)},
		FieldVector,
		entity.COSINE,
		k,
		sp,
	)
	if err != nil {
		return nil, goerr.Wrap(err, "milvus search", goerr.V("collection", c.name))
	}
	if len(results) == 0 {
		return nil, nil
	}
	return Hits(results[0]), nil
}

// DeleteDocument removes every record of a document.
func (c *Collection) DeleteDocument(ctx context.Context, documentID string) error {
	if err := c.ensure(ctx, 0); err != nil {
		return err
	}
	if !c.isReady() {
		return nil
	}
	if err := c.client.Delete(ctx, c.name, "", DocumentFilter(documentID)); err != nil {
		return goerr.Wrap(err, "milvus delete", goerr.V("collection", c.name), goerr.V("document", documentID))
	}

	// The schema fixes the dimension, so an emptied collection is dropped and
	// recreated by the next upsert.
	counts, err := c.CountByDocument(ctx)
	if err != nil || len(counts) > 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.client.DropCollection(ctx, c.name); err != nil {
		logger.Warn("dropping empty milvus collection %s: %v", c.name, err)
		return nil
	}
	c.ready, c.dims = false, 0
	return nil
}

// CountByDocument returns the number of records per document.
func (c *Collection) CountByDocument(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int)
	if err := c.ensure(ctx, 0); err != nil {
		return nil, err
	}
	if !c.isReady() {
		return counts, nil
	}

	rs, err := c.client.Query(ctx, c.name, []string{}, FieldDocumentID+` != ""`, []string{FieldDocumentID})
	if err != nil {
		return nil, goerr.Wrap(err, "milvus query", goerr.V("collection", c.name))
	}
	if col, ok := rs.GetColumn(FieldDocumentID).(*entity.ColumnVarChar); ok {
		for _, id := range col.Data() {
			counts[id]++
		}
	}
	return counts, nil
}

// Records returns every stored record without its embedding.
func (c *Collection) Records(ctx context.Context) ([]driven.VectorRecord, error) {
	if err := c.ensure(ctx, 0); err != nil {
		return nil, err
	}
	if !c.isReady() {
		return nil, nil
	}

	rs, err := c.client.Query(ctx, c.name, []string{}, FieldID+` != ""`,
		[]string{FieldID, FieldDocumentID, FieldContent, FieldMetadata})
	if err != nil {
		return nil, goerr.Wrap(err, "milvus query", goerr.V("collection", c.name))
	}
	return Rows(rs), nil
}

// Dimensions returns the learned dimension, or 0 before the first upsert.
func (c *Collection) Dimensions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dims
}

func (c *Collection) isReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

// Schema builds the collection schema for the given vector dimension.
func Schema(name string, dims int) *entity.Schema {
	return &entity.Schema{
		CollectionName: name,
		Description:    "ribo literature units",
		Fields: []*entity.Field{
			{
				Name:       FieldID,
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{"max_length": strconv.Itoa(maxIDLength)},
			},
			{
				Name:       FieldDocumentID,
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": strconv.Itoa(maxIDLength)},
			},
			{
				Name:       FieldContent,
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": strconv.Itoa(maxContentLength)},
			},
			{
				Name:     FieldMetadata,
				DataType: entity.FieldTypeJSON,
			},
			{
				Name:       FieldVector,
				DataType:   entity.FieldTypeFloatVector,
				TypeParams: map[string]string{"dim": strconv.Itoa(dims)},
			},
		},
	}
}

// Columns converts records to insert columns, checking every vector against dims.
func Columns(records []driven.VectorRecord, dims int) ([]entity.Column, error) {
	ids := make([]string, 0, len(records))
	docs := make([]string, 0, len(records))
	contents := make([]string, 0, len(records))
	metas := make([][]byte, 0, len(records))
	vectors := make([][]float32, 0, len(records))

	for _, rec := range records {
		if len(rec.Embedding) != dims {
			return nil, fmt.Errorf("record %s has %d dimensions, want %d: %w",
				rec.ID, len(rec.Embedding), dims, domain.ErrDimensionMismatch)
		}
		meta, err := json.Marshal(rec.Metadata)
		if err != nil {
			return nil, fmt.Errorf("marshalling metadata: %w", err)
		}
		ids = append(ids, rec.ID)
		docs = append(docs, rec.DocumentID)
		contents = append(contents, truncate(rec.Content, maxContentLength))
		metas = append(metas, meta)
		vectors = append(vectors, rec.Embedding)
	}

	return []entity.Column{
		entity.NewColumnVarChar(FieldID, ids),
		entity.NewColumnVarChar(FieldDocumentID, docs),
		entity.NewColumnVarChar(FieldContent, contents),
		entity.NewColumnJSONBytes(FieldMetadata, metas),
		entity.NewColumnFloatVector(FieldVector, dims, vectors),
	}, nil
}

// Hits converts one Milvus search result into vector hits.
// Milvus reports cosine similarity as the score; distance is 1 - score.
func Hits(res client.SearchResult) []driven.VectorHit {
	ids, ok := res.IDs.(*entity.ColumnVarChar)
	if !ok {
		return nil
	}
	docs, _ := res.Fields.GetColumn(FieldDocumentID).(*entity.ColumnVarChar)
	contents, _ := res.Fields.GetColumn(FieldContent).(*entity.ColumnVarChar)
	metas, _ := res.Fields.GetColumn(FieldMetadata).(*entity.ColumnJSONBytes)

	hits := make([]driven.VectorHit, 0, res.ResultCount)
	for i := 0; i < res.ResultCount && i < len(ids.Data()); i++ {
		hit := driven.VectorHit{ID: ids.Data()[i]}
		if docs != nil && i < len(docs.Data()) {
			hit.DocumentID = docs.Data()[i]
		}
		if contents != nil && i < len(contents.Data()) {
			hit.Content = contents.Data()[i]
		}
		if metas != nil && i < len(metas.Data()) {
			_ = json.Unmarshal(metas.Data()[i], &hit.Metadata)
		}
		if i < len(res.Scores) {
			hit.Distance = 1 - float64(res.Scores[i])
		}
		hits = append(hits, hit)
	}
	return hits
}

// Rows converts a Milvus query result into records without embeddings.
func Rows(rs client.ResultSet) []driven.VectorRecord {
	ids, ok := rs.GetColumn(FieldID).(*entity.ColumnVarChar)
	if !ok {
		return nil
	}
	docs, _ := rs.GetColumn(FieldDocumentID).(*entity.ColumnVarChar)
	contents, _ := rs.GetColumn(FieldContent).(*entity.ColumnVarChar)
	metas, _ := rs.GetColumn(FieldMetadata).(*entity.ColumnJSONBytes)

	records := make([]driven.VectorRecord, 0, len(ids.Data()))
	for i, id := range ids.Data() {
		rec := driven.VectorRecord{ID: id}
		if docs != nil && i < len(docs.Data()) {
			rec.DocumentID = docs.Data()[i]
		}
		if contents != nil && i < len(contents.Data()) {
			rec.Content = contents.Data()[i]
		}
		if metas != nil && i < len(metas.Data()) {
			_ = json.Unmarshal(metas.Data()[i], &rec.Metadata)
		}
		records = append(records, rec)
	}
	return records
}

// DocumentFilter builds the boolean expression selecting one document.
func DocumentFilter(documentID string) string {
	escaped := strings.ReplaceAll(documentID, `"`, `\"`)
	return fmt.Sprintf(`%s == "%s"`, FieldDocumentID, escaped)
}

func vectorDims(schema *entity.Schema) int {
	if schema == nil {
		return 0
	}
	for _, f := range schema.Fields {
		if f.DataType == entity.FieldTypeFloatVector {
			d, _ := strconv.Atoi(f.TypeParams["dim"])
			return d
		}
	}
	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	// Cut on a rune boundary.
	for n > 0 && !utf8RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func utf8RuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
