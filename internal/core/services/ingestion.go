package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/givemeone1astkiss/ribo/internal/core/domain"
	"github.com/givemeone1astkiss/ribo/internal/core/ports/driven"
	"github.com/givemeone1astkiss/ribo/internal/core/ports/driving"
	"github.com/givemeone1astkiss/ribo/internal/logger"
)

// Ensure IngestionService implements the interface.
var _ driving.IngestionService = (*IngestionService)(nil)

// embedBatchSize is the number of units embedded per EmbedBatch call.
const embedBatchSize = 32

// DefaultImageDPI is the page rendering resolution.
const DefaultImageDPI = 200

// IngestionService builds the literature index from files on disk.
// Writes are serialised; reads never wait on them.
type IngestionService struct {
	normalisers driven.NormaliserRegistry
	pipeline    driven.PostProcessorPipeline
	embedder    driven.EmbeddingService
	index       driven.VectorIndex
	registry    driven.DocumentRegistry

	// Page images (optional)
	rasteriser driven.PageRasteriser
	images     driven.ImageEmbedder
	imagesDir  string
	imageDPI   int

	backend string
	dataDir string

	mu       sync.Mutex
	indexing atomic.Bool
	now      func() time.Time
}

// IngestionOption configures an IngestionService.
type IngestionOption func(*IngestionService)

// WithPageImages enables page image units for PDFs. Images are written
// under dir/<hash>/.
func WithPageImages(rasteriser driven.PageRasteriser, images driven.ImageEmbedder, dir string, dpi int) IngestionOption {
	return func(s *IngestionService) {
		s.rasteriser = rasteriser
		s.images = images
		s.imagesDir = dir
		if dpi > 0 {
			s.imageDPI = dpi
		}
	}
}

// WithIndexInfo sets the backend name and data directory reported by Stats.
func WithIndexInfo(backend, dataDir string) IngestionOption {
	return func(s *IngestionService) {
		s.backend = backend
		s.dataDir = dataDir
	}
}

// NewIngestionService creates an ingestion service.
func NewIngestionService(
	normalisers driven.NormaliserRegistry,
	pipeline driven.PostProcessorPipeline,
	embedder driven.EmbeddingService,
	index driven.VectorIndex,
	registry driven.DocumentRegistry,
	opts ...IngestionOption,
) *IngestionService {
	s := &IngestionService{
		normalisers: normalisers,
		pipeline:    pipeline,
		embedder:    embedder,
		index:       index,
		registry:    registry,
		imageDPI:    DefaultImageDPI,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsIndexing reports whether a directory run is active.
func (s *IngestionService) IsIndexing() bool {
	return s.indexing.Load()
}

// IngestDirectory ingests every supported file under dir, one at a time.
// A failing file is recorded in the report and does not stop the run.
func (s *IngestionService) IngestDirectory(ctx context.Context, dir string) (*driving.IngestReport, error) {
	if !s.indexing.CompareAndSwap(false, true) {
		return nil, domain.ErrIndexingInProgress
	}
	defer s.indexing.Store(false)

	start := s.now()
	paths, err := supportedFiles(dir)
	if err != nil {
		return nil, err
	}
	logger.Info("Ingesting %d files from %s", len(paths), dir)

	report := &driving.IngestReport{}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("ingest %s: %w", dir, err)
		}

		_, added, err := s.IngestFile(ctx, path)
		switch {
		case err != nil:
			logger.Warn("Failed to ingest %s: %v", path, err)
			report.Failed = append(report.Failed, driving.FileFailure{Path: path, Error: err.Error()})
		case added:
			report.Added = append(report.Added, path)
		default:
			report.Skipped = append(report.Skipped, path)
		}
	}

	report.Duration = s.now().Sub(start)
	logger.Info("Ingestion finished: %d added, %d skipped, %d failed",
		len(report.Added), len(report.Skipped), len(report.Failed))
	return report, nil
}

// supportedFiles walks dir and returns supported files in lexical order.
// Hidden files and directories are skipped.
func supportedFiles(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: data directory: %w", domain.ErrInvalidInput, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", domain.ErrInvalidInput, dir)
	}

	var paths []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := domain.FormatFromPath(path); ok {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	return paths, nil
}

// IngestFile ingests one file. Identical content that is already registered
// is a no-op. A file whose content changed replaces its earlier document.
func (s *IngestionService) IngestFile(ctx context.Context, path string) (*domain.Document, bool, error) {
	// 1. DETECT FORMAT
	format, ok := domain.FormatFromPath(path)
	if !ok {
		return nil, false, fmt.Errorf("%s: %w", path, domain.ErrUnsupportedType)
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	// 2. HASH CONTENT
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, false, fmt.Errorf("%w: read %s: %w", domain.ErrIngestion, path, err)
	}
	hash := ContentHash(content)

	s.mu.Lock()
	defer s.mu.Unlock()

	// 3. CHECK REGISTRY
	if existing, err := s.registry.Get(ctx, hash); err == nil {
		logger.Debug("Skipping %s: already ingested as %s", path, existing.SourcePath)
		return existing, false, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, false, fmt.Errorf("check registry: %w", err)
	}
	// The earlier version stays indexed until its replacement is registered.
	stale, err := s.registry.GetBySource(ctx, path)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, false, fmt.Errorf("check registry: %w", err)
	}

	// 4. NORMALISE
	file := &domain.SourceFile{Path: path, Format: format, Hash: hash, Content: content}
	normalised, err := s.normalisers.Normalise(ctx, file)
	if err != nil {
		return nil, false, fmt.Errorf("normalise: %w", err)
	}
	doc := normalised.Document
	doc.ID, doc.SourcePath, doc.Format = hash, path, format

	// 5. CHUNK
	units, err := s.pipeline.Process(ctx, normalised)
	if err != nil {
		return nil, false, fmt.Errorf("%w: post-process %s: %w", domain.ErrIngestion, path, err)
	}

	// 6. EMBED TEXT
	units = s.embedUnits(ctx, units)
	if len(units) == 0 {
		return nil, false, fmt.Errorf("%w: %s produced no text units", domain.ErrIngestion, path)
	}

	// 7. INDEX TEXT
	if err := s.index.Text().Upsert(ctx, textRecords(units)); err != nil {
		s.deleteUnits(ctx, doc.ID)
		return nil, false, fmt.Errorf("%w: index text units: %w", domain.ErrIngestion, err)
	}
	doc.TextUnits = len(units)

	// 8. PAGE IMAGES
	if format == domain.FormatPDF {
		doc.ImageUnits = s.ingestPageImages(ctx, &doc)
	}

	// 9. REGISTER
	doc.IngestedAt = s.now()
	if _, err := s.registry.Add(ctx, &doc); err != nil {
		s.deleteUnits(ctx, doc.ID)
		return nil, false, fmt.Errorf("%w: register %s: %w", domain.ErrIngestion, path, err)
	}

	if stale != nil {
		logger.Info("Content of %s changed, replacing document %s", path, shortHash(stale.ID))
		if err := s.removeLocked(ctx, stale); err != nil {
			logger.Warn("Failed to remove the earlier version of %s: %v", path, err)
		}
	}

	logger.Info("Ingested %s: %d text units, %d image units", filepath.Base(path), doc.TextUnits, doc.ImageUnits)
	return &doc, true, nil
}

// embedUnits embeds units in batches. When a batch fails, its units are
// embedded one by one and the failing ones are dropped.
func (s *IngestionService) embedUnits(ctx context.Context, units []domain.TextUnit) []domain.TextUnit {
	out := make([]domain.TextUnit, 0, len(units))
	for start := 0; start < len(units); start += embedBatchSize {
		batch := units[start:min(start+embedBatchSize, len(units))]
		texts := make([]string, len(batch))
		for i, u := range batch {
			texts[i] = u.Text
		}

		vectors, err := s.embedder.EmbedBatch(ctx, texts)
		if err == nil && len(vectors) == len(batch) {
			for i := range batch {
				batch[i].Embedding = vectors[i]
				out = append(out, batch[i])
			}
			continue
		}
		logger.Debug("Batch embedding failed, retrying per unit: %v", err)

		for _, u := range batch {
			vec, err := s.embedder.Embed(ctx, u.Text)
			if err != nil {
				logger.Warn("%v", fmt.Errorf("%w: unit %s: %w", domain.ErrEmbedding, u.ID, err))
				continue
			}
			u.Embedding = vec
			out = append(out, u)
		}
	}
	return out
}

// ingestPageImages renders, embeds and indexes the pages of a PDF. Any
// failure is logged and leaves the document without (some) images.
func (s *IngestionService) ingestPageImages(ctx context.Context, doc *domain.Document) int {
	if s.rasteriser == nil || s.images == nil || s.imagesDir == "" {
		return 0
	}

	outDir := filepath.Join(s.imagesDir, doc.ID)
	pages, err := s.rasteriser.Rasterise(ctx, doc.SourcePath, outDir, s.imageDPI)
	if err != nil {
		logger.Warn("Rasterising %s failed, continuing without images: %v", filepath.Base(doc.SourcePath), err)
		return 0
	}

	numbers := make([]int, 0, len(pages))
	for n := range pages {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	records := make([]driven.VectorRecord, 0, len(numbers))
	for _, n := range numbers {
		emb, err := s.images.EmbedImage(ctx, driven.ImageInput{
			Path:          pages[n],
			DocumentTitle: doc.DisplayTitle(),
			Page:          n,
		})
		if err != nil {
			logger.Warn("%v", fmt.Errorf("%w: page %d of %s: %w", domain.ErrEmbedding, n, doc.SourcePath, err))
			continue
		}
		unit := domain.ImageUnit{
			ID:          domain.ImageUnitID(doc.ID, n),
			DocumentID:  doc.ID,
			Source:      doc.SourcePath,
			Location:    n,
			ImagePath:   pages[n],
			Description: emb.Description,
			OCRText:     emb.OCRText,
			Embedding:   emb.Vector,
		}
		records = append(records, imageRecord(unit))
	}
	if len(records) == 0 {
		return 0
	}

	if err := s.index.Image().Upsert(ctx, records); err != nil {
		logger.Warn("Indexing page images of %s failed: %v", filepath.Base(doc.SourcePath), err)
		return 0
	}
	return len(records)
}

func textRecords(units []domain.TextUnit) []driven.VectorRecord {
	records := make([]driven.VectorRecord, len(units))
	for i, u := range units {
		records[i] = driven.VectorRecord{
			ID:         u.ID,
			DocumentID: u.DocumentID,
			Content:    u.Text,
			Embedding:  u.Embedding,
			Metadata: map[string]string{
				driven.MetaSource:       u.Source,
				driven.MetaLocation:     strconv.Itoa(u.Location),
				driven.MetaLocationKind: string(u.LocationKind),
				driven.MetaOrdinal:      strconv.Itoa(u.Ordinal),
			},
		}
	}
	return records
}

func imageRecord(u domain.ImageUnit) driven.VectorRecord {
	return driven.VectorRecord{
		ID:         u.ID,
		DocumentID: u.DocumentID,
		Content:    u.Content(),
		Embedding:  u.Embedding,
		Metadata: map[string]string{
			driven.MetaSource:       u.Source,
			driven.MetaLocation:     strconv.Itoa(u.Location),
			driven.MetaLocationKind: string(domain.LocationPage),
			driven.MetaImagePath:    u.ImagePath,
			driven.MetaDescription:  u.Description,
			driven.MetaOCRText:      u.OCRText,
		},
	}
}

// ListImages returns every stored page image, ordered by source and page.
func (s *IngestionService) ListImages(ctx context.Context) ([]domain.ImageSummary, error) {
	records, err := s.index.Image().Records(ctx)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}

	images := make([]domain.ImageSummary, 0, len(records))
	for _, rec := range records {
		images = append(images, imageSummary(rec))
	}
	sort.SliceStable(images, func(i, j int) bool {
		if images[i].Source != images[j].Source {
			return images[i].Source < images[j].Source
		}
		return images[i].Page < images[j].Page
	})
	return images, nil
}

// imageSummary reads an image record back. Records written before the
// description and OCR keys existed carry both in Content only.
func imageSummary(rec driven.VectorRecord) domain.ImageSummary {
	page, _ := strconv.Atoi(rec.Metadata[driven.MetaLocation])
	img := domain.ImageSummary{
		ID:          rec.ID,
		DocumentID:  rec.DocumentID,
		Source:      rec.Metadata[driven.MetaSource],
		Page:        page,
		Description: rec.Metadata[driven.MetaDescription],
		ImagePath:   rec.Metadata[driven.MetaImagePath],
		OCRText:     rec.Metadata[driven.MetaOCRText],
	}
	if _, ok := rec.Metadata[driven.MetaDescription]; !ok {
		img.Description, img.OCRText, _ = strings.Cut(rec.Content, "\n")
	}
	return img
}

// Remove deletes the document ingested from sourcePath with its units and
// stored page images.
func (s *IngestionService) Remove(ctx context.Context, sourcePath string) error {
	if abs, err := filepath.Abs(sourcePath); err == nil {
		sourcePath = abs
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.registry.GetBySource(ctx, sourcePath)
	if err != nil {
		return fmt.Errorf("find %s: %w", sourcePath, err)
	}
	return s.removeLocked(ctx, doc)
}

func (s *IngestionService) removeLocked(ctx context.Context, doc *domain.Document) error {
	if err := s.index.Text().DeleteDocument(ctx, doc.ID); err != nil {
		return fmt.Errorf("delete text units: %w", err)
	}
	if err := s.index.Image().DeleteDocument(ctx, doc.ID); err != nil {
		return fmt.Errorf("delete image units: %w", err)
	}
	if s.imagesDir != "" {
		if err := os.RemoveAll(filepath.Join(s.imagesDir, doc.ID)); err != nil {
			logger.Warn("Failed to remove images of %s: %v", doc.SourcePath, err)
		}
	}
	if _, err := s.registry.Remove(ctx, doc.ID); err != nil {
		return fmt.Errorf("unregister %s: %w", doc.SourcePath, err)
	}
	logger.Info("Removed %s", doc.SourcePath)
	return nil
}

// deleteUnits is best-effort cleanup after a failed index or registration.
func (s *IngestionService) deleteUnits(ctx context.Context, documentID string) {
	for _, c := range []driven.VectorCollection{s.index.Text(), s.index.Image()} {
		if err := c.DeleteDocument(ctx, documentID); err != nil {
			logger.Debug("Cleanup of %s in %s failed: %v", documentID, c.Name(), err)
		}
	}
}

// List returns every registered document.
func (s *IngestionService) List(ctx context.Context) ([]domain.DocumentSummary, error) {
	docs, err := s.registry.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	out := make([]domain.DocumentSummary, len(docs))
	for i := range docs {
		out[i] = docs[i].Summary()
	}
	return out, nil
}

// Stats returns index statistics. Unit counts come from the collections.
func (s *IngestionService) Stats(ctx context.Context) (*driving.IndexStats, error) {
	docs, err := s.registry.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	textCounts, err := s.index.Text().CountByDocument(ctx)
	if err != nil {
		return nil, fmt.Errorf("count text units: %w", err)
	}
	imageCounts, err := s.index.Image().CountByDocument(ctx)
	if err != nil {
		return nil, fmt.Errorf("count image units: %w", err)
	}

	stats := &driving.IndexStats{
		Documents:  len(docs),
		TextUnits:  sumCounts(textCounts),
		ImageUnits: sumCounts(imageCounts),
		Indexing:   s.IsIndexing(),
		Backend:    s.backend,
		DataDir:    s.dataDir,
	}
	if s.embedder != nil {
		stats.EmbeddingModel = s.embedder.ModelName()
	}
	return stats, nil
}

// CheckConsistency compares registry unit counts with the collections.
func (s *IngestionService) CheckConsistency(ctx context.Context) ([]driving.Inconsistency, error) {
	docs, err := s.registry.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	var out []driving.Inconsistency
	for _, check := range []struct {
		collection driven.VectorCollection
		expected   func(domain.Document) int
	}{
		{s.index.Text(), func(d domain.Document) int { return d.TextUnits }},
		{s.index.Image(), func(d domain.Document) int { return d.ImageUnits }},
	} {
		counts, err := check.collection.CountByDocument(ctx)
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", check.collection.Name(), err)
		}

		registered := make(map[string]bool, len(docs))
		for _, d := range docs {
			registered[d.ID] = true
			expected, actual := check.expected(d), counts[d.ID]
			if expected == actual {
				continue
			}
			kind := driving.CountMismatch
			if actual == 0 {
				kind = driving.MissingUnits
			}
			out = append(out, driving.Inconsistency{
				Kind:       kind,
				DocumentID: d.ID,
				Collection: check.collection.Name(),
				Expected:   expected,
				Actual:     actual,
			})
		}

		ids := make([]string, 0, len(counts))
		for id := range counts {
			if !registered[id] {
				ids = append(ids, id)
			}
		}
		sort.Strings(ids)
		for _, id := range ids {
			out = append(out, driving.Inconsistency{
				Kind:       driving.Unregistered,
				DocumentID: id,
				Collection: check.collection.Name(),
				Actual:     counts[id],
			})
		}
	}
	return out, nil
}

// ContentHash returns the hex SHA-256 of content.
func ContentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func sumCounts(counts map[string]int) int {
	total := 0
	for _, n := range counts {
		total += n
	}
	return total
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
