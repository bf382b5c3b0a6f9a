// Package image embeds rendered page images into the text vector space.
//
// An image is downscaled when its longer side exceeds MaxSide, passed
// through OCR when a recogniser is configured, and captioned as
// "Page N of <title>". The caption and OCR text are then embedded with the
// text embedder, so a text query can be compared directly with page images.
package image

import (
	"context"
	"fmt"
	stdimage "image"
	"image/png"
	"os"
	"strings"

	"golang.org/x/image/draw"

	"github.com/m-mizutani/goerr/v2"

	"github.com/givemeone1astkiss/ribo/internal/core/domain"
	"github.com/givemeone1astkiss/ribo/internal/core/ports/driven"
	"github.com/givemeone1astkiss/ribo/internal/logger"
)

// Ensure Embedder implements the interface.
var _ driven.ImageEmbedder = (*Embedder)(nil)

// DefaultMaxSide is the longest side kept before downscaling.
const DefaultMaxSide = 512

// Embedder implements driven.ImageEmbedder.
type Embedder struct {
	text    driven.EmbeddingService
	ocr     driven.TextRecogniser
	maxSide int
}

// Option configures an Embedder.
type Option func(*Embedder)

// WithRecogniser enables OCR.
func WithRecogniser(r driven.TextRecogniser) Option {
	return func(e *Embedder) { e.ocr = r }
}

// WithMaxSide sets the downscale threshold.
func WithMaxSide(n int) Option {
	return func(e *Embedder) {
		if n > 0 {
			e.maxSide = n
		}
	}
}

// New creates an image embedder on top of a text embedder.
func New(text driven.EmbeddingService, opts ...Option) *Embedder {
	e := &Embedder{text: text, maxSide: DefaultMaxSide}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Dimensions returns the text embedder's dimension.
func (e *Embedder) Dimensions() int {
	return e.text.Dimensions()
}

// EmbedImage downscales, OCRs and embeds one page image.
func (e *Embedder) EmbedImage(ctx context.Context, in driven.ImageInput) (*driven.ImageEmbedding, error) {
	if err := Downscale(in.Path, e.maxSide); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbedding, err)
	}

	var ocrText string
	if e.ocr != nil {
		text, err := e.ocr.Recognise(ctx, in.Path)
		if err != nil {
			logger.Debug("ocr failed for %s: %v", in.Path, err)
		} else {
			ocrText = strings.TrimSpace(text)
		}
	}

	desc := Describe(in.DocumentTitle, in.Page)
	input := desc
	if ocrText != "" {
		input = desc + "\n" + ocrText
	}

	vec, err := e.text.Embed(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding page %d: %w", domain.ErrEmbedding, in.Page, err)
	}

	return &driven.ImageEmbedding{
		Vector:      vec,
		Description: desc,
		OCRText:     ocrText,
	}, nil
}

// Describe builds the caption of a page image.
func Describe(title string, page int) string {
	if strings.TrimSpace(title) == "" {
		title = domain.UnknownTitle
	}
	return fmt.Sprintf("Page %d of %s", page, title)
}

// Downscale rewrites the PNG at path so its longer side is at most maxSide,
// preserving aspect ratio. Smaller images are left untouched.
func Downscale(path string, maxSide int) error {
	f, err := os.Open(path)
	if err != nil {
		return goerr.Wrap(err, "open image", goerr.V("path", path))
	}
	src, err := png.Decode(f)
	f.Close()
	if err != nil {
		return goerr.Wrap(err, "decode png", goerr.V("path", path))
	}

	w, h := ScaledSize(src.Bounds().Dx(), src.Bounds().Dy(), maxSide)
	if w == src.Bounds().Dx() && h == src.Bounds().Dy() {
		return nil
	}

	dst := stdimage.NewRGBA(stdimage.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	tmp := path + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return goerr.Wrap(err, "create image", goerr.V("path", tmp))
	}
	if err := png.Encode(out, dst); err != nil {
		out.Close()
		os.Remove(tmp)
		return goerr.Wrap(err, "encode png", goerr.V("path", tmp))
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// ScaledSize returns the target size for an image so that its longer side
// does not exceed maxSide. Both sides are at least 1.
func ScaledSize(w, h, maxSide int) (int, int) {
	longer := max(w, h)
	if maxSide <= 0 || longer <= maxSide {
		return w, h
	}
	ratio := float64(maxSide) / float64(longer)
	return max(1, int(float64(w)*ratio+0.5)), max(1, int(float64(h)*ratio+0.5))
}
