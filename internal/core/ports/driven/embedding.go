// Package driven provides interfaces for infrastructure adapters (secondary/outbound ports).
package driven

import "context"

// EmbeddingService generates vector embeddings from text.
//
// Note: This is separate from VectorIndex which stores and searches vectors.
// EmbeddingService generates vectors; VectorIndex stores them.
//
// Implementations may include:
//   - Built-in hashing embedder (offline, deterministic)
//   - OpenAI (text-embedding-3-small, text-embedding-3-large)
//   - Ollama (nomic-embed-text, all-minilm)
//   - Gemini (text-embedding-004)
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts efficiently.
	// This is more efficient than calling Embed in a loop for large batches.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size (e.g., 384, 1536, 3072).
	// This is determined by the model and must match the collection dimension.
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// ImageInput is a rendered page image to be embedded.
type ImageInput struct {
	// Path is the PNG on disk. Oversized images are downscaled in place.
	Path string

	// DocumentTitle is used to build the description.
	DocumentTitle string

	// Page is the 1-based page number.
	Page int
}

// ImageEmbedding is the output of an ImageEmbedder.
type ImageEmbedding struct {
	Vector      []float32
	Description string
	OCRText     string
}

// ImageEmbedder maps page images into the same vector space as text queries.
type ImageEmbedder interface {
	// EmbedImage embeds one image, returning its vector, caption and OCR text.
	EmbedImage(ctx context.Context, in ImageInput) (*ImageEmbedding, error)

	// Dimensions returns the vector size.
	Dimensions() int
}

// PageRasteriser renders PDF pages to PNG files.
type PageRasteriser interface {
	// Rasterise writes one PNG per page of the PDF into outDir and returns
	// the file paths keyed by 1-based page number.
	Rasterise(ctx context.Context, pdfPath, outDir string, dpi int) (map[int]string, error)
}

// TextRecogniser extracts text from an image.
type TextRecogniser interface {
	// Recognise returns the text found in the image at path.
	Recognise(ctx context.Context, path string) (string, error)
}
