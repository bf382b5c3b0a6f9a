package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/givemeone1astkiss/ribo/internal/core/ports/driven"
)

// Ensure Tesseract implements the interface.
var _ driven.TextRecogniser = (*Tesseract)(nil)

// Tesseract recognises text in images with the tesseract CLI.
type Tesseract struct {
	runner CommandRunner
	lang   string
}

// NewTesseract creates an OCR adapter. A nil runner uses ExecRunner.
func NewTesseract(runner CommandRunner, lang string) *Tesseract {
	if runner == nil {
		runner = ExecRunner{}
	}
	if lang == "" {
		lang = "eng"
	}
	return &Tesseract{runner: runner, lang: lang}
}

// Recognise returns the text tesseract finds in the image.
func (t *Tesseract) Recognise(ctx context.Context, path string) (string, error) {
	out, err := t.runner.Run(ctx, "tesseract", path, "stdout", "-l", t.lang)
	if err != nil {
		return "", fmt.Errorf("tesseract failed: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}
