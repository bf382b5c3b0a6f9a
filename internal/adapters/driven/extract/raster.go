package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/givemeone1astkiss/ribo/internal/core/ports/driven"
)

// Ensure Rasteriser implements the interface.
var _ driven.PageRasteriser = (*Rasteriser)(nil)

// Rasteriser renders PDF pages with pdftoppm.
type Rasteriser struct {
	runner CommandRunner
}

// NewRasteriser creates a rasteriser. A nil runner uses ExecRunner.
func NewRasteriser(runner CommandRunner) *Rasteriser {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Rasteriser{runner: runner}
}

// pdftoppm zero-pads page numbers depending on page count.
var pagePattern = regexp.MustCompile(`^page-0*(\d+)\.png$`)

// Rasterise writes page-<n>.png files into outDir.
func (r *Rasteriser) Rasterise(ctx context.Context, pdfPath, outDir string, dpi int) (map[int]string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create image dir: %w", err)
	}
	if _, err := r.runner.Run(ctx, "pdftoppm", "-r", strconv.Itoa(dpi), "-png", pdfPath, filepath.Join(outDir, "page")); err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %w", err)
	}
	return CollectPages(outDir)
}

// CollectPages finds rendered pages in dir and normalises their names to page-<n>.png.
func CollectPages(dir string) (map[int]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	pages := make(map[int]string)
	for _, e := range entries {
		m := pagePattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		want := filepath.Join(dir, fmt.Sprintf("page-%d.png", n))
		got := filepath.Join(dir, e.Name())
		if got != want {
			if err := os.Rename(got, want); err != nil {
				return nil, err
			}
		}
		pages[n] = want
	}
	return pages, nil
}
