// Package tools provides the external analysis tool adapters: the YAML tool
// catalog and the HTTP invoker that calls tool prediction endpoints.
package tools

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"

	"github.com/givemeone1astkiss/ribo/internal/core/domain"
	"github.com/givemeone1astkiss/ribo/internal/core/ports/driven"
)

// Ensure Catalog implements the interface.
var _ driven.ToolCatalogSource = (*Catalog)(nil)

//go:embed catalog.yaml
var embeddedCatalog []byte

type catalogFile struct {
	Tools []domain.ToolDescriptor `yaml:"tools"`
}

// Catalog loads tool descriptors from the embedded catalog or an override file.
type Catalog struct {
	path string
}

// NewCatalog creates a catalog source. An empty path uses the embedded catalog.
func NewCatalog(path string) *Catalog {
	return &Catalog{path: path}
}

// Load parses the catalog and checks every entry.
func (c *Catalog) Load() ([]domain.ToolDescriptor, error) {
	data := embeddedCatalog
	if c.path != "" {
		raw, err := os.ReadFile(c.path)
		if err != nil {
			return nil, goerr.Wrap(err, "read tool catalog", goerr.V("path", c.path))
		}
		data = raw
	}
	return Parse(data)
}

// Parse decodes catalog YAML. Unknown tool IDs, duplicates and entries
// without an endpoint are rejected.
func Parse(data []byte) ([]domain.ToolDescriptor, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: parse tool catalog: %w", domain.ErrInvalidInput, err)
	}

	seen := make(map[domain.ToolID]bool, len(file.Tools))
	for _, d := range file.Tools {
		switch {
		case !d.ID.IsValid():
			return nil, fmt.Errorf("%w: unknown tool %q in catalog", domain.ErrInvalidInput, d.ID)
		case seen[d.ID]:
			return nil, fmt.Errorf("%w: duplicate tool %q in catalog", domain.ErrInvalidInput, d.ID)
		case d.Endpoint == "":
			return nil, fmt.Errorf("%w: tool %q has no endpoint", domain.ErrInvalidInput, d.ID)
		}
		seen[d.ID] = true
	}
	return file.Tools, nil
}
