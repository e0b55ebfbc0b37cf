package fileloader

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/telemetry-armada/internal/config"
	"github.com/ahrav/telemetry-armada/internal/domain/telemetry"
)

var _ telemetry.CatalogLoader = (*CatalogLoader)(nil)

// CatalogLoader loads the device catalog from a YAML file on disk. It
// implements telemetry.CatalogLoader.
type CatalogLoader struct {
	path string
}

// NewCatalogLoader creates a catalog loader for the given file path.
func NewCatalogLoader(path string) *CatalogLoader {
	return &CatalogLoader{path: path}
}

// Load reads and parses the catalog file and converts it into the validated
// domain catalog.
func (l *CatalogLoader) Load(ctx context.Context) (*telemetry.Catalog, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var file config.CatalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	catalog, err := file.ToCatalog()
	if err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	return catalog, nil
}
