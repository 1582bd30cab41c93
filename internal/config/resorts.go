package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/i474232898/snow-status-aggregation/internal/resort"
	"github.com/i474232898/snow-status-aggregation/internal/resort/sources"
)

//go:embed resorts.yml
var defaultResorts []byte

type resortsFile struct {
	Resorts []resort.Definition `yaml:"resorts"`
}

// LoadResorts reads the registry file at path, or the bundled one when path is empty.
func LoadResorts(path string) ([]resort.Definition, error) {
	data := defaultResorts
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read resorts file: %w", err)
		}
		data = b
	}
	return ParseResorts(data)
}

// ParseResorts decodes and validates a registry document.
func ParseResorts(data []byte) ([]resort.Definition, error) {
	var f resortsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode resorts: %w", err)
	}
	if len(f.Resorts) == 0 {
		return nil, fmt.Errorf("resorts file defines no resorts")
	}

	seen := make(map[string]bool, len(f.Resorts))
	for _, def := range f.Resorts {
		if err := def.Validate(); err != nil {
			return nil, err
		}
		if seen[def.ID] {
			return nil, fmt.Errorf("duplicate resort id %q", def.ID)
		}
		seen[def.ID] = true

		if def.Vendor != "" && !sources.KnownVendor(def.Vendor) {
			return nil, fmt.Errorf("resort %s: unknown vendor %q", def.ID, def.Vendor)
		}
	}
	return f.Resorts, nil
}
