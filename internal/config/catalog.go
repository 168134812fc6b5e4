package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Catalog is the file form of the configuration. Unset fields leave the
// current value alone.
type Catalog struct {
	Table            *string           `yaml:"table" json:"table"`
	MorphAlias       *string           `yaml:"morph_alias" json:"morph_alias"`
	RegisterMorphMap *bool             `yaml:"register_morph_map" json:"register_morph_map"`
	Timezone         *string           `yaml:"timezone" json:"timezone"`
	EventTypes       map[string]string `yaml:"event_types" json:"event_types"`
}

// LoadCatalog reads a catalog file, choosing the format by extension.
// Supported extensions: .yaml, .yml, .json
func LoadCatalog(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read catalog: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return ParseYAML(data)
	case ".json":
		return ParseJSON(data)
	default:
		return Catalog{}, fmt.Errorf("unsupported catalog file extension: %s", ext)
	}
}

// ParseYAML parses a YAML catalog.
func ParseYAML(data []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("parse yaml catalog: %w", err)
	}
	return c, nil
}

// ParseJSON parses a JSON catalog.
func ParseJSON(data []byte) (Catalog, error) {
	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("parse json catalog: %w", err)
	}
	return c, nil
}

// Apply copies the catalog's set fields onto cfg. Event types are merged.
func (c Catalog) Apply(cfg *Config) {
	if c.Table != nil {
		cfg.Table = *c.Table
	}
	if c.MorphAlias != nil {
		cfg.MorphAlias = *c.MorphAlias
	}
	if c.RegisterMorphMap != nil {
		cfg.RegisterMorphMap = *c.RegisterMorphMap
	}
	if c.Timezone != nil {
		cfg.Timezone = *c.Timezone
	}
	if cfg.EventTypes == nil {
		cfg.EventTypes = make(map[string]string, len(c.EventTypes))
	}
	for alias, id := range c.EventTypes {
		cfg.EventTypes[alias] = id
	}
}
