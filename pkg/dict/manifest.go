package dict

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Tiers, in lookup order.
const (
	TierDomain  = "domain"
	TierGeneral = "general"
)

// Manifest describes a dictionary: its source, format, and how to interpret it.
type Manifest struct {
	ID           string           `yaml:"id" json:"id"`
	Version      string           `yaml:"version" json:"version"`
	Tier         string           `yaml:"tier" json:"tier"`
	Language     string           `yaml:"language" json:"language,omitempty"`
	Source       string           `yaml:"source" json:"source"`
	SourceURL    string           `yaml:"source_url,omitempty" json:"source_url,omitempty"`
	License      string           `yaml:"license" json:"license"`
	DataFile     string           `yaml:"data_file" json:"data_file"`
	Format       FormatSpec       `yaml:"format" json:"-"`
	MetadataCols []MetadataColumn `yaml:"metadata_columns,omitempty" json:"-"`
}

// FormatSpec describes the data file layout. CSV fields are ignored for
// json and gob data files.
type FormatSpec struct {
	Delimiter   string `yaml:"delimiter,omitempty"`
	Encoding    string `yaml:"encoding,omitempty"`
	HasHeader   bool   `yaml:"has_header,omitempty"`
	KeyColumn   string `yaml:"key_column,omitempty"`
	ValueColumn string `yaml:"value_column,omitempty"`
	Normalize   string `yaml:"normalize,omitempty"`
}

// MetadataColumn maps a logical name to a CSV column.
type MetadataColumn struct {
	Name   string `yaml:"name"`
	Column string `yaml:"column"`
}

// LoadManifest reads and parses a manifest.yaml file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if m.ID == "" {
		return nil, fmt.Errorf("manifest %s: missing id", path)
	}
	switch m.Tier {
	case "":
		m.Tier = TierGeneral
	case TierDomain, TierGeneral:
	default:
		return nil, fmt.Errorf("manifest %s: unknown tier %q", path, m.Tier)
	}
	if m.DataFile == "" {
		m.DataFile = "data.json"
	}
	if m.Format.Normalize == "" {
		m.Format.Normalize = "nfc"
	}
	if !ValidNormalizeMode(m.Format.Normalize) {
		return nil, fmt.Errorf("manifest %s: unknown normalize mode %q", path, m.Format.Normalize)
	}
	return &m, nil
}

// WriteManifest writes m as YAML to dir/manifest.yaml.
func WriteManifest(dir string, m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, "manifest.yaml"), data, 0o644)
}
