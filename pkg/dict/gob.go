package dict

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
)

// loadGob deserializes entries from a gob-encoded file into d.Entries.
func (d *Dictionary) loadGob(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open gob file: %w", err)
	}
	defer f.Close()

	if err := gob.NewDecoder(f).Decode(&d.Entries); err != nil {
		return fmt.Errorf("decode gob: %w", err)
	}
	return nil
}

// SaveGob serializes entries to a gob-encoded file at path.
func SaveGob(entries map[string]*Entry, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create gob file: %w", err)
	}
	defer f.Close()

	if err := gob.NewEncoder(f).Encode(entries); err != nil {
		return fmt.Errorf("encode gob: %w", err)
	}
	return nil
}

// Build writes d as a loadable dictionary directory: manifest.yaml plus
// data.gob. The manifest's DataFile is set to data.gob.
func Build(dir string, d *Dictionary) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dict dir: %w", err)
	}
	m := *d.Manifest
	m.DataFile = "data.gob"
	if err := SaveGob(d.Entries, filepath.Join(dir, m.DataFile)); err != nil {
		return err
	}
	if err := WriteManifest(dir, &m); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}
