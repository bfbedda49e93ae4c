package dict

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// Entry is a single abbreviation in a dictionary: its expansion plus
// optional metadata.
type Entry struct {
	Expansion string            `json:"expansion"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Dictionary is one loaded dictionary with its manifest and in-memory hashmap.
type Dictionary struct {
	Manifest  *Manifest         `json:"manifest"`
	Entries   map[string]*Entry `json:"-"`
	normalize Normalizer
}

// New builds an in-memory dictionary from an abbreviation -> expansion map.
// Keys are normalized with the manifest's mode.
func New(m *Manifest, mapping map[string]string) *Dictionary {
	d := &Dictionary{
		Manifest:  m,
		Entries:   make(map[string]*Entry, len(mapping)),
		normalize: GetNormalizer(m.Format.Normalize),
	}
	d.addMapping(mapping)
	return d
}

// LoadDictionary reads a manifest.yaml and loads data from gob, json, or csv.
func LoadDictionary(dir string) (*Dictionary, error) {
	manifestPath := filepath.Join(dir, "manifest.yaml")
	manifest, err := LoadManifest(manifestPath)
	if err != nil {
		return nil, err
	}

	d := &Dictionary{
		Manifest:  manifest,
		Entries:   make(map[string]*Entry),
		normalize: GetNormalizer(manifest.Format.Normalize),
	}

	// Gob takes priority over the declared data file.
	gobPath := filepath.Join(dir, "data.gob")
	if _, err := os.Stat(gobPath); err == nil {
		if err := d.loadGob(gobPath); err != nil {
			return nil, fmt.Errorf("dict %s: %w", manifest.ID, err)
		}
		return d, nil
	}

	dataPath := filepath.Join(dir, manifest.DataFile)
	if strings.EqualFold(filepath.Ext(dataPath), ".json") {
		err = d.loadJSON(dataPath)
	} else {
		err = d.loadCSV(dataPath)
	}
	if err != nil {
		return nil, fmt.Errorf("dict %s: %w", manifest.ID, err)
	}
	return d, nil
}

// LoadJSONFile loads a bare JSON object of abbreviation -> expansion as a
// dictionary of the given tier. The ID is the file name without extension.
func LoadJSONFile(path, tier string) (*Dictionary, error) {
	id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	d := &Dictionary{
		Manifest: &Manifest{
			ID:       id,
			Tier:     tier,
			Source:   path,
			DataFile: filepath.Base(path),
			Format:   FormatSpec{Normalize: "nfc"},
		},
		Entries:   make(map[string]*Entry),
		normalize: NormalizeNFC,
	}
	if err := d.loadJSON(path); err != nil {
		return nil, fmt.Errorf("dict %s: %w", id, err)
	}
	return d, nil
}

func (d *Dictionary) loadJSON(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read data file: %w", err)
	}
	var mapping map[string]string
	if err := json.Unmarshal(data, &mapping); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	d.addMapping(mapping)
	return nil
}

// addMapping adds mapping in sorted key order, so when two raw keys
// normalize to the same key the lexicographically smaller one wins.
func (d *Dictionary) addMapping(mapping map[string]string) {
	keys := make([]string, 0, len(mapping))
	for k := range mapping {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		d.add(k, &Entry{Expansion: mapping[k]})
	}
}

func (d *Dictionary) loadCSV(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open data file: %w", err)
	}
	defer f.Close()

	// Transcode non-UTF-8 encodings declared in the manifest.
	var reader io.Reader = f
	if enc := d.Manifest.Format.Encoding; enc != "" && !isUTF8(enc) {
		e, err := htmlindex.Get(enc)
		if err != nil {
			return fmt.Errorf("unsupported encoding %q: %w", enc, err)
		}
		reader = transform.NewReader(f, e.NewDecoder())
	}

	r := csv.NewReader(reader)

	if delim := d.Manifest.Format.Delimiter; delim != "" {
		r.Comma = []rune(delim)[0]
	}
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	// Read header if present.
	var header []string
	if d.Manifest.Format.HasHeader {
		header, err = r.Read()
		if err != nil {
			return fmt.Errorf("read header: %w", err)
		}
		for i := range header {
			header[i] = strings.TrimSpace(header[i])
		}
	}

	keyIdx, err := columnIndex(header, d.Manifest.Format.KeyColumn, 0)
	if err != nil {
		return fmt.Errorf("key %w", err)
	}
	valIdx, err := columnIndex(header, d.Manifest.Format.ValueColumn, 1)
	if err != nil {
		return fmt.Errorf("value %w", err)
	}

	// Resolve metadata column indices.
	metaIdx := make(map[string]int)
	for _, mc := range d.Manifest.MetadataCols {
		for i, h := range header {
			if h == mc.Column {
				metaIdx[mc.Name] = i
				break
			}
		}
	}

	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read row: %w", err)
		}
		if keyIdx >= len(record) || valIdx >= len(record) {
			continue
		}

		entry := &Entry{Expansion: strings.TrimSpace(record[valIdx])}
		if len(metaIdx) > 0 {
			entry.Metadata = make(map[string]string, len(metaIdx))
			for name, idx := range metaIdx {
				if idx < len(record) {
					entry.Metadata[name] = strings.TrimSpace(record[idx])
				}
			}
		}
		d.add(strings.TrimSpace(record[keyIdx]), entry)
	}
	return nil
}

// add stores e under the normalized key. Empty keys are dropped and the
// first entry for a key wins.
func (d *Dictionary) add(term string, e *Entry) {
	key := d.normalize(term)
	if key == "" {
		return
	}
	if _, exists := d.Entries[key]; exists {
		slog.Debug("duplicate dictionary key", "dict", d.Manifest.ID, "key", key)
		return
	}
	d.Entries[key] = e
}

func columnIndex(header []string, name string, fallback int) (int, error) {
	if name == "" || header == nil {
		return fallback, nil
	}
	for i, h := range header {
		if h == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("column %q not found in header %v", name, header)
}

// Lookup searches for a term in this dictionary after normalization.
func (d *Dictionary) Lookup(term string) (*Entry, bool) {
	e, ok := d.Entries[d.normalize(term)]
	return e, ok
}

// Expansion returns the expansion recorded for term.
func (d *Dictionary) Expansion(term string) (string, bool) {
	e, ok := d.Lookup(term)
	if !ok {
		return "", false
	}
	return e.Expansion, true
}

// Mapping returns the dictionary content as abbreviation -> expansion,
// keyed by normalized form.
func (d *Dictionary) Mapping() map[string]string {
	out := make(map[string]string, len(d.Entries))
	for k, e := range d.Entries {
		out[k] = e.Expansion
	}
	return out
}

// NormalizeTerm applies this dictionary's normalizer to a term.
func (d *Dictionary) NormalizeTerm(term string) string {
	return d.normalize(term)
}

func isUTF8(enc string) bool {
	e := strings.ToLower(strings.ReplaceAll(enc, "-", ""))
	return e == "utf8" || e == ""
}
