package dict

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Registry holds all loaded dictionaries and serves tiered lookups.
type Registry struct {
	mu       sync.RWMutex
	dicts    map[string]*Dictionary
	ids      []string // keys of dicts, sorted; rebuilt by Load
	dictsDir string
	files    []fileSource
}

type fileSource struct {
	path string
	tier string
}

// NewRegistry creates a new empty registry for the given directory.
// An empty dictsDir means only files added with AddFile are served.
func NewRegistry(dictsDir string) *Registry {
	return &Registry{
		dicts:    make(map[string]*Dictionary),
		dictsDir: dictsDir,
	}
}

// AddFile registers a bare JSON dictionary file under tier. It is read on
// the next Load.
func (r *Registry) AddFile(path, tier string) {
	r.mu.Lock()
	r.files = append(r.files, fileSource{path: path, tier: tier})
	r.mu.Unlock()
}

// Load scans the dicts directory and the registered files and loads every
// dictionary.
func (r *Registry) Load() error {
	newDicts := make(map[string]*Dictionary)

	if r.dictsDir != "" {
		entries, err := os.ReadDir(r.dictsDir)
		if err != nil {
			return fmt.Errorf("read dicts dir %s: %w", r.dictsDir, err)
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			dir := filepath.Join(r.dictsDir, entry.Name())
			if _, err := os.Stat(filepath.Join(dir, "manifest.yaml")); err != nil {
				continue
			}
			d, err := LoadDictionary(dir)
			if err != nil {
				return fmt.Errorf("load dictionary %s: %w", entry.Name(), err)
			}
			newDicts[d.Manifest.ID] = d
		}
	}

	r.mu.RLock()
	files := append([]fileSource(nil), r.files...)
	r.mu.RUnlock()
	for _, fs := range files {
		d, err := LoadJSONFile(fs.path, fs.tier)
		if err != nil {
			return fmt.Errorf("load dictionary %s: %w", fs.path, err)
		}
		if _, dup := newDicts[d.Manifest.ID]; dup {
			return fmt.Errorf("load dictionary %s: duplicate id %q", fs.path, d.Manifest.ID)
		}
		newDicts[d.Manifest.ID] = d
	}

	ids := make([]string, 0, len(newDicts))
	for id := range newDicts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	r.mu.Lock()
	r.dicts = newDicts
	r.ids = ids
	r.mu.Unlock()
	return nil
}

// Reload reloads all dictionaries from disk (hot reload).
func (r *Registry) Reload() error {
	return r.Load()
}

// Match is a single dictionary hit for a looked-up abbreviation.
type Match struct {
	DictID    string            `json:"dict_id"`
	Tier      string            `json:"tier"`
	Expansion string            `json:"expansion"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Lookup returns the first match for term among dictionaries of the given
// tier, iterating in sorted ID order.
func (r *Registry) Lookup(tier, term string) (Match, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.ids {
		d := r.dicts[id]
		if d.Manifest.Tier != tier {
			continue
		}
		if e, ok := d.Lookup(term); ok {
			return Match{DictID: id, Tier: tier, Expansion: e.Expansion, Metadata: e.Metadata}, true
		}
	}
	return Match{}, false
}

// Resolve looks term up in the domain tier, then the general tier.
func (r *Registry) Resolve(term string) (Match, bool) {
	if m, ok := r.Lookup(TierDomain, term); ok {
		return m, true
	}
	return r.Lookup(TierGeneral, term)
}

// Tier returns a view of the registry restricted to one tier.
func (r *Registry) Tier(tier string) *TierView {
	return &TierView{r: r, tier: tier}
}

// TierView serves expansions from a single tier of a Registry.
type TierView struct {
	r    *Registry
	tier string
}

// Expansion returns the first expansion recorded for term in this tier.
func (v *TierView) Expansion(term string) (string, bool) {
	m, ok := v.r.Lookup(v.tier, term)
	return m.Expansion, ok
}

// DictInfo is the public metadata for a loaded dictionary.
type DictInfo struct {
	ID        string `json:"id"`
	Version   string `json:"version"`
	Tier      string `json:"tier"`
	Language  string `json:"language,omitempty"`
	Source    string `json:"source"`
	SourceURL string `json:"source_url,omitempty"`
	License   string `json:"license"`
	Entries   int    `json:"entries"`
}

// ListDicts returns metadata for all loaded dictionaries, sorted by ID.
func (r *Registry) ListDicts() []DictInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]DictInfo, 0, len(r.dicts))
	for _, d := range r.dicts {
		infos = append(infos, DictInfo{
			ID:        d.Manifest.ID,
			Version:   d.Manifest.Version,
			Tier:      d.Manifest.Tier,
			Language:  d.Manifest.Language,
			Source:    d.Manifest.Source,
			SourceURL: d.Manifest.SourceURL,
			License:   d.Manifest.License,
			Entries:   len(d.Entries),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// DictCount returns the number of loaded dictionaries.
func (r *Registry) DictCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.dicts)
}

// TotalEntries returns the total number of entries across all dictionaries.
func (r *Registry) TotalEntries() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := 0
	for _, d := range r.dicts {
		total += len(d.Entries)
	}
	return total
}
