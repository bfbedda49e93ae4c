package lexicon

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ulikunitz/xz"

	"github.com/hazyhaar/pagenorm/pkg/dict"
)

const cacheVersion = 1

type cacheFile struct {
	Version   int
	Normalize string
	Skipped   int
	Forms     map[string][]Entry
}

// SaveCache writes the index as xz-compressed gob. The file is replaced
// atomically.
func (t *Table) SaveCache(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".lexicon-*")
	if err != nil {
		return fmt.Errorf("create cache file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	zw, err := xz.NewWriter(tmp)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("xz writer: %w", err)
	}
	cf := cacheFile{Version: cacheVersion, Normalize: t.mode, Skipped: t.skipped, Forms: t.forms}
	if err := gob.NewEncoder(zw).Encode(&cf); err != nil {
		tmp.Close()
		return fmt.Errorf("encode cache: %w", err)
	}
	if err := zw.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("close xz: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close cache file: %w", err)
	}
	return os.Rename(tmpPath, path)
}

// LoadCache reads an index written by SaveCache.
func LoadCache(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	defer f.Close()

	zr, err := xz.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("xz reader: %w", err)
	}
	var cf cacheFile
	if err := gob.NewDecoder(zr).Decode(&cf); err != nil {
		return nil, fmt.Errorf("decode cache: %w", err)
	}
	if cf.Version != cacheVersion {
		return nil, fmt.Errorf("cache version %d, want %d", cf.Version, cacheVersion)
	}
	if cf.Forms == nil {
		cf.Forms = make(map[string][]Entry)
	}
	return &Table{
		forms:     cf.Forms,
		normalize: dict.GetNormalizer(cf.Normalize),
		mode:      cf.Normalize,
		skipped:   cf.Skipped,
	}, nil
}

// Open loads the table, preferring opts.Cache when it is at least as new as
// the source file. A fresh load refreshes the cache.
func Open(opts Options) (*Table, error) {
	opts.defaults()

	if opts.Cache != "" && cacheFresh(opts.Cache, opts.Path) {
		t, err := LoadCache(opts.Cache)
		if err == nil && t.mode == opts.Normalize {
			opts.Logger.Debug("lexicon cache loaded", "path", opts.Cache, "forms", t.Len())
			return t, nil
		}
		if err != nil {
			opts.Logger.Warn("lexicon cache unusable, reloading source", "path", opts.Cache, "error", err)
		}
	}

	t, err := Load(opts)
	if err != nil {
		return nil, err
	}
	if opts.Cache != "" {
		if err := t.SaveCache(opts.Cache); err != nil {
			opts.Logger.Warn("lexicon cache not written", "path", opts.Cache, "error", err)
		}
	}
	return t, nil
}

func cacheFresh(cache, source string) bool {
	ci, err := os.Stat(cache)
	if err != nil {
		return false
	}
	si, err := os.Stat(source)
	if err != nil {
		return true
	}
	return !ci.ModTime().Before(si.ModTime())
}
