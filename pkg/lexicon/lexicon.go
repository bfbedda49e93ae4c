// Package lexicon indexes a tab-separated word-form table (Frankfurt Latin
// Lexicon layout) for superlemma/lemma lookups.
package lexicon

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/edsrzf/mmap-go"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"

	"github.com/hazyhaar/pagenorm/pkg/dict"
)

// ErrNoColumn is returned when a configured column is missing from the header.
var ErrNoColumn = errors.New("column not found")

// Entry is the normalization target of one word-form.
type Entry struct {
	Superlemma string `json:"superlemma"` // lemma with class tag, e.g. "amo@V"
	Lemma      string `json:"lemma"`
}

// Columns names the header columns holding each field.
type Columns struct {
	WordForm   string `yaml:"word_form" toml:"word_form"`
	Superlemma string `yaml:"superlemma" toml:"superlemma"`
	Lemma      string `yaml:"lemma" toml:"lemma"`
}

// DefaultColumns matches the Frankfurt Latin Lexicon export.
var DefaultColumns = Columns{WordForm: "WF-Name", Superlemma: "SL-Name", Lemma: "L-Name"}

// Options configure how the table is read.
type Options struct {
	Path      string
	Cache     string // optional compressed gob cache
	Encoding  string // source encoding, default utf-8
	Normalize string // key normalizer mode, default lowercase_utf8
	Columns   Columns
	Logger    *slog.Logger
}

func (o *Options) defaults() {
	if o.Columns.WordForm == "" {
		o.Columns.WordForm = DefaultColumns.WordForm
	}
	if o.Columns.Superlemma == "" {
		o.Columns.Superlemma = DefaultColumns.Superlemma
	}
	if o.Columns.Lemma == "" {
		o.Columns.Lemma = DefaultColumns.Lemma
	}
	if o.Normalize == "" {
		o.Normalize = "lowercase_utf8"
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Table is an immutable word-form index. Safe for concurrent readers.
type Table struct {
	forms     map[string][]Entry
	normalize dict.Normalizer
	mode      string
	skipped   int
}

// Lookup returns the first entry stored for word, in table order.
func (t *Table) Lookup(word string) (Entry, bool) {
	entries := t.forms[t.normalize(word)]
	if len(entries) == 0 {
		return Entry{}, false
	}
	return entries[0], true
}

// LookupAll returns every entry stored for word.
func (t *Table) LookupAll(word string) []Entry {
	return append([]Entry(nil), t.forms[t.normalize(word)]...)
}

// Len returns the number of distinct word-forms.
func (t *Table) Len() int {
	return len(t.forms)
}

// Skipped returns the number of malformed rows dropped while loading.
func (t *Table) Skipped() int {
	return t.skipped
}

// Load memory-maps the file at opts.Path and indexes it.
func Load(opts Options) (*Table, error) {
	opts.defaults()

	f, err := os.Open(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("open lexicon: %w", err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat lexicon: %w", err)
	}
	if fi.Size() == 0 {
		return newTable(opts.Normalize), nil
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("mmap lexicon: %w", err)
	}
	defer m.Unmap()

	t, err := Read(bytes.NewReader(m), opts)
	if err != nil {
		return nil, fmt.Errorf("lexicon %s: %w", opts.Path, err)
	}
	return t, nil
}

// Read indexes a tab-separated table with a header row. Rows with a wrong
// field count or an empty word-form, superlemma or lemma are skipped.
func Read(r io.Reader, opts Options) (*Table, error) {
	opts.defaults()

	if enc := opts.Encoding; enc != "" && !isUTF8(enc) {
		e, err := htmlindex.Get(enc)
		if err != nil {
			return nil, fmt.Errorf("unsupported encoding %q: %w", enc, err)
		}
		r = transform.NewReader(r, e.NewDecoder())
	}

	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	t := newTable(opts.Normalize)

	header, err := cr.Read()
	if err == io.EOF {
		return t, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	col := func(name string) (int, error) {
		i, ok := idx[name]
		if !ok {
			return 0, fmt.Errorf("%w: %q in header %v", ErrNoColumn, name, header)
		}
		return i, nil
	}
	wfIdx, err := col(opts.Columns.WordForm)
	if err != nil {
		return nil, err
	}
	slIdx, err := col(opts.Columns.Superlemma)
	if err != nil {
		return nil, err
	}
	lIdx, err := col(opts.Columns.Lemma)
	if err != nil {
		return nil, err
	}

	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				t.skipped++
				continue
			}
			return nil, fmt.Errorf("read row: %w", err)
		}

		key := t.normalize(strings.TrimSpace(record[wfIdx]))
		sl := strings.TrimSpace(record[slIdx])
		lemma := strings.TrimSpace(record[lIdx])
		if key == "" || sl == "" || lemma == "" {
			t.skipped++
			continue
		}
		t.forms[key] = append(t.forms[key], Entry{Superlemma: sl, Lemma: lemma})
	}

	if t.skipped > 0 {
		opts.Logger.Warn("lexicon rows skipped", "skipped", t.skipped, "forms", len(t.forms))
	}
	return t, nil
}

func newTable(mode string) *Table {
	return &Table{
		forms:     make(map[string][]Entry),
		normalize: dict.GetNormalizer(mode),
		mode:      mode,
	}
}

func isUTF8(enc string) bool {
	e := strings.ToLower(strings.ReplaceAll(enc, "-", ""))
	return e == "utf8" || e == ""
}
