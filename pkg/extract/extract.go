// Package extract pulls the set of candidate words out of a document's
// line texts.
package extract

import (
	"sort"
	"strings"

	"github.com/hazyhaar/pagenorm/pkg/pagexml"
	"github.com/hazyhaar/pagenorm/pkg/rules"
)

// Extractor collects distinct candidate words.
type Extractor struct {
	rules *rules.RuleSet
}

// New creates an Extractor driven by rs.
func New(rs *rules.RuleSet) *Extractor {
	return &Extractor{rules: rs}
}

// Words cleans each text, splits it on Unicode white space and returns the
// distinct fragments, sorted. Fragments carrying the roman
// numeral marker are dropped.
func (e *Extractor) Words(texts []string) []string {
	seen := make(map[string]struct{})
	for _, text := range texts {
		for _, w := range strings.Fields(e.rules.Clean(text)) {
			if e.rules.IsRomanNumeral(w) {
				continue
			}
			seen[w] = struct{}{}
		}
	}

	words := make([]string, 0, len(seen))
	for w := range seen {
		words = append(words, w)
	}
	sort.Strings(words)
	return words
}

// FromDocument extracts candidates from the current text of every line.
func (e *Extractor) FromDocument(doc *pagexml.Document) []string {
	return e.Words(doc.Texts())
}
