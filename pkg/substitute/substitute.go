// Package substitute rewrites whole words inside document text.
//
// Matching is done per token: a token is split into its leading clean
// characters, its core and its trailing clean characters, and only a core
// that equals a mapping key is replaced. A key therefore never matches
// inside a longer word, and each token is rewritten at most once per pass.
package substitute

import (
	"strings"

	"github.com/hazyhaar/pagenorm/pkg/pagexml"
	"github.com/hazyhaar/pagenorm/pkg/rules"
)

// Substitutor applies word mappings to documents and strings.
type Substitutor struct {
	rules *rules.RuleSet
}

// New creates a Substitutor whose token boundaries follow rs.
func New(rs *rules.RuleSet) *Substitutor {
	return &Substitutor{rules: rs}
}

// Apply rewrites every token of doc whose core is a key of mapping and
// returns the number of tokens replaced. Region-level TextEquiv payloads are
// rewritten along with the lines so both stay in agreement.
func (s *Substitutor) Apply(doc *pagexml.Document, mapping map[string]string) int {
	if len(mapping) == 0 {
		return 0
	}
	n := 0
	for _, l := range doc.Payloads() {
		for i := range l.Tokens {
			if v, ok := s.replace(l.Tokens[i].Value, mapping); ok {
				l.Tokens[i].Value = v
				n++
			}
		}
	}
	return n
}

// ApplyString applies mapping to a single text with the same token rule as
// Apply. Whitespace is preserved.
func (s *Substitutor) ApplyString(text string, mapping map[string]string) string {
	if len(mapping) == 0 {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	pos := 0
	for _, t := range pagexml.Tokenize(text) {
		b.WriteString(text[pos:t.Start])
		if v, ok := s.replace(t.Value, mapping); ok {
			b.WriteString(v)
		} else {
			b.WriteString(t.Value)
		}
		pos = t.End
	}
	b.WriteString(text[pos:])
	return b.String()
}

func (s *Substitutor) replace(token string, mapping map[string]string) (string, bool) {
	lead, core, trail := s.rules.TrimClean(token)
	if core == "" {
		return token, false
	}
	r, ok := mapping[core]
	if !ok || r == core {
		return token, false
	}
	return lead + r + trail, true
}
