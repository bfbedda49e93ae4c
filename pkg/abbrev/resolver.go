// Package abbrev resolves abbreviated words to their expansion using
// dictionaries and fallback character rules.
package abbrev

import (
	"log/slog"

	"github.com/hazyhaar/pagenorm/pkg/rules"
)

// Lookuper is a source of known expansions.
type Lookuper interface {
	Expansion(word string) (string, bool)
}

// Source names where a Resolution came from.
type Source string

const (
	SourceDomain  Source = "domain"
	SourceGeneral Source = "general"
	SourceRules   Source = "rules"
)

// Resolution is the outcome of resolving one abbreviated word.
type Resolution struct {
	Word      string `json:"word"`
	Expansion string `json:"expansion"`
	Source    Source `json:"source"`
}

// Resolver expands abbreviated words. Dictionaries are consulted in order
// domain, general; the rule set is the fallback.
type Resolver struct {
	rules   *rules.RuleSet
	domain  Lookuper
	general Lookuper
	log     *Log
	logger  *slog.Logger
}

// NewResolver creates a Resolver. domain, general and log may be nil.
func NewResolver(rs *rules.RuleSet, domain, general Lookuper, log *Log) *Resolver {
	return &Resolver{
		rules:   rs,
		domain:  domain,
		general: general,
		log:     log,
		logger:  slog.Default(),
	}
}

// WithLogger returns a copy of r that logs to logger.
func (r *Resolver) WithLogger(logger *slog.Logger) *Resolver {
	c := *r
	c.logger = logger
	return &c
}

// IsAbbreviated reports whether word carries an abbreviation marker.
func (r *Resolver) IsAbbreviated(word string) bool {
	return r.rules.IsAbbreviated(word)
}

// Resolve expands word. It returns false, and records nothing, when word
// carries no abbreviation marker.
func (r *Resolver) Resolve(word string) (Resolution, bool) {
	if !r.IsAbbreviated(word) {
		return Resolution{}, false
	}

	res := Resolution{Word: word}
	switch {
	case lookup(r.domain, word, &res.Expansion):
		res.Source = SourceDomain
	case lookup(r.general, word, &res.Expansion):
		res.Source = SourceGeneral
	default:
		res.Expansion = r.rules.Expand(word)
		res.Source = SourceRules
	}

	if r.log != nil {
		r.log.Record(word, res.Expansion)
	}
	r.logger.Debug("abbreviation resolved", "word", word, "expansion", res.Expansion, "source", res.Source)
	return res, true
}

// Mapping resolves every abbreviated word of words and returns the pairs
// whose expansion differs from the word.
func (r *Resolver) Mapping(words []string) map[string]string {
	out := make(map[string]string)
	for _, w := range words {
		res, ok := r.Resolve(w)
		if !ok || res.Expansion == w {
			continue
		}
		out[w] = res.Expansion
	}
	return out
}

func lookup(l Lookuper, word string, dst *string) bool {
	if l == nil {
		return false
	}
	e, ok := l.Expansion(word)
	if ok {
		*dst = e
	}
	return ok
}
