// Package morph rewrites inflected word forms towards their superlemma
// spelling using a lemma/superlemma lexicon.
package morph

import (
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hazyhaar/pagenorm/pkg/lexicon"
	"github.com/hazyhaar/pagenorm/pkg/rules"
)

// Class is the coarse word class derived from a superlemma tag.
type Class int

const (
	Other Class = iota
	Verb
	Adverb
	Pronoun
)

func (c Class) String() string {
	switch c {
	case Verb:
		return "verb"
	case Adverb:
		return "adverb"
	case Pronoun:
		return "pronoun"
	default:
		return "other"
	}
}

// ParseClass is the inverse of Class.String. Unknown names map to Other.
func ParseClass(name string) Class {
	switch name {
	case "verb":
		return Verb
	case "adverb":
		return Adverb
	case "pronoun":
		return Pronoun
	default:
		return Other
	}
}

// ClassOf maps a part-of-speech tag to its Class.
func ClassOf(tag string) Class {
	switch tag {
	case "V":
		return Verb
	case "ADV":
		return Adverb
	case "PRO":
		return Pronoun
	default:
		return Other
	}
}

// Record describes how one word was normalized.
type Record struct {
	Word           string `json:"word"`
	Superlemma     string `json:"superlemma"`
	Lemma          string `json:"lemma"`
	SuperlemmaRoot string `json:"superlemma_root"`
	LemmaRoot      string `json:"lemma_root"`
	Class          Class  `json:"-"`
	ClassName      string `json:"class"`
	Normalized     string `json:"normalized"`
}

// Lookuper returns the lexicon entry for a word form.
type Lookuper interface {
	Lookup(word string) (lexicon.Entry, bool)
}

// Normalizer derives normalized spellings from lexicon entries.
type Normalizer struct {
	rules  *rules.RuleSet
	lex    Lookuper
	logger *slog.Logger
}

// New creates a Normalizer. A nil logger uses slog.Default.
func New(rs *rules.RuleSet, lex Lookuper, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{rules: rs, lex: lex, logger: logger}
}

// Normalize returns the normalized form of word. The record is nil when the
// word is unknown, stoplisted, or its lexicon entry is inconsistent; the
// word is then returned unchanged.
func (n *Normalizer) Normalize(word string) (string, *Record) {
	if word == "" {
		return word, nil
	}
	e, ok := n.lex.Lookup(word)
	if !ok {
		return word, nil
	}
	if n.rules.IsStopword(e.Superlemma) {
		return word, nil
	}

	base, tag := splitTag(e.Superlemma)
	lemma, _ := splitTag(e.Lemma)
	if lastRune(base) != lastRune(lemma) {
		n.logger.Warn("lemma/superlemma mismatch", "word", word, "superlemma", e.Superlemma, "lemma", e.Lemma)
		return word, nil
	}

	class := ClassOf(tag)
	slRoot, lRoot := n.roots(class, base, lemma)
	if startsUpper(word) {
		slRoot = capitalize(slRoot)
		lRoot = capitalize(lRoot)
	}

	rec := &Record{
		Word:           word,
		Superlemma:     e.Superlemma,
		Lemma:          e.Lemma,
		SuperlemmaRoot: slRoot,
		LemmaRoot:      lRoot,
		Class:          class,
		ClassName:      class.String(),
		Normalized:     word,
	}
	if lRoot == "" {
		return word, rec
	}

	out := strings.ReplaceAll(word, lRoot, slRoot)
	if class == Verb {
		out = n.fixVerbEnding(out, slRoot)
	}
	rec.Normalized = out
	return out, rec
}

// Mapping normalizes every word of words. The map holds only words whose
// normalized form differs; records cover every word that was normalized.
func (n *Normalizer) Mapping(words []string) (map[string]string, []Record) {
	out := make(map[string]string)
	var recs []Record
	for _, w := range words {
		norm, rec := n.Normalize(w)
		if rec == nil {
			continue
		}
		recs = append(recs, *rec)
		if norm != w {
			out[w] = norm
		}
	}
	return out, recs
}

func (n *Normalizer) roots(class Class, base, lemma string) (string, string) {
	switch class {
	case Verb:
		drop := 1
		switch {
		case strings.HasSuffix(base, "or"):
			drop = 2
		case strings.HasSuffix(base, "sco"):
			drop = 3
		}
		return dropRunes(base, drop), dropRunes(lemma, drop)
	case Adverb:
		return base, lemma
	case Pronoun:
		drop := 1
		if strings.HasSuffix(base, "er") {
			drop = 2
		}
		return dropRunes(base, drop), dropRunes(lemma, drop)
	default:
		for _, suf := range n.rules.Suffixes() {
			if strings.HasSuffix(base, suf) {
				k := utf8.RuneCountInString(suf)
				return dropRunes(base, k), dropRunes(lemma, k)
			}
		}
		return base, lemma
	}
}

// fixVerbEnding applies the verb-ending table to the part of w following
// the last occurrence of root.
func (n *Normalizer) fixVerbEnding(w, root string) string {
	head, tail := "", w
	if root != "" {
		if i := strings.LastIndex(w, root); i >= 0 {
			head, tail = w[:i+len(root)], w[i+len(root):]
		}
	}
	for _, r := range n.rules.VerbEndings() {
		if r.From == "" {
			continue
		}
		tail = strings.ReplaceAll(tail, r.From, r.To)
	}
	return head + tail
}

// splitTag splits "amo@V" into "amo" and "V".
func splitTag(s string) (string, string) {
	base, tag, _ := strings.Cut(s, "@")
	return base, tag
}

func lastRune(s string) rune {
	r, _ := utf8.DecodeLastRuneInString(s)
	return r
}

func dropRunes(s string, n int) string {
	for ; n > 0 && s != ""; n-- {
		_, size := utf8.DecodeLastRuneInString(s)
		s = s[:len(s)-size]
	}
	return s
}

func startsUpper(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsUpper(r)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
