// Package rules holds the character and suffix tables that drive word
// extraction, abbreviation expansion and morphological normalization.
//
// A RuleSet is built once (Default or Load) and never mutated afterwards;
// every component receives it at construction.
package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Replacement is a literal old -> new substring rewrite.
type Replacement struct {
	From string `yaml:"from" toml:"from" json:"from"`
	To   string `yaml:"to" toml:"to" json:"to"`
}

// RuleSet is the immutable configuration shared by all components.
type RuleSet struct {
	clean       []string
	special     []string
	roman       string
	expansion   []Replacement
	stopwords   map[string]struct{}
	suffixes    []string
	verbEndings []Replacement
}

// File is the on-disk representation of a RuleSet. Omitted fields keep
// their default value.
type File struct {
	CharactersToClean  []string      `yaml:"characters_to_clean" toml:"characters_to_clean"`
	SpecialCharacters  []string      `yaml:"special_characters" toml:"special_characters"`
	RomanNumeralMarker *string       `yaml:"roman_numeral_marker" toml:"roman_numeral_marker"`
	ExpansionRules     []Replacement `yaml:"expansion_rules" toml:"expansion_rules"`
	Stopwords          []string      `yaml:"stopwords" toml:"stopwords"`
	Suffixes           []string      `yaml:"suffixes" toml:"suffixes"`
	VerbEndings        []Replacement `yaml:"verb_endings" toml:"verb_endings"`
}

// Default returns the built-in tables for medieval Latin transcriptions.
func Default() *RuleSet {
	return New(defaultFile())
}

func defaultFile() File {
	roman := "\u033F"
	return File{
		CharactersToClean: []string{".", ",", ";", ":", "!", "?", "·", "⸳", "¶", "(", ")", "[", "]", "\u0301"},
		SpecialCharacters: []string{
			"\u0304", "\u0303", "\u0305",
			"ā", "ē", "ī", "ō", "ū",
			"ꝑ", "ꝓ", "ꝗ", "ꝙ", "ꝯ", "ꝰ", "⁊", "ꝫ",
		},
		RomanNumeralMarker: &roman,
		ExpansionRules: []Replacement{
			{"ꝑ", "per"},
			{"ꝓ", "pro"},
			{"ꝗ", "quod"},
			{"ꝙ", "quam"},
			{"ꝯ", "con"},
			{"ꝰ", "us"},
			{"⁊", "et"},
			{"ꝫ", "et"},
			{"ā", "am"},
			{"ē", "em"},
			{"ī", "im"},
			{"ō", "om"},
			{"ū", "um"},
			{"\u0304", "m"},
			{"\u0303", "n"},
			{"\u0305", ""},
		},
		Stopwords:   []string{"alea@NN", "a@AP", "hilla@NN"},
		Suffixes:    []string{"um", "us", "u", "e", "os", "a", "us", "is", "es", "as"},
		VerbEndings: []Replacement{{"nci", "nti"}, {"y", "i"}},
	}
}

// New builds a RuleSet from f. Nil tables in f fall back to the defaults.
func New(f File) *RuleSet {
	def := defaultFile()
	if f.CharactersToClean == nil {
		f.CharactersToClean = def.CharactersToClean
	}
	if f.SpecialCharacters == nil {
		f.SpecialCharacters = def.SpecialCharacters
	}
	if f.RomanNumeralMarker == nil {
		f.RomanNumeralMarker = def.RomanNumeralMarker
	}
	if f.ExpansionRules == nil {
		f.ExpansionRules = def.ExpansionRules
	}
	if f.Stopwords == nil {
		f.Stopwords = def.Stopwords
	}
	if f.Suffixes == nil {
		f.Suffixes = def.Suffixes
	}
	if f.VerbEndings == nil {
		f.VerbEndings = def.VerbEndings
	}

	rs := &RuleSet{
		clean:       nonEmpty(f.CharactersToClean),
		special:     nonEmpty(f.SpecialCharacters),
		roman:       *f.RomanNumeralMarker,
		expansion:   append([]Replacement(nil), f.ExpansionRules...),
		stopwords:   make(map[string]struct{}, len(f.Stopwords)),
		suffixes:    nonEmpty(f.Suffixes),
		verbEndings: append([]Replacement(nil), f.VerbEndings...),
	}
	for _, sw := range f.Stopwords {
		rs.stopwords[sw] = struct{}{}
	}
	return rs
}

// Load reads a rules file (YAML or TOML, chosen by extension) on top of
// the defaults.
func Load(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules %s: %w", path, err)
	}
	var f File
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, &f)
	default:
		err = yaml.Unmarshal(data, &f)
	}
	if err != nil {
		return nil, fmt.Errorf("parse rules %s: %w", path, err)
	}
	return New(f), nil
}

// Clean removes every character-to-clean from s.
func (rs *RuleSet) Clean(s string) string {
	for _, c := range rs.clean {
		s = strings.ReplaceAll(s, c, "")
	}
	return s
}

// TrimClean splits token into leading characters-to-clean, the core word
// and trailing characters-to-clean.
func (rs *RuleSet) TrimClean(token string) (lead, core, trail string) {
	start := 0
	for start < len(token) {
		n := rs.cleanPrefixLen(token[start:])
		if n == 0 {
			break
		}
		start += n
	}
	end := len(token)
	for end > start {
		n := rs.cleanSuffixLen(token[start:end])
		if n == 0 {
			break
		}
		end -= n
	}
	return token[:start], token[start:end], token[end:]
}

func (rs *RuleSet) cleanPrefixLen(s string) int {
	for _, c := range rs.clean {
		if strings.HasPrefix(s, c) {
			return len(c)
		}
	}
	return 0
}

func (rs *RuleSet) cleanSuffixLen(s string) int {
	for _, c := range rs.clean {
		if strings.HasSuffix(s, c) {
			return len(c)
		}
	}
	return 0
}

// ContainsClean reports whether s holds any character-to-clean.
func (rs *RuleSet) ContainsClean(s string) bool {
	for _, c := range rs.clean {
		if strings.Contains(s, c) {
			return true
		}
	}
	return false
}

// IsAbbreviated reports whether word carries an abbreviation marker.
func (rs *RuleSet) IsAbbreviated(word string) bool {
	for _, c := range rs.special {
		if strings.Contains(word, c) {
			return true
		}
	}
	return false
}

// IsRomanNumeral reports whether word carries the roman numeral marker.
func (rs *RuleSet) IsRomanNumeral(word string) bool {
	return rs.roman != "" && strings.Contains(word, rs.roman)
}

// Expand applies the ordered expansion rules to word.
func (rs *RuleSet) Expand(word string) string {
	for _, r := range rs.expansion {
		if r.From == "" {
			continue
		}
		word = strings.ReplaceAll(word, r.From, r.To)
	}
	return word
}

// IsStopword reports whether a tagged superlemma is excluded from normalization.
func (rs *RuleSet) IsStopword(superlemma string) bool {
	_, ok := rs.stopwords[superlemma]
	return ok
}

// Suffixes returns the ordered suffix list for the default word class.
func (rs *RuleSet) Suffixes() []string {
	return append([]string(nil), rs.suffixes...)
}

// VerbEndings returns the ordered verb-ending replacements.
func (rs *RuleSet) VerbEndings() []Replacement {
	return append([]Replacement(nil), rs.verbEndings...)
}

// CharactersToClean returns the characters removed during extraction.
func (rs *RuleSet) CharactersToClean() []string {
	return append([]string(nil), rs.clean...)
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
