package dict

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalizer transforms a term before lookup.
type Normalizer func(string) string

var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeLowercaseASCII lowercases and strips accents (e.g. DOMINUS, dñs -> dominus, dns).
func NormalizeLowercaseASCII(s string) string {
	result, _, _ := transform.String(stripAccents, strings.ToLower(s))
	return result
}

// NormalizeLowercaseUTF8 lowercases but preserves accents and abbreviation marks.
func NormalizeLowercaseUTF8(s string) string {
	return strings.ToLower(s)
}

// NormalizeNFC composes combining marks (u + U+0304 -> ū) without changing case,
// so precomposed and decomposed transcriptions of the same sign match.
func NormalizeNFC(s string) string {
	return norm.NFC.String(s)
}

// NormalizeNone returns the term unchanged.
func NormalizeNone(s string) string {
	return s
}

var normalizers = map[string]Normalizer{
	"lowercase_ascii": NormalizeLowercaseASCII,
	"lowercase_utf8":  NormalizeLowercaseUTF8,
	"nfc":             NormalizeNFC,
	"none":            NormalizeNone,
}

// ValidNormalizeMode reports whether mode names a known normalizer.
func ValidNormalizeMode(mode string) bool {
	_, ok := normalizers[mode]
	return ok
}

// GetNormalizer returns the normalizer for the given mode. Unknown modes
// get lowercase_ascii; manifests are validated with ValidNormalizeMode
// before they reach here.
func GetNormalizer(mode string) Normalizer {
	if fn, ok := normalizers[mode]; ok {
		return fn
	}
	return NormalizeLowercaseASCII
}
