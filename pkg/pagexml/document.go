// Package pagexml models a PAGE-XML document as an arena of text spans over
// its raw bytes.
//
// Parse records, for every Unicode payload below a TextLine of a TextRegion
// and for the region's own TextEquiv/Unicode, the byte range of its text in
// the original document and splits the decoded text into
// whitespace-delimited tokens with stable offsets. Only line payloads are
// reported by Lines and Texts; every payload is an edit target.
// Edits replace token values only; Render re-emits every byte outside the
// edited payloads untouched, and payloads whose tokens did not change are
// copied verbatim as well.
//
// Elements are matched by local name so any PAGE schema version works.
package pagexml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Token is a whitespace-delimited run inside a line's original text.
type Token struct {
	Start int    // byte offset in Line.Text
	End   int    // exclusive
	Value string // current value, Text[Start:End] until edited
}

// Original returns the token text as parsed.
func (t Token) Original(l *Line) string {
	return l.Text[t.Start:t.End]
}

// Line is one Unicode payload.
type Line struct {
	ID          string
	Region      string
	Text        string // decoded original text, immutable
	Tokens      []Token
	RegionLevel bool // payload of the region's TextEquiv, not of a TextLine

	start, end int // payload byte range in the raw document
}

// Current returns the line text with the current token values.
func (l *Line) Current() string {
	if !l.Changed() {
		return l.Text
	}
	var b strings.Builder
	b.Grow(len(l.Text))
	pos := 0
	for _, t := range l.Tokens {
		b.WriteString(l.Text[pos:t.Start])
		b.WriteString(t.Value)
		pos = t.End
	}
	b.WriteString(l.Text[pos:])
	return b.String()
}

// Changed reports whether any token value differs from its original text.
func (l *Line) Changed() bool {
	for _, t := range l.Tokens {
		if t.Value != l.Text[t.Start:t.End] {
			return true
		}
	}
	return false
}

// Region is a TextRegion with its payloads in document order.
type Region struct {
	ID    string
	Lines []*Line
	Equiv []*Line // region-level TextEquiv payloads
}

// Document is a parsed PAGE-XML file.
type Document struct {
	Regions []*Region

	raw      []byte
	lines    []*Line
	payloads []*Line
}

// Parse builds a Document from raw PAGE-XML bytes.
func Parse(data []byte) (*Document, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = true

	doc := &Document{raw: data}

	// Open TextRegion elements, innermost last, with their depths.
	var (
		regions  []*Region
		regionAt []int
	)
	var (
		depth       int
		names       []string
		lineID      string
		inUnicode   bool
		regionLevel bool
		unicodeAt   int
		textStart   int
		text        strings.Builder
	)
	lineDepth := -1

	for {
		off := int(dec.InputOffset())
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse page xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			names = append(names, t.Name.Local)
			switch t.Name.Local {
			case "TextRegion":
				r := &Region{ID: attr(t, "id")}
				doc.Regions = append(doc.Regions, r)
				regions = append(regions, r)
				regionAt = append(regionAt, depth)
			case "TextLine":
				if len(regions) > 0 && lineDepth < 0 {
					lineID = attr(t, "id")
					lineDepth = depth
				}
			case "Unicode":
				if inUnicode {
					break
				}
				regionLevel = lineDepth < 0 && len(regionAt) > 0 &&
					depth == regionAt[len(regionAt)-1]+2 && names[len(names)-2] == "TextEquiv"
				if lineDepth < 0 && !regionLevel {
					// Unicode of some other element, e.g. a TableRegion.
					break
				}
				inUnicode = true
				unicodeAt = depth
				textStart = int(dec.InputOffset())
				text.Reset()
			}
		case xml.CharData:
			if inUnicode {
				text.Write(t)
			}
		case xml.EndElement:
			switch {
			case inUnicode && depth == unicodeAt:
				inUnicode = false
				r := regions[len(regions)-1]
				if regionLevel {
					l := newLine(r.ID, r.ID, text.String(), textStart, off)
					l.RegionLevel = true
					r.Equiv = append(r.Equiv, l)
					doc.payloads = append(doc.payloads, l)
					break
				}
				l := newLine(lineID, r.ID, text.String(), textStart, off)
				r.Lines = append(r.Lines, l)
				doc.lines = append(doc.lines, l)
				doc.payloads = append(doc.payloads, l)
			case depth == lineDepth:
				lineDepth = -1
				lineID = ""
			case len(regionAt) > 0 && depth == regionAt[len(regionAt)-1]:
				regions = regions[:len(regions)-1]
				regionAt = regionAt[:len(regionAt)-1]
			}
			names = names[:len(names)-1]
			depth--
		}
	}
	return doc, nil
}

func newLine(id, region, text string, start, end int) *Line {
	l := &Line{ID: id, Region: region, Text: text, start: start, end: end}
	l.Tokens = Tokenize(text)
	return l
}

// Tokenize splits s into maximal runs of non-space runes.
func Tokenize(s string) []Token {
	var tokens []Token
	start := -1
	for i, r := range s {
		if unicode.IsSpace(r) {
			if start >= 0 {
				tokens = append(tokens, Token{Start: start, End: i, Value: s[start:i]})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		tokens = append(tokens, Token{Start: start, End: len(s), Value: s[start:]})
	}
	return tokens
}

func attr(se xml.StartElement, local string) string {
	for _, a := range se.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// Lines returns every TextLine payload in document order.
func (d *Document) Lines() []*Line {
	return d.lines
}

// Payloads returns every payload, line and region level, in document order.
func (d *Document) Payloads() []*Line {
	return d.payloads
}

// Texts returns the current text of every TextLine payload in document order.
func (d *Document) Texts() []string {
	texts := make([]string, len(d.lines))
	for i, l := range d.lines {
		texts[i] = l.Current()
	}
	return texts
}

// Raw returns the bytes the document was parsed from.
func (d *Document) Raw() []byte {
	return d.raw
}

// Render returns the document bytes with edited payloads rewritten.
func (d *Document) Render() []byte {
	var buf bytes.Buffer
	buf.Grow(len(d.raw))
	pos := 0
	for _, l := range d.payloads {
		if !l.Changed() {
			continue
		}
		buf.Write(d.raw[pos:l.start])
		escapeText(&buf, l.Current())
		pos = l.end
	}
	buf.Write(d.raw[pos:])
	return buf.Bytes()
}

var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escapeText(buf *bytes.Buffer, s string) {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "�")
	}
	textEscaper.WriteString(buf, s)
}
