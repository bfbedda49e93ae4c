package pagexml

import (
	"bytes"
	"fmt"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

var (
	rootExpr    = xpath.MustCompile("/*")
	regionExpr  = xpath.MustCompile("//*[local-name()='TextRegion']")
	lineExpr    = xpath.MustCompile(".//*[local-name()='TextLine']")
	unicodeExpr = xpath.MustCompile(".//*[local-name()='Unicode']")
)

// Outline summarizes the region/line structure of a PAGE-XML document.
type Outline struct {
	Root      string          `json:"root"`
	Namespace string          `json:"namespace"`
	Regions   []RegionOutline `json:"regions"`
}

// RegionOutline describes one TextRegion.
type RegionOutline struct {
	ID       string `json:"id"`
	Type     string `json:"type,omitempty"`
	Lines    int    `json:"lines"`
	Payloads int    `json:"payloads"`
}

// LineCount returns the number of TextLine elements across all regions.
func (o *Outline) LineCount() int {
	n := 0
	for _, r := range o.Regions {
		n += r.Lines
	}
	return n
}

// ReadOutline parses data into a DOM and queries it with XPath.
func ReadOutline(data []byte) (*Outline, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse page xml: %w", err)
	}

	o := &Outline{Regions: []RegionOutline{}}
	if root := xmlquery.QuerySelector(doc, rootExpr); root != nil {
		o.Root = root.Data
		o.Namespace = root.NamespaceURI
	}

	for _, region := range xmlquery.QuerySelectorAll(doc, regionExpr) {
		ro := RegionOutline{
			ID:   region.SelectAttr("id"),
			Type: region.SelectAttr("type"),
		}
		for _, line := range xmlquery.QuerySelectorAll(region, lineExpr) {
			ro.Lines++
			ro.Payloads += len(xmlquery.QuerySelectorAll(line, unicodeExpr))
		}
		o.Regions = append(o.Regions, ro)
	}
	return o, nil
}
