package extractor

import (
	"encoding/json"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

// Page is a parsed product page shared by all strategies of one extraction.
type Page struct {
	Raw  string
	Doc  *goquery.Document
	Base *url.URL

	textOnce sync.Once
	text     string

	ldOnce  sync.Once
	ldNodes []map[string]any
}

func NewPage(raw, sourceURL string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return nil, err
	}
	base, _ := url.Parse(sourceURL)
	return &Page{Raw: raw, Doc: doc, Base: base}, nil
}

// VisibleText is the body text with scripts and styles stripped.
func (p *Page) VisibleText() string {
	p.textOnce.Do(func() {
		sel := p.Doc.Selection.Clone()
		sel.Find("script, style, noscript, template").Remove()
		p.text = strings.TrimSpace(sel.Text())
	})
	return p.text
}

// JSONLD returns every object found in ld+json blocks, flattening arrays
// and @graph containers. Malformed blocks are skipped.
func (p *Page) JSONLD() []map[string]any {
	p.ldOnce.Do(func() {
		p.Doc.Find(`script[type="application/ld+json"]`).Each(func(i int, s *goquery.Selection) {
			dec := json.NewDecoder(strings.NewReader(s.Text()))
			dec.UseNumber()
			var v any
			if err := dec.Decode(&v); err != nil {
				return
			}
			p.ldNodes = append(p.ldNodes, flattenLD(v)...)
		})
	})
	return p.ldNodes
}

func flattenLD(v any) []map[string]any {
	switch node := v.(type) {
	case []any:
		var out []map[string]any
		for _, item := range node {
			out = append(out, flattenLD(item)...)
		}
		return out
	case map[string]any:
		out := []map[string]any{node}
		if graph, ok := node["@graph"]; ok {
			out = append(out, flattenLD(graph)...)
		}
		return out
	}
	return nil
}

// ldType reports whether a JSON-LD node declares the given @type.
func ldType(node map[string]any, want string) bool {
	switch t := node["@type"].(type) {
	case string:
		return strings.EqualFold(t, want)
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && strings.EqualFold(s, want) {
				return true
			}
		}
	}
	return false
}
