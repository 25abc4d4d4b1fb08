package extractor

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"github.com/user/price-tracker/pkg/utils"
)

// A strategy extracts one field from a page or reports that it found
// nothing. Strategies never fail the extraction on their own.
type (
	PriceStrategy func(p *Page) (decimal.Decimal, bool)
	TextStrategy  func(p *Page) (string, bool)
	FlagStrategy  func(p *Page) (bool, bool)
)

// Chains holds the ordered strategies per field. The first strategy that
// yields a usable value wins.
type Chains struct {
	Price         []PriceStrategy
	OriginalPrice []PriceStrategy
	Seller        []TextStrategy
	Name          []TextStrategy
	OutOfStock    []FlagStrategy
	Brand         []TextStrategy
	Image         []TextStrategy
}

// DefaultChains tries inline storefront state first, then structured data,
// then DOM heuristics.
func DefaultChains() Chains {
	return Chains{
		Price: []PriceStrategy{
			InlineJSONNumber("sale_price"),
			JSONLDOfferPrice(),
			SelectorPrice(`[data-qa="pdp-price-final"]`),
			LeadingNumberPrice(`[class*="Price"]`, `[class*="price"]`),
		},
		OriginalPrice: []PriceStrategy{
			InlineJSONNumber("price"),
			SelectorPrice(`[data-qa="pdp-price-was"]`, `[class*="priceWas"]`),
		},
		Seller: []TextStrategy{
			InlineJSONString("store_name"),
			SelectorText(`a[data-qa="pdp-seller-name"]`, `.sellerName`, `[class*="seller"]`),
		},
		Name: []TextStrategy{
			SelectorText(`h1[data-qa="pdp-name"]`, `h1.productTitle`, `h1`),
		},
		OutOfStock: []FlagStrategy{
			MarkerPresent(`[data-qa="pdp-out-of-stock"]`),
			TextContains("out of stock"),
		},
		Brand: []TextStrategy{
			JSONLDBrand(),
		},
		Image: []TextStrategy{
			MetaContent(`meta[property="og:image"]`),
		},
	}
}

func firstPrice(p *Page, chain []PriceStrategy) (decimal.Decimal, bool) {
	for _, s := range chain {
		if v, ok := s(p); ok && v.IsPositive() {
			return v, true
		}
	}
	return decimal.Zero, false
}

func firstText(p *Page, chain []TextStrategy) (string, bool) {
	for _, s := range chain {
		if v, ok := s(p); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

func firstFlag(p *Page, chain []FlagStrategy) (bool, bool) {
	for _, s := range chain {
		if v, ok := s(p); ok {
			return v, true
		}
	}
	return false, false
}

// InlineJSONNumber reads `"key": 123.45` from the raw markup, where
// storefronts inline their page state. Quoted values such as
// `"key": "1,299.00"` go through ParsePrice.
func InlineJSONNumber(key string) PriceStrategy {
	re := regexp.MustCompile(`"` + regexp.QuoteMeta(key) + `"\s*:\s*(?:"([^"]*)"|([\d.]+))`)
	return func(p *Page) (decimal.Decimal, bool) {
		m := re.FindStringSubmatch(p.Raw)
		if m == nil {
			return decimal.Zero, false
		}
		if m[2] == "" {
			d := ParsePrice(m[1])
			return d, d.IsPositive()
		}
		d, err := decimal.NewFromString(m[2])
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	}
}

// InlineJSONString reads `"key": "value"` from the raw markup.
func InlineJSONString(key string) TextStrategy {
	re := regexp.MustCompile(`"` + regexp.QuoteMeta(key) + `"\s*:\s*"([^"]+)"`)
	return func(p *Page) (string, bool) {
		m := re.FindStringSubmatch(p.Raw)
		if m == nil {
			return "", false
		}
		v := strings.TrimSpace(m[1])
		return v, v != ""
	}
}

// JSONLDOfferPrice reads offers.price of a schema.org Product.
func JSONLDOfferPrice() PriceStrategy {
	return func(p *Page) (decimal.Decimal, bool) {
		for _, node := range p.JSONLD() {
			if !ldType(node, "Product") {
				continue
			}
			for _, offer := range offers(node["offers"]) {
				for _, key := range []string{"price", "lowPrice"} {
					if d, ok := ldDecimal(offer[key]); ok && d.IsPositive() {
						return d, true
					}
				}
			}
		}
		return decimal.Zero, false
	}
}

// JSONLDBrand reads the brand of a schema.org Product, given either as a
// plain string or as a Brand object.
func JSONLDBrand() TextStrategy {
	return func(p *Page) (string, bool) {
		for _, node := range p.JSONLD() {
			if !ldType(node, "Product") {
				continue
			}
			switch b := node["brand"].(type) {
			case string:
				if v := strings.TrimSpace(b); v != "" {
					return v, true
				}
			case map[string]any:
				if name, ok := b["name"].(string); ok && strings.TrimSpace(name) != "" {
					return strings.TrimSpace(name), true
				}
			}
		}
		return "", false
	}
}

func offers(v any) []map[string]any {
	switch o := v.(type) {
	case map[string]any:
		return []map[string]any{o}
	case []any:
		var out []map[string]any
		for _, item := range o {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

func ldDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		return d, err == nil
	case string:
		d := ParsePrice(n)
		return d, d.IsPositive()
	case nil:
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(fmt.Sprint(v))
	return d, err == nil
}

// SelectorPrice parses the full text of matching elements, e.g.
// "SAR 99.99".
func SelectorPrice(selectors ...string) PriceStrategy {
	return func(p *Page) (decimal.Decimal, bool) {
		for _, sel := range selectors {
			var found decimal.Decimal
			p.Doc.Find(sel).EachWithBreak(func(i int, s *goquery.Selection) bool {
				if d := ParsePrice(s.Text()); d.IsPositive() {
					found = d
					return false
				}
				return true
			})
			if found.IsPositive() {
				return found, true
			}
		}
		return decimal.Zero, false
	}
}

// LeadingNumberPrice takes the first element whose text starts with a
// number that parses as a positive price.
func LeadingNumberPrice(selectors ...string) PriceStrategy {
	return func(p *Page) (decimal.Decimal, bool) {
		for _, sel := range selectors {
			var found decimal.Decimal
			p.Doc.Find(sel).EachWithBreak(func(i int, s *goquery.Selection) bool {
				if d, ok := parseLeadingPrice(s.Text()); ok {
					found = d
					return false
				}
				return true
			})
			if found.IsPositive() {
				return found, true
			}
		}
		return decimal.Zero, false
	}
}

// SelectorText returns the first non-blank text among the elements matched
// by selectors, tried in order.
func SelectorText(selectors ...string) TextStrategy {
	return func(p *Page) (string, bool) {
		for _, sel := range selectors {
			var found string
			p.Doc.Find(sel).EachWithBreak(func(i int, s *goquery.Selection) bool {
				found = strings.Join(strings.Fields(s.Text()), " ")
				return found == ""
			})
			if found != "" {
				return found, true
			}
		}
		return "", false
	}
}

// MetaContent returns the content attribute of the first matching meta tag,
// resolved against the page URL.
func MetaContent(selector string) TextStrategy {
	return func(p *Page) (string, bool) {
		content, ok := p.Doc.Find(selector).First().Attr("content")
		if !ok || strings.TrimSpace(content) == "" {
			return "", false
		}
		abs, err := utils.ToAbsoluteURL(p.Base, strings.TrimSpace(content))
		if err != nil {
			return "", false
		}
		return abs, true
	}
}

// MarkerPresent reports true when an explicit marker element exists.
func MarkerPresent(selector string) FlagStrategy {
	return func(p *Page) (bool, bool) {
		if p.Doc.Find(selector).Length() > 0 {
			return true, true
		}
		return false, false
	}
}

// TextContains reports true when the visible text contains phrase,
// ignoring case.
func TextContains(phrase string) FlagStrategy {
	phrase = strings.ToLower(phrase)
	return func(p *Page) (bool, bool) {
		if strings.Contains(strings.ToLower(p.VisibleText()), phrase) {
			return true, true
		}
		return false, false
	}
}
