package extractor

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var leadingNumber = regexp.MustCompile(`^[\d,]+\.?\d*`)

// ParsePrice turns display text such as "SAR 1,299.00" into a decimal.
// Everything but digits and separators is dropped, commas are treated as
// thousands separators and a period only counts as a decimal point when a
// digit follows it, so ".99" is 0.99 while the period in "ر.س" is ignored.
// Arabic-Indic digits are accepted. Empty or unparsable input yields zero.
func ParsePrice(text string) decimal.Decimal {
	runes := []rune(text)
	var b strings.Builder
	for i, r := range runes {
		if d, ok := asciiDigit(r); ok {
			b.WriteRune(d)
			continue
		}
		if r == '.' && i+1 < len(runes) {
			if _, next := asciiDigit(runes[i+1]); next {
				b.WriteRune('.')
			}
		}
	}

	cleaned := b.String()
	if cleaned == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// parseLeadingPrice parses the number a text starts with, e.g. "4,649.00SAR".
func parseLeadingPrice(text string) (decimal.Decimal, bool) {
	m := leadingNumber.FindString(strings.TrimSpace(text))
	if m == "" {
		return decimal.Zero, false
	}
	d := ParsePrice(m)
	return d, d.IsPositive()
}

func asciiDigit(r rune) (rune, bool) {
	switch {
	case r >= '0' && r <= '9':
		return r, true
	case r >= '٠' && r <= '٩':
		return '0' + (r - '٠'), true
	case r >= '۰' && r <= '۹':
		return '0' + (r - '۰'), true
	}
	return 0, false
}
