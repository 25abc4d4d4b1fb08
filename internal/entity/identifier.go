package entity

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultIdentifierPattern is the marketplace SKU scheme: a leading "N"
// followed by alphanumerics.
const DefaultIdentifierPattern = `^N[A-Za-z0-9]+$`

// IdentifierRule validates product identifiers against a configurable scheme.
type IdentifierRule struct {
	pattern *regexp.Regexp
}

func NewIdentifierRule(pattern string) (IdentifierRule, error) {
	if pattern == "" {
		pattern = DefaultIdentifierPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return IdentifierRule{}, fmt.Errorf("invalid product id pattern %q: %w", pattern, err)
	}
	return IdentifierRule{pattern: re}, nil
}

func (r IdentifierRule) Valid(id string) bool {
	if r.pattern == nil {
		return id != ""
	}
	return r.pattern.MatchString(id)
}

// Normalize trims whitespace around an identifier read from config or a file.
func (r IdentifierRule) Normalize(id string) string {
	return strings.TrimSpace(id)
}
