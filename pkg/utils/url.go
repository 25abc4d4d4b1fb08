package utils

import (
	"fmt"
	"net/url"
	"strings"
)

// ProductURL builds the product page URL from a path template with a single
// %s verb for the escaped identifier.
func ProductURL(template, productID string) string {
	return fmt.Sprintf(template, url.PathEscape(productID))
}

// ToAbsoluteURL converts a relative URL to an absolute URL given a base URL.
func ToAbsoluteURL(base *url.URL, relative string) (string, error) {
	relURL, err := url.Parse(relative)
	if err != nil {
		return "", err
	}
	if base == nil {
		return relURL.String(), nil
	}
	return base.ResolveReference(relURL).String(), nil
}

// AcceptLanguage prefers English content localized for the country, with
// Arabic as the fallback.
func AcceptLanguage(countryCode string) string {
	if countryCode == "" {
		return "en;q=0.9"
	}
	return "en-" + strings.ToUpper(countryCode) + ",en;q=0.9,ar;q=0.8"
}
