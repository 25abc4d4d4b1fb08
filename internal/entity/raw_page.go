package entity

import "time"

// RawPage is the markup returned for one product URL.
type RawPage struct {
	URL        string
	Body       string
	StatusCode int
	FetchedAt  time.Time
}
