package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	ReasonMissingName      = "missing_name"
	ReasonExtractionFailed = "extraction_failed"
	invalidPricePrefix     = "invalid_price:"
)

// InvalidPriceReason renders the reason code for an out-of-range price,
// e.g. "invalid_price:0".
func InvalidPriceReason(price decimal.Decimal) string {
	return invalidPricePrefix + price.String()
}

// Rejection records why one product did not make it into the load.
type Rejection struct {
	ProductID string   `json:"product_id"`
	Reasons   []string `json:"reasons"`
}

// ValidationOutcome is the result of the batch quality gate.
type ValidationOutcome struct {
	Accepted        []ProductSnapshot
	Rejected        []Rejection
	Total           int
	InvalidFraction float64
	Passed          bool
}

// ScrapeBatch is everything one run collected before validation.
type ScrapeBatch struct {
	// Day is the UTC day the scrape started. Alert detection compares it
	// with the day before, even when the run crosses midnight.
	Day       time.Time
	Snapshots []ProductSnapshot
	// ExtractionFailed lists products whose page was fetched but could not be
	// turned into a record; they count against the quality gate.
	ExtractionFailed []string
	// FetchFailed lists products skipped after exhausting fetch retries.
	FetchFailed []string
}

// Attempted is the number of products whose page was retrieved.
func (b ScrapeBatch) Attempted() int {
	return len(b.Snapshots) + len(b.ExtractionFailed)
}
