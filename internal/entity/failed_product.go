package entity

import "time"

// FailedProduct mirrors the `failed_products` table: listings whose fetch
// exhausted retries, kept until a later run scrapes them successfully.
type FailedProduct struct {
	ProductID            string
	URL                  string
	FailureReason        string
	Attempts             int
	ConsecutiveFailures  int
	LastAttemptTimestamp time.Time
}
