package entity

import "time"

type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// RunReport is the operator-facing account of one pipeline run. Individual
// product failures only show up here as counts.
type RunReport struct {
	RunID            string     `json:"run_id"`
	Status           RunStatus  `json:"status"`
	Stage            string     `json:"stage,omitempty"`
	StartedAt        time.Time  `json:"started_at"`
	FinishedAt       *time.Time `json:"finished_at,omitempty"`
	Total            int        `json:"total"`
	Scraped          int        `json:"scraped"`
	FetchFailed      int        `json:"fetch_failed"`
	ExtractionFailed int        `json:"extraction_failed"`
	Rejected         int        `json:"rejected"`
	InvalidFraction  float64    `json:"invalid_fraction"`
	Loaded           int        `json:"loaded"`
	Alerts           int        `json:"alerts"`
	FailureKind      string     `json:"failure_kind,omitempty"`
	Error            string     `json:"error,omitempty"`
}
