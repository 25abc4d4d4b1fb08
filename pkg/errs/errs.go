package errs

import (
	"errors"
	"fmt"
	"net/http"

	cr "github.com/cockroachdb/errors"
)

// Failure kinds. Errors are marked with one of these so callers can classify
// them with Is regardless of how deeply they were wrapped.
var (
	ErrFetch         = errors.New("fetch failed")
	ErrRateLimited   = errors.New("rate limited by upstream")
	ErrNotFound      = errors.New("product page not found")
	ErrPermanent     = errors.New("permanent upstream error")
	ErrExtraction    = errors.New("extraction failed")
	ErrEmptyBatch    = errors.New("no records to validate")
	ErrBatchQuality  = errors.New("batch quality gate failed")
	ErrSink          = errors.New("sink failure")
	ErrRunInProgress = errors.New("pipeline run already in progress")
	ErrAborted       = errors.New("run aborted")
	ErrNoProducts    = errors.New("no products to track")
	ErrInvalidInput  = errors.New("invalid input")
)

func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return cr.Wrap(err, msg)
}

func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return cr.Wrapf(err, format, args...)
}

func New(msg string) error {
	return cr.New(msg)
}

func Newf(format string, args ...any) error {
	return cr.Newf(format, args...)
}

func Mark(err error, markErr error) error {
	if err == nil {
		return markErr
	}
	return cr.Mark(err, markErr)
}

// Is reports whether err is, or was marked as, target.
func Is(err, target error) bool {
	return cr.Is(err, target)
}

func As(err error, target any) bool {
	return cr.As(err, target)
}

// Kind maps an error to the label operators see in logs, metrics and run reports.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case Is(err, ErrBatchQuality):
		return "batch_quality"
	case Is(err, ErrEmptyBatch):
		return "empty_batch"
	case Is(err, ErrSink):
		return "sink"
	case Is(err, ErrRunInProgress):
		return "run_in_progress"
	case Is(err, ErrNoProducts):
		return "no_products"
	case Is(err, ErrAborted):
		return "aborted"
	case Is(err, ErrRateLimited):
		return "rate_limited"
	case Is(err, ErrNotFound):
		return "not_found"
	case Is(err, ErrFetch):
		return "fetch"
	case Is(err, ErrExtraction):
		return "extraction"
	default:
		return "unknown"
	}
}

// Retryable reports whether a failed stage may be re-run. Quality gate
// failures point at systemic breakage and must not be retried blindly.
// A bare context error from a downstream timeout is retryable; callers mark
// ErrAborted themselves once their own context is done.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case Is(err, ErrBatchQuality), Is(err, ErrEmptyBatch), Is(err, ErrRunInProgress), Is(err, ErrNoProducts):
		return false
	case Is(err, ErrAborted):
		return false
	}
	return true
}

// ExitCode is the process exit status used by the one-shot pipeline binary.
func ExitCode(err error) int {
	switch Kind(err) {
	case "":
		return 0
	case "batch_quality", "empty_batch":
		return 2
	case "sink":
		return 3
	case "run_in_progress":
		return 4
	default:
		return 1
	}
}

// StatusError is a non-2xx answer from an upstream page or proxy.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d for %s", e.Code, e.URL)
}

// FromStatus returns nil for 2xx codes and a marked *StatusError otherwise.
// 429 is a rate limit signal, 404 means the listing is gone, and other 4xx
// codes (bad key, forbidden) will not heal on retry.
func FromStatus(url string, code int) error {
	if code >= 200 && code < 300 {
		return nil
	}
	err := error(&StatusError{URL: url, Code: code})
	switch {
	case code == http.StatusTooManyRequests:
		return Mark(err, ErrRateLimited)
	case code == http.StatusNotFound:
		return Mark(err, ErrNotFound)
	case code == http.StatusRequestTimeout:
		return err
	case code >= 400 && code < 500:
		return Mark(err, ErrPermanent)
	}
	return err
}
