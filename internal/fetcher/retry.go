package fetcher

import (
	"context"
	"strings"
	"time"

	"github.com/user/price-tracker/pkg/errs"
)

// RetryPolicy bounds how often and how patiently one URL is re-requested.
type RetryPolicy struct {
	MaxAttempts int
	// Delays is indexed by the zero-based attempt that just failed and
	// capped at its last entry.
	Delays []time.Duration
	// Retryable decides whether a failed attempt may be repeated. Nil means
	// DefaultRetryable.
	Retryable func(error) bool
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Delays:      []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second},
		Retryable:   DefaultRetryable,
	}
}

// Delay returns the wait after the given zero-based attempt failed.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if len(p.Delays) == 0 {
		return 0
	}
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= len(p.Delays) {
		attempt = len(p.Delays) - 1
	}
	return p.Delays[attempt]
}

func (p RetryPolicy) retryable(err error) bool {
	if p.Retryable == nil {
		return DefaultRetryable(err)
	}
	return p.Retryable(err)
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// DefaultRetryable treats everything as transient except a missing page and
// a permanent upstream refusal. A transport's own request timeout counts as
// transient; cancellation of the caller's context is handled by Fetch.
func DefaultRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errs.Is(err, errs.ErrNotFound), errs.Is(err, errs.ErrPermanent):
		return false
	}
	return true
}

// IsRateLimited reports an upstream throttling signal: a 429 status or an
// error message that says so.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if errs.Is(err, errs.ErrRateLimited) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"429", "rate limit", "ratelimit", "too many requests"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the real Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
