package fetcher

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/user/price-tracker/internal/entity"
	"github.com/user/price-tracker/internal/repository"
	"github.com/user/price-tracker/pkg/errs"
	"github.com/user/price-tracker/pkg/metrics"
)

// FetchFailure is returned once a URL could not be retrieved. It carries the
// last underlying error.
type FetchFailure struct {
	URL         string
	Attempts    int
	RateLimited bool
	Err         error
}

func (f *FetchFailure) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempt(s): %v", f.URL, f.Attempts, f.Err)
}

func (f *FetchFailure) Unwrap() error {
	return f.Err
}

// Fetcher retrieves product pages through an injected transport, retrying
// transient failures in place.
type Fetcher struct {
	transport repository.PageTransport
	policy    RetryPolicy
	sleep     Sleeper
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

type Option func(*Fetcher)

func WithSleeper(s Sleeper) Option {
	return func(f *Fetcher) { f.sleep = s }
}

func WithLogger(l *zap.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Fetcher) { f.metrics = m }
}

func New(transport repository.PageTransport, policy RetryPolicy, opts ...Option) *Fetcher {
	f := &Fetcher{
		transport: transport,
		policy:    policy,
		sleep:     SleepContext,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch returns the page or a *FetchFailure marked errs.ErrFetch. It never
// panics on transport errors; the caller decides whether to skip the product.
func (f *Fetcher) Fetch(ctx context.Context, url, countryCode string) (*entity.RawPage, error) {
	log := f.logger.With(zap.String("url", url))
	failure := &FetchFailure{URL: url}

	for attempt := 0; attempt < f.policy.attempts(); attempt++ {
		if err := ctx.Err(); err != nil {
			failure.Err = err
			return nil, f.abort(failure)
		}

		failure.Attempts = attempt + 1
		page, err := f.transport.Fetch(ctx, url, countryCode)
		if err == nil {
			f.metrics.IncFetchAttempt("success")
			return page, nil
		}
		f.metrics.IncFetchAttempt("failure")
		failure.Err = err

		if ctx.Err() != nil {
			return nil, f.abort(failure)
		}
		if !f.policy.retryable(err) {
			log.Warn("Fetch failed, not retrying", zap.Int("attempt", attempt+1), zap.Error(err))
			return nil, f.fail(failure)
		}

		delay := f.policy.Delay(attempt)
		if IsRateLimited(err) {
			failure.RateLimited = true
			f.metrics.IncFetchRetry("rate_limited")
			log.Warn("Rate limited, backing off",
				zap.Int("attempt", attempt+1), zap.Duration("delay", delay), zap.Error(err))
		} else {
			f.metrics.IncFetchRetry("transient")
			log.Warn("Fetch attempt failed, backing off",
				zap.Int("attempt", attempt+1), zap.Duration("delay", delay), zap.Error(err))
		}

		if err := f.sleep(ctx, delay); err != nil {
			failure.Err = err
			return nil, f.abort(failure)
		}
	}

	log.Error("Fetch retries exhausted", zap.Int("attempts", failure.Attempts), zap.Error(failure.Err))
	return nil, f.fail(failure)
}

func (f *Fetcher) fail(failure *FetchFailure) error {
	err := errs.Mark(failure, errs.ErrFetch)
	if failure.RateLimited {
		err = errs.Mark(err, errs.ErrRateLimited)
	}
	return err
}

// abort is used only once the caller's context is done.
func (f *Fetcher) abort(failure *FetchFailure) error {
	return errs.Mark(f.fail(failure), errs.ErrAborted)
}

