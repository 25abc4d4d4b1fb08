package fetcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/price-tracker/internal/entity"
	"github.com/user/price-tracker/pkg/errs"
	"github.com/user/price-tracker/pkg/metrics"
)

type scriptedTransport struct {
	errs  []error
	calls int
}

func (s *scriptedTransport) Fetch(ctx context.Context, url, countryCode string) (*entity.RawPage, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i >= len(s.errs) && len(s.errs) > 0 && s.errs[len(s.errs)-1] != nil {
		return nil, s.errs[len(s.errs)-1]
	}
	return &entity.RawPage{URL: url, Body: "<html></html>", StatusCode: 200}, nil
}

type recordingSleeper struct {
	delays []time.Duration
}

func (r *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return ctx.Err()
}

func TestFetch_ContinuousFailure(t *testing.T) {
	transport := &scriptedTransport{errs: []error{errors.New("proxy: connection reset")}}
	sleeper := &recordingSleeper{}
	m := metrics.New()
	f := New(transport, DefaultRetryPolicy(), WithSleeper(sleeper.sleep), WithMetrics(m))

	page, err := f.Fetch(context.Background(), "https://shop.test/N1/p/", "sa")

	require.Error(t, err)
	assert.Nil(t, page)
	assert.Equal(t, 3, transport.calls)
	assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second}, sleeper.delays)
	assert.True(t, errs.Is(err, errs.ErrFetch))
	assert.Equal(t, "fetch", errs.Kind(err))

	var failure *FetchFailure
	require.True(t, errs.As(err, &failure))
	assert.Equal(t, 3, failure.Attempts)
	assert.False(t, failure.RateLimited)
	assert.Equal(t, float64(3), testutil.ToFloat64(m.FetchAttempts.WithLabelValues("failure")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.FetchRetries.WithLabelValues("transient")))
}

func TestFetch_SucceedsAfterRateLimit(t *testing.T) {
	transport := &scriptedTransport{errs: []error{
		errs.FromStatus("https://shop.test/N1/p/", 429),
		nil,
	}}
	sleeper := &recordingSleeper{}
	m := metrics.New()
	f := New(transport, DefaultRetryPolicy(), WithSleeper(sleeper.sleep), WithMetrics(m))

	page, err := f.Fetch(context.Background(), "https://shop.test/N1/p/", "sa")

	require.NoError(t, err)
	assert.Equal(t, "https://shop.test/N1/p/", page.URL)
	assert.Equal(t, 2, transport.calls)
	assert.Equal(t, []time.Duration{5 * time.Second}, sleeper.delays)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.FetchRetries.WithLabelValues("rate_limited")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.FetchAttempts.WithLabelValues("success")))
}

func TestFetch_RateLimitExhausted(t *testing.T) {
	transport := &scriptedTransport{errs: []error{errors.New("upstream said: Too Many Requests")}}
	sleeper := &recordingSleeper{}
	f := New(transport, DefaultRetryPolicy(), WithSleeper(sleeper.sleep))

	_, err := f.Fetch(context.Background(), "u", "sa")

	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrRateLimited))
	assert.Equal(t, "rate_limited", errs.Kind(err))
	assert.Len(t, sleeper.delays, 3)
}

func TestFetch_NonRetryableStopsImmediately(t *testing.T) {
	transport := &scriptedTransport{errs: []error{errs.FromStatus("u", 404)}}
	sleeper := &recordingSleeper{}
	f := New(transport, DefaultRetryPolicy(), WithSleeper(sleeper.sleep))

	_, err := f.Fetch(context.Background(), "u", "sa")

	require.Error(t, err)
	assert.Equal(t, 1, transport.calls)
	assert.Empty(t, sleeper.delays)
	assert.True(t, errs.Is(err, errs.ErrNotFound))
}

func TestFetch_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	transport := &scriptedTransport{errs: []error{errors.New("timeout")}}
	sleeper := func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}
	f := New(transport, DefaultRetryPolicy(), WithSleeper(sleeper))

	_, err := f.Fetch(ctx, "u", "sa")

	require.Error(t, err)
	assert.Equal(t, 1, transport.calls)
	assert.True(t, errs.Is(err, errs.ErrAborted))
	assert.True(t, errs.Is(err, errs.ErrFetch))
}

func TestFetch_TransportTimeoutIsRetried(t *testing.T) {
	timeout := errs.Wrapf(context.DeadlineExceeded, "navigate %s", "u")
	transport := &scriptedTransport{errs: []error{timeout, nil}}
	sleeper := &recordingSleeper{}
	f := New(transport, DefaultRetryPolicy(), WithSleeper(sleeper.sleep))

	page, err := f.Fetch(context.Background(), "u", "sa")

	require.NoError(t, err)
	require.NotNil(t, page)
	assert.Equal(t, 2, transport.calls)
	assert.Equal(t, []time.Duration{5 * time.Second}, sleeper.delays)
}

func TestFetch_TransportTimeoutExhaustedIsNotAnAbort(t *testing.T) {
	transport := &scriptedTransport{errs: []error{errs.Wrap(context.DeadlineExceeded, "render")}}
	sleeper := &recordingSleeper{}
	f := New(transport, DefaultRetryPolicy(), WithSleeper(sleeper.sleep))

	_, err := f.Fetch(context.Background(), "u", "sa")

	require.Error(t, err)
	assert.Equal(t, 3, transport.calls)
	assert.True(t, errs.Is(err, errs.ErrFetch))
	assert.False(t, errs.Is(err, errs.ErrAborted))
}

func TestFetch_CallerCancelDuringRequestAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	transport := &cancellingTransport{cancel: cancel}
	sleeper := &recordingSleeper{}
	f := New(transport, DefaultRetryPolicy(), WithSleeper(sleeper.sleep))

	_, err := f.Fetch(ctx, "u", "sa")

	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrAborted))
	assert.Empty(t, sleeper.delays)
}

type cancellingTransport struct {
	cancel context.CancelFunc
}

func (c *cancellingTransport) Fetch(ctx context.Context, url, countryCode string) (*entity.RawPage, error) {
	c.cancel()
	return nil, errs.Wrap(ctx.Err(), "request")
}

func TestFetch_CustomSchedule(t *testing.T) {
	transport := &scriptedTransport{errs: []error{errors.New("boom")}}
	sleeper := &recordingSleeper{}
	policy := RetryPolicy{MaxAttempts: 4, Delays: []time.Duration{time.Second, 2 * time.Second}}
	f := New(transport, policy, WithSleeper(sleeper.sleep))

	_, err := f.Fetch(context.Background(), "u", "sa")

	require.Error(t, err)
	assert.Equal(t, 4, transport.calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 2 * time.Second, 2 * time.Second}, sleeper.delays)
}

func TestRetryPolicy_Delay(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.Equal(t, 5*time.Second, p.Delay(0))
	assert.Equal(t, 10*time.Second, p.Delay(1))
	assert.Equal(t, 20*time.Second, p.Delay(2))
	assert.Equal(t, 20*time.Second, p.Delay(7))
	assert.Equal(t, time.Duration(0), RetryPolicy{}.Delay(1))
}

func TestIsRateLimited(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("HTTP 429"), true},
		{errors.New("Rate limit exceeded"), true},
		{errors.New("ratelimit"), true},
		{errs.FromStatus("u", 429), true},
		{errs.FromStatus("u", 503), false},
		{errors.New("connection refused"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsRateLimited(tt.err), "%v", tt.err)
	}
}

func TestSleepContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, SleepContext(ctx, time.Hour), context.Canceled)
	assert.NoError(t, SleepContext(context.Background(), time.Millisecond))
}
