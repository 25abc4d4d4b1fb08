package renderproxy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/price-tracker/internal/fetcher"
	"github.com/user/price-tracker/pkg/errs"
)

func TestClient_Fetch(t *testing.T) {
	var got *http.Request
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		_, _ = w.Write([]byte(`<html><h1 data-qa="pdp-name">Phone</h1></html>`))
	}))
	defer ts.Close()

	c := NewClient(ts.URL+"/", "key-123", 5*time.Second)
	page, err := c.Fetch(context.Background(), "https://www.noon.com/saudi-en/N1/p/", "sa")

	require.NoError(t, err)
	assert.Contains(t, page.Body, "Phone")
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Equal(t, "https://www.noon.com/saudi-en/N1/p/", page.URL)

	q := got.URL.Query()
	assert.Equal(t, "key-123", q.Get("api_key"))
	assert.Equal(t, "https://www.noon.com/saudi-en/N1/p/", q.Get("url"))
	assert.Equal(t, "true", q.Get("render"))
	assert.Equal(t, "sa", q.Get("country_code"))
}

func TestClient_StatusClassification(t *testing.T) {
	tests := []struct {
		status      int
		rateLimited bool
		notFound    bool
		permanent   bool
	}{
		{http.StatusTooManyRequests, true, false, false},
		{http.StatusNotFound, false, true, false},
		{http.StatusForbidden, false, false, true},
		{http.StatusInternalServerError, false, false, false},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer ts.Close()

			_, err := NewClient(ts.URL, "k", time.Second).Fetch(context.Background(), "https://shop.test/N1", "sa")

			require.Error(t, err)
			assert.Equal(t, tt.rateLimited, errs.Is(err, errs.ErrRateLimited))
			assert.Equal(t, tt.notFound, errs.Is(err, errs.ErrNotFound))
			assert.Equal(t, tt.permanent, errs.Is(err, errs.ErrPermanent))
		})
	}
}

func TestClient_NoRender(t *testing.T) {
	var query string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
	}))
	defer ts.Close()

	_, err := NewClient(ts.URL, "k", time.Second, WithRender(false)).Fetch(context.Background(), "https://shop.test/N1", "")

	require.NoError(t, err)
	assert.NotContains(t, query, "render")
	assert.NotContains(t, query, "country_code")
}

func TestClient_ContextCancelled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClient(ts.URL, "k", time.Second).Fetch(ctx, "https://shop.test/N1", "sa")

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClient_RequestTimeoutIsRetried(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-r.Context().Done():
		case <-time.After(300 * time.Millisecond):
		}
	}))
	defer ts.Close()

	c := NewClient(ts.URL+"/", "k", 50*time.Millisecond)
	policy := fetcher.RetryPolicy{MaxAttempts: 2}
	noWait := func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	f := fetcher.New(c, policy, fetcher.WithSleeper(noWait))

	_, err := f.Fetch(context.Background(), "https://shop.test/N1/p/", "sa")

	require.Error(t, err)
	assert.EqualValues(t, 2, calls.Load())
	assert.True(t, errs.Is(err, errs.ErrFetch))
	assert.False(t, errs.Is(err, errs.ErrAborted))
}
