package colly_fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/price-tracker/internal/proxy"
	"github.com/user/price-tracker/pkg/errs"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/N1/p/":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(`<html><head><script>{"sale_price":99.5}</script></head>` +
				`<body data-ua="` + r.UserAgent() + `" data-lang="` + r.Header.Get("Accept-Language") + `"></body></html>`))
		case "/throttled/p/":
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestFetcher_Fetch(t *testing.T) {
	ts := newServer(t)
	f := NewFetcher(5*time.Second, proxy.NewManager(nil, []string{"test-agent"}))

	page, err := f.Fetch(context.Background(), ts.URL+"/N1/p/", "sa")

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Contains(t, page.Body, `"sale_price":99.5`)
	assert.Contains(t, page.Body, `data-ua="test-agent"`)
	assert.Contains(t, page.Body, `data-lang="en-SA,en;q=0.9,ar;q=0.8"`)

	// Revisiting the same URL must hit the server again.
	_, err = f.Fetch(context.Background(), ts.URL+"/N1/p/", "sa")
	require.NoError(t, err)
}

func TestFetcher_StatusErrors(t *testing.T) {
	ts := newServer(t)
	f := NewFetcher(5*time.Second, proxy.NewManager(nil, nil))

	_, err := f.Fetch(context.Background(), ts.URL+"/gone/p/", "sa")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrNotFound))

	_, err = f.Fetch(context.Background(), ts.URL+"/throttled/p/", "sa")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrRateLimited))
}

func TestFetcher_ContextCancelled(t *testing.T) {
	ts := newServer(t)
	f := NewFetcher(5*time.Second, proxy.NewManager(nil, nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Fetch(ctx, ts.URL+"/N1/p/", "sa")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
