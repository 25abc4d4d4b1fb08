package renderproxy

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/user/price-tracker/internal/entity"
	"github.com/user/price-tracker/pkg/errs"
)

// Upstream pages are a few hundred KB; anything far beyond that is not a
// product page.
const maxBodyBytes = 10 << 20

// Client fetches pages through a rendering scraping proxy that takes the
// target URL as a query parameter and returns the rendered markup.
type Client struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	render     bool
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRender toggles JavaScript rendering on the proxy side.
func WithRender(render bool) Option {
	return func(c *Client) { c.render = render }
}

func NewClient(endpoint, apiKey string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   endpoint,
		apiKey:     apiKey,
		render:     true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Fetch(ctx context.Context, target, countryCode string) (*entity.RawPage, error) {
	reqURL, err := c.requestURL(target, countryCode)
	if err != nil {
		return nil, errs.Mark(errs.Wrap(err, "build proxy url"), errs.ErrPermanent)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, errs.Mark(errs.Wrap(err, "build proxy request"), errs.ErrPermanent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errs.Wrapf(err, "proxy request for %s", target)
	}
	defer resp.Body.Close()

	if err := errs.FromStatus(target, resp.StatusCode); err != nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, errs.Wrapf(err, "read proxy response for %s", target)
	}

	return &entity.RawPage{
		URL:        target,
		Body:       string(body),
		StatusCode: resp.StatusCode,
		FetchedAt:  time.Now().UTC(),
	}, nil
}

func (c *Client) requestURL(target, countryCode string) (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("api_key", c.apiKey)
	q.Set("url", target)
	if c.render {
		q.Set("render", "true")
	}
	if countryCode != "" {
		q.Set("country_code", countryCode)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
