package colly_fetcher

import (
	"context"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/user/price-tracker/internal/entity"
	"github.com/user/price-tracker/internal/proxy"
	"github.com/user/price-tracker/pkg/errs"
	"github.com/user/price-tracker/pkg/utils"
)

// Fetcher downloads product pages without rendering, for storefronts that
// inline their price data in the initial HTML.
type Fetcher struct {
	timeout time.Duration
	rotator *proxy.Manager
}

func NewFetcher(timeout time.Duration, rotator *proxy.Manager) *Fetcher {
	return &Fetcher{timeout: timeout, rotator: rotator}
}

func (f *Fetcher) Fetch(ctx context.Context, url, countryCode string) (*entity.RawPage, error) {
	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.UserAgent(f.rotator.UserAgent()),
		colly.StdlibContext(ctx),
	)
	c.SetRequestTimeout(f.timeout)
	if p := f.rotator.Proxy(); p != "" {
		if err := c.SetProxy(p); err != nil {
			return nil, errs.Mark(errs.Wrapf(err, "set proxy %s", p), errs.ErrPermanent)
		}
	}

	var (
		page   *entity.RawPage
		status int
	)

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		r.Headers.Set("Accept-Language", utils.AcceptLanguage(countryCode))
	})

	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		page = &entity.RawPage{
			URL:        url,
			Body:       string(r.Body),
			StatusCode: r.StatusCode,
			FetchedAt:  time.Now().UTC(),
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
	})

	err := c.Visit(url)
	if ctx.Err() != nil {
		return nil, errs.Wrap(ctx.Err(), "fetch aborted")
	}
	if status != 0 {
		if statusErr := errs.FromStatus(url, status); statusErr != nil {
			return nil, statusErr
		}
	}
	if err != nil {
		return nil, errs.Wrapf(err, "fetch %s", url)
	}
	if page == nil {
		return nil, errs.Newf("fetch %s: no response", url)
	}
	return page, nil
}
