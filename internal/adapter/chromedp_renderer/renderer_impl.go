package chromedp_renderer

import (
	"context"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/user/price-tracker/internal/entity"
	"github.com/user/price-tracker/internal/proxy"
	"github.com/user/price-tracker/pkg/errs"
	"github.com/user/price-tracker/pkg/utils"
)

// Renderer renders product pages in a local headless Chrome.
type Renderer struct {
	allocCtx    context.Context
	cancelAlloc context.CancelFunc
	timeout     time.Duration
	logger      *zap.Logger
}

// NewRenderer prepares a browser allocator. Every fetch runs in a fresh
// browser so no cookies or storage leak between products.
func NewRenderer(pageLoadTimeout time.Duration, rotator *proxy.Manager, logger *zap.Logger) *Renderer {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(rotator.UserAgent()),
	)
	if p := rotator.Proxy(); p != "" {
		opts = append(opts, chromedp.ProxyServer(p))
	}
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)

	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{
		allocCtx:    allocCtx,
		cancelAlloc: cancel,
		timeout:     pageLoadTimeout,
		logger:      logger,
	}
}

// Fetch navigates to url and returns the rendered document.
func (r *Renderer) Fetch(ctx context.Context, url, countryCode string) (*entity.RawPage, error) {
	taskCtx, cancel := chromedp.NewContext(r.allocCtx)
	defer cancel()

	taskCtx, cancelTimeout := context.WithTimeout(taskCtx, r.timeout)
	defer cancelTimeout()

	// The browser context does not derive from ctx; tie them together so a
	// cancelled run stops the navigation.
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	resp, err := chromedp.RunResponse(taskCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": utils.AcceptLanguage(countryCode)}),
		chromedp.Navigate(url),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errs.Wrap(ctx.Err(), "render aborted")
		}
		return nil, errs.Wrapf(err, "navigate %s", url)
	}

	status := 0
	if resp != nil {
		status = int(resp.Status)
	}
	if status != 0 {
		if err := errs.FromStatus(url, status); err != nil {
			return nil, err
		}
	}

	var html string
	if err := chromedp.Run(taskCtx,
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	); err != nil {
		return nil, errs.Wrapf(err, "render %s", url)
	}

	r.logger.Debug("Rendered page", zap.String("url", url), zap.Int("status", status), zap.Int("bytes", len(html)))
	return &entity.RawPage{
		URL:        url,
		Body:       html,
		StatusCode: status,
		FetchedAt:  time.Now().UTC(),
	}, nil
}

// Close shuts the browser down.
func (r *Renderer) Close() {
	r.cancelAlloc()
}
