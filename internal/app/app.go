package app

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/user/price-tracker/internal/adapter/chromedp_renderer"
	"github.com/user/price-tracker/internal/adapter/colly_fetcher"
	"github.com/user/price-tracker/internal/adapter/postgres"
	"github.com/user/price-tracker/internal/adapter/redis"
	"github.com/user/price-tracker/internal/adapter/renderproxy"
	"github.com/user/price-tracker/internal/delivery/http/handler"
	"github.com/user/price-tracker/internal/detector"
	"github.com/user/price-tracker/internal/entity"
	"github.com/user/price-tracker/internal/extractor"
	"github.com/user/price-tracker/internal/fetcher"
	"github.com/user/price-tracker/internal/proxy"
	"github.com/user/price-tracker/internal/repository"
	"github.com/user/price-tracker/internal/usecase"
	"github.com/user/price-tracker/internal/validator"
	"github.com/user/price-tracker/pkg/clock"
	"github.com/user/price-tracker/pkg/config"
	"github.com/user/price-tracker/pkg/errs"
	"github.com/user/price-tracker/pkg/metrics"
)

// App owns every long-lived dependency of the binaries.
type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	DB      *pgxpool.Pool
	Redis   *goredis.Client
	Runner  *usecase.Runner
	Catalog *usecase.Catalog

	closers []func()
}

// New connects to the stores, prepares the schema and assembles the
// pipeline. Close must be called to release connections and browsers.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger, Metrics: metrics.New()}

	db, err := postgres.NewPool(ctx, cfg.PostgresURL)
	if err != nil {
		return nil, err
	}
	a.DB = db
	a.closers = append(a.closers, db.Close)
	logger.Info("PostgreSQL connection pool established")

	if err := postgres.EnsureSchema(ctx, db); err != nil {
		a.Close()
		return nil, err
	}

	rdb, err := redis.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Redis = rdb
	a.closers = append(a.closers, func() { _ = rdb.Close() })
	logger.Info("Redis connection established")

	transport, closeTransport, err := NewTransport(cfg, proxy.NewManager(cfg.Proxies(), nil), logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, closeTransport)

	stores := Stores{
		Sink:     postgres.NewSinkRepo(db),
		Products: postgres.NewProductRepo(db),
		Alerts:   postgres.NewAlertRepo(db),
		Feed:     redis.NewAlertFeedRepo(rdb),
		Failed:   postgres.NewFailedProductRepo(db),
	}
	pipeline, err := NewPipeline(cfg, stores, transport, clock.NewRealClock(), logger, a.Metrics)
	if err != nil {
		a.Close()
		return nil, err
	}
	if a.Catalog, err = NewCatalog(cfg, stores); err != nil {
		a.Close()
		return nil, err
	}

	a.Runner = usecase.NewRunner(pipeline,
		redis.NewRunLockRepo(rdb),
		redis.NewRunStateRepo(rdb),
		stores.Feed,
		RunnerConfig(cfg),
	)
	return a, nil
}

// Stores groups the persistence ports the pipeline writes to.
type Stores struct {
	Sink     repository.SinkRepository
	Products repository.ProductRepository
	Alerts   repository.AlertRepository
	Feed     repository.AlertFeedRepository
	Failed   repository.FailedProductRepository
}

// NewPipeline builds the stage implementations from configuration.
func NewPipeline(
	cfg *config.Config,
	stores Stores,
	transport repository.PageTransport,
	clk clock.Clock,
	logger *zap.Logger,
	m *metrics.Metrics,
) (*usecase.Pipeline, error) {
	delays, err := cfg.RetryDelays()
	if err != nil {
		return nil, err
	}
	maxPrice, err := decimal.NewFromString(cfg.MaxValidPrice)
	if err != nil {
		return nil, errs.Wrapf(err, "MAX_VALID_PRICE %q", cfg.MaxValidPrice)
	}
	threshold, err := decimal.NewFromString(cfg.AlertThresholdPct)
	if err != nil {
		return nil, errs.Wrapf(err, "ALERT_THRESHOLD_PCT %q", cfg.AlertThresholdPct)
	}
	rule, err := entity.NewIdentifierRule(cfg.ProductIDPattern)
	if err != nil {
		return nil, err
	}

	policy := fetcher.DefaultRetryPolicy()
	policy.MaxAttempts = cfg.FetchMaxAttempts
	policy.Delays = delays

	return usecase.NewPipeline(usecase.Deps{
		Source: usecase.NewProductSource(cfg.ProductIDs, stores.Products, rule, logger),
		Fetcher: fetcher.New(transport, policy,
			fetcher.WithLogger(logger), fetcher.WithMetrics(m)),
		Extractor: extractor.New(
			extractor.WithCurrency(cfg.Currency),
			extractor.WithPlatformSeller(cfg.PlatformSeller),
			extractor.WithClock(clk),
			extractor.WithLogger(logger),
		),
		Validator: validator.New(validator.Rules{
			MaxInvalidFraction: cfg.MaxInvalidFraction,
			MaxPrice:           maxPrice,
		}, logger, m),
		Detector: detector.New(threshold, clk, logger, m),
		Sink:     stores.Sink,
		Alerts:   stores.Alerts,
		Feed:     stores.Feed,
		Failed:   stores.Failed,
		Clock:    clk,
		Logger:   logger,
		Metrics:  m,
	}, usecase.ScrapeSettings{
		URLTemplate:       cfg.MarketplaceURLTemplate,
		CountryCode:       cfg.CountryCode,
		InterRequestDelay: cfg.InterRequestDelay,
	}), nil
}

// NewCatalog serves operator lookups from the same stores the pipeline writes.
func NewCatalog(cfg *config.Config, stores Stores) (*usecase.Catalog, error) {
	rule, err := entity.NewIdentifierRule(cfg.ProductIDPattern)
	if err != nil {
		return nil, err
	}
	return usecase.NewCatalog(stores.Products, stores.Failed, rule), nil
}

func RunnerConfig(cfg *config.Config) usecase.RunnerConfig {
	return usecase.RunnerConfig{
		RunTimeout: cfg.RunTimeout,
		StageRetry: usecase.StageRetryPolicy{
			MaxRetries: cfg.StageMaxRetries,
			BaseDelay:  cfg.StageRetryBaseDelay,
			MaxDelay:   cfg.StageRetryMaxDelay,
		},
		PushgatewayURL: cfg.PushgatewayURL,
	}
}

// NewTransport picks the page transport named by FETCH_TRANSPORT. The
// returned func releases its resources.
func NewTransport(cfg *config.Config, rotator *proxy.Manager, logger *zap.Logger) (repository.PageTransport, func(), error) {
	switch cfg.FetchTransport {
	case config.TransportProxy:
		return renderproxy.NewClient(cfg.ScraperAPIURL, cfg.ScraperAPIKey, cfg.RequestTimeout), func() {}, nil
	case config.TransportChromedp:
		r := chromedp_renderer.NewRenderer(cfg.RequestTimeout, rotator, logger)
		return r, r.Close, nil
	case config.TransportDirect:
		return colly_fetcher.NewFetcher(cfg.RequestTimeout, rotator), func() {}, nil
	}
	return nil, nil, errs.Newf("unknown fetch transport %q", cfg.FetchTransport)
}

// HealthChecks pings both stores.
func (a *App) HealthChecks() map[string]handler.HealthCheck {
	return map[string]handler.HealthCheck{
		"postgres": a.DB.Ping,
		"redis": func(ctx context.Context) error {
			return a.Redis.Ping(ctx).Err()
		},
	}
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
