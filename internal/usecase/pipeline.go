package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/user/price-tracker/internal/detector"
	"github.com/user/price-tracker/internal/entity"
	"github.com/user/price-tracker/internal/extractor"
	"github.com/user/price-tracker/internal/fetcher"
	"github.com/user/price-tracker/internal/repository"
	"github.com/user/price-tracker/internal/validator"
	"github.com/user/price-tracker/pkg/clock"
	"github.com/user/price-tracker/pkg/errs"
	"github.com/user/price-tracker/pkg/metrics"
	"github.com/user/price-tracker/pkg/utils"
)

// Stage names as they appear in logs, metrics and run reports.
const (
	StageLoadProducts = "load_products"
	StageScrape       = "scrape"
	StageValidate     = "validate"
	StageLoad         = "load"
	StageDetectAlerts = "detect_alerts"
)

// ScrapeSettings controls how product pages are requested.
type ScrapeSettings struct {
	URLTemplate       string
	CountryCode       string
	InterRequestDelay time.Duration
}

// Deps are the collaborators of a Pipeline.
type Deps struct {
	Source    *ProductSource
	Fetcher   *fetcher.Fetcher
	Extractor *extractor.Extractor
	Validator *validator.Validator
	Detector  *detector.Detector

	Sink   repository.SinkRepository
	Alerts repository.AlertRepository
	Feed   repository.AlertFeedRepository
	Failed repository.FailedProductRepository

	Clock   clock.Clock
	Sleep   fetcher.Sleeper
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Pipeline holds the individual stages. Each stage takes the previous
// stage's output and either returns a value or an error the runner may
// retry.
type Pipeline struct {
	Deps
	settings ScrapeSettings
}

func NewPipeline(deps Deps, settings ScrapeSettings) *Pipeline {
	if deps.Clock == nil {
		deps.Clock = clock.NewRealClock()
	}
	if deps.Sleep == nil {
		deps.Sleep = fetcher.SleepContext
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Pipeline{Deps: deps, settings: settings}
}

func (p *Pipeline) LoadProducts(ctx context.Context) ([]string, error) {
	return p.Source.List(ctx)
}

// Scrape fetches and extracts every product in order, one at a time.
// Per-product failures are recorded in the batch and never stop the loop;
// only cancellation does, in which case the partial batch is returned with
// an error marked errs.ErrAborted.
func (p *Pipeline) Scrape(ctx context.Context, ids []string) (entity.ScrapeBatch, error) {
	batch := entity.ScrapeBatch{Day: entity.TruncateDay(p.Clock.Now())}

	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return batch, aborted(err, i, len(ids))
		}
		if i > 0 && p.settings.InterRequestDelay > 0 {
			if err := p.Sleep(ctx, p.settings.InterRequestDelay); err != nil {
				return batch, aborted(err, i, len(ids))
			}
		}
		if err := p.scrapeOne(ctx, id, &batch); err != nil {
			return batch, aborted(err, i, len(ids))
		}
	}

	p.Logger.Info("Scrape finished",
		zap.Int("total", len(ids)),
		zap.Int("scraped", len(batch.Snapshots)),
		zap.Int("fetch_failed", len(batch.FetchFailed)),
		zap.Int("extraction_failed", len(batch.ExtractionFailed)),
	)
	return batch, nil
}

// scrapeOne returns an error only when the run has been cancelled.
func (p *Pipeline) scrapeOne(ctx context.Context, id string, batch *entity.ScrapeBatch) error {
	url := utils.ProductURL(p.settings.URLTemplate, id)
	log := p.Logger.With(zap.String("product_id", id), zap.String("url", url))

	page, err := p.Fetcher.Fetch(ctx, url, p.settings.CountryCode)
	if err != nil {
		if errs.Is(err, errs.ErrAborted) {
			return err
		}
		batch.FetchFailed = append(batch.FetchFailed, id)
		p.Metrics.IncProduct("fetch_failed")
		log.Warn("Skipping product after fetch failure", zap.Error(err))
		p.recordFailure(ctx, id, url, err)
		return nil
	}

	snap, err := p.Extractor.Extract(page, url, id)
	if err != nil {
		batch.ExtractionFailed = append(batch.ExtractionFailed, id)
		p.Metrics.IncProduct("extraction_failed")
		log.Warn("Could not extract product", zap.Error(err))
		return nil
	}

	batch.Snapshots = append(batch.Snapshots, snap)
	p.Metrics.IncProduct("scraped")

	if p.Failed != nil {
		if err := p.Failed.Delete(ctx, id); err != nil {
			// Not critical, the record is cleared on the next success.
			log.Warn("Failed to clear failed product record", zap.Error(err))
		}
	}
	return nil
}

func (p *Pipeline) recordFailure(ctx context.Context, id, url string, fetchErr error) {
	if p.Failed == nil {
		return
	}
	failed := &entity.FailedProduct{
		ProductID:            id,
		URL:                  url,
		FailureReason:        fetchErr.Error(),
		Attempts:             1,
		LastAttemptTimestamp: p.Clock.Now(),
	}
	var failure *fetcher.FetchFailure
	if errs.As(fetchErr, &failure) {
		failed.Attempts = failure.Attempts
	}
	if err := p.Failed.RecordFailure(ctx, failed); err != nil {
		p.Logger.Warn("Failed to record failed product", zap.String("product_id", id), zap.Error(err))
	}
}

func (p *Pipeline) Validate(batch entity.ScrapeBatch) (entity.ValidationOutcome, error) {
	return p.Validator.Validate(batch)
}

// Load writes the accepted records. Any error is marked errs.ErrSink and
// nothing downstream may run on a failed load.
func (p *Pipeline) Load(ctx context.Context, accepted []entity.ProductSnapshot) (int, error) {
	if len(accepted) == 0 {
		return 0, nil
	}
	if err := p.Sink.Load(ctx, accepted); err != nil {
		return 0, errs.Mark(errs.Wrapf(err, "load %d records", len(accepted)), errs.ErrSink)
	}
	p.Logger.Info("Records loaded", zap.Int("count", len(accepted)))
	return len(accepted), nil
}

// DetectAlerts compares the stored prices of day with those of the day
// before, persists the alerts and publishes the day's summary. A zero day
// means the current one.
func (p *Pipeline) DetectAlerts(ctx context.Context, day time.Time) ([]entity.PriceAlert, error) {
	if day.IsZero() {
		day = p.Clock.Now()
	}
	day = entity.TruncateDay(day)

	today, err := p.Sink.PricesForDay(ctx, day)
	if err != nil {
		return nil, errs.Mark(errs.Wrap(err, "read today's prices"), errs.ErrSink)
	}
	yesterday, err := p.Sink.PricesForDay(ctx, day.AddDate(0, 0, -1))
	if err != nil {
		return nil, errs.Mark(errs.Wrap(err, "read yesterday's prices"), errs.ErrSink)
	}

	alerts := p.Detector.Detect(today, yesterday)

	if p.Alerts != nil {
		if err := p.Alerts.SaveAlerts(ctx, day, alerts); err != nil {
			return nil, errs.Mark(errs.Wrap(err, "save alerts"), errs.ErrSink)
		}
	}
	if p.Feed != nil {
		if err := p.Feed.Publish(ctx, entity.Summarize(day, alerts)); err != nil {
			return nil, errs.Wrap(err, "publish alerts")
		}
	}
	return alerts, nil
}

func aborted(err error, done, total int) error {
	return errs.Mark(errs.Wrapf(err, "scrape interrupted after %d of %d products", done, total), errs.ErrAborted)
}
