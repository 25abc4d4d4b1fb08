package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/user/price-tracker/internal/entity"
	"github.com/user/price-tracker/internal/fetcher"
	"github.com/user/price-tracker/internal/repository"
	"github.com/user/price-tracker/pkg/clock"
	"github.com/user/price-tracker/pkg/errs"
	"github.com/user/price-tracker/pkg/metrics"
)

const cleanupTimeout = 30 * time.Second

// StageRetryPolicy governs re-running a whole failed stage. It is distinct
// from the fetcher's per-product retries.
type StageRetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

func DefaultStageRetryPolicy() StageRetryPolicy {
	return StageRetryPolicy{MaxRetries: 3, BaseDelay: 5 * time.Minute, MaxDelay: 30 * time.Minute}
}

// Delay doubles the base delay per retry, capped at MaxDelay.
func (p StageRetryPolicy) Delay(retry int) time.Duration {
	d := p.BaseDelay
	for i := 0; i < retry; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// RunnerConfig holds run-level limits and telemetry settings.
type RunnerConfig struct {
	RunTimeout     time.Duration
	StageRetry     StageRetryPolicy
	PushgatewayURL string
	Job            string
}

// RunService is what the ops API needs from the runner.
type RunService interface {
	Start(ctx context.Context) (string, error)
	LatestReport(ctx context.Context) (*entity.RunReport, error)
	LatestAlerts(ctx context.Context) (*entity.AlertSummary, error)
}

// Runner sequences the pipeline stages for one run at a time.
type Runner struct {
	pipeline *Pipeline
	lock     repository.RunLockRepository
	state    repository.RunStateRepository
	feed     repository.AlertFeedRepository
	cfg      RunnerConfig

	clock   clock.Clock
	sleep   fetcher.Sleeper
	logger  *zap.Logger
	metrics *metrics.Metrics
	newID   func() string

	// Async runs outlive the request that started them.
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewRunner(
	p *Pipeline,
	lock repository.RunLockRepository,
	state repository.RunStateRepository,
	feed repository.AlertFeedRepository,
	cfg RunnerConfig,
) *Runner {
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 2 * time.Hour
	}
	if cfg.Job == "" {
		cfg.Job = "price_pipeline"
	}
	baseCtx, cancel := context.WithCancel(context.Background())
	return &Runner{
		pipeline: p,
		lock:     lock,
		state:    state,
		feed:     feed,
		cfg:      cfg,
		clock:    p.Clock,
		sleep:    p.Sleep,
		logger:   p.Logger,
		metrics:  p.Metrics,
		newID:    uuid.NewString,
		baseCtx:  baseCtx,
		cancel:   cancel,
	}
}

// Run executes one full run synchronously. It returns errs.ErrRunInProgress
// without touching any state when another run holds the lock.
func (r *Runner) Run(ctx context.Context) (*entity.RunReport, error) {
	report, err := r.acquire(ctx)
	if err != nil {
		return nil, err
	}
	err = r.execute(ctx, report)
	return report, err
}

// Start acquires the run lock and runs the pipeline in the background.
func (r *Runner) Start(ctx context.Context) (string, error) {
	report, err := r.acquire(ctx)
	if err != nil {
		return "", err
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		_ = r.execute(r.baseCtx, report)
	}()
	return report.RunID, nil
}

// Shutdown cancels background runs and waits for their cleanup.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.cancel()
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) LatestReport(ctx context.Context) (*entity.RunReport, error) {
	return r.state.LatestReport(ctx)
}

func (r *Runner) LatestAlerts(ctx context.Context) (*entity.AlertSummary, error) {
	return r.feed.Latest(ctx)
}

func (r *Runner) acquire(ctx context.Context) (*entity.RunReport, error) {
	runID := r.newID()
	ok, err := r.lock.Acquire(ctx, runID, r.cfg.RunTimeout)
	if err != nil {
		return nil, errs.Wrap(err, "acquire run lock")
	}
	if !ok {
		r.metrics.IncRun("skipped", errs.Kind(errs.ErrRunInProgress))
		r.logger.Warn("Run already in progress, not starting another")
		return nil, errs.ErrRunInProgress
	}

	report := &entity.RunReport{
		RunID:     runID,
		Status:    entity.RunRunning,
		StartedAt: r.clock.Now(),
	}
	if err := r.state.SaveReport(ctx, report); err != nil {
		r.logger.Warn("Failed to save run report", zap.String("run_id", runID), zap.Error(err))
	}
	return report, nil
}

func (r *Runner) execute(ctx context.Context, report *entity.RunReport) error {
	log := r.logger.With(zap.String("run_id", report.RunID))
	log.Info("Pipeline run started")

	runCtx, cancel := context.WithTimeout(ctx, r.cfg.RunTimeout)
	err := r.stages(runCtx, report, log)
	cancel()

	r.cleanup(ctx, report, err, log)
	return err
}

func (r *Runner) stages(ctx context.Context, report *entity.RunReport, log *zap.Logger) error {
	ids, err := runStage(ctx, r, report, log, StageLoadProducts, r.pipeline.LoadProducts)
	if err != nil {
		return err
	}
	report.Total = len(ids)

	batch, err := runStage(ctx, r, report, log, StageScrape, func(ctx context.Context) (entity.ScrapeBatch, error) {
		return r.pipeline.Scrape(ctx, ids)
	})
	report.Scraped = len(batch.Snapshots)
	report.FetchFailed = len(batch.FetchFailed)
	report.ExtractionFailed = len(batch.ExtractionFailed)
	if err != nil {
		return err
	}

	outcome, err := runStage(ctx, r, report, log, StageValidate, func(context.Context) (entity.ValidationOutcome, error) {
		return r.pipeline.Validate(batch)
	})
	report.Rejected = len(outcome.Rejected)
	report.InvalidFraction = outcome.InvalidFraction
	if err != nil {
		return err
	}

	loaded, err := runStage(ctx, r, report, log, StageLoad, func(ctx context.Context) (int, error) {
		return r.pipeline.Load(ctx, outcome.Accepted)
	})
	if err != nil {
		return err
	}
	report.Loaded = loaded

	alerts, err := runStage(ctx, r, report, log, StageDetectAlerts, func(ctx context.Context) ([]entity.PriceAlert, error) {
		return r.pipeline.DetectAlerts(ctx, batch.Day)
	})
	if err != nil {
		return err
	}
	report.Alerts = len(alerts)
	return nil
}

// runStage runs fn and re-runs it on retryable failures, escalating the
// delay between attempts.
func runStage[T any](
	ctx context.Context,
	r *Runner,
	report *entity.RunReport,
	log *zap.Logger,
	stage string,
	fn func(context.Context) (T, error),
) (T, error) {
	report.Stage = stage
	log = log.With(zap.String("stage", stage))

	for retry := 0; ; retry++ {
		start := r.clock.Now()
		out, err := fn(ctx)
		r.metrics.ObserveStage(stage, r.clock.Now().Sub(start))
		if err == nil {
			log.Debug("Stage finished", zap.Int("retry", retry))
			return out, nil
		}

		if ctx.Err() != nil && !errs.Is(err, errs.ErrAborted) {
			err = errs.Mark(err, errs.ErrAborted)
		}
		if !errs.Retryable(err) || retry >= r.cfg.StageRetry.MaxRetries {
			return out, errs.Wrapf(err, "stage %s", stage)
		}

		delay := r.cfg.StageRetry.Delay(retry)
		log.Warn("Stage failed, retrying",
			zap.Int("retry", retry+1), zap.Duration("delay", delay), zap.Error(err))
		if serr := r.sleep(ctx, delay); serr != nil {
			return out, errs.Mark(errs.Wrapf(err, "stage %s: aborted while waiting to retry", stage), errs.ErrAborted)
		}
	}
}

// cleanup always runs: it releases the lock, records the final report and
// pushes metrics, regardless of how the stages ended.
func (r *Runner) cleanup(ctx context.Context, report *entity.RunReport, runErr error, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	finished := r.clock.Now()
	report.FinishedAt = &finished
	report.Status = entity.RunSucceeded
	if runErr != nil {
		report.Status = entity.RunFailed
		report.FailureKind = errs.Kind(runErr)
		report.Error = runErr.Error()
	}

	if err := r.lock.Release(ctx, report.RunID); err != nil {
		log.Error("Failed to release run lock", zap.Error(err))
	}
	if err := r.state.SaveReport(ctx, report); err != nil {
		log.Error("Failed to save run report", zap.Error(err))
	}

	r.metrics.IncRun(string(report.Status), report.FailureKind)
	if err := r.metrics.Push(ctx, r.cfg.PushgatewayURL, r.cfg.Job); err != nil {
		log.Warn("Failed to push metrics", zap.Error(err))
	}

	fields := []zap.Field{
		zap.String("status", string(report.Status)),
		zap.String("stage", report.Stage),
		zap.Int("total", report.Total),
		zap.Int("scraped", report.Scraped),
		zap.Int("fetch_failed", report.FetchFailed),
		zap.Int("extraction_failed", report.ExtractionFailed),
		zap.Int("rejected", report.Rejected),
		zap.Int("loaded", report.Loaded),
		zap.Int("alerts", report.Alerts),
		zap.Duration("duration", finished.Sub(report.StartedAt)),
	}
	switch {
	case runErr == nil:
		log.Info("Pipeline run finished", fields...)
	case errs.Is(runErr, errs.ErrBatchQuality):
		// Systemic breakage, most likely a markup change upstream.
		log.Error("Pipeline run failed quality gate; page layout may have changed",
			append(fields, zap.String("failure_kind", report.FailureKind), zap.Error(runErr))...)
	default:
		log.Error("Pipeline run failed",
			append(fields, zap.String("failure_kind", report.FailureKind), zap.Error(runErr))...)
	}
}
