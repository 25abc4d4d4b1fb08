package validator

import (
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/user/price-tracker/internal/entity"
	"github.com/user/price-tracker/pkg/errs"
	"github.com/user/price-tracker/pkg/metrics"
)

// Rules configures the quality gate.
type Rules struct {
	// MaxInvalidFraction is the highest tolerated rejected/total ratio.
	MaxInvalidFraction float64
	// MaxPrice is the upper bound of a plausible price, inclusive.
	MaxPrice decimal.Decimal
}

func DefaultRules() Rules {
	return Rules{
		MaxInvalidFraction: 0.10,
		MaxPrice:           decimal.NewFromInt(999999),
	}
}

type Validator struct {
	rules   Rules
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func New(rules Rules, logger *zap.Logger, m *metrics.Metrics) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{rules: rules, logger: logger, metrics: m}
}

// Check applies the per-record rules to one snapshot and returns the reasons
// it is rejected, if any.
func (v *Validator) Check(s entity.ProductSnapshot) []string {
	var reasons []string
	if !s.HasName() {
		reasons = append(reasons, entity.ReasonMissingName)
	}
	if !s.Price().IsPositive() || s.Price().GreaterThan(v.rules.MaxPrice) {
		reasons = append(reasons, entity.InvalidPriceReason(s.Price()))
	}
	return reasons
}

// Validate runs the batch quality gate. Products whose page could not be
// turned into a record count as rejections. When the invalid fraction
// exceeds the threshold the whole batch is refused: the returned outcome
// has Passed=false, no accepted records, and the error is marked
// errs.ErrBatchQuality.
func (v *Validator) Validate(batch entity.ScrapeBatch) (entity.ValidationOutcome, error) {
	outcome := entity.ValidationOutcome{Total: batch.Attempted()}
	if outcome.Total == 0 {
		return outcome, errs.Mark(errs.New("batch has no scraped records"), errs.ErrEmptyBatch)
	}

	for _, id := range batch.ExtractionFailed {
		outcome.Rejected = append(outcome.Rejected, entity.Rejection{
			ProductID: id,
			Reasons:   []string{entity.ReasonExtractionFailed},
		})
	}

	for _, s := range batch.Snapshots {
		if reasons := v.Check(s); len(reasons) > 0 {
			outcome.Rejected = append(outcome.Rejected, entity.Rejection{ProductID: s.ProductID(), Reasons: reasons})
			continue
		}
		outcome.Accepted = append(outcome.Accepted, s)
	}

	for _, r := range outcome.Rejected {
		v.logger.Warn("Record rejected", zap.String("product_id", r.ProductID), zap.Strings("reasons", r.Reasons))
		for _, reason := range r.Reasons {
			v.metrics.IncRejection(reasonLabel(reason))
		}
	}

	outcome.InvalidFraction = float64(len(outcome.Rejected)) / float64(outcome.Total)
	v.metrics.SetInvalidFraction(outcome.InvalidFraction)

	if outcome.InvalidFraction > v.rules.MaxInvalidFraction {
		err := errs.Mark(errs.Newf(
			"%d of %d records invalid (%.1f%% > %.1f%%); page layout may have changed",
			len(outcome.Rejected), outcome.Total,
			outcome.InvalidFraction*100, v.rules.MaxInvalidFraction*100,
		), errs.ErrBatchQuality)
		v.logger.Error("Batch quality gate failed",
			zap.Int("rejected", len(outcome.Rejected)),
			zap.Int("total", outcome.Total),
			zap.Float64("invalid_fraction", outcome.InvalidFraction),
		)
		outcome.Accepted = nil
		return outcome, err
	}

	outcome.Passed = true
	v.logger.Info("Batch passed quality gate",
		zap.Int("accepted", len(outcome.Accepted)),
		zap.Int("rejected", len(outcome.Rejected)),
		zap.Float64("invalid_fraction", outcome.InvalidFraction),
	)
	return outcome, nil
}

// reasonLabel drops the offending value from invalid_price reasons to keep
// metric cardinality bounded.
func reasonLabel(reason string) string {
	if strings.HasPrefix(reason, "invalid_price:") {
		return "invalid_price"
	}
	return reason
}

