package detector

import (
	"cmp"
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/user/price-tracker/internal/entity"
	"github.com/user/price-tracker/pkg/clock"
	"github.com/user/price-tracker/pkg/metrics"
)

// DefaultThresholdPct is the smallest absolute move, in percent, that raises
// an alert.
var DefaultThresholdPct = decimal.NewFromInt(5)

var hundred = decimal.NewFromInt(100)

type pairKey struct {
	productID string
	sellerID  string
}

// DetectAlerts joins today's and yesterday's prices on (product, seller)
// and returns an alert for every pair whose change reaches thresholdPct,
// most significant first. Pairs seen on one side only, and pairs with a
// non-positive previous price, are skipped. When a side lists the same pair
// twice the later entry wins.
func DetectAlerts(today, yesterday []entity.PricePoint, thresholdPct decimal.Decimal, detectedAt time.Time) []entity.PriceAlert {
	previous := make(map[pairKey]decimal.Decimal, len(yesterday))
	for _, p := range yesterday {
		previous[pairKey{p.ProductID, p.SellerID}] = p.Price
	}

	current := make(map[pairKey]decimal.Decimal, len(today))
	order := make([]pairKey, 0, len(today))
	for _, p := range today {
		k := pairKey{p.ProductID, p.SellerID}
		if _, seen := current[k]; !seen {
			order = append(order, k)
		}
		current[k] = p.Price
	}

	var alerts []entity.PriceAlert
	for _, k := range order {
		prev, ok := previous[k]
		if !ok || !prev.IsPositive() {
			continue
		}
		now := current[k]
		change := now.Sub(prev)
		pct := change.Div(prev).Mul(hundred).Round(2)
		if pct.Abs().LessThan(thresholdPct) {
			continue
		}

		alertType := entity.AlertPriceIncrease
		if pct.IsNegative() {
			alertType = entity.AlertPriceDrop
		}
		alerts = append(alerts, entity.PriceAlert{
			ProductID:     k.productID,
			SellerID:      k.sellerID,
			PreviousPrice: prev,
			CurrentPrice:  now,
			ChangeAmount:  change,
			ChangePct:     pct,
			AlertType:     alertType,
			DetectedAt:    detectedAt.UTC(),
		})
	}

	slices.SortStableFunc(alerts, func(a, b entity.PriceAlert) int {
		if c := b.ChangePct.Abs().Cmp(a.ChangePct.Abs()); c != 0 {
			return c
		}
		if c := cmp.Compare(a.ProductID, b.ProductID); c != 0 {
			return c
		}
		return cmp.Compare(a.SellerID, b.SellerID)
	})
	return alerts
}

// Detector binds DetectAlerts to a threshold and records what it found.
type Detector struct {
	thresholdPct decimal.Decimal
	clock        clock.Clock
	logger       *zap.Logger
	metrics      *metrics.Metrics
}

func New(thresholdPct decimal.Decimal, clk clock.Clock, logger *zap.Logger, m *metrics.Metrics) *Detector {
	if clk == nil {
		clk = clock.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{thresholdPct: thresholdPct, clock: clk, logger: logger, metrics: m}
}

func (d *Detector) Detect(today, yesterday []entity.PricePoint) []entity.PriceAlert {
	alerts := DetectAlerts(today, yesterday, d.thresholdPct, d.clock.Now())
	for _, a := range alerts {
		d.metrics.IncAlert(string(a.AlertType))
		d.logger.Info("Price alert",
			zap.String("product_id", a.ProductID),
			zap.String("seller_id", a.SellerID),
			zap.String("type", string(a.AlertType)),
			zap.String("change_pct", a.ChangePct.String()),
		)
	}
	d.logger.Info("Alert detection complete",
		zap.Int("today", len(today)),
		zap.Int("yesterday", len(yesterday)),
		zap.Int("alerts", len(alerts)),
	)
	return alerts
}
