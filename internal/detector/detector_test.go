package detector

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/price-tracker/internal/entity"
	"github.com/user/price-tracker/pkg/clock"
	"github.com/user/price-tracker/pkg/metrics"
)

var detectedAt = time.Date(2026, 2, 3, 6, 0, 0, 0, time.UTC)

func point(product, seller, price string) entity.PricePoint {
	return entity.PricePoint{ProductID: product, SellerID: seller, Price: decimal.RequireFromString(price)}
}

func TestDetectAlerts_Drop(t *testing.T) {
	alerts := DetectAlerts(
		[]entity.PricePoint{point("N1", "noon", "94.00")},
		[]entity.PricePoint{point("N1", "noon", "100.00")},
		DefaultThresholdPct, detectedAt,
	)

	require.Len(t, alerts, 1)
	a := alerts[0]
	assert.Equal(t, entity.AlertPriceDrop, a.AlertType)
	assert.True(t, decimal.RequireFromString("-6.0").Equal(a.ChangePct), "change_pct = %s", a.ChangePct)
	assert.True(t, decimal.RequireFromString("-6").Equal(a.ChangeAmount))
	assert.True(t, decimal.RequireFromString("100").Equal(a.PreviousPrice))
	assert.True(t, decimal.RequireFromString("94").Equal(a.CurrentPrice))
	assert.Equal(t, detectedAt, a.DetectedAt)
}

func TestDetectAlerts_NoAlert(t *testing.T) {
	tests := []struct {
		name      string
		today     []entity.PricePoint
		yesterday []entity.PricePoint
	}{
		{"below threshold", []entity.PricePoint{point("N1", "noon", "102.00")}, []entity.PricePoint{point("N1", "noon", "100.00")}},
		{"zero yesterday", []entity.PricePoint{point("N1", "noon", "50.00")}, []entity.PricePoint{point("N1", "noon", "0")}},
		{"new pair", []entity.PricePoint{point("N1", "noon", "50.00")}, nil},
		{"dropped pair", nil, []entity.PricePoint{point("N1", "noon", "50.00")}},
		{"other seller", []entity.PricePoint{point("N1", "acme", "10.00")}, []entity.PricePoint{point("N1", "noon", "50.00")}},
		{"unchanged", []entity.PricePoint{point("N1", "noon", "50.00")}, []entity.PricePoint{point("N1", "noon", "50.00")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, DetectAlerts(tt.today, tt.yesterday, DefaultThresholdPct, detectedAt))
		})
	}
}

func TestDetectAlerts_ThresholdInclusive(t *testing.T) {
	alerts := DetectAlerts(
		[]entity.PricePoint{point("N1", "noon", "105")},
		[]entity.PricePoint{point("N1", "noon", "100")},
		DefaultThresholdPct, detectedAt,
	)
	require.Len(t, alerts, 1)
	assert.Equal(t, entity.AlertPriceIncrease, alerts[0].AlertType)
}

func TestDetectAlerts_OrderedByMagnitude(t *testing.T) {
	today := []entity.PricePoint{
		point("N1", "noon", "90"),  // -10%
		point("N2", "noon", "130"), // +30%
		point("N3", "noon", "80"),  // -20%
		point("N4", "acme", "110"), // +10%
	}
	yesterday := []entity.PricePoint{
		point("N1", "noon", "100"),
		point("N2", "noon", "100"),
		point("N3", "noon", "100"),
		point("N4", "acme", "100"),
	}

	alerts := DetectAlerts(today, yesterday, DefaultThresholdPct, detectedAt)

	got := make([]string, 0, len(alerts))
	for _, a := range alerts {
		got = append(got, a.ProductID+":"+a.ChangePct.String())
	}
	want := []string{"N2:30", "N3:-20", "N1:-10", "N4:10"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("alert order mismatch (-want +got):\n%s", diff)
	}
}

func TestDetectAlerts_RoundsToTwoPlaces(t *testing.T) {
	alerts := DetectAlerts(
		[]entity.PricePoint{point("N1", "noon", "89.99")},
		[]entity.PricePoint{point("N1", "noon", "99.99")},
		DefaultThresholdPct, detectedAt,
	)
	require.Len(t, alerts, 1)
	assert.Equal(t, "-10", alerts[0].ChangePct.String())
}

func TestDetector_RecordsMetrics(t *testing.T) {
	m := metrics.New()
	d := New(DefaultThresholdPct, clock.NewMockClock(detectedAt), nil, m)

	alerts := d.Detect(
		[]entity.PricePoint{point("N1", "noon", "50"), point("N2", "noon", "200")},
		[]entity.PricePoint{point("N1", "noon", "100"), point("N2", "noon", "100")},
	)

	require.Len(t, alerts, 2)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.AlertsTotal.WithLabelValues("price_drop")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.AlertsTotal.WithLabelValues("price_increase")))
}
