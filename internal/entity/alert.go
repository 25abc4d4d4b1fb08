package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type AlertType string

const (
	AlertPriceDrop     AlertType = "price_drop"
	AlertPriceIncrease AlertType = "price_increase"
)

// PriceAlert is derived from two daily observations of the same (product,
// seller) pair. It carries prices only, never the snapshots themselves.
type PriceAlert struct {
	ProductID     string          `json:"product_id"`
	SellerID      string          `json:"seller_id"`
	PreviousPrice decimal.Decimal `json:"previous_price"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	ChangeAmount  decimal.Decimal `json:"change_amount"`
	ChangePct     decimal.Decimal `json:"change_pct"`
	AlertType     AlertType       `json:"alert_type"`
	DetectedAt    time.Time       `json:"detected_at"`
}

// AlertSummary is what gets published for the notification layer.
type AlertSummary struct {
	Date           time.Time    `json:"date"`
	Alerts         []PriceAlert `json:"alerts"`
	TotalDrops     int          `json:"total_drops"`
	TotalIncreases int          `json:"total_increases"`
}

func Summarize(day time.Time, alerts []PriceAlert) AlertSummary {
	summary := AlertSummary{Date: TruncateDay(day), Alerts: alerts}
	for _, a := range alerts {
		if a.AlertType == AlertPriceDrop {
			summary.TotalDrops++
		} else {
			summary.TotalIncreases++
		}
	}
	return summary
}
