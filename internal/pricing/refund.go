package pricing

import (
	"time"

	"playcourt/internal/models"
)

// RefundPercent returns the refund percentage for cancelling a confirmed
// booking at the given moment. Exactly 24 hours out still earns the full
// refund, exactly 6 hours out still earns the partial one.
func RefundPercent(now, slotStart time.Time) float64 {
	hours := slotStart.Sub(now).Hours()
	switch {
	case hours >= models.FullRefundWindowHours:
		return models.RefundPercentOver24Hours
	case hours >= models.PartialRefundWindowHours:
		return models.RefundPercent6To24Hours
	default:
		return models.RefundPercentUnder6Hours
	}
}

// RefundAmount converts a refund percentage into money, rounded to cents.
func RefundAmount(amountPaid, percent float64) float64 {
	return round2(amountPaid * percent / 100)
}
