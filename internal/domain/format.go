package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// FormatPenalty renders a penalty rate for display, e.g. 500 → "5% NO penalty".
func FormatPenalty(penaltyBps int) string {
	pct := decimal.NewFromInt(int64(penaltyBps)).Div(decimal.NewFromInt(100))
	return fmt.Sprintf("%s%% NO penalty", pct.String())
}

// WindowCopy describes the time left in an opportunity window relative to now.
func WindowCopy(windowEnd, now time.Time) string {
	diff := windowEnd.Sub(now)
	if diff <= 0 {
		return "Opportunity window closed"
	}
	hours := int(diff / time.Hour)
	days := hours / 24
	if days > 0 {
		return fmt.Sprintf("%dd %dh left", days, hours%24)
	}
	return fmt.Sprintf("%dh left", hours)
}
