package backtest

import (
	"time"

	"rsi-backtest/internal/model"
)

// DaysPerYear is the calendar-day length of one lookback year.
const DaysPerYear = 365

// Lookback returns the half-open date range [start, end) covering years×365
// calendar days before today (UTC).
func Lookback(now time.Time, years int) (start, end time.Time) {
	end = model.TradingDay(now)
	start = end.AddDate(0, 0, -years*DaysPerYear)
	return start, end
}
