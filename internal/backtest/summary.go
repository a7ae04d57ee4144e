package backtest

import (
	"github.com/montanaflynn/stats"

	"rsi-backtest/internal/model"
)

// Summary holds the aggregate statistics of a strategy return series.
// A statistic is absent when no return in the series is defined.
type Summary struct {
	AverageReturn    model.NullFloat `json:"average_return"`
	CumulativeReturn model.NullFloat `json:"cumulative_return"`
	StdDev           model.NullFloat `json:"std_dev"`
	BestDay          model.NullFloat `json:"best_day"`
	WorstDay         model.NullFloat `json:"worst_day"`
	DefinedReturns   int             `json:"defined_returns"`
	Trades           int             `json:"trades"`
	Days             int             `json:"days"`
}

// Defined reports whether the headline statistics could be computed.
func (s Summary) Defined() bool {
	return s.AverageReturn.Valid && s.CumulativeReturn.Valid
}

// Summarize computes the statistics of returns. "No value" entries are left
// out of the mean and count as a zero-return day when compounding.
func Summarize(returns []model.NullFloat) Summary {
	defined := stats.Float64Data(model.Defined(returns))
	s := Summary{DefinedReturns: len(defined), Days: len(returns)}
	if len(defined) == 0 {
		return s
	}

	if mean, err := stats.Mean(defined); err == nil {
		s.AverageReturn = model.Some(mean)
	}
	if sd, err := stats.StandardDeviationSample(defined); err == nil && len(defined) > 1 {
		s.StdDev = model.Some(sd)
	}
	if hi, err := stats.Max(defined); err == nil {
		s.BestDay = model.Some(hi)
	}
	if lo, err := stats.Min(defined); err == nil {
		s.WorstDay = model.Some(lo)
	}

	curve := CumulativeCurve(returns)
	s.CumulativeReturn = curve[len(curve)-1]
	return s
}

// CumulativeCurve returns the running compounded return Π(1+r)−1 at each
// date. Entries before the first defined return are "no value".
func CumulativeCurve(returns []model.NullFloat) []model.NullFloat {
	out := make([]model.NullFloat, len(returns))
	growth := 1.0
	started := false
	for i, r := range returns {
		if r.Valid {
			started = true
		}
		if !started {
			continue
		}
		growth *= 1 + r.OrZero()
		out[i] = model.Some(growth - 1)
	}
	return out
}

// CountTrades counts the dates with a non-zero position change.
func CountTrades(changes []model.NullFloat) int {
	n := 0
	for _, c := range changes {
		if c.Valid && c.Float64 != 0 {
			n++
		}
	}
	return n
}
