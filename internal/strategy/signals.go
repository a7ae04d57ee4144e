// Package strategy turns indicator series into positions and strategy returns.
//
// GenerateSignals maps RSI readings to a stance per date, and ComputeReturns
// applies yesterday's position change to today's price return. Both are pure
// functions over date-aligned slices.
package strategy

import (
	"errors"

	"rsi-backtest/internal/model"
)

// Stance is the position held on a date.
type Stance int8

const (
	Short Stance = -1
	Flat  Stance = 0
	Long  Stance = 1
)

func (s Stance) String() string {
	switch s {
	case Long:
		return "LONG"
	case Short:
		return "SHORT"
	case Flat:
		return "FLAT"
	default:
		return "UNKNOWN"
	}
}

// ErrLengthMismatch is returned when date-aligned inputs differ in length.
var ErrLengthMismatch = errors.New("strategy: series length mismatch")

// GenerateSignals converts RSI readings into stances and their day-over-day
// changes.
//
// Every date starts Flat. RSI < buyLevel sets Long, then RSI > sellLevel sets
// Short; the sell rule is applied last, so it wins whenever both match (only
// possible when buyLevel > sellLevel). Callers are expected to pass
// buyLevel < sellLevel. Dates without an RSI value stay Flat.
//
// changes[0] is absent; changes[t] = signals[t] - signals[t-1], one of
// {0, ±1, ±2}.
func GenerateSignals(rsi []model.NullFloat, buyLevel, sellLevel float64) ([]Stance, []model.NullFloat) {
	signals := make([]Stance, len(rsi))
	for i, v := range rsi {
		if !v.Valid {
			continue
		}
		if v.Float64 < buyLevel {
			signals[i] = Long
		}
		if v.Float64 > sellLevel {
			signals[i] = Short
		}
	}

	changes := make([]model.NullFloat, len(signals))
	for i := 1; i < len(signals); i++ {
		changes[i] = model.Some(float64(signals[i] - signals[i-1]))
	}
	return signals, changes
}
