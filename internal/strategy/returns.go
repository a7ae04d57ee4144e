package strategy

import (
	"fmt"

	"rsi-backtest/internal/model"
)

// ComputeReturns applies each date's lagged position change to that date's
// simple price return:
//
//	lagged[t]  = positionChange[t-1]
//	return[t]  = (close[t] - close[t-1]) / close[t-1]
//	result[t]  = lagged[t] * return[t]
//
// The one-day lag keeps a decision made on day T from earning day T's own
// move. result[0] and result[1] are absent, as is any date whose lagged
// change is absent or whose previous close is zero.
func ComputeReturns(closes []float64, positionChange []model.NullFloat) ([]model.NullFloat, error) {
	if len(closes) != len(positionChange) {
		return nil, fmt.Errorf("%w: %d closes, %d position changes", ErrLengthMismatch, len(closes), len(positionChange))
	}

	out := make([]model.NullFloat, len(closes))
	for t := 1; t < len(closes); t++ {
		lagged := positionChange[t-1]
		prev := closes[t-1]
		if !lagged.Valid || prev == 0 {
			continue
		}
		priceReturn := (closes[t] - prev) / prev
		out[t] = model.Some(lagged.Float64 * priceReturn)
	}
	return out, nil
}
