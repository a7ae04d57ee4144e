package indicator

import "rsi-backtest/internal/model"

const (
	// DefaultRSIWindow is the conventional RSI lookback.
	DefaultRSIWindow = 14

	// NeutralRSI is reported when the window saw neither gains nor losses.
	NeutralRSI = 50.0
)

// RSI calculates the Relative Strength Index from simple moving averages of
// gains and losses over the trailing window of day-over-day deltas.
//
// The first close has no delta, so a value exists only once window deltas
// (window+1 closes) have been seen. When the average loss is zero the RSI is
// 100, or NeutralRSI if the average gain is zero as well.
type RSI struct {
	period    int
	count     int
	prevClose float64
	gains     *SMA
	losses    *SMA
}

// NewRSI creates a new RSI indicator with the given window (typically 14).
func NewRSI(period int) *RSI {
	return &RSI{
		period: period,
		gains:  NewSMA(period),
		losses: NewSMA(period),
	}
}

func (r *RSI) Update(price float64) {
	r.count++

	if r.count == 1 {
		// First close: no delta yet
		r.prevClose = price
		return
	}

	delta := price - r.prevClose
	r.prevClose = price

	gain, loss := 0.0, 0.0
	if delta > 0 {
		gain = delta
	} else {
		loss = -delta
	}
	r.gains.Update(gain)
	r.losses.Update(loss)
}

func (r *RSI) Value() model.NullFloat {
	if !r.Ready() {
		return model.None()
	}
	return model.Some(rsiFromAverages(r.gains.current, r.losses.current))
}

func (r *RSI) Ready() bool { return r.gains.Ready() }

func rsiFromAverages(avgGain, avgLoss float64) float64 {
	switch {
	case avgLoss <= 0 && avgGain <= 0:
		return NeutralRSI
	case avgLoss <= 0:
		return 100.0
	case avgGain <= 0:
		return 0.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

// ComputeRSI returns the RSI of closes, aligned 1:1 with the input. The first
// window entries (and every entry when window < 1) are absent.
func ComputeRSI(closes []float64, window int) []model.NullFloat {
	out := make([]model.NullFloat, len(closes))
	if window < 1 {
		return out
	}
	rsi := NewRSI(window)
	for i, c := range closes {
		rsi.Update(c)
		out[i] = rsi.Value()
	}
	return out
}
