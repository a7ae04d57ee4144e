// Package indicator computes technical indicators over closing-price series.
//
// Indicators are streaming: each is fed one close at a time with Update and
// reports "no value" until it has seen enough history. ComputeRSI drives a
// fresh RSI over a whole series.
package indicator

import "rsi-backtest/internal/model"

// SMA calculates Simple Moving Average over a rolling window.
// Uses a preallocated circular buffer; Update is O(1) amortized.
type SMA struct {
	period  int
	buf     []float64 // preallocated circular buffer
	idx     int       // current write position
	count   int       // total values received
	sum     float64
	current float64
}

// NewSMA creates a new SMA indicator with the given period (> 0).
func NewSMA(period int) *SMA {
	return &SMA{
		period: period,
		buf:    make([]float64, period),
	}
}

func (s *SMA) Update(v float64) {
	if s.count >= s.period {
		// Subtract the oldest value being overwritten
		s.sum -= s.buf[s.idx]
	}

	s.buf[s.idx] = v
	s.sum += v
	s.idx = (s.idx + 1) % s.period
	s.count++

	if s.idx == 0 {
		// Re-sum once per wrap so rounding error cannot accumulate.
		s.sum = 0
		for _, x := range s.buf {
			s.sum += x
		}
	}

	if s.count >= s.period {
		s.current = s.sum / float64(s.period)
	}
}

func (s *SMA) Value() model.NullFloat {
	if !s.Ready() {
		return model.None()
	}
	return model.Some(s.current)
}

func (s *SMA) Ready() bool { return s.count >= s.period }
