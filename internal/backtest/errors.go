package backtest

import (
	"errors"
	"fmt"

	"rsi-backtest/internal/marketdata"
	"rsi-backtest/internal/metrics"
)

// Pipeline boundary failures. Each maps to one user-visible message.
var (
	ErrNoData              = errors.New("backtest: no market data")
	ErrInsufficientHistory = errors.New("backtest: insufficient price history")
	ErrFetchFailed         = errors.New("backtest: market data fetch failed")
	ErrFetchTimeout        = errors.New("backtest: market data fetch timed out")
)

// UserMessage returns the single message shown to the user for err.
func UserMessage(err error) string {
	var verr *ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &verr):
		return "Invalid input: " + verr.Error() + "."
	case errors.Is(err, marketdata.ErrSymbolNotFound):
		return "Symbol not found. Check the ticker and try again."
	case errors.Is(err, ErrNoData):
		return "No trading days found for this symbol in the selected period."
	case errors.Is(err, ErrInsufficientHistory):
		return "Not enough price history to compute RSI and returns. Try a longer period."
	case errors.Is(err, ErrFetchTimeout):
		return "The market data provider took too long to respond. Please try again."
	case errors.Is(err, ErrFetchFailed):
		return "Market data is currently unavailable. Please try again later."
	default:
		return "Something went wrong while running the backtest."
	}
}

// Outcome classifies err for the backtests_total metric.
func Outcome(err error) string {
	var verr *ValidationError
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.As(err, &verr):
		return metrics.OutcomeInvalid
	case errors.Is(err, ErrNoData):
		return metrics.OutcomeNoData
	case errors.Is(err, ErrInsufficientHistory):
		return metrics.OutcomeInsufficient
	case errors.Is(err, ErrFetchTimeout):
		return metrics.OutcomeTimeout
	default:
		return metrics.OutcomeFetchError
	}
}

func insufficient(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInsufficientHistory, fmt.Sprintf(format, args...))
}
