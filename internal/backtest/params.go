package backtest

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Level bounds for RSI thresholds.
const (
	MinLevel = 0
	MaxLevel = 100
)

const maxSymbolLen = 15

var symbolPattern = regexp.MustCompile(`^[A-Z0-9.\-^=]+$`)

// Params is one validated backtest request.
type Params struct {
	Symbol    string `json:"symbol"`
	BuyLevel  int    `json:"buy_level"`
	SellLevel int    `json:"sell_level"`
	Years     int    `json:"years"`
}

// Form carries the raw, unparsed request fields so a non-numeric value can be
// reported against the field it came from.
type Form struct {
	Symbol    string `form:"symbol" json:"symbol"`
	BuyLevel  string `form:"buy_level" json:"buy_level"`
	SellLevel string `form:"sell_level" json:"sell_level"`
	Years     string `form:"years" json:"years"`
}

// ValidationError reports one rejected request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Params parses the numeric fields. Range checks happen in Params.Validate.
func (f Form) Params() (Params, error) {
	buy, err := parseInt("buy_level", f.BuyLevel)
	if err != nil {
		return Params{}, err
	}
	sell, err := parseInt("sell_level", f.SellLevel)
	if err != nil {
		return Params{}, err
	}
	years, err := parseInt("years", f.Years)
	if err != nil {
		return Params{}, err
	}
	return Params{Symbol: f.Symbol, BuyLevel: buy, SellLevel: sell, Years: years}, nil
}

func parseInt(field, raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, invalid(field, "is required")
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalid(field, "must be a whole number, got %q", raw)
	}
	return n, nil
}

// Validate normalizes the symbol and checks every field. It returns the
// normalized copy; the receiver is left untouched.
func (p Params) Validate(maxYears int) (Params, error) {
	p.Symbol = strings.ToUpper(strings.TrimSpace(p.Symbol))
	switch {
	case p.Symbol == "":
		return p, invalid("symbol", "is required")
	case len(p.Symbol) > maxSymbolLen:
		return p, invalid("symbol", "must be at most %d characters", maxSymbolLen)
	case !symbolPattern.MatchString(p.Symbol):
		return p, invalid("symbol", "contains invalid characters")
	}

	if p.BuyLevel < MinLevel || p.BuyLevel > MaxLevel {
		return p, invalid("buy_level", "must be between %d and %d", MinLevel, MaxLevel)
	}
	if p.SellLevel < MinLevel || p.SellLevel > MaxLevel {
		return p, invalid("sell_level", "must be between %d and %d", MinLevel, MaxLevel)
	}
	if p.SellLevel <= p.BuyLevel {
		return p, invalid("sell_level", "must be greater than buy_level")
	}
	if p.Years < 1 || p.Years > maxYears {
		return p, invalid("years", "must be between 1 and %d", maxYears)
	}
	return p, nil
}
