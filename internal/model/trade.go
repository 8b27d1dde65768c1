package model

import (
	"fmt"
)

// TradeType distinguishes which side of a trade is held fixed.
type TradeType int

const (
	// ExactInput fixes the amount spent, the output is quoted.
	ExactInput TradeType = iota + 1
	// ExactOutput fixes the amount received, the input is quoted.
	ExactOutput
)

func (t TradeType) String() string {
	switch t {
	case ExactInput:
		return "exact_input"
	case ExactOutput:
		return "exact_output"
	default:
		return fmt.Sprintf("trade_type(%d)", int(t))
	}
}

// Trade is a fully priced swap over one route. Trades are immutable once
// built; derivations construct new values instead of mutating.
type Trade struct {
	Route        *Route
	Type         TradeType
	InputAmount  TokenAmount
	OutputAmount TokenAmount

	// ExecutionPrice is the realized rate, output units per input unit.
	ExecutionPrice Price

	// PriceImpact is the shortfall of the execution price against the route
	// mid price, LP fees included.
	PriceImpact Fraction

	// QuoteBlock is the height the quote was computed at, zero when the
	// quote source does not report one.
	QuoteBlock uint64
}

// NewTrade prices a quoted amount pair over a route.
func NewTrade(route *Route, tradeType TradeType, input, output TokenAmount) (*Trade, error) {
	if route == nil {
		return nil, fmt.Errorf("trade route is nil")
	}
	if tradeType != ExactInput && tradeType != ExactOutput {
		return nil, fmt.Errorf("unknown trade type %d", int(tradeType))
	}
	if !input.Currency.Equal(route.Input) {
		return nil, fmt.Errorf("input amount is %s, route starts at %s", input.Currency, route.Input)
	}
	if !output.Currency.Equal(route.Output) {
		return nil, fmt.Errorf("output amount is %s, route ends at %s", output.Currency, route.Output)
	}
	if input.IsZero() || output.IsZero() {
		return nil, fmt.Errorf("trade amounts must be positive")
	}
	execution, err := NewPrice(input.Currency, output.Currency, input.Raw, output.Raw)
	if err != nil {
		return nil, fmt.Errorf("execution price: %w", err)
	}
	impact, err := priceImpact(route, input, output)
	if err != nil {
		return nil, err
	}
	return &Trade{
		Route:          route,
		Type:           tradeType,
		InputAmount:    input,
		OutputAmount:   output,
		ExecutionPrice: execution,
		PriceImpact:    impact,
	}, nil
}

// priceImpact measures how far the realized output falls short of the
// mid-price output: (expected - actual) / expected.
func priceImpact(route *Route, input, output TokenAmount) (Fraction, error) {
	mid, err := route.MidPrice()
	if err != nil {
		return Fraction{}, fmt.Errorf("mid price: %w", err)
	}
	expected, err := mid.QuoteAmount(input)
	if err != nil {
		return Fraction{}, err
	}
	if expected.IsZero() {
		return Fraction{}, fmt.Errorf("mid price yields zero expected output for %s", input)
	}
	actual, err := NewFraction(output.Raw, expected.Raw)
	if err != nil {
		return Fraction{}, err
	}
	return FractionFromInt(1).Sub(actual), nil
}
