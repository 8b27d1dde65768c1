// Package router discovers candidate routes between two currencies, prices
// them through a pluggable quoting backend, and keeps the best trade fresh
// while the inputs keep changing underneath it.
package router

import (
	"context"
	"errors"

	"swapScope/internal/model"
)

// ErrInsufficientLiquidity marks a route that cannot serve the requested
// amount from its known pool state. Expected during discovery, not a fault.
var ErrInsufficientLiquidity = errors.New("insufficient liquidity")

// Quoter prices a single route for a requested amount. For EXACT_INPUT the
// amount is the route input and the result is the output; for EXACT_OUTPUT
// the amount is the desired output and the result is the required input.
type Quoter interface {
	Quote(ctx context.Context, route *model.Route, amount model.TokenAmount, tradeType model.TradeType) (model.TokenAmount, error)
}
