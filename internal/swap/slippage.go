// Package swap turns a derived trade into on-chain calls: slippage bounds,
// fee and impact breakdowns, candidate call encoding, and the gas-estimation
// and submission flow.
package swap

import (
	"fmt"
	"math/big"

	"swapScope/internal/model"
)

// slippageScale is the bips denominator tolerances are quoted in.
var slippageScale = big.NewInt(10000)

// Bounds are the slippage-adjusted execution limits of a trade. The fixed
// side keeps the traded amount; the quoted side carries the tolerance.
type Bounds struct {
	MaxInput  model.TokenAmount
	MinOutput model.TokenAmount
}

// SlippageAdjustedAmounts derives the execution limits for a trade at the
// given tolerance. Quotients round down, matching the router contracts'
// integer math.
func SlippageAdjustedAmounts(trade *model.Trade, slippageBips uint64) (Bounds, error) {
	if trade == nil {
		return Bounds{}, fmt.Errorf("trade is nil")
	}
	if slippageBips > 10000 {
		return Bounds{}, fmt.Errorf("slippage tolerance %d bips exceeds 100%%", slippageBips)
	}

	switch trade.Type {
	case model.ExactInput:
		raw := new(big.Int).Mul(trade.OutputAmount.Raw, new(big.Int).SetUint64(10000-slippageBips))
		raw.Div(raw, slippageScale)
		minOut, err := model.NewTokenAmount(trade.OutputAmount.Currency, raw)
		if err != nil {
			return Bounds{}, err
		}
		return Bounds{MaxInput: trade.InputAmount, MinOutput: minOut}, nil
	case model.ExactOutput:
		raw := new(big.Int).Mul(trade.InputAmount.Raw, new(big.Int).SetUint64(10000+slippageBips))
		raw.Div(raw, slippageScale)
		maxIn, err := model.NewTokenAmount(trade.InputAmount.Currency, raw)
		if err != nil {
			return Bounds{}, err
		}
		return Bounds{MaxInput: maxIn, MinOutput: trade.OutputAmount}, nil
	default:
		return Bounds{}, fmt.Errorf("unknown trade type %d", int(trade.Type))
	}
}
