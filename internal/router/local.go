package router

import (
	"context"
	"fmt"
	"math/big"

	"swapScope/internal/model"
)

// LocalQuoter prices routes from pool snapshots alone, with no network
// round trips. Constant-product hops are exact; concentrated-liquidity hops
// are exact while the price stays inside the snapshot's tick window.
type LocalQuoter struct{}

// NewLocalQuoter returns a snapshot-math quoter.
func NewLocalQuoter() *LocalQuoter {
	return &LocalQuoter{}
}

// Quote walks the route hop by hop, forward for EXACT_INPUT and backward
// for EXACT_OUTPUT.
func (q *LocalQuoter) Quote(ctx context.Context, route *model.Route, amount model.TokenAmount, tradeType model.TradeType) (model.TokenAmount, error) {
	if route == nil {
		return model.TokenAmount{}, fmt.Errorf("route is nil")
	}
	if err := ctx.Err(); err != nil {
		return model.TokenAmount{}, err
	}

	switch tradeType {
	case model.ExactInput:
		if !amount.Currency.Equal(route.Input) {
			return model.TokenAmount{}, fmt.Errorf("amount currency %s does not match route input %s", amount.Currency, route.Input)
		}
		raw := amount.Raw
		for i, pool := range route.Pools {
			out, err := hopOut(pool, route.Path[i], raw)
			if err != nil {
				return model.TokenAmount{}, fmt.Errorf("hop %d via %s: %w", i, pool.Address.Hex(), err)
			}
			raw = out
		}
		return model.NewTokenAmount(route.Output, raw)

	case model.ExactOutput:
		if !amount.Currency.Equal(route.Output) {
			return model.TokenAmount{}, fmt.Errorf("amount currency %s does not match route output %s", amount.Currency, route.Output)
		}
		raw := amount.Raw
		for i := len(route.Pools) - 1; i >= 0; i-- {
			in, err := hopIn(route.Pools[i], route.Path[i], raw)
			if err != nil {
				return model.TokenAmount{}, fmt.Errorf("hop %d via %s: %w", i, route.Pools[i].Address.Hex(), err)
			}
			raw = in
		}
		return model.NewTokenAmount(route.Input, raw)

	default:
		return model.TokenAmount{}, fmt.Errorf("unknown trade type %d", tradeType)
	}
}

// hopOut prices one pool hop forward: amountIn of the hop's input currency
// produces the returned amount of the opposite token.
func hopOut(pool *model.Pool, hopInput model.Currency, amountIn *big.Int) (*big.Int, error) {
	zeroForOne := hopInput.Wrapped().Equal(pool.Token0)
	switch pool.Kind {
	case model.PoolKindV2:
		if zeroForOne {
			return v2AmountOut(amountIn, pool.Reserve0, pool.Reserve1, pool.Fee)
		}
		return v2AmountOut(amountIn, pool.Reserve1, pool.Reserve0, pool.Fee)
	case model.PoolKindV3:
		_, out, err := v3SwapWithinWindow(pool, zeroForOne, amountIn, true)
		return out, err
	default:
		return nil, fmt.Errorf("unknown pool kind %d", pool.Kind)
	}
}

// hopIn prices one pool hop backward: the returned amount of the hop's
// input currency buys exactly amountOut of the opposite token.
func hopIn(pool *model.Pool, hopInput model.Currency, amountOut *big.Int) (*big.Int, error) {
	zeroForOne := hopInput.Wrapped().Equal(pool.Token0)
	switch pool.Kind {
	case model.PoolKindV2:
		if zeroForOne {
			return v2AmountIn(amountOut, pool.Reserve0, pool.Reserve1, pool.Fee)
		}
		return v2AmountIn(amountOut, pool.Reserve1, pool.Reserve0, pool.Fee)
	case model.PoolKindV3:
		in, _, err := v3SwapWithinWindow(pool, zeroForOne, amountOut, false)
		return in, err
	default:
		return nil, fmt.Errorf("unknown pool kind %d", pool.Kind)
	}
}
