package router

import (
	"fmt"
	"math/big"

	"swapScope/internal/model"
)

// v3SwapWithinWindow prices a swap against a concentrated-liquidity
// snapshot, valid only while the price stays inside the tick-spacing window
// the snapshot was taken in. The snapshot carries no liquidity data beyond
// that window, so a move that reaches its edge reports insufficient
// liquidity and the route is discarded.
func v3SwapWithinWindow(pool *model.Pool, zeroForOne bool, amount *big.Int, exactIn bool) (amountIn, amountOut *big.Int, err error) {
	if pool == nil || pool.Kind != model.PoolKindV3 {
		return nil, nil, fmt.Errorf("pool is not a concentrated-liquidity snapshot")
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, nil, fmt.Errorf("swap amount must be positive")
	}
	if pool.Liquidity == nil || pool.Liquidity.Sign() == 0 {
		return nil, nil, fmt.Errorf("pool has no active liquidity: %w", ErrInsufficientLiquidity)
	}
	if pool.TickSpacing <= 0 {
		return nil, nil, fmt.Errorf("pool tick spacing %d invalid", pool.TickSpacing)
	}

	lower, upper := tickWindow(pool.Tick, pool.TickSpacing)
	limitTick := upper
	if zeroForOne {
		limitTick = lower
	}
	limit, err := SqrtRatioAtTick(limitTick)
	if err != nil {
		return nil, nil, err
	}

	current := pool.SqrtPriceX96
	liquidity := pool.Liquidity
	feeNum := big.NewInt(feeDenominator - int64(pool.Fee))
	feeDen := big.NewInt(feeDenominator)

	if exactIn {
		inLessFee, err := mulDiv(amount, feeNum, feeDen)
		if err != nil {
			return nil, nil, err
		}
		var maxIn *big.Int
		if zeroForOne {
			maxIn, err = amount0Delta(limit, current, liquidity, true)
		} else {
			maxIn, err = amount1Delta(current, limit, liquidity, true)
		}
		if err != nil {
			return nil, nil, err
		}
		if inLessFee.Cmp(maxIn) >= 0 {
			return nil, nil, fmt.Errorf("swap reaches the edge of the active tick window: %w", ErrInsufficientLiquidity)
		}

		next, err := nextSqrtPriceFromInput(current, liquidity, inLessFee, zeroForOne)
		if err != nil {
			return nil, nil, err
		}
		var out *big.Int
		if zeroForOne {
			out, err = amount1Delta(next, current, liquidity, false)
		} else {
			out, err = amount0Delta(current, next, liquidity, false)
		}
		if err != nil {
			return nil, nil, err
		}
		if out.Sign() == 0 {
			return nil, nil, fmt.Errorf("input too small for any output: %w", ErrInsufficientLiquidity)
		}
		return new(big.Int).Set(amount), out, nil
	}

	var maxOut *big.Int
	if zeroForOne {
		maxOut, err = amount1Delta(limit, current, liquidity, false)
	} else {
		maxOut, err = amount0Delta(current, limit, liquidity, false)
	}
	if err != nil {
		return nil, nil, err
	}
	if amount.Cmp(maxOut) >= 0 {
		return nil, nil, fmt.Errorf("output reaches the edge of the active tick window: %w", ErrInsufficientLiquidity)
	}

	next, err := nextSqrtPriceFromOutput(current, liquidity, amount, zeroForOne)
	if err != nil {
		return nil, nil, err
	}
	var in *big.Int
	if zeroForOne {
		in, err = amount0Delta(next, current, liquidity, true)
	} else {
		in, err = amount1Delta(current, next, liquidity, true)
	}
	if err != nil {
		return nil, nil, err
	}
	in, err = mulDivRoundingUp(in, feeDen, feeNum)
	if err != nil {
		return nil, nil, err
	}
	return in, new(big.Int).Set(amount), nil
}
