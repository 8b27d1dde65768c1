package router

import (
	"fmt"
	"math/big"
)

var q96 = new(big.Int).Lsh(big.NewInt(1), 96)

// mulDiv computes floor(a*b/denominator) at full intermediate precision.
func mulDiv(a, b, denominator *big.Int) (*big.Int, error) {
	if denominator.Sign() <= 0 {
		return nil, fmt.Errorf("mulDiv denominator must be positive")
	}
	product := new(big.Int).Mul(a, b)
	return product.Div(product, denominator), nil
}

// mulDivRoundingUp computes ceil(a*b/denominator).
func mulDivRoundingUp(a, b, denominator *big.Int) (*big.Int, error) {
	if denominator.Sign() <= 0 {
		return nil, fmt.Errorf("mulDiv denominator must be positive")
	}
	product := new(big.Int).Mul(a, b)
	quotient, remainder := product.DivMod(product, denominator, new(big.Int))
	if remainder.Sign() != 0 {
		quotient.Add(quotient, big.NewInt(1))
	}
	return quotient, nil
}

// nextSqrtPriceFromAmount0 moves the price by an exact token0 amount. Adding
// token0 pushes the price down; rounding is always up so the pool keeps the
// remainder.
func nextSqrtPriceFromAmount0(sqrtPX96, liquidity, amount *big.Int, add bool) (*big.Int, error) {
	if amount.Sign() == 0 {
		return new(big.Int).Set(sqrtPX96), nil
	}
	numerator := new(big.Int).Lsh(liquidity, 96)
	product := new(big.Int).Mul(amount, sqrtPX96)

	denominator := new(big.Int)
	if add {
		denominator.Add(numerator, product)
	} else {
		if numerator.Cmp(product) <= 0 {
			return nil, fmt.Errorf("amount drains pool: %w", ErrInsufficientLiquidity)
		}
		denominator.Sub(numerator, product)
	}
	return mulDivRoundingUp(numerator, sqrtPX96, denominator)
}

// nextSqrtPriceFromAmount1 moves the price by an exact token1 amount. Adding
// token1 pushes the price up; rounding direction keeps the movement inside
// what the amount actually pays for.
func nextSqrtPriceFromAmount1(sqrtPX96, liquidity, amount *big.Int, add bool) (*big.Int, error) {
	if add {
		quotient, err := mulDiv(amount, q96, liquidity)
		if err != nil {
			return nil, err
		}
		return quotient.Add(quotient, sqrtPX96), nil
	}
	quotient, err := mulDivRoundingUp(amount, q96, liquidity)
	if err != nil {
		return nil, err
	}
	if sqrtPX96.Cmp(quotient) <= 0 {
		return nil, fmt.Errorf("amount drains pool: %w", ErrInsufficientLiquidity)
	}
	return new(big.Int).Sub(sqrtPX96, quotient), nil
}

// nextSqrtPriceFromInput returns the price after spending exactly amountIn.
func nextSqrtPriceFromInput(sqrtPX96, liquidity, amountIn *big.Int, zeroForOne bool) (*big.Int, error) {
	if sqrtPX96.Sign() <= 0 || liquidity.Sign() <= 0 {
		return nil, fmt.Errorf("price and liquidity must be positive")
	}
	if zeroForOne {
		return nextSqrtPriceFromAmount0(sqrtPX96, liquidity, amountIn, true)
	}
	return nextSqrtPriceFromAmount1(sqrtPX96, liquidity, amountIn, true)
}

// nextSqrtPriceFromOutput returns the price after paying out exactly
// amountOut.
func nextSqrtPriceFromOutput(sqrtPX96, liquidity, amountOut *big.Int, zeroForOne bool) (*big.Int, error) {
	if sqrtPX96.Sign() <= 0 || liquidity.Sign() <= 0 {
		return nil, fmt.Errorf("price and liquidity must be positive")
	}
	if zeroForOne {
		return nextSqrtPriceFromAmount1(sqrtPX96, liquidity, amountOut, false)
	}
	return nextSqrtPriceFromAmount0(sqrtPX96, liquidity, amountOut, false)
}

// amount0Delta returns the token0 owed between two sqrt prices at constant
// liquidity.
func amount0Delta(sqrtA, sqrtB, liquidity *big.Int, roundUp bool) (*big.Int, error) {
	if sqrtA.Cmp(sqrtB) > 0 {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	if sqrtA.Sign() <= 0 {
		return nil, fmt.Errorf("sqrt price must be positive")
	}
	numerator1 := new(big.Int).Lsh(liquidity, 96)
	numerator2 := new(big.Int).Sub(sqrtB, sqrtA)

	if roundUp {
		inner, err := mulDivRoundingUp(numerator1, numerator2, sqrtB)
		if err != nil {
			return nil, err
		}
		return mulDivRoundingUp(inner, big.NewInt(1), sqrtA)
	}
	inner, err := mulDiv(numerator1, numerator2, sqrtB)
	if err != nil {
		return nil, err
	}
	return inner.Div(inner, sqrtA), nil
}

// amount1Delta returns the token1 owed between two sqrt prices at constant
// liquidity.
func amount1Delta(sqrtA, sqrtB, liquidity *big.Int, roundUp bool) (*big.Int, error) {
	if sqrtA.Cmp(sqrtB) > 0 {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	diff := new(big.Int).Sub(sqrtB, sqrtA)
	if roundUp {
		return mulDivRoundingUp(liquidity, diff, q96)
	}
	return mulDiv(liquidity, diff, q96)
}
