package router

import (
	"fmt"
	"math/big"
)

// feeDenominator expresses pool fees in hundredths of a bip.
const feeDenominator = 1_000_000

// v2AmountOut computes the constant-product output for an exact input,
// with the fee deducted from the input side.
func v2AmountOut(amountIn, reserveIn, reserveOut *big.Int, fee uint32) (*big.Int, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, fmt.Errorf("input amount must be positive")
	}
	if reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return nil, fmt.Errorf("pool has no reserves: %w", ErrInsufficientLiquidity)
	}
	if fee >= feeDenominator {
		return nil, fmt.Errorf("fee %d out of range", fee)
	}

	inWithFee := new(big.Int).Mul(amountIn, big.NewInt(feeDenominator-int64(fee)))
	numerator := new(big.Int).Mul(inWithFee, reserveOut)
	denominator := new(big.Int).Mul(reserveIn, big.NewInt(feeDenominator))
	denominator.Add(denominator, inWithFee)

	out := numerator.Div(numerator, denominator)
	if out.Sign() == 0 {
		return nil, fmt.Errorf("input too small for any output: %w", ErrInsufficientLiquidity)
	}
	return out, nil
}

// v2AmountIn computes the constant-product input required for an exact
// output, rounded up so the pool is never shorted.
func v2AmountIn(amountOut, reserveIn, reserveOut *big.Int, fee uint32) (*big.Int, error) {
	if amountOut == nil || amountOut.Sign() <= 0 {
		return nil, fmt.Errorf("output amount must be positive")
	}
	if reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return nil, fmt.Errorf("pool has no reserves: %w", ErrInsufficientLiquidity)
	}
	if fee >= feeDenominator {
		return nil, fmt.Errorf("fee %d out of range", fee)
	}
	if amountOut.Cmp(reserveOut) >= 0 {
		return nil, fmt.Errorf("output exceeds reserve: %w", ErrInsufficientLiquidity)
	}

	numerator := new(big.Int).Mul(reserveIn, amountOut)
	numerator.Mul(numerator, big.NewInt(feeDenominator))
	denominator := new(big.Int).Sub(reserveOut, amountOut)
	denominator.Mul(denominator, big.NewInt(feeDenominator-int64(fee)))

	in := numerator.Div(numerator, denominator)
	return in.Add(in, big.NewInt(1)), nil
}
