package router

import (
	"fmt"
	"math/big"

	"swapScope/internal/model"
)

// IsTradeBetter reports whether trade a beats trade b for the payer. A
// present trade always beats an absent one; two absent trades are
// indeterminate (ok is false). Comparing trades of different types or over
// different currency pairs is a programming error.
//
// minDelta adds hysteresis: with a nonzero delta, a wins only when its
// payer price scaled up by (1+minDelta) is still strictly below b's, so
// minor re-quotes do not flip the recommendation back and forth.
func IsTradeBetter(a, b *model.Trade, minDelta model.Fraction) (better, ok bool, err error) {
	if a == nil && b == nil {
		return false, false, nil
	}
	if b == nil {
		return true, true, nil
	}
	if a == nil {
		return false, true, nil
	}

	if a.Type != b.Type {
		return false, false, fmt.Errorf("cannot compare %s trade against %s trade", a.Type, b.Type)
	}
	if !a.InputAmount.Currency.Equal(b.InputAmount.Currency) || !a.OutputAmount.Currency.Equal(b.OutputAmount.Currency) {
		return false, false, fmt.Errorf("cannot compare trades over different currency pairs")
	}
	if minDelta.Sign() < 0 {
		return false, false, fmt.Errorf("minimum delta must not be negative")
	}

	// Payer price is input per output; lower is better. a wins iff
	// (inA/outA)*(1+delta) < inB/outB, cross-multiplied to stay exact.
	scale := new(big.Int).Add(minDelta.Den, minDelta.Num)
	lhs := new(big.Int).Mul(a.InputAmount.Raw, scale)
	lhs.Mul(lhs, b.OutputAmount.Raw)
	rhs := new(big.Int).Mul(b.InputAmount.Raw, minDelta.Den)
	rhs.Mul(rhs, a.OutputAmount.Raw)
	return lhs.Cmp(rhs) < 0, true, nil
}
