package model

import (
	"fmt"
	"math/big"
)

// Price is an exact exchange rate between two currencies expressed as raw
// quote units per raw base unit.
type Price struct {
	Base  Currency
	Quote Currency
	frac  Fraction
}

// NewPrice builds a price from paired raw amounts of the base and quote
// currencies.
func NewPrice(base, quote Currency, baseRaw, quoteRaw *big.Int) (Price, error) {
	if baseRaw == nil || quoteRaw == nil {
		return Price{}, fmt.Errorf("price terms must not be nil")
	}
	if baseRaw.Sign() <= 0 {
		return Price{}, fmt.Errorf("price base amount must be positive, got %s", baseRaw)
	}
	if quoteRaw.Sign() < 0 {
		return Price{}, fmt.Errorf("price quote amount must not be negative, got %s", quoteRaw)
	}
	frac, err := NewFraction(quoteRaw, baseRaw)
	if err != nil {
		return Price{}, err
	}
	return Price{Base: base, Quote: quote, frac: frac}, nil
}

// Fraction returns the raw quote/base ratio.
func (p Price) Fraction() Fraction {
	return p.frac
}

// Invert returns the price with base and quote swapped.
func (p Price) Invert() (Price, error) {
	inv, err := p.frac.Invert()
	if err != nil {
		return Price{}, fmt.Errorf("invert %s/%s price: %w", p.Quote, p.Base, err)
	}
	return Price{Base: p.Quote, Quote: p.Base, frac: inv}, nil
}

// Mul chains two prices: base/mid * mid/quote yields base/quote. The
// receiver's quote currency must match the other price's base currency.
func (p Price) Mul(other Price) (Price, error) {
	if !p.Quote.Wrapped().Equal(other.Base.Wrapped()) {
		return Price{}, fmt.Errorf("cannot chain %s price onto %s price", other.Base, p.Quote)
	}
	return Price{Base: p.Base, Quote: other.Quote, frac: p.frac.Mul(other.frac)}, nil
}

// QuoteAmount converts an amount of the base currency into the quote
// currency, flooring the result.
func (p Price) QuoteAmount(a TokenAmount) (TokenAmount, error) {
	if !a.Currency.Wrapped().Equal(p.Base.Wrapped()) {
		return TokenAmount{}, fmt.Errorf("cannot quote %s amount at a %s/%s price", a.Currency, p.Quote, p.Base)
	}
	raw := new(big.Int).Mul(a.Raw, p.frac.Num)
	raw.Div(raw, p.frac.Den)
	return NewTokenAmount(p.Quote, raw)
}

// Adjusted returns the rate scaled to human units, quote per one whole base
// unit.
func (p Price) Adjusted() Fraction {
	scale := Fraction{
		Num: new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(p.Base.Decimals)), nil),
		Den: new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(p.Quote.Decimals)), nil),
	}
	return p.frac.Mul(scale)
}

// FormatSignificant renders the adjusted rate keeping the given number of
// significant digits.
func (p Price) FormatSignificant(digits int32) string {
	adj := p.Adjusted()
	// 18 fractional places covers any token pair before significant rounding.
	return formatSignificant(adj.Decimal(18), digits)
}

func (p Price) String() string {
	return fmt.Sprintf("%s %s/%s", p.FormatSignificant(6), p.Quote, p.Base)
}
