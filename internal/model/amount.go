package model

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// TokenAmount pairs a currency with a raw amount in the currency's base
// units. Raw amounts are never negative.
type TokenAmount struct {
	Currency Currency
	Raw      *big.Int
}

// NewTokenAmount builds a token amount from a raw base-unit value.
func NewTokenAmount(c Currency, raw *big.Int) (TokenAmount, error) {
	if raw == nil {
		return TokenAmount{}, fmt.Errorf("amount of %s must not be nil", c)
	}
	if raw.Sign() < 0 {
		return TokenAmount{}, fmt.Errorf("amount of %s must not be negative, got %s", c, raw)
	}
	return TokenAmount{Currency: c, Raw: new(big.Int).Set(raw)}, nil
}

// Add returns a + other. Both amounts must share a currency.
func (a TokenAmount) Add(other TokenAmount) (TokenAmount, error) {
	if !a.Currency.Equal(other.Currency) {
		return TokenAmount{}, fmt.Errorf("cannot add %s to %s", other.Currency, a.Currency)
	}
	return TokenAmount{Currency: a.Currency, Raw: new(big.Int).Add(a.Raw, other.Raw)}, nil
}

// Sub returns a - other. Both amounts must share a currency and the result
// must not be negative.
func (a TokenAmount) Sub(other TokenAmount) (TokenAmount, error) {
	if !a.Currency.Equal(other.Currency) {
		return TokenAmount{}, fmt.Errorf("cannot subtract %s from %s", other.Currency, a.Currency)
	}
	raw := new(big.Int).Sub(a.Raw, other.Raw)
	if raw.Sign() < 0 {
		return TokenAmount{}, fmt.Errorf("amount of %s underflows", a.Currency)
	}
	return TokenAmount{Currency: a.Currency, Raw: raw}, nil
}

// IsZero reports whether the raw amount is zero.
func (a TokenAmount) IsZero() bool {
	return a.Raw == nil || a.Raw.Sign() == 0
}

// Decimal converts the raw amount to human units.
func (a TokenAmount) Decimal() decimal.Decimal {
	if a.Raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(a.Raw, -int32(a.Currency.Decimals))
}

// FormatSignificant renders the amount in human units keeping the given
// number of significant digits.
func (a TokenAmount) FormatSignificant(digits int32) string {
	return formatSignificant(a.Decimal(), digits)
}

func (a TokenAmount) String() string {
	return fmt.Sprintf("%s %s", a.FormatSignificant(6), a.Currency)
}

// formatSignificant rounds d to the given count of significant digits and
// trims trailing zeros.
func formatSignificant(d decimal.Decimal, digits int32) string {
	if digits <= 0 || d.IsZero() {
		return d.String()
	}
	abs := d.Abs()
	intDigits := int32(abs.NumDigits()) + abs.Exponent()
	places := digits - intDigits
	rounded := d.Round(places)
	// Round can reintroduce trailing zeros, String trims them.
	return rounded.String()
}
