package model

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Fraction is an exact rational. All pricing, fee, and tolerance arithmetic
// runs on fractions so no precision is lost before the final quotient.
type Fraction struct {
	Num *big.Int
	Den *big.Int
}

// NewFraction builds a fraction, normalizing the denominator to be positive.
func NewFraction(num, den *big.Int) (Fraction, error) {
	if num == nil || den == nil {
		return Fraction{}, fmt.Errorf("fraction terms must not be nil")
	}
	if den.Sign() == 0 {
		return Fraction{}, fmt.Errorf("fraction denominator must not be zero")
	}
	n := new(big.Int).Set(num)
	d := new(big.Int).Set(den)
	if d.Sign() < 0 {
		n.Neg(n)
		d.Neg(d)
	}
	return Fraction{Num: n, Den: d}, nil
}

// FractionFromInt builds the fraction n/1.
func FractionFromInt(n int64) Fraction {
	return Fraction{Num: big.NewInt(n), Den: big.NewInt(1)}
}

// FractionFromBips builds the fraction bips/10000.
func FractionFromBips(bips uint64) Fraction {
	return Fraction{Num: new(big.Int).SetUint64(bips), Den: big.NewInt(10000)}
}

// Add returns f + other.
func (f Fraction) Add(other Fraction) Fraction {
	num := new(big.Int).Mul(f.Num, other.Den)
	num.Add(num, new(big.Int).Mul(other.Num, f.Den))
	return Fraction{Num: num, Den: new(big.Int).Mul(f.Den, other.Den)}
}

// Sub returns f - other.
func (f Fraction) Sub(other Fraction) Fraction {
	num := new(big.Int).Mul(f.Num, other.Den)
	num.Sub(num, new(big.Int).Mul(other.Num, f.Den))
	return Fraction{Num: num, Den: new(big.Int).Mul(f.Den, other.Den)}
}

// Mul returns f * other.
func (f Fraction) Mul(other Fraction) Fraction {
	return Fraction{
		Num: new(big.Int).Mul(f.Num, other.Num),
		Den: new(big.Int).Mul(f.Den, other.Den),
	}
}

// Invert returns 1/f.
func (f Fraction) Invert() (Fraction, error) {
	if f.Num.Sign() == 0 {
		return Fraction{}, fmt.Errorf("cannot invert zero fraction")
	}
	return NewFraction(f.Den, f.Num)
}

// Cmp compares two fractions, returning -1, 0, or +1.
func (f Fraction) Cmp(other Fraction) int {
	left := new(big.Int).Mul(f.Num, other.Den)
	right := new(big.Int).Mul(other.Num, f.Den)
	return left.Cmp(right)
}

// LessThan reports f < other.
func (f Fraction) LessThan(other Fraction) bool {
	return f.Cmp(other) < 0
}

// GreaterThan reports f > other.
func (f Fraction) GreaterThan(other Fraction) bool {
	return f.Cmp(other) > 0
}

// EqualTo reports f == other as rationals.
func (f Fraction) EqualTo(other Fraction) bool {
	return f.Cmp(other) == 0
}

// Sign reports the sign of the fraction.
func (f Fraction) Sign() int {
	return f.Num.Sign()
}

// Quotient returns the floored integer value of the fraction.
func (f Fraction) Quotient() *big.Int {
	return new(big.Int).Div(f.Num, f.Den)
}

// CeilQuotient returns the integer value rounded toward positive infinity.
func (f Fraction) CeilQuotient() *big.Int {
	q, r := new(big.Int).DivMod(f.Num, f.Den, new(big.Int))
	if r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}

// Decimal renders the fraction with the given number of decimal places.
func (f Fraction) Decimal(places int32) decimal.Decimal {
	num := decimal.NewFromBigInt(f.Num, 0)
	den := decimal.NewFromBigInt(f.Den, 0)
	return num.DivRound(den, places)
}

// PercentString renders the fraction as a percentage with the given decimal
// places, e.g. 3/1000 at 2 places renders "0.30".
func (f Fraction) PercentString(places int32) string {
	hundred := Fraction{Num: big.NewInt(100), Den: big.NewInt(1)}
	return f.Mul(hundred).Decimal(places).StringFixed(places)
}

func (f Fraction) String() string {
	return fmt.Sprintf("%s/%s", f.Num.String(), f.Den.String())
}
