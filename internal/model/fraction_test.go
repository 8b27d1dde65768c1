package model

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewFraction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		num, den    int64
		wantNum     int64
		wantDen     int64
		expectedErr string
	}{
		{name: "plain", num: 3, den: 10, wantNum: 3, wantDen: 10},
		{name: "negative denominator normalized", num: 3, den: -10, wantNum: -3, wantDen: 10},
		{name: "zero denominator", num: 1, den: 0, expectedErr: "denominator"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f, err := NewFraction(big.NewInt(tt.num), big.NewInt(tt.den))
			if tt.expectedErr != "" {
				require.ErrorContains(t, err, tt.expectedErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantNum, f.Num.Int64())
			require.Equal(t, tt.wantDen, f.Den.Int64())
		})
	}
}

func TestFractionArithmetic(t *testing.T) {
	t.Parallel()

	half := Fraction{Num: big.NewInt(1), Den: big.NewInt(2)}
	third := Fraction{Num: big.NewInt(1), Den: big.NewInt(3)}

	sum := half.Add(third)
	require.True(t, sum.EqualTo(Fraction{Num: big.NewInt(5), Den: big.NewInt(6)}))

	diff := half.Sub(third)
	require.True(t, diff.EqualTo(Fraction{Num: big.NewInt(1), Den: big.NewInt(6)}))

	prod := half.Mul(third)
	require.True(t, prod.EqualTo(Fraction{Num: big.NewInt(1), Den: big.NewInt(6)}))

	inv, err := third.Invert()
	require.NoError(t, err)
	require.True(t, inv.EqualTo(FractionFromInt(3)))

	_, err = Fraction{Num: big.NewInt(0), Den: big.NewInt(1)}.Invert()
	require.Error(t, err)
}

func TestFractionComparison(t *testing.T) {
	t.Parallel()

	small := FractionFromBips(30)  // 0.30%
	large := FractionFromBips(100) // 1.00%

	require.True(t, small.LessThan(large))
	require.True(t, large.GreaterThan(small))
	require.False(t, small.EqualTo(large))
	require.True(t, small.EqualTo(Fraction{Num: big.NewInt(3), Den: big.NewInt(1000)}))
	require.Equal(t, -1, small.Cmp(large))
}

func TestFractionQuotients(t *testing.T) {
	t.Parallel()

	f := Fraction{Num: big.NewInt(7), Den: big.NewInt(2)}
	require.Equal(t, int64(3), f.Quotient().Int64())
	require.Equal(t, int64(4), f.CeilQuotient().Int64())

	exact := Fraction{Num: big.NewInt(8), Den: big.NewInt(2)}
	require.Equal(t, int64(4), exact.Quotient().Int64())
	require.Equal(t, int64(4), exact.CeilQuotient().Int64())
}

func TestFractionPercentString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "0.30", FractionFromBips(30).PercentString(2))
	require.Equal(t, "1.00", FractionFromBips(100).PercentString(2))
	require.Equal(t, "0.60", Fraction{Num: big.NewInt(5991), Den: big.NewInt(1_000_000)}.PercentString(2))
}
