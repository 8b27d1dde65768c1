package swap

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"swapScope/internal/model"
)

func fractionOf(t *testing.T, num, den int64) model.Fraction {
	t.Helper()
	f, err := model.NewFraction(big.NewInt(num), big.NewInt(den))
	require.NoError(t, err)
	return f
}

func TestPriceBreakdownSingleHopFee(t *testing.T) {
	t.Parallel()

	trade := tokenPairTrade(t, model.ExactInput, 1000, 990)
	breakdown, err := PriceBreakdown(trade)
	require.NoError(t, err)

	require.True(t, breakdown.RealizedLPFee.EqualTo(model.FractionFromBips(30)),
		"one 0.3%% hop keeps 30 bips")
	require.Equal(t, int64(3), breakdown.RealizedLPFeeAmount.Raw.Int64())
	require.True(t, breakdown.ImpactExcludingFee.EqualTo(trade.PriceImpact.Sub(breakdown.RealizedLPFee)))
}

func TestPriceBreakdownCompoundsAcrossHops(t *testing.T) {
	t.Parallel()

	tokenA := swapToken(t, "0x0000000000000000000000000000000000000a01", "AAA")
	tokenB := swapToken(t, "0x0000000000000000000000000000000000000b02", "BBB")
	tokenC := swapToken(t, "0x0000000000000000000000000000000000000c03", "CCC")
	route := swapRoute(t, tokenA, tokenC,
		swapPool(t, tokenA, 1_000_000, tokenB, 1_000_000, 3000),
		swapPool(t, tokenB, 1_000_000, tokenC, 1_000_000, 3000),
	)
	trade := swapTrade(t, route, model.ExactInput, 1_000_000, 990_000)

	breakdown, err := PriceBreakdown(trade)
	require.NoError(t, err)

	// 1 - (1-0.003)^2 = 0.005991 exactly
	require.True(t, breakdown.RealizedLPFee.EqualTo(fractionOf(t, 5991, 1_000_000)))
	require.Equal(t, int64(5991), breakdown.RealizedLPFeeAmount.Raw.Int64())
	require.Equal(t, trade.InputAmount.Currency, breakdown.RealizedLPFeeAmount.Currency)
}

func TestPriceBreakdownRejectsNilTrade(t *testing.T) {
	t.Parallel()

	_, err := PriceBreakdown(nil)
	require.Error(t, err)
}

func TestWarningSeverityBoundaries(t *testing.T) {
	t.Parallel()

	cases := []struct {
		bips uint64
		want int
	}{
		{bips: 0, want: 0},
		{bips: 99, want: 0},
		{bips: 100, want: 1},
		{bips: 299, want: 1},
		{bips: 300, want: 2},
		{bips: 499, want: 2},
		{bips: 500, want: 3},
		{bips: 1499, want: 3},
		{bips: 1500, want: 4},
		{bips: 9000, want: 4},
	}
	for _, tc := range cases {
		impact := model.FractionFromBips(tc.bips)
		require.Equal(t, tc.want, WarningSeverity(&impact), "impact %d bips", tc.bips)
	}
}

func TestWarningSeverityMonotone(t *testing.T) {
	t.Parallel()

	last := -1
	for bips := uint64(0); bips <= 2000; bips += 25 {
		impact := model.FractionFromBips(bips)
		severity := WarningSeverity(&impact)
		require.GreaterOrEqual(t, severity, last, "severity regressed at %d bips", bips)
		last = severity
	}
}

func TestWarningSeverityUnknownImpact(t *testing.T) {
	t.Parallel()

	require.Equal(t, 4, WarningSeverity(nil))
	require.Equal(t, 4, WarningSeverity(&model.Fraction{}), "unset fraction reads as unknown")
}
