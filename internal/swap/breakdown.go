package swap

import (
	"fmt"
	"math/big"

	"swapScope/internal/model"
)

// Breakdown splits the cost of a trade into the share consumed by liquidity
//-provider fees and the slippage the market depth itself causes.
type Breakdown struct {
	// RealizedLPFee is the share of the input lost to hop fees,
	// compounding multiplicatively across the route.
	RealizedLPFee model.Fraction
	// RealizedLPFeeAmount is that share in input units, rounded down.
	RealizedLPFeeAmount model.TokenAmount
	// ImpactExcludingFee is the trade's price impact with the fee share
	// taken back out.
	ImpactExcludingFee model.Fraction
}

// PriceBreakdown separates fee cost from market-depth slippage so the two
// can be reported independently.
func PriceBreakdown(trade *model.Trade) (Breakdown, error) {
	if trade == nil {
		return Breakdown{}, fmt.Errorf("trade is nil")
	}

	// Each hop keeps (1 - fee) of what enters it, so the kept share of the
	// whole route is the product, not the sum.
	kept := model.FractionFromInt(1)
	for _, pool := range trade.Route.Pools {
		kept = kept.Mul(model.FractionFromInt(1).Sub(pool.FeeFraction()))
	}
	fee := model.FractionFromInt(1).Sub(kept)

	feeRaw := fee.Mul(model.Fraction{Num: trade.InputAmount.Raw, Den: big.NewInt(1)}).Quotient()
	feeAmount, err := model.NewTokenAmount(trade.InputAmount.Currency, feeRaw)
	if err != nil {
		return Breakdown{}, fmt.Errorf("fee amount: %w", err)
	}

	return Breakdown{
		RealizedLPFee:       fee,
		RealizedLPFeeAmount: feeAmount,
		ImpactExcludingFee:  trade.PriceImpact.Sub(fee),
	}, nil
}

// severityThresholds are the ascending price-impact grades: 1% warns, 3%
// warns harder, 5% needs confirmation, 15% blocks.
var severityThresholds = []model.Fraction{
	model.FractionFromBips(100),
	model.FractionFromBips(300),
	model.FractionFromBips(500),
	model.FractionFromBips(1500),
}

// WarningSeverity grades price impact from 0 (benign) to 4 (blocking). A
// missing impact grades 4: low confidence blocks rather than waves through.
func WarningSeverity(impact *model.Fraction) int {
	if impact == nil || impact.Num == nil || impact.Den == nil {
		return len(severityThresholds)
	}
	severity := 0
	for _, threshold := range severityThresholds {
		if impact.LessThan(threshold) {
			break
		}
		severity++
	}
	return severity
}
