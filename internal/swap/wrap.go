package swap

import (
	"fmt"

	"swapScope/internal/dex"
	"swapScope/internal/model"
)

// WrapKind classifies a native/wrapped conversion.
type WrapKind int

const (
	// WrapNone means the pair is a real swap, not a conversion.
	WrapNone WrapKind = iota
	// WrapDeposit converts the native coin into its wrapped token.
	WrapDeposit
	// WrapWithdraw converts the wrapped token back to the native coin.
	WrapWithdraw
)

func (k WrapKind) String() string {
	switch k {
	case WrapDeposit:
		return "wrap"
	case WrapWithdraw:
		return "unwrap"
	default:
		return "none"
	}
}

// DetectWrap reports whether the pair converts between the native coin and
// its wrapped token. Conversions bypass routing entirely.
func DetectWrap(input, output model.Currency, contracts dex.Contracts) WrapKind {
	wrapped := contracts.WrappedCurrency()
	switch {
	case input.Native && output.Equal(wrapped):
		return WrapDeposit
	case input.Equal(wrapped) && output.Native:
		return WrapWithdraw
	default:
		return WrapNone
	}
}

// BuildWrapCall encodes the deposit or withdraw call for the amount.
func BuildWrapCall(kind WrapKind, amount model.TokenAmount, contracts dex.Contracts) (CallDescriptor, error) {
	if amount.IsZero() {
		return CallDescriptor{}, fmt.Errorf("conversion amount must be positive")
	}
	parsed, err := dex.WETHABI()
	if err != nil {
		return CallDescriptor{}, fmt.Errorf("parse weth abi: %w", err)
	}

	switch kind {
	case WrapDeposit:
		data, err := parsed.Pack("deposit")
		if err != nil {
			return CallDescriptor{}, fmt.Errorf("pack deposit: %w", err)
		}
		return CallDescriptor{
			To:     contracts.WrappedNative,
			Method: "deposit",
			Data:   data,
			Value:  amount.Raw,
		}, nil
	case WrapWithdraw:
		data, err := parsed.Pack("withdraw", amount.Raw)
		if err != nil {
			return CallDescriptor{}, fmt.Errorf("pack withdraw: %w", err)
		}
		return CallDescriptor{
			To:     contracts.WrappedNative,
			Method: "withdraw",
			Args:   []interface{}{amount.Raw},
			Data:   data,
		}, nil
	default:
		return CallDescriptor{}, fmt.Errorf("pair is not a native conversion")
	}
}
