package swap

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"swapScope/internal/dex"
	"swapScope/internal/model"
	"swapScope/internal/router"
)

// feeOnTransferSuffix marks the V2 router variants that re-measure balances
// around each hop. Only exact-input swaps have them.
const feeOnTransferSuffix = "SupportingFeeOnTransferTokens"

// CallDescriptor is one candidate router invocation. Data is the packed
// calldata; Method and Args survive for logs only.
type CallDescriptor struct {
	To     common.Address
	Method string
	Args   []interface{}
	Data   []byte
	Value  *big.Int
}

// CallOptions carries everything besides the trade needed to encode calls.
type CallOptions struct {
	Contracts    dex.Contracts
	Recipient    common.Address
	SlippageBips uint64
	Deadline     *big.Int
}

// BuildSwapCalls encodes the candidate router calls for a trade. Candidates
// are ordered cheapest-first; later entries tolerate fee-on-transfer tokens.
// A missing deadline yields no candidates: the chain head has not been read
// yet, so there is nothing submittable.
func BuildSwapCalls(trade *model.Trade, opts CallOptions) ([]CallDescriptor, error) {
	if trade == nil || trade.Route == nil {
		return nil, fmt.Errorf("trade is nil")
	}
	if opts.Recipient == (common.Address{}) {
		return nil, fmt.Errorf("recipient is not set")
	}
	if opts.Deadline == nil {
		return nil, nil
	}
	bounds, err := SlippageAdjustedAmounts(trade, opts.SlippageBips)
	if err != nil {
		return nil, err
	}

	switch trade.Route.Kind() {
	case model.PoolKindV2:
		return buildV2Calls(trade, bounds, opts)
	case model.PoolKindV3:
		return buildV3Calls(trade, bounds, opts)
	default:
		return nil, fmt.Errorf("no router for %s pools", trade.Route.Kind())
	}
}

func buildV2Calls(trade *model.Trade, bounds Bounds, opts CallOptions) ([]CallDescriptor, error) {
	parsed, err := dex.RouterV2ABI()
	if err != nil {
		return nil, fmt.Errorf("parse v2 router abi: %w", err)
	}

	path := make([]common.Address, len(trade.Route.Path))
	for i, hop := range trade.Route.Path {
		path[i] = hop.Address
	}
	nativeIn := trade.Route.Input.Native
	nativeOut := trade.Route.Output.Native
	to := opts.Recipient
	deadline := opts.Deadline

	switch trade.Type {
	case model.ExactInput:
		amountIn := trade.InputAmount.Raw
		minOut := bounds.MinOutput.Raw

		var method string
		var args []interface{}
		var value *big.Int
		switch {
		case nativeIn:
			method = "swapExactETHForTokens"
			args = []interface{}{minOut, path, to, deadline}
			value = amountIn
		case nativeOut:
			method = "swapExactTokensForETH"
			args = []interface{}{amountIn, minOut, path, to, deadline}
		default:
			method = "swapExactTokensForTokens"
			args = []interface{}{amountIn, minOut, path, to, deadline}
		}

		plain, err := packV2Call(parsed, opts.Contracts.RouterV2, method, value, args)
		if err != nil {
			return nil, err
		}
		tolerant, err := packV2Call(parsed, opts.Contracts.RouterV2, method+feeOnTransferSuffix, value, args)
		if err != nil {
			return nil, err
		}
		return []CallDescriptor{plain, tolerant}, nil

	case model.ExactOutput:
		amountOut := trade.OutputAmount.Raw
		maxIn := bounds.MaxInput.Raw

		var method string
		var args []interface{}
		var value *big.Int
		switch {
		case nativeIn:
			method = "swapETHForExactTokens"
			args = []interface{}{amountOut, path, to, deadline}
			value = maxIn
		case nativeOut:
			method = "swapTokensForExactETH"
			args = []interface{}{amountOut, maxIn, path, to, deadline}
		default:
			method = "swapTokensForExactTokens"
			args = []interface{}{amountOut, maxIn, path, to, deadline}
		}

		call, err := packV2Call(parsed, opts.Contracts.RouterV2, method, value, args)
		if err != nil {
			return nil, err
		}
		return []CallDescriptor{call}, nil

	default:
		return nil, fmt.Errorf("unknown trade type %d", trade.Type)
	}
}

func packV2Call(parsed abi.ABI, to common.Address, method string, value *big.Int, args []interface{}) (CallDescriptor, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return CallDescriptor{}, fmt.Errorf("pack %s: %w", method, err)
	}
	return CallDescriptor{To: to, Method: method, Args: args, Data: data, Value: value}, nil
}

func buildV3Calls(trade *model.Trade, bounds Bounds, opts CallOptions) ([]CallDescriptor, error) {
	parsed, err := dex.RouterV3ABI()
	if err != nil {
		return nil, fmt.Errorf("parse v3 router abi: %w", err)
	}

	nativeIn := trade.Route.Input.Native
	nativeOut := trade.Route.Output.Native

	// When the output is native the router keeps the wrapped tokens for
	// itself (the zero recipient is the router's self sentinel) and a
	// trailing unwrap step forwards coins to the real recipient.
	swapRecipient := opts.Recipient
	if nativeOut {
		swapRecipient = common.Address{}
	}

	var (
		method string
		args   []interface{}
		value  *big.Int
	)
	switch trade.Type {
	case model.ExactInput:
		path, err := router.EncodePath(trade.Route, false)
		if err != nil {
			return nil, err
		}
		params := struct {
			Path             []byte
			Recipient        common.Address
			Deadline         *big.Int
			AmountIn         *big.Int
			AmountOutMinimum *big.Int
		}{path, swapRecipient, opts.Deadline, trade.InputAmount.Raw, bounds.MinOutput.Raw}
		method = "exactInput"
		args = []interface{}{params}
		if nativeIn {
			value = trade.InputAmount.Raw
		}
	case model.ExactOutput:
		path, err := router.EncodePath(trade.Route, true)
		if err != nil {
			return nil, err
		}
		params := struct {
			Path            []byte
			Recipient       common.Address
			Deadline        *big.Int
			AmountOut       *big.Int
			AmountInMaximum *big.Int
		}{path, swapRecipient, opts.Deadline, trade.OutputAmount.Raw, bounds.MaxInput.Raw}
		method = "exactOutput"
		args = []interface{}{params}
		if nativeIn {
			value = bounds.MaxInput.Raw
		}
	default:
		return nil, fmt.Errorf("unknown trade type %d", trade.Type)
	}

	swapData, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	// refundETH returns unspent value on exact-output native swaps; unwrap
	// converts router-held wrapped tokens back into coins for the recipient.
	needsRefund := nativeIn && trade.Type == model.ExactOutput
	if !nativeOut && !needsRefund {
		return []CallDescriptor{{To: opts.Contracts.RouterV3, Method: method, Args: args, Data: swapData, Value: value}}, nil
	}

	steps := []string{method}
	blobs := [][]byte{swapData}
	if nativeOut {
		unwrap, err := parsed.Pack("unwrapWETH9", bounds.MinOutput.Raw, opts.Recipient)
		if err != nil {
			return nil, fmt.Errorf("pack unwrapWETH9: %w", err)
		}
		steps = append(steps, "unwrapWETH9")
		blobs = append(blobs, unwrap)
	}
	if needsRefund {
		refund, err := parsed.Pack("refundETH")
		if err != nil {
			return nil, fmt.Errorf("pack refundETH: %w", err)
		}
		steps = append(steps, "refundETH")
		blobs = append(blobs, refund)
	}
	data, err := parsed.Pack("multicall", blobs)
	if err != nil {
		return nil, fmt.Errorf("pack multicall: %w", err)
	}
	return []CallDescriptor{{
		To:     opts.Contracts.RouterV3,
		Method: fmt.Sprintf("multicall(%s)", strings.Join(steps, ",")),
		Data:   data,
		Value:  value,
	}}, nil
}
