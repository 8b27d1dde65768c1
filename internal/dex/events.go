package dex

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"swapScope/internal/model"
)

// SwapEvent is one pool swap pulled out of a receipt. Amounts follow the
// pool's view: AmountIn entered the pool, AmountOut left it.
type SwapEvent struct {
	Pool      common.Address
	Kind      model.PoolKind
	AmountIn  *big.Int
	AmountOut *big.Int
}

// DecodeSwapEvents extracts the swap events from receipt logs, preserving
// log order. Logs with other topics are skipped; a swap log that does not
// unpack fails the decode.
func DecodeSwapEvents(logs []*types.Log) ([]SwapEvent, error) {
	pairABI, err := V2PairABI()
	if err != nil {
		return nil, err
	}
	poolABI, err := V3PoolABI()
	if err != nil {
		return nil, err
	}
	pairTopic := pairABI.Events["Swap"].ID
	poolTopic := poolABI.Events["Swap"].ID

	var events []SwapEvent
	for _, log := range logs {
		if log == nil || len(log.Topics) == 0 {
			continue
		}
		switch log.Topics[0] {
		case pairTopic:
			event, err := decodePairSwap(pairABI, log)
			if err != nil {
				return nil, fmt.Errorf("pair swap at log %d: %w", log.Index, err)
			}
			events = append(events, event)
		case poolTopic:
			event, err := decodePoolSwap(poolABI, log)
			if err != nil {
				return nil, fmt.Errorf("pool swap at log %d: %w", log.Index, err)
			}
			events = append(events, event)
		}
	}
	return events, nil
}

// decodePairSwap unpacks a constant-product Swap. The pair reports
// unsigned in and out legs per token; the nonzero legs sum into the
// pool-level amounts.
func decodePairSwap(pairABI abi.ABI, log *types.Log) (SwapEvent, error) {
	event := pairABI.Events["Swap"]
	if len(log.Topics) != 3 {
		return SwapEvent{}, fmt.Errorf("expected 3 topics, got %d", len(log.Topics))
	}

	values, err := event.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return SwapEvent{}, fmt.Errorf("unpack: %w", err)
	}
	if len(values) != 4 {
		return SwapEvent{}, fmt.Errorf("unexpected swap values: %d", len(values))
	}

	amounts := make([]*big.Int, 0, 4)
	for _, value := range values {
		amount, err := AsBigInt(value)
		if err != nil {
			return SwapEvent{}, err
		}
		amounts = append(amounts, amount)
	}

	return SwapEvent{
		Pool:      log.Address,
		Kind:      model.PoolKindV2,
		AmountIn:  new(big.Int).Add(amounts[0], amounts[1]),
		AmountOut: new(big.Int).Add(amounts[2], amounts[3]),
	}, nil
}

// decodePoolSwap unpacks a concentrated-liquidity Swap. The pool reports
// signed token deltas: positive entered the pool, negative left it.
func decodePoolSwap(poolABI abi.ABI, log *types.Log) (SwapEvent, error) {
	event := poolABI.Events["Swap"]
	if len(log.Topics) != 3 {
		return SwapEvent{}, fmt.Errorf("expected 3 topics, got %d", len(log.Topics))
	}

	values, err := event.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return SwapEvent{}, fmt.Errorf("unpack: %w", err)
	}
	if len(values) != 5 {
		return SwapEvent{}, fmt.Errorf("unexpected swap values: %d", len(values))
	}

	amount0, err := AsBigInt(values[0])
	if err != nil {
		return SwapEvent{}, err
	}
	amount1, err := AsBigInt(values[1])
	if err != nil {
		return SwapEvent{}, err
	}

	in := new(big.Int)
	out := new(big.Int)
	for _, amount := range []*big.Int{amount0, amount1} {
		if amount.Sign() > 0 {
			in.Add(in, amount)
		} else {
			out.Sub(out, amount)
		}
	}

	return SwapEvent{
		Pool:      log.Address,
		Kind:      model.PoolKindV3,
		AmountIn:  in,
		AmountOut: out,
	}, nil
}
