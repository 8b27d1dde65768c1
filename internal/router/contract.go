package router

import (
	"context"
	"fmt"

	"go.uber.org/ratelimit"
	"go.uber.org/zap"

	"swapScope/internal/dex"
	"swapScope/internal/model"
)

// ContractQuoter prices concentrated-liquidity routes through the on-chain
// quoter contract and falls back to snapshot math for constant-product
// routes, which need no contract to price exactly.
type ContractQuoter struct {
	caller    dex.Caller
	contracts dex.Contracts
	local     *LocalQuoter
	limiter   ratelimit.Limiter
	logger    *zap.Logger
}

// NewContractQuoter wires a quoter against one chain's deployments. rps
// bounds quoter calls per second; zero or negative disables the limit.
func NewContractQuoter(caller dex.Caller, contracts dex.Contracts, rps int, logger *zap.Logger) (*ContractQuoter, error) {
	if caller == nil {
		return nil, fmt.Errorf("caller is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	limiter := ratelimit.NewUnlimited()
	if rps > 0 {
		limiter = ratelimit.New(rps)
	}
	return &ContractQuoter{
		caller:    caller,
		contracts: contracts,
		local:     NewLocalQuoter(),
		limiter:   limiter,
		logger:    logger,
	}, nil
}

// Quote prices the route, choosing the backend by pool kind.
func (q *ContractQuoter) Quote(ctx context.Context, route *model.Route, amount model.TokenAmount, tradeType model.TradeType) (model.TokenAmount, error) {
	if route == nil {
		return model.TokenAmount{}, fmt.Errorf("route is nil")
	}
	if route.Kind() != model.PoolKindV3 {
		return q.local.Quote(ctx, route, amount, tradeType)
	}
	if !q.contracts.HasV3() {
		return model.TokenAmount{}, fmt.Errorf("chain %d has no quoter deployment", q.contracts.ChainID)
	}

	quoterABI, err := dex.QuoterABI()
	if err != nil {
		return model.TokenAmount{}, err
	}

	var method string
	var counter model.Currency
	switch tradeType {
	case model.ExactInput:
		if !amount.Currency.Equal(route.Input) {
			return model.TokenAmount{}, fmt.Errorf("amount currency %s does not match route input %s", amount.Currency, route.Input)
		}
		method = "quoteExactInput"
		counter = route.Output
	case model.ExactOutput:
		if !amount.Currency.Equal(route.Output) {
			return model.TokenAmount{}, fmt.Errorf("amount currency %s does not match route output %s", amount.Currency, route.Output)
		}
		method = "quoteExactOutput"
		counter = route.Input
	default:
		return model.TokenAmount{}, fmt.Errorf("unknown trade type %d", tradeType)
	}

	path, err := EncodePath(route, tradeType == model.ExactOutput)
	if err != nil {
		return model.TokenAmount{}, err
	}

	q.limiter.Take()
	values, err := dex.CallMethod(ctx, q.caller, q.contracts.Quoter, quoterABI, method, nil, path, amount.Raw)
	if err != nil {
		return model.TokenAmount{}, fmt.Errorf("quoter %s: %w", method, err)
	}
	if len(values) != 1 {
		return model.TokenAmount{}, fmt.Errorf("quoter %s returned %d values", method, len(values))
	}
	quoted, err := dex.AsBigInt(values[0])
	if err != nil {
		return model.TokenAmount{}, fmt.Errorf("quoter %s result: %w", method, err)
	}

	q.logger.Debug("quoter responded",
		zap.String("method", method),
		zap.String("amount", amount.Raw.String()),
		zap.String("quoted", quoted.String()),
		zap.Int("hops", len(route.Pools)))
	return model.NewTokenAmount(counter, quoted)
}

// EncodePath packs a concentrated-liquidity route into the router's path
// format: 20-byte token, 3-byte fee, 20-byte token, and so on. Exact-output
// calls take the path reversed, output token first.
func EncodePath(route *model.Route, reversed bool) ([]byte, error) {
	if route == nil || len(route.Pools) == 0 {
		return nil, fmt.Errorf("route is empty")
	}
	if route.Kind() != model.PoolKindV3 {
		return nil, fmt.Errorf("path encoding applies to concentrated-liquidity routes only")
	}

	tokens := make([]model.Currency, len(route.Path))
	fees := make([]uint32, len(route.Pools))
	for i, c := range route.Path {
		tokens[i] = c.Wrapped()
	}
	for i, p := range route.Pools {
		fees[i] = p.Fee
	}
	if reversed {
		for i, j := 0, len(tokens)-1; i < j; i, j = i+1, j-1 {
			tokens[i], tokens[j] = tokens[j], tokens[i]
		}
		for i, j := 0, len(fees)-1; i < j; i, j = i+1, j-1 {
			fees[i], fees[j] = fees[j], fees[i]
		}
	}

	path := make([]byte, 0, len(tokens)*20+len(fees)*3)
	for i, fee := range fees {
		path = append(path, tokens[i].Address.Bytes()...)
		path = append(path, byte(fee>>16), byte(fee>>8), byte(fee))
	}
	return append(path, tokens[len(tokens)-1].Address.Bytes()...), nil
}
