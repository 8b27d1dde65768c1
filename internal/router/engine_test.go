package router

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"swapScope/internal/model"
)

type stubProvider struct {
	pools []*model.Pool
	err   error
}

func (s *stubProvider) Pools(context.Context, model.Currency, model.Currency) ([]*model.Pool, error) {
	return s.pools, s.err
}

type stubRemote struct {
	quote *RemoteQuote
	err   error
	calls int
}

func (s *stubRemote) BestQuote(ctx context.Context, input, output model.Currency, amount model.TokenAmount, tradeType model.TradeType) (*RemoteQuote, error) {
	s.calls++
	return s.quote, s.err
}

func engineRequest(t *testing.T, in, out model.Currency, amount int64) QuoteRequest {
	t.Helper()
	tokenAmount, err := model.NewTokenAmount(in, big.NewInt(amount))
	require.NoError(t, err)
	return QuoteRequest{Input: &in, Output: &out, Amount: &tokenAmount, Type: model.ExactInput}
}

func TestEngineBestTradePicksDeepestRoute(t *testing.T) {
	t.Parallel()

	tokenA := routerToken(t, "0x0000000000000000000000000000000000000001", "AAA")
	tokenB := routerToken(t, "0x0000000000000000000000000000000000000002", "BBB")
	tokenC := routerToken(t, "0x0000000000000000000000000000000000000003", "CCC")
	provider := &stubProvider{pools: []*model.Pool{
		v2PoolBetween(t, tokenA, 100_000, tokenB, 100_000, 3000),
		v2PoolBetween(t, tokenA, 1_000_000, tokenC, 1_000_000, 3000),
		v2PoolBetween(t, tokenC, 1_000_000, tokenB, 1_000_000, 3000),
	}}

	engine, err := NewEngine(provider, NewLocalQuoter(), nil, 3, nil)
	require.NoError(t, err)

	result, err := engine.BestTrade(context.Background(), engineRequest(t, tokenA, tokenB, 1000))
	require.NoError(t, err)
	require.Equal(t, TradeReady, result.Status)
	// The shallow direct pool yields 987; the deep two-hop path 992.
	require.Equal(t, int64(992), result.Trade.OutputAmount.Raw.Int64())
	require.Len(t, result.Trade.Route.Pools, 2)
}

func TestEngineBestTradeIncompleteRequests(t *testing.T) {
	t.Parallel()

	tokenA := routerToken(t, "0x0000000000000000000000000000000000000001", "AAA")
	tokenB := routerToken(t, "0x0000000000000000000000000000000000000002", "BBB")
	amount, err := model.NewTokenAmount(tokenA, big.NewInt(1000))
	require.NoError(t, err)

	engine, err := NewEngine(&stubProvider{}, NewLocalQuoter(), nil, 3, nil)
	require.NoError(t, err)

	tests := []struct {
		name   string
		req    QuoteRequest
		reason string
	}{
		{name: "no input", req: QuoteRequest{Output: &tokenB, Amount: &amount, Type: model.ExactInput}, reason: "input currency"},
		{name: "no output", req: QuoteRequest{Input: &tokenA, Amount: &amount, Type: model.ExactInput}, reason: "output currency"},
		{name: "no amount", req: QuoteRequest{Input: &tokenA, Output: &tokenB, Type: model.ExactInput}, reason: "amount"},
		{name: "no type", req: QuoteRequest{Input: &tokenA, Output: &tokenB, Amount: &amount}, reason: "trade type"},
		{name: "same token", req: QuoteRequest{Input: &tokenA, Output: &tokenA, Amount: &amount, Type: model.ExactInput}, reason: "same token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := engine.BestTrade(context.Background(), tt.req)
			require.NoError(t, err)
			require.Equal(t, TradeInvalid, result.Status)
			require.Contains(t, result.Reason, tt.reason)
		})
	}
}

func TestEngineBestTradeNoRoute(t *testing.T) {
	t.Parallel()

	tokenA := routerToken(t, "0x0000000000000000000000000000000000000001", "AAA")
	tokenB := routerToken(t, "0x0000000000000000000000000000000000000002", "BBB")

	engine, err := NewEngine(&stubProvider{}, NewLocalQuoter(), nil, 3, nil)
	require.NoError(t, err)

	result, err := engine.BestTrade(context.Background(), engineRequest(t, tokenA, tokenB, 1000))
	require.NoError(t, err)
	require.Equal(t, TradeNoRoute, result.Status)
}

func TestEngineBestTradeNoRouteWhenLiquidityTooThin(t *testing.T) {
	t.Parallel()

	tokenA := routerToken(t, "0x0000000000000000000000000000000000000001", "AAA")
	tokenB := routerToken(t, "0x0000000000000000000000000000000000000002", "BBB")
	provider := &stubProvider{pools: []*model.Pool{
		v2PoolBetween(t, tokenA, 1_000_000, tokenB, 1, 3000),
	}}

	engine, err := NewEngine(provider, NewLocalQuoter(), nil, 3, nil)
	require.NoError(t, err)

	result, err := engine.BestTrade(context.Background(), engineRequest(t, tokenA, tokenB, 10))
	require.NoError(t, err)
	require.Equal(t, TradeNoRoute, result.Status)
}

func TestEngineRemoteWinsWhenHealthy(t *testing.T) {
	t.Parallel()

	tokenA := routerToken(t, "0x0000000000000000000000000000000000000001", "AAA")
	tokenB := routerToken(t, "0x0000000000000000000000000000000000000002", "BBB")
	route, err := model.NewRoute([]*model.Pool{
		v2PoolBetween(t, tokenA, 500_000, tokenB, 500_000, 3000),
	}, tokenA, tokenB)
	require.NoError(t, err)
	remoteTrade := tradeWith(t, route, 1000, 995)
	remote := &stubRemote{quote: &RemoteQuote{
		Trade:          remoteTrade,
		BlockNumber:    42,
		GasEstimateUSD: decimal.RequireFromString("2.5"),
	}}

	engine, err := NewEngine(&stubProvider{}, NewLocalQuoter(), remote, 3, nil)
	require.NoError(t, err)

	result, err := engine.BestTrade(context.Background(), engineRequest(t, tokenA, tokenB, 1000))
	require.NoError(t, err)
	require.Equal(t, TradeReady, result.Status)
	require.Same(t, remoteTrade, result.Trade)
	require.Equal(t, "2.5", result.GasEstimateUSD.String())
	require.Equal(t, 1, remote.calls)
}

func TestEngineFallsBackWhenRemoteFails(t *testing.T) {
	t.Parallel()

	tokenA := routerToken(t, "0x0000000000000000000000000000000000000001", "AAA")
	tokenB := routerToken(t, "0x0000000000000000000000000000000000000002", "BBB")
	provider := &stubProvider{pools: []*model.Pool{
		v2PoolBetween(t, tokenA, 100_000, tokenB, 100_000, 3000),
	}}
	remote := &stubRemote{err: fmt.Errorf("routing service timed out")}

	engine, err := NewEngine(provider, NewLocalQuoter(), remote, 3, nil)
	require.NoError(t, err)

	result, err := engine.BestTrade(context.Background(), engineRequest(t, tokenA, tokenB, 1000))
	require.NoError(t, err)
	require.Equal(t, TradeReady, result.Status)
	require.Equal(t, int64(987), result.Trade.OutputAmount.Raw.Int64())
	require.Equal(t, 1, remote.calls)
}

func TestEngineRejectsMismatchedRemoteTrade(t *testing.T) {
	t.Parallel()

	tokenA := routerToken(t, "0x0000000000000000000000000000000000000001", "AAA")
	tokenB := routerToken(t, "0x0000000000000000000000000000000000000002", "BBB")
	tokenC := routerToken(t, "0x0000000000000000000000000000000000000003", "CCC")
	route, err := model.NewRoute([]*model.Pool{
		v2PoolBetween(t, tokenA, 500_000, tokenC, 500_000, 3000),
	}, tokenA, tokenC)
	require.NoError(t, err)
	remote := &stubRemote{quote: &RemoteQuote{Trade: tradeWith(t, route, 1000, 995)}}
	provider := &stubProvider{pools: []*model.Pool{
		v2PoolBetween(t, tokenA, 100_000, tokenB, 100_000, 3000),
	}}

	engine, err := NewEngine(provider, NewLocalQuoter(), remote, 3, nil)
	require.NoError(t, err)

	// The mismatched remote answer is dropped and local discovery serves
	// the request instead.
	result, err := engine.BestTrade(context.Background(), engineRequest(t, tokenA, tokenB, 1000))
	require.NoError(t, err)
	require.Equal(t, TradeReady, result.Status)
	require.True(t, result.Trade.OutputAmount.Currency.Equal(tokenB))
}
