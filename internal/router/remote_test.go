package router

import (
	"context"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/require"

	"swapScope/internal/model"
)

type fakeBlocks struct {
	head uint64
}

func (f fakeBlocks) LatestBlockNumber(context.Context) (uint64, error) {
	return f.head, nil
}

func remoteFixtureResponse(t *testing.T, block uint64) remoteResponse {
	t.Helper()
	return remoteResponse{
		QuoteAmountRaw:    "9066",
		BlockNumber:       block,
		GasUseEstimateUSD: "1.75",
		SerializedRoute: []remotePool{{
			Kind:    "v2",
			Address: "0x00000000000000000000000000000000000000aa",
			Token0: remoteToken{
				Address: "0x0000000000000000000000000000000000000001", ChainID: 1, Decimals: 18, Symbol: "AAA",
			},
			Token1: remoteToken{
				Address: "0x0000000000000000000000000000000000000002", ChainID: 1, Decimals: 18, Symbol: "BBB",
			},
			Fee:      3000,
			Reserve0: "100000",
			Reserve1: "100000",
		}},
	}
}

func TestRemoteBestQuote(t *testing.T) {
	t.Parallel()

	var captured remoteRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/quote", r.URL.Path)
		require.NoError(t, sonic.ConfigDefault.NewDecoder(r.Body).Decode(&captured))

		payload, err := sonic.Marshal(remoteFixtureResponse(t, 100))
		require.NoError(t, err)
		w.Header().Set("Content-Type", "application/json")
		w.Write(payload)
	}))
	defer server.Close()

	client, err := NewRemoteClient(RemoteConfig{BaseURL: server.URL, MaxBlockAge: 10}, fakeBlocks{head: 105}, nil)
	require.NoError(t, err)

	tokenA := routerToken(t, "0x0000000000000000000000000000000000000001", "AAA")
	tokenB := routerToken(t, "0x0000000000000000000000000000000000000002", "BBB")
	amount, err := model.NewTokenAmount(tokenA, big.NewInt(10_000))
	require.NoError(t, err)

	quote, err := client.BestQuote(context.Background(), tokenA, tokenB, amount, model.ExactInput)
	require.NoError(t, err)

	require.Equal(t, "10000", captured.InputAmountRaw)
	require.Equal(t, "exactIn", captured.SwapDirection)
	require.Equal(t, uint64(1), captured.TokenIn.ChainID)

	require.Equal(t, uint64(100), quote.BlockNumber)
	require.Equal(t, "1.75", quote.GasEstimateUSD.String())
	require.Equal(t, int64(9066), quote.Trade.OutputAmount.Raw.Int64())
	require.True(t, quote.Trade.OutputAmount.Currency.Equal(tokenB))
	require.Equal(t, uint64(100), quote.Trade.QuoteBlock)
	require.Len(t, quote.Trade.Route.Pools, 1)
}

func TestRemoteBestQuoteStale(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload, err := sonic.Marshal(remoteFixtureResponse(t, 100))
		require.NoError(t, err)
		w.Write(payload)
	}))
	defer server.Close()

	client, err := NewRemoteClient(RemoteConfig{BaseURL: server.URL, MaxBlockAge: 10}, fakeBlocks{head: 120}, nil)
	require.NoError(t, err)

	tokenA := routerToken(t, "0x0000000000000000000000000000000000000001", "AAA")
	tokenB := routerToken(t, "0x0000000000000000000000000000000000000002", "BBB")
	amount, err := model.NewTokenAmount(tokenA, big.NewInt(10_000))
	require.NoError(t, err)

	_, err = client.BestQuote(context.Background(), tokenA, tokenB, amount, model.ExactInput)
	require.ErrorIs(t, err, ErrStaleQuote)
}

func TestRemoteBreakerOpensAfterRepeatedFailures(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "routing backend down", http.StatusInternalServerError)
	}))
	defer server.Close()

	client, err := NewRemoteClient(RemoteConfig{BaseURL: server.URL, Timeout: time.Second}, fakeBlocks{head: 1}, nil)
	require.NoError(t, err)

	tokenA := routerToken(t, "0x0000000000000000000000000000000000000001", "AAA")
	tokenB := routerToken(t, "0x0000000000000000000000000000000000000002", "BBB")
	amount, err := model.NewTokenAmount(tokenA, big.NewInt(10_000))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err = client.BestQuote(context.Background(), tokenA, tokenB, amount, model.ExactInput)
		require.ErrorContains(t, err, "500")
	}
	require.Equal(t, int64(5), hits.Load())

	_, err = client.BestQuote(context.Background(), tokenA, tokenB, amount, model.ExactInput)
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	require.Equal(t, int64(5), hits.Load(), "an open breaker must not reach the server")
}

func TestRemoteBestQuoteRejectsBrokenRoute(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := remoteFixtureResponse(t, 100)
		resp.SerializedRoute[0].Token1.Address = "0x0000000000000000000000000000000000000003"
		payload, err := sonic.Marshal(resp)
		require.NoError(t, err)
		w.Write(payload)
	}))
	defer server.Close()

	client, err := NewRemoteClient(RemoteConfig{BaseURL: server.URL}, fakeBlocks{head: 100}, nil)
	require.NoError(t, err)

	tokenA := routerToken(t, "0x0000000000000000000000000000000000000001", "AAA")
	tokenB := routerToken(t, "0x0000000000000000000000000000000000000002", "BBB")
	amount, err := model.NewTokenAmount(tokenA, big.NewInt(10_000))
	require.NoError(t, err)

	_, err = client.BestQuote(context.Background(), tokenA, tokenB, amount, model.ExactInput)
	require.ErrorContains(t, err, "rebuild remote route")
}
