package model

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewTradePricesAndImpact(t *testing.T) {
	t.Parallel()

	weth := testWETH(t)
	usdc := testToken(t, "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", "USDC", 6)

	// Balanced reserves make the mid price 1, so the impact of a quoted
	// fill is read directly off the output shortfall.
	pool := testPairPool(t, weth, 100_000, usdc, 100_000, 3000)
	route, err := NewRoute([]*Pool{pool}, weth, usdc)
	require.NoError(t, err)

	input, err := NewTokenAmount(weth, big.NewInt(1000))
	require.NoError(t, err)
	output, err := NewTokenAmount(usdc, big.NewInt(987))
	require.NoError(t, err)

	trade, err := NewTrade(route, ExactInput, input, output)
	require.NoError(t, err)

	require.True(t, trade.ExecutionPrice.Fraction().EqualTo(Fraction{Num: big.NewInt(987), Den: big.NewInt(1000)}))
	require.True(t, trade.PriceImpact.EqualTo(Fraction{Num: big.NewInt(13), Den: big.NewInt(1000)}))
}

func TestNewTradeValidation(t *testing.T) {
	t.Parallel()

	weth := testWETH(t)
	usdc := testToken(t, "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", "USDC", 6)
	dai := testToken(t, "0x6B175474E89094C44Da98b954EedeAC495271d0F", "DAI", 18)

	pool := testPairPool(t, weth, 100, usdc, 100, 3000)
	route, err := NewRoute([]*Pool{pool}, weth, usdc)
	require.NoError(t, err)

	in, err := NewTokenAmount(weth, big.NewInt(10))
	require.NoError(t, err)
	out, err := NewTokenAmount(usdc, big.NewInt(9))
	require.NoError(t, err)
	wrongOut, err := NewTokenAmount(dai, big.NewInt(9))
	require.NoError(t, err)
	zeroOut, err := NewTokenAmount(usdc, big.NewInt(0))
	require.NoError(t, err)

	_, err = NewTrade(nil, ExactInput, in, out)
	require.ErrorContains(t, err, "route is nil")

	_, err = NewTrade(route, TradeType(0), in, out)
	require.ErrorContains(t, err, "unknown trade type")

	_, err = NewTrade(route, ExactInput, in, wrongOut)
	require.ErrorContains(t, err, "route ends at")

	_, err = NewTrade(route, ExactInput, in, zeroOut)
	require.ErrorContains(t, err, "positive")

	trade, err := NewTrade(route, ExactOutput, in, out)
	require.NoError(t, err)
	require.Equal(t, ExactOutput, trade.Type)
}
