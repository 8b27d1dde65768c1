package model

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

// testPairPool builds a canonical-order V2 snapshot with reserves assigned
// by token, not by slot.
func testPairPool(t *testing.T, a Currency, reserveA int64, b Currency, reserveB int64, fee uint32) *Pool {
	t.Helper()
	aFirst, err := a.SortsBefore(b)
	require.NoError(t, err)
	p := &Pool{
		Kind:    PoolKindV2,
		Address: common.BigToAddress(new(big.Int).Xor(a.Address.Big(), b.Address.Big())),
		Fee:     fee,
	}
	if aFirst {
		p.Token0, p.Token1 = a, b
		p.Reserve0, p.Reserve1 = big.NewInt(reserveA), big.NewInt(reserveB)
	} else {
		p.Token0, p.Token1 = b, a
		p.Reserve0, p.Reserve1 = big.NewInt(reserveB), big.NewInt(reserveA)
	}
	require.NoError(t, p.Validate())
	return p
}

func TestPoolMidPrice(t *testing.T) {
	t.Parallel()

	weth := testWETH(t)
	usdc := testToken(t, "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", "USDC", 6)

	pool := testPairPool(t, weth, 100, usdc, 200, 3000)

	price, err := pool.MidPrice(weth)
	require.NoError(t, err)
	require.True(t, price.Fraction().EqualTo(FractionFromInt(2)))

	inverse, err := pool.MidPrice(usdc)
	require.NoError(t, err)
	require.True(t, inverse.Fraction().EqualTo(Fraction{Num: big.NewInt(1), Den: big.NewInt(2)}))
}

func TestPoolMidPriceV3(t *testing.T) {
	t.Parallel()

	weth := testWETH(t)
	usdc := testToken(t, "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", "USDC", 6)

	token0, token1 := usdc, weth // usdc sorts before weth
	pool := &Pool{
		Kind:         PoolKindV3,
		Address:      common.HexToAddress("0x8ad599c3A0ff1De082011EFDDc58f1908eb6e6D8"),
		Token0:       token0,
		Token1:       token1,
		Fee:          3000,
		SqrtPriceX96: new(big.Int).Lsh(big.NewInt(2), 96), // price token1/token0 = 4
		Liquidity:    big.NewInt(1),
		Tick:         0,
		TickSpacing:  60,
	}
	require.NoError(t, pool.Validate())

	price, err := pool.MidPrice(usdc)
	require.NoError(t, err)
	require.True(t, price.Fraction().EqualTo(FractionFromInt(4)))

	inverse, err := pool.MidPrice(weth)
	require.NoError(t, err)
	require.True(t, inverse.Fraction().EqualTo(Fraction{Num: big.NewInt(1), Den: big.NewInt(4)}))
}

func TestNewRoute(t *testing.T) {
	t.Parallel()

	weth := testWETH(t)
	eth := testETH(t)
	usdc := testToken(t, "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", "USDC", 6)
	dai := testToken(t, "0x6B175474E89094C44Da98b954EedeAC495271d0F", "DAI", 18)

	wethUSDC := testPairPool(t, weth, 100, usdc, 200, 3000)
	usdcDAI := testPairPool(t, usdc, 100, dai, 100, 3000)

	route, err := NewRoute([]*Pool{wethUSDC, usdcDAI}, eth, dai)
	require.NoError(t, err)
	require.Len(t, route.Path, 3)
	require.True(t, route.Path[0].Equal(weth))
	require.True(t, route.Path[1].Equal(usdc))
	require.True(t, route.Path[2].Equal(dai))
	require.True(t, route.Input.Equal(eth))
	require.Equal(t, PoolKindV2, route.Kind())

	_, err = NewRoute([]*Pool{usdcDAI}, eth, dai)
	require.ErrorContains(t, err, "does not involve")

	_, err = NewRoute([]*Pool{wethUSDC}, eth, dai)
	require.ErrorContains(t, err, "ends at")

	_, err = NewRoute(nil, eth, dai)
	require.ErrorContains(t, err, "at least one pool")
}

func TestRouteMidPriceCompounds(t *testing.T) {
	t.Parallel()

	weth := testWETH(t)
	usdc := testToken(t, "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", "USDC", 6)
	dai := testToken(t, "0x6B175474E89094C44Da98b954EedeAC495271d0F", "DAI", 18)

	// 1 WETH = 2 USDC, 1 USDC = 3 DAI, so 1 WETH = 6 DAI in raw units.
	wethUSDC := testPairPool(t, weth, 100, usdc, 200, 3000)
	usdcDAI := testPairPool(t, usdc, 100, dai, 300, 3000)

	route, err := NewRoute([]*Pool{wethUSDC, usdcDAI}, weth, dai)
	require.NoError(t, err)

	mid, err := route.MidPrice()
	require.NoError(t, err)
	require.True(t, mid.Fraction().EqualTo(FractionFromInt(6)))
	require.True(t, mid.Base.Equal(weth))
	require.True(t, mid.Quote.Equal(dai))
}
