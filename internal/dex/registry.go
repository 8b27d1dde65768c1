package dex

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"swapScope/internal/model"
)

// Contracts lists the protocol deployments the pipeline touches on one
// chain. Chains without a concentrated-liquidity deployment leave the V3
// fields zero.
type Contracts struct {
	ChainID        uint64
	NativeSymbol   string
	NativeName     string
	NativeDecimals uint8
	WrappedNative  common.Address
	WrappedSymbol  string
	WrappedName    string

	RouterV2         common.Address
	FactoryV2        common.Address
	PairInitCodeHash common.Hash
	// PairFee is the constant-product swap fee in hundredths of a bip.
	PairFee uint32

	RouterV3         common.Address
	FactoryV3        common.Address
	PoolInitCodeHash common.Hash
	Quoter           common.Address
	V3FeeTiers       []uint32
}

var contractsByChain = map[uint64]Contracts{
	1: {
		ChainID:          1,
		NativeSymbol:     "ETH",
		NativeName:       "Ether",
		NativeDecimals:   18,
		WrappedNative:    common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"),
		WrappedSymbol:    "WETH",
		WrappedName:      "Wrapped Ether",
		RouterV2:         common.HexToAddress("0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D"),
		FactoryV2:        common.HexToAddress("0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc8aa6f"),
		PairInitCodeHash: common.HexToHash("0x96e8ac4277198ff8b6f785478aa9a39f403cb768dd02cbee326c3e7da348845f"),
		PairFee:          3000,
		RouterV3:         common.HexToAddress("0xE592427A0AEce92De3Edee1F18E0157C05861564"),
		FactoryV3:        common.HexToAddress("0x1F98431c8aD98523631AE4a59f267346ea31F984"),
		PoolInitCodeHash: common.HexToHash("0xe34f199b19b2b4f47f68442619d555527d244f78a3297ea89325f843f87b8b54"),
		Quoter:           common.HexToAddress("0xb27308f9F90D607463bb33eA1BeBb41C27CE5AB6"),
		V3FeeTiers:       []uint32{500, 3000, 10000},
	},
	56: {
		ChainID:          56,
		NativeSymbol:     "BNB",
		NativeName:       "BNB",
		NativeDecimals:   18,
		WrappedNative:    common.HexToAddress("0xbb4CdB9CBd36B01bD1cBaEF60aF814a3f6F0Ee75"),
		WrappedSymbol:    "WBNB",
		WrappedName:      "Wrapped BNB",
		RouterV2:         common.HexToAddress("0x10ED43C718714eb63d5aA57B78B54704E256024E"),
		FactoryV2:        common.HexToAddress("0xcA143Ce32Fe78f1f7019d7d551a6402fC5350c73"),
		PairInitCodeHash: common.HexToHash("0x00fb7f630766e6a796048ea87d01acd3068e8ff67d078148a3fa3f4a84f69bd5"),
		PairFee:          2500,
	},
}

type baseToken struct {
	address  string
	decimals uint8
	symbol   string
	name     string
}

// baseTokensByChain lists the liquid tokens worth routing through as
// intermediate hops. The wrapped native is prepended at lookup time.
var baseTokensByChain = map[uint64][]baseToken{
	1: {
		{address: "0x6B175474E89094C44Da98b954EedeAC495271d0F", decimals: 18, symbol: "DAI", name: "Dai Stablecoin"},
		{address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", decimals: 6, symbol: "USDC", name: "USD Coin"},
		{address: "0xdAC17F958D2ee523a2206206994597C13D831ec7", decimals: 6, symbol: "USDT", name: "Tether USD"},
		{address: "0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599", decimals: 8, symbol: "WBTC", name: "Wrapped BTC"},
	},
	56: {
		{address: "0xe9e7CEA3DedcA5984780Bafc599bD69ADd087D56", decimals: 18, symbol: "BUSD", name: "BUSD Token"},
		{address: "0x55d398326f99059fF775485246999027B3197955", decimals: 18, symbol: "USDT", name: "Tether USD"},
		{address: "0x0E09FaBB73Bd3Ade0a17ECC321fD13a19e81cE82", decimals: 18, symbol: "CAKE", name: "PancakeSwap Token"},
	},
}

// ContractsFor returns the deployments for a chain.
func ContractsFor(chainID uint64) (Contracts, error) {
	c, ok := contractsByChain[chainID]
	if !ok {
		return Contracts{}, fmt.Errorf("no contract registry for chain %d", chainID)
	}
	return c, nil
}

// BaseCurrencies returns the routing intermediates for the chain, wrapped
// native first.
func (c Contracts) BaseCurrencies() []model.Currency {
	bases := []model.Currency{c.WrappedCurrency()}
	for _, b := range baseTokensByChain[c.ChainID] {
		bases = append(bases, model.NewToken(c.ChainID, common.HexToAddress(b.address), b.decimals, b.symbol, b.name))
	}
	return bases
}

// HasV3 reports whether the chain carries a concentrated-liquidity
// deployment.
func (c Contracts) HasV3() bool {
	return c.FactoryV3 != (common.Address{})
}

// WrappedCurrency returns the wrapped-native token.
func (c Contracts) WrappedCurrency() model.Currency {
	return model.NewToken(c.ChainID, c.WrappedNative, c.NativeDecimals, c.WrappedSymbol, c.WrappedName)
}

// NativeCurrency returns the native coin with its wrapped counterpart
// attached.
func (c Contracts) NativeCurrency() (model.Currency, error) {
	return model.NewNative(c.ChainID, c.NativeDecimals, c.NativeSymbol, c.NativeName, c.WrappedCurrency())
}
