package dex

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"swapScope/internal/model"
)

var (
	// ErrNoContract marks a call that returned no data, meaning nothing is
	// deployed at the address.
	ErrNoContract = errors.New("no contract at address")
	// ErrPoolNotFound marks a pool that is not deployed, not initialized,
	// or empty.
	ErrPoolNotFound = errors.New("pool not found")
)

// create2 computes the deterministic deployment address.
func create2(deployer common.Address, salt, initCodeHash common.Hash) common.Address {
	buf := make([]byte, 0, 85)
	buf = append(buf, 0xff)
	buf = append(buf, deployer.Bytes()...)
	buf = append(buf, salt.Bytes()...)
	buf = append(buf, initCodeHash.Bytes()...)
	return common.BytesToAddress(crypto.Keccak256(buf)[12:])
}

// sortTokens returns the token forms of two currencies in canonical order.
func sortTokens(a, b model.Currency) (model.Currency, model.Currency, error) {
	ta, tb := a.Wrapped(), b.Wrapped()
	first, err := ta.SortsBefore(tb)
	if err != nil {
		return model.Currency{}, model.Currency{}, err
	}
	if first {
		return ta, tb, nil
	}
	return tb, ta, nil
}

// PairAddress derives the constant-product pair address for two currencies.
func PairAddress(c Contracts, a, b model.Currency) (common.Address, error) {
	token0, token1, err := sortTokens(a, b)
	if err != nil {
		return common.Address{}, err
	}
	salt := crypto.Keccak256Hash(token0.Address.Bytes(), token1.Address.Bytes())
	return create2(c.FactoryV2, salt, c.PairInitCodeHash), nil
}

// PoolAddress derives the concentrated-liquidity pool address for two
// currencies and a fee tier.
func PoolAddress(c Contracts, a, b model.Currency, fee uint32) (common.Address, error) {
	if !c.HasV3() {
		return common.Address{}, fmt.Errorf("chain %d has no v3 deployment", c.ChainID)
	}
	token0, token1, err := sortTokens(a, b)
	if err != nil {
		return common.Address{}, err
	}
	salt := crypto.Keccak256Hash(
		common.LeftPadBytes(token0.Address.Bytes(), 32),
		common.LeftPadBytes(token1.Address.Bytes(), 32),
		common.LeftPadBytes(new(big.Int).SetUint64(uint64(fee)).Bytes(), 32),
	)
	return create2(c.FactoryV3, salt, c.PoolInitCodeHash), nil
}

// FetchPairPool reads a V2 pair snapshot pinned at the given height. A zero
// height reads the latest state.
func FetchPairPool(ctx context.Context, caller Caller, c Contracts, a, b model.Currency, block uint64) (*model.Pool, error) {
	if caller == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	address, err := PairAddress(c, a, b)
	if err != nil {
		return nil, err
	}
	token0, token1, err := sortTokens(a, b)
	if err != nil {
		return nil, err
	}

	pairABI, err := V2PairABI()
	if err != nil {
		return nil, fmt.Errorf("parse pair abi: %w", err)
	}

	var blockPtr *big.Int
	if block > 0 {
		blockPtr = new(big.Int).SetUint64(block)
	}

	values, err := CallMethod(ctx, caller, address, pairABI, "getReserves", blockPtr)
	if err != nil {
		if errors.Is(err, ErrNoContract) {
			return nil, fmt.Errorf("pair %s/%s: %w", token0, token1, ErrPoolNotFound)
		}
		return nil, err
	}
	reserve0, err := AsBigInt(values[0])
	if err != nil {
		return nil, fmt.Errorf("reserve0: %w", err)
	}
	reserve1, err := AsBigInt(values[1])
	if err != nil {
		return nil, fmt.Errorf("reserve1: %w", err)
	}
	if reserve0.Sign() == 0 || reserve1.Sign() == 0 {
		return nil, fmt.Errorf("pair %s/%s is empty: %w", token0, token1, ErrPoolNotFound)
	}

	return &model.Pool{
		Kind:        model.PoolKindV2,
		Address:     address,
		Token0:      token0,
		Token1:      token1,
		Fee:         c.PairFee,
		Reserve0:    reserve0,
		Reserve1:    reserve1,
		BlockNumber: block,
	}, nil
}

// FetchV3Pool reads a concentrated-liquidity snapshot pinned at the given
// height. A zero height reads the latest state.
func FetchV3Pool(ctx context.Context, caller Caller, c Contracts, a, b model.Currency, fee uint32, block uint64) (*model.Pool, error) {
	if caller == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	address, err := PoolAddress(c, a, b, fee)
	if err != nil {
		return nil, err
	}
	token0, token1, err := sortTokens(a, b)
	if err != nil {
		return nil, err
	}

	poolABI, err := V3PoolABI()
	if err != nil {
		return nil, fmt.Errorf("parse pool abi: %w", err)
	}

	var blockPtr *big.Int
	if block > 0 {
		blockPtr = new(big.Int).SetUint64(block)
	}

	values, err := CallMethod(ctx, caller, address, poolABI, "slot0", blockPtr)
	if err != nil {
		if errors.Is(err, ErrNoContract) {
			return nil, fmt.Errorf("pool %s/%s@%d: %w", token0, token1, fee, ErrPoolNotFound)
		}
		return nil, err
	}
	if len(values) < 2 {
		return nil, fmt.Errorf("slot0 returned %d values", len(values))
	}
	sqrtPrice, err := AsBigInt(values[0])
	if err != nil {
		return nil, fmt.Errorf("sqrt price: %w", err)
	}
	if sqrtPrice.Sign() == 0 {
		return nil, fmt.Errorf("pool %s/%s@%d is uninitialized: %w", token0, token1, fee, ErrPoolNotFound)
	}
	tickInt, err := AsBigInt(values[1])
	if err != nil {
		return nil, fmt.Errorf("tick: %w", err)
	}
	tick, err := int24FromBig(tickInt)
	if err != nil {
		return nil, fmt.Errorf("tick: %w", err)
	}

	values, err = CallMethod(ctx, caller, address, poolABI, "liquidity", blockPtr)
	if err != nil {
		return nil, err
	}
	liquidity, err := AsBigInt(values[0])
	if err != nil {
		return nil, fmt.Errorf("liquidity: %w", err)
	}

	values, err = CallMethod(ctx, caller, address, poolABI, "tickSpacing", blockPtr)
	if err != nil {
		return nil, err
	}
	spacingInt, err := AsBigInt(values[0])
	if err != nil {
		return nil, fmt.Errorf("tick spacing: %w", err)
	}
	spacing, err := int24FromBig(spacingInt)
	if err != nil {
		return nil, fmt.Errorf("tick spacing: %w", err)
	}

	return &model.Pool{
		Kind:         model.PoolKindV3,
		Address:      address,
		Token0:       token0,
		Token1:       token1,
		Fee:          fee,
		SqrtPriceX96: sqrtPrice,
		Liquidity:    liquidity,
		Tick:         tick,
		TickSpacing:  spacing,
		BlockNumber:  block,
	}, nil
}
