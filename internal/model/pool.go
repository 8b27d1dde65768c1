package model

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PoolKind discriminates the pricing model behind a pool snapshot.
type PoolKind int

const (
	// PoolKindV2 is a constant-product pair holding two reserves.
	PoolKindV2 PoolKind = iota + 1
	// PoolKindV3 is a concentrated-liquidity pool priced by sqrt ratio.
	PoolKindV3
)

func (k PoolKind) String() string {
	switch k {
	case PoolKindV2:
		return "v2"
	case PoolKindV3:
		return "v3"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Pool is a point-in-time liquidity snapshot used for routing and local
// quoting. Token0 always sorts before Token1 by address. Fee is expressed in
// hundredths of a bip, 3000 meaning 0.30%.
type Pool struct {
	Kind    PoolKind
	Address common.Address
	Token0  Currency
	Token1  Currency
	Fee     uint32

	// constant-product state
	Reserve0 *big.Int
	Reserve1 *big.Int

	// concentrated-liquidity state
	SqrtPriceX96 *big.Int
	Liquidity    *big.Int
	Tick         int32
	TickSpacing  int32

	// BlockNumber is the height the snapshot was read at.
	BlockNumber uint64
}

// Validate checks structural invariants of the snapshot.
func (p *Pool) Validate() error {
	if p == nil {
		return fmt.Errorf("pool is nil")
	}
	ordered, err := p.Token0.SortsBefore(p.Token1)
	if err != nil {
		return fmt.Errorf("pool %s: %w", p.Address.Hex(), err)
	}
	if !ordered {
		return fmt.Errorf("pool %s: token0 %s does not sort before token1 %s", p.Address.Hex(), p.Token0, p.Token1)
	}
	if p.Fee >= 1_000_000 {
		return fmt.Errorf("pool %s: fee %d exceeds scale", p.Address.Hex(), p.Fee)
	}
	switch p.Kind {
	case PoolKindV2:
		if p.Reserve0 == nil || p.Reserve1 == nil {
			return fmt.Errorf("pool %s: missing reserves", p.Address.Hex())
		}
	case PoolKindV3:
		if p.SqrtPriceX96 == nil || p.SqrtPriceX96.Sign() <= 0 {
			return fmt.Errorf("pool %s: missing sqrt price", p.Address.Hex())
		}
		if p.Liquidity == nil {
			return fmt.Errorf("pool %s: missing liquidity", p.Address.Hex())
		}
		if p.TickSpacing <= 0 {
			return fmt.Errorf("pool %s: missing tick spacing", p.Address.Hex())
		}
	default:
		return fmt.Errorf("pool %s: unknown kind %d", p.Address.Hex(), int(p.Kind))
	}
	return nil
}

// Involves reports whether the pool holds the token form of the currency.
func (p *Pool) Involves(c Currency) bool {
	w := c.Wrapped()
	return p.Token0.Equal(w) || p.Token1.Equal(w)
}

// Other returns the pool token paired against the given currency.
func (p *Pool) Other(c Currency) (Currency, error) {
	w := c.Wrapped()
	switch {
	case p.Token0.Equal(w):
		return p.Token1, nil
	case p.Token1.Equal(w):
		return p.Token0, nil
	default:
		return Currency{}, fmt.Errorf("pool %s does not involve %s", p.Address.Hex(), c)
	}
}

// FeeFraction returns the swap fee as an exact fraction of the input.
func (p *Pool) FeeFraction() Fraction {
	return Fraction{Num: big.NewInt(int64(p.Fee)), Den: big.NewInt(1_000_000)}
}

// MidPrice returns the marginal price of the pool with the given currency as
// base, ignoring fees.
func (p *Pool) MidPrice(base Currency) (Price, error) {
	quote, err := p.Other(base)
	if err != nil {
		return Price{}, err
	}
	baseIsToken0 := p.Token0.Equal(base.Wrapped())
	switch p.Kind {
	case PoolKindV2:
		if p.Reserve0 == nil || p.Reserve1 == nil {
			return Price{}, fmt.Errorf("pool %s has no reserves", p.Address.Hex())
		}
		if baseIsToken0 {
			return NewPrice(base, quote, p.Reserve0, p.Reserve1)
		}
		return NewPrice(base, quote, p.Reserve1, p.Reserve0)
	case PoolKindV3:
		if p.SqrtPriceX96 == nil || p.SqrtPriceX96.Sign() <= 0 {
			return Price{}, fmt.Errorf("pool %s has no sqrt price", p.Address.Hex())
		}
		// token1 per token0 equals sqrtPriceX96^2 / 2^192.
		num := new(big.Int).Mul(p.SqrtPriceX96, p.SqrtPriceX96)
		den := new(big.Int).Lsh(big.NewInt(1), 192)
		if baseIsToken0 {
			return NewPrice(base, quote, den, num)
		}
		return NewPrice(base, quote, num, den)
	default:
		return Price{}, fmt.Errorf("pool %s has unknown kind %d", p.Address.Hex(), int(p.Kind))
	}
}
