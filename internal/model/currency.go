package model

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Currency identifies a native coin or an ERC-20 token on a specific chain.
// Currencies are compared structurally; two values describing the same asset
// are interchangeable.
type Currency struct {
	ChainID  uint64
	Address  common.Address // zero for the native coin
	Native   bool
	Decimals uint8
	Symbol   string
	Name     string

	wrapped *Currency // wrapped counterpart, set for native currencies only
}

// NewToken builds an ERC-20 currency.
func NewToken(chainID uint64, address common.Address, decimals uint8, symbol, name string) Currency {
	return Currency{
		ChainID:  chainID,
		Address:  address,
		Decimals: decimals,
		Symbol:   symbol,
		Name:     name,
	}
}

// NewNative builds a chain's native currency. The wrapped token is required
// because pools only ever hold tokens.
func NewNative(chainID uint64, decimals uint8, symbol, name string, wrapped Currency) (Currency, error) {
	if wrapped.Native {
		return Currency{}, fmt.Errorf("wrapped counterpart of %s is itself native", symbol)
	}
	if wrapped.ChainID != chainID {
		return Currency{}, fmt.Errorf("wrapped counterpart chain %d does not match %d", wrapped.ChainID, chainID)
	}
	return Currency{
		ChainID:  chainID,
		Native:   true,
		Decimals: decimals,
		Symbol:   symbol,
		Name:     name,
		wrapped:  &wrapped,
	}, nil
}

// Equal reports whether two currencies identify the same asset.
func (c Currency) Equal(other Currency) bool {
	if c.ChainID != other.ChainID || c.Native != other.Native {
		return false
	}
	if c.Native {
		return true
	}
	return c.Address == other.Address
}

// Wrapped returns the token form of the currency: the currency itself for
// tokens, the wrapped counterpart for the native coin.
func (c Currency) Wrapped() Currency {
	if !c.Native || c.wrapped == nil {
		return c
	}
	return *c.wrapped
}

// SortsBefore reports canonical pool ordering between two tokens.
func (c Currency) SortsBefore(other Currency) (bool, error) {
	if c.Native || other.Native {
		return false, fmt.Errorf("native currency has no canonical order")
	}
	if c.ChainID != other.ChainID {
		return false, fmt.Errorf("cannot order tokens on chains %d and %d", c.ChainID, other.ChainID)
	}
	if c.Address == other.Address {
		return false, fmt.Errorf("cannot order identical tokens %s", c.Address.Hex())
	}
	return bytes.Compare(c.Address.Bytes(), other.Address.Bytes()) < 0, nil
}

func (c Currency) String() string {
	if c.Symbol != "" {
		return c.Symbol
	}
	if c.Native {
		return "NATIVE"
	}
	return c.Address.Hex()
}
