package model

import (
	"fmt"
)

// Route is an ordered path of pools carrying an input currency to an output
// currency. Path holds the token hops, one more entry than Pools. All pools
// on a route share one chain and one kind, so a single router contract can
// execute the whole path.
type Route struct {
	Pools  []*Pool
	Path   []Currency
	Input  Currency
	Output Currency
}

// NewRoute validates pool adjacency and derives the token path.
func NewRoute(pools []*Pool, input, output Currency) (*Route, error) {
	if len(pools) == 0 {
		return nil, fmt.Errorf("route needs at least one pool")
	}
	kind := pools[0].Kind
	chainID := input.ChainID
	if output.ChainID != chainID {
		return nil, fmt.Errorf("route endpoints span chains %d and %d", chainID, output.ChainID)
	}
	path := make([]Currency, 0, len(pools)+1)
	current := input.Wrapped()
	path = append(path, current)
	for i, pool := range pools {
		if pool.Kind != kind {
			return nil, fmt.Errorf("route mixes %s and %s pools", kind, pool.Kind)
		}
		if pool.Token0.ChainID != chainID {
			return nil, fmt.Errorf("pool %s is on chain %d, route is on %d", pool.Address.Hex(), pool.Token0.ChainID, chainID)
		}
		if !pool.Involves(current) {
			return nil, fmt.Errorf("pool %d (%s) does not involve %s", i, pool.Address.Hex(), current)
		}
		next, err := pool.Other(current)
		if err != nil {
			return nil, err
		}
		path = append(path, next)
		current = next
	}
	if !current.Equal(output.Wrapped()) {
		return nil, fmt.Errorf("route ends at %s, expected %s", current, output)
	}
	return &Route{Pools: pools, Path: path, Input: input, Output: output}, nil
}

// ChainID returns the chain the route lives on.
func (r *Route) ChainID() uint64 {
	return r.Input.ChainID
}

// Kind returns the pool kind shared by every hop.
func (r *Route) Kind() PoolKind {
	return r.Pools[0].Kind
}

// MidPrice returns the compound marginal price of the route, output units
// per input unit, ignoring fees.
func (r *Route) MidPrice() (Price, error) {
	price, err := r.Pools[0].MidPrice(r.Path[0])
	if err != nil {
		return Price{}, fmt.Errorf("hop 0: %w", err)
	}
	for i := 1; i < len(r.Pools); i++ {
		hop, err := r.Pools[i].MidPrice(r.Path[i])
		if err != nil {
			return Price{}, fmt.Errorf("hop %d: %w", i, err)
		}
		price, err = price.Mul(hop)
		if err != nil {
			return Price{}, fmt.Errorf("hop %d: %w", i, err)
		}
	}
	// relabel the endpoints so native currencies survive in the rate
	return Price{Base: r.Input, Quote: r.Output, frac: price.frac}, nil
}
