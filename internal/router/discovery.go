package router

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"swapScope/internal/model"
)

// ComputeAllRoutes enumerates every loop-free path from input to output over
// the supplied pool snapshots, up to maxHops pools long. Pools of different
// kinds never mix within one route so that a single router contract can
// execute the whole path. Duplicate snapshots of one pool are collapsed,
// keeping the first seen.
func ComputeAllRoutes(pools []*model.Pool, input, output model.Currency, maxHops int) ([]*model.Route, error) {
	if maxHops < 1 {
		return nil, fmt.Errorf("max hops must be at least 1")
	}
	if input.ChainID != output.ChainID {
		return nil, fmt.Errorf("currencies on different chains")
	}
	if input.Wrapped().Equal(output.Wrapped()) {
		return nil, fmt.Errorf("input and output resolve to the same token")
	}

	var routes []*model.Route
	for _, kind := range []model.PoolKind{model.PoolKindV2, model.PoolKindV3} {
		subset := dedupePools(pools, kind)
		if len(subset) == 0 {
			continue
		}
		walker := routeWalker{
			pools:  subset,
			input:  input,
			output: output,
			target: output.Wrapped(),
		}
		found, err := walker.walk(input.Wrapped(), nil, maxHops)
		if err != nil {
			return nil, err
		}
		routes = append(routes, found...)
	}
	return routes, nil
}

func dedupePools(pools []*model.Pool, kind model.PoolKind) []*model.Pool {
	seen := make(map[common.Address]bool, len(pools))
	var subset []*model.Pool
	for _, p := range pools {
		if p == nil || p.Kind != kind || seen[p.Address] {
			continue
		}
		seen[p.Address] = true
		subset = append(subset, p)
	}
	return subset
}

type routeWalker struct {
	pools  []*model.Pool
	input  model.Currency
	output model.Currency
	target model.Currency
}

func (w *routeWalker) walk(at model.Currency, path []*model.Pool, hopsLeft int) ([]*model.Route, error) {
	var routes []*model.Route
	for _, pool := range w.pools {
		if !pool.Involves(at) || contains(path, pool) {
			continue
		}
		next, err := pool.Other(at)
		if err != nil {
			return nil, err
		}

		if next.Equal(w.target) {
			route, err := model.NewRoute(append(append([]*model.Pool{}, path...), pool), w.input, w.output)
			if err != nil {
				return nil, fmt.Errorf("assemble route: %w", err)
			}
			routes = append(routes, route)
			continue
		}
		if hopsLeft > 1 {
			deeper, err := w.walk(next, append(path, pool), hopsLeft-1)
			if err != nil {
				return nil, err
			}
			routes = append(routes, deeper...)
		}
	}
	return routes, nil
}

func contains(path []*model.Pool, pool *model.Pool) bool {
	for _, p := range path {
		if p.Address == pool.Address {
			return true
		}
	}
	return false
}
