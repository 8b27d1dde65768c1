package router

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"swapScope/internal/dex"
	"swapScope/internal/model"
)

// stateReader is the slice of the chain client the pool source needs.
type stateReader interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	LatestBlockNumber(ctx context.Context) (uint64, error)
}

// ChainPoolSource fetches candidate pool snapshots for a pair directly from
// the chain: the pair itself, each endpoint against the chain's base
// tokens, and the base tokens against each other, so multi-hop routes have
// material to work with. All reads within one call are pinned to a single
// block.
type ChainPoolSource struct {
	reader      stateReader
	contracts   dex.Contracts
	bases       []model.Currency
	concurrency int
	logger      *zap.Logger
}

// NewChainPoolSource wires a pool source for one chain.
func NewChainPoolSource(reader stateReader, contracts dex.Contracts, concurrency int, logger *zap.Logger) (*ChainPoolSource, error) {
	if reader == nil {
		return nil, fmt.Errorf("chain reader is nil")
	}
	if concurrency < 1 {
		concurrency = 8
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChainPoolSource{
		reader:      reader,
		contracts:   contracts,
		bases:       contracts.BaseCurrencies(),
		concurrency: concurrency,
		logger:      logger,
	}, nil
}

type tokenPair struct {
	a, b model.Currency
}

// Pools returns every existing pool over the candidate pairs. Missing and
// empty pools are skipped silently; transport failures abort the whole
// snapshot since a partial pool set would bias route selection.
func (s *ChainPoolSource) Pools(ctx context.Context, input, output model.Currency) ([]*model.Pool, error) {
	pairs := s.candidatePairs(input, output)
	if len(pairs) == 0 {
		return nil, nil
	}

	block, err := s.reader.LatestBlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("pin snapshot block: %w", err)
	}

	var (
		mu    sync.Mutex
		pools []*model.Pool
	)
	collect := func(pool *model.Pool, err error) error {
		if err != nil {
			if errors.Is(err, dex.ErrPoolNotFound) {
				return nil
			}
			return err
		}
		mu.Lock()
		pools = append(pools, pool)
		mu.Unlock()
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, pair := range pairs {
		g.Go(func() error {
			pool, err := dex.FetchPairPool(gctx, s.reader, s.contracts, pair.a, pair.b, block)
			return collect(pool, err)
		})
		if !s.contracts.HasV3() {
			continue
		}
		for _, fee := range s.contracts.V3FeeTiers {
			g.Go(func() error {
				pool, err := dex.FetchV3Pool(gctx, s.reader, s.contracts, pair.a, pair.b, fee, block)
				return collect(pool, err)
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.logger.Debug("pool snapshot assembled",
		zap.Uint64("block", block),
		zap.Int("pairs", len(pairs)),
		zap.Int("pools", len(pools)))
	return pools, nil
}

// candidatePairs enumerates the unordered token pairs worth probing for the
// request, deduplicated by their canonical ordering.
func (s *ChainPoolSource) candidatePairs(input, output model.Currency) []tokenPair {
	in := input.Wrapped()
	out := output.Wrapped()

	candidates := []model.Currency{in, out}
	for _, base := range s.bases {
		if base.Equal(in) || base.Equal(out) {
			continue
		}
		candidates = append(candidates, base)
	}

	seen := make(map[string]bool)
	var pairs []tokenPair
	for i := 0; i < len(candidates); i++ {
		for j := i + 1; j < len(candidates); j++ {
			a, b := candidates[i], candidates[j]
			before, err := a.SortsBefore(b)
			if err != nil {
				continue
			}
			if !before {
				a, b = b, a
			}
			key := a.Address.Hex() + "/" + b.Address.Hex()
			if seen[key] {
				continue
			}
			seen[key] = true
			pairs = append(pairs, tokenPair{a: a, b: b})
		}
	}
	return pairs
}
