package main

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"swapScope/internal/chain"
	"swapScope/internal/dex"
	"swapScope/internal/model"
	"swapScope/internal/router"
)

// pipeline bundles the chain-facing derivation stack the commands share.
type pipeline struct {
	client    *chain.Client
	chainID   uint64
	contracts dex.Contracts
	tokens    *dex.TokenMetaCache
	engine    *router.Engine
}

// derivationSettings is the slice of a command's config the pipeline needs.
type derivationSettings struct {
	RPCURL      string
	Quoter      string
	RouterAPI   string
	MaxHops     int
	MaxBlockAge uint64
	QuoterRPS   int
	Concurrency int
}

// buildPipeline dials the chain and assembles pool source, quoter, optional
// remote client, and engine. The caller owns Close.
func buildPipeline(ctx context.Context, set derivationSettings, logger *zap.Logger) (*pipeline, error) {
	if set.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}

	client, err := chain.NewClient(ctx, set.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}

	id, err := client.GetChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("read chain id: %w", err)
	}
	chainID := id.Uint64()

	contracts, err := dex.ContractsFor(chainID)
	if err != nil {
		client.Close()
		return nil, err
	}

	provider, err := router.NewChainPoolSource(client, contracts, set.Concurrency, logger)
	if err != nil {
		client.Close()
		return nil, err
	}

	var quoter router.Quoter
	switch set.Quoter {
	case "", "local":
		quoter = router.NewLocalQuoter()
	case "contract":
		quoter, err = router.NewContractQuoter(client, contracts, set.QuoterRPS, logger)
		if err != nil {
			client.Close()
			return nil, err
		}
	default:
		client.Close()
		return nil, fmt.Errorf("unknown quoter %q, use local or contract", set.Quoter)
	}

	var remote router.RemoteSource
	if set.RouterAPI != "" {
		rc, err := router.NewRemoteClient(router.RemoteConfig{
			BaseURL:     set.RouterAPI,
			MaxBlockAge: set.MaxBlockAge,
		}, client, logger)
		if err != nil {
			client.Close()
			return nil, err
		}
		remote = rc
	}

	engine, err := router.NewEngine(provider, quoter, remote, set.MaxHops, logger)
	if err != nil {
		client.Close()
		return nil, err
	}

	return &pipeline{
		client:    client,
		chainID:   chainID,
		contracts: contracts,
		tokens:    dex.NewTokenMetaCache(),
		engine:    engine,
	}, nil
}

func (p *pipeline) Close() {
	p.client.Close()
}

// parseCurrency accepts "native", the chain's native symbol, or a token
// address, resolving token metadata from the chain on first sight.
func (p *pipeline) parseCurrency(ctx context.Context, raw string, logger *zap.Logger) (model.Currency, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return model.Currency{}, fmt.Errorf("no token given")
	}
	if strings.EqualFold(trimmed, "native") || strings.EqualFold(trimmed, p.contracts.NativeSymbol) {
		return p.contracts.NativeCurrency()
	}
	if !common.IsHexAddress(trimmed) {
		return model.Currency{}, fmt.Errorf("%q is not a token address", trimmed)
	}
	addr := common.HexToAddress(trimmed)
	if addr == (common.Address{}) {
		return p.contracts.NativeCurrency()
	}
	currency, err := dex.ResolveCurrency(ctx, p.client, p.chainID, addr, p.tokens, logger)
	if err != nil {
		return model.Currency{}, fmt.Errorf("resolve %s: %w", trimmed, err)
	}
	return currency, nil
}

func parseRawAmount(raw string) (*big.Int, error) {
	value, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok || value.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be a positive integer in base units")
	}
	return value, nil
}

func parseSwapMode(raw string) (model.TradeType, error) {
	switch raw {
	case "ExactIn":
		return model.ExactInput, nil
	case "ExactOut":
		return model.ExactOutput, nil
	default:
		return 0, fmt.Errorf("swap-mode must be ExactIn or ExactOut")
	}
}

// quoteRequest pins the traded amount to the side the mode fixes.
func quoteRequest(input, output model.Currency, raw *big.Int, mode model.TradeType) (router.QuoteRequest, error) {
	fixed := input
	if mode == model.ExactOutput {
		fixed = output
	}
	amount, err := model.NewTokenAmount(fixed, raw)
	if err != nil {
		return router.QuoteRequest{}, err
	}
	return router.QuoteRequest{Input: &input, Output: &output, Amount: &amount, Type: mode}, nil
}
