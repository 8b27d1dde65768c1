package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"swapScope/internal/chain"
	"swapScope/internal/config"
	"swapScope/internal/model"
	"swapScope/internal/permit"
	"swapScope/internal/router"
	"swapScope/internal/storage"
	"swapScope/internal/storage/postgres"
	"swapScope/internal/swap"
	"swapScope/internal/watcher"
)

func runSwap(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSwap(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := buildPipeline(ctx, derivationSettings{
		RPCURL:      cfg.RPCURL,
		Quoter:      cfg.Quoter,
		RouterAPI:   cfg.RouterAPI,
		MaxHops:     cfg.MaxHops,
		MaxBlockAge: cfg.MaxBlockAge,
		QuoterRPS:   cfg.QuoterRPS,
		Concurrency: cfg.Concurrency,
	}, logger)
	if err != nil {
		return err
	}
	defer p.Close()

	wallet, err := buildWallet(p, cfg)
	if err != nil {
		return err
	}

	memory := storage.NewMemoryLog()
	sinks := []storage.Recorder{memory}
	if cfg.TxLog != "" {
		sinks = append(sinks, storage.NewJsonlLog(cfg.TxLog))
	}
	if cfg.PgDSN != "" {
		pg, err := postgres.NewStore(ctx, cfg.PgDSN)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		defer pg.Close()
		if err := pg.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
		sinks = append(sinks, pg)
	}
	recorder := storage.NewTee(sinks...)

	allow, err := permit.LoadAllowlist(cfg.PermitAllowlist)
	if err != nil {
		return err
	}

	orch, err := swap.NewOrchestrator(swap.OrchestratorConfig{
		Contracts:     p.contracts,
		GasMarginBips: cfg.GasMarginBips,
		Resolver:      chain.NewENSResolver(p.client, p.chainID, logger),
		Recorder:      recorder,
		Pending:       memory,
	}, wallet, p.client, logger)
	if err != nil {
		return err
	}

	w, err := watcher.NewWatcher(watcher.Config{
		PollInterval: cfg.PollInterval,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, memory, p.client, logger)
	if err != nil {
		return err
	}

	input, err := p.parseCurrency(ctx, cfg.InputToken, logger)
	if err != nil {
		return err
	}
	output, err := p.parseCurrency(ctx, cfg.OutputToken, logger)
	if err != nil {
		return err
	}
	raw, err := parseRawAmount(cfg.Amount)
	if err != nil {
		return err
	}
	mode, err := parseSwapMode(cfg.SwapMode)
	if err != nil {
		return err
	}

	logger.Info("swap start",
		zap.Uint64("chain_id", p.chainID),
		zap.Stringer("account", wallet.Account()),
		zap.String("input", input.Symbol),
		zap.String("output", output.Symbol),
		zap.Stringer("type", mode),
	)

	// conversions skip routing, estimation candidates, and slippage
	if kind := swap.DetectWrap(input, output, p.contracts); kind != swap.WrapNone {
		hash, err := orch.SubmitWrap(ctx, input, output, raw)
		if err != nil {
			return err
		}
		fmt.Printf("%s submitted: %s\n", kind, hash.Hex())
		if !cfg.Wait {
			return nil
		}
		if err := waitFinalized(ctx, cfg.WaitTimeout, cfg.PollInterval, w, memory, hash); err != nil {
			return err
		}
		return reportOutcome(memory, hash, nil)
	}

	req, err := quoteRequest(input, output, raw, mode)
	if err != nil {
		return err
	}
	result, err := p.engine.BestTrade(ctx, req)
	if err != nil {
		return fmt.Errorf("derive trade: %w", err)
	}
	switch result.Status {
	case router.TradeInvalid:
		return fmt.Errorf("swap rejected: %s", result.Reason)
	case router.TradeNoRoute:
		return fmt.Errorf("no route between %s and %s", input.Symbol, output.Symbol)
	case router.TradeReady:
	default:
		return fmt.Errorf("unexpected derivation status %s", result.Status)
	}
	trade := result.Trade

	spender := p.contracts.RouterV2
	if trade.Route.Kind() == model.PoolKindV3 {
		spender = p.contracts.RouterV3
	}

	state, err := orch.ApprovalState(ctx, trade.InputAmount, spender)
	if err != nil {
		return err
	}
	switch state {
	case swap.ApprovalPending:
		return fmt.Errorf("an approval for %s is already in flight, retry once it lands", input.Symbol)
	case swap.NotApproved:
		if entry, ok := allow.Lookup(p.chainID, trade.InputAmount.Currency.Address); ok {
			logger.Info("token takes gasless permits, interactive front-ends skip this approval",
				zap.String("domain", entry.Name),
				zap.Stringer("permit_type", entry.Type))
		}
		hash, err := orch.Approve(ctx, trade.InputAmount, spender)
		if err != nil {
			return err
		}
		fmt.Printf("approval submitted: %s\n", hash.Hex())
		// the approval has to land before the router can pull the input
		if err := waitFinalized(ctx, cfg.WaitTimeout, cfg.PollInterval, w, memory, hash); err != nil {
			return err
		}
		if err := reportOutcome(memory, hash, nil); err != nil {
			return err
		}
	}

	deadline, err := swap.TransactionDeadline(ctx, p.client, cfg.DeadlineTTL)
	if err != nil {
		return err
	}
	params := swap.SwapParams{
		Trade:        trade,
		SlippageBips: cfg.SlippageBips,
		Recipient:    cfg.Recipient,
		Deadline:     deadline,
	}
	if pf := orch.Preflight(params); pf.State == swap.PreflightInvalid {
		return fmt.Errorf("swap blocked: %s", pf.Reason)
	}

	bounds, err := swap.SlippageAdjustedAmounts(trade, cfg.SlippageBips)
	if err != nil {
		return err
	}
	switch trade.Type {
	case model.ExactInput:
		fmt.Printf("Swapping %s %s for at least %s %s\n",
			trade.InputAmount.FormatSignificant(6), trade.InputAmount.Currency.Symbol,
			bounds.MinOutput.FormatSignificant(6), bounds.MinOutput.Currency.Symbol)
	case model.ExactOutput:
		fmt.Printf("Swapping at most %s %s for %s %s\n",
			bounds.MaxInput.FormatSignificant(6), bounds.MaxInput.Currency.Symbol,
			trade.OutputAmount.FormatSignificant(6), trade.OutputAmount.Currency.Symbol)
	}

	hash, err := orch.Swap(ctx, params)
	if err != nil {
		return err
	}
	fmt.Printf("swap submitted: %s\n", hash.Hex())

	if !cfg.Wait {
		return nil
	}
	if err := waitFinalized(ctx, cfg.WaitTimeout, cfg.PollInterval, w, memory, hash); err != nil {
		return err
	}
	return reportOutcome(memory, hash, trade)
}

// buildWallet picks the signing backend: a local key when one is given, the
// node-managed account otherwise.
func buildWallet(p *pipeline, cfg config.SwapConfig) (chain.Wallet, error) {
	switch {
	case cfg.PrivateKey != "":
		return chain.NewKeyWallet(p.client, strings.TrimPrefix(cfg.PrivateKey, "0x"), p.chainID)
	case cfg.Account != "":
		if !common.IsHexAddress(cfg.Account) {
			return nil, fmt.Errorf("account %q is not an address", cfg.Account)
		}
		return chain.NewNodeWallet(p.client, common.HexToAddress(cfg.Account), p.chainID, cfg.TypedData)
	default:
		return nil, fmt.Errorf("an account or a private key is required")
	}
}

// waitFinalized sweeps receipts until the record for hash leaves pending or
// the timeout passes. A timed-out transaction stays pending in the log; a
// serve daemon sharing the Postgres store finalizes it later.
func waitFinalized(ctx context.Context, timeout, interval time.Duration, w *watcher.Watcher, log *storage.MemoryLog, hash common.Hash) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := w.Sweep(waitCtx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if rec, ok := findRecord(log, hash); ok && rec.Status != storage.StatusPending {
			return nil
		}
		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("no receipt for %s after %s, the record stays pending in the transaction log", hash.Hex(), timeout)
		case <-ticker.C:
		}
	}
}

func findRecord(log *storage.MemoryLog, hash common.Hash) (storage.Record, bool) {
	for _, rec := range log.All() {
		if rec.Hash == hash {
			return rec, true
		}
	}
	return storage.Record{}, false
}

// reportOutcome prints the finalized record. trade supplies the currencies
// for realized amounts and may be nil for approvals and conversions.
func reportOutcome(log *storage.MemoryLog, hash common.Hash, trade *model.Trade) error {
	rec, ok := findRecord(log, hash)
	if !ok {
		return fmt.Errorf("record for %s disappeared from the log", hash.Hex())
	}
	switch rec.Status {
	case storage.StatusConfirmed:
		fmt.Printf("%s confirmed in block %d, gas used %d\n", rec.Kind, rec.BlockNumber, rec.GasUsed)
	case storage.StatusFailed:
		return fmt.Errorf("%s reverted in block %d", rec.Kind, rec.BlockNumber)
	default:
		return fmt.Errorf("record for %s is still %s", hash.Hex(), rec.Status)
	}

	if trade == nil || rec.RealizedInputRaw == "" || rec.RealizedOutputRaw == "" {
		return nil
	}
	in, okIn := new(big.Int).SetString(rec.RealizedInputRaw, 10)
	out, okOut := new(big.Int).SetString(rec.RealizedOutputRaw, 10)
	if !okIn || !okOut {
		return nil
	}
	inAmt, errIn := model.NewTokenAmount(trade.InputAmount.Currency, in)
	outAmt, errOut := model.NewTokenAmount(trade.OutputAmount.Currency, out)
	if errIn != nil || errOut != nil {
		return nil
	}
	fmt.Printf("realized %s %s for %s %s\n",
		inAmt.FormatSignificant(6), inAmt.Currency.Symbol,
		outAmt.FormatSignificant(6), outAmt.Currency.Symbol)
	return nil
}
