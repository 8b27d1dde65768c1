package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"swapScope/internal/config"
	"swapScope/internal/model"
	"swapScope/internal/router"
	"swapScope/internal/swap"
)

func runQuote(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadQuote(cfgFile, cmd.Flags())
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

	if kind := swap.DetectWrap(input, output, p.contracts); kind != swap.WrapNone {
		amount, err := model.NewTokenAmount(input, raw)
		if err != nil {
			return err
		}
		verb := "Wrap"
		if kind == swap.WrapWithdraw {
			verb = "Unwrap"
		}
		fmt.Printf("%s %s %s into %s, conversions settle 1:1\n",
			verb, amount.FormatSignificant(6), input.Symbol, output.Symbol)
		return nil
	}

	req, err := quoteRequest(input, output, raw, mode)
	if err != nil {
		return err
	}

	logger.Info("quote start",
		zap.Uint64("chain_id", p.chainID),
		zap.String("input", input.Symbol),
		zap.String("output", output.Symbol),
		zap.Stringer("type", mode),
		zap.Int("max_hops", cfg.MaxHops),
	)

	result, err := p.engine.BestTrade(ctx, req)
	if err != nil {
		return fmt.Errorf("derive trade: %w", err)
	}
	switch result.Status {
	case router.TradeInvalid:
		return fmt.Errorf("quote rejected: %s", result.Reason)
	case router.TradeNoRoute:
		return fmt.Errorf("no route between %s and %s", input.Symbol, output.Symbol)
	case router.TradeReady:
	default:
		return fmt.Errorf("unexpected derivation status %s", result.Status)
	}

	return printTrade(result, cfg.SlippageBips)
}

// printTrade renders a ready derivation for a terminal.
func printTrade(result router.TradeResult, slippageBips uint64) error {
	trade := result.Trade
	bounds, err := swap.SlippageAdjustedAmounts(trade, slippageBips)
	if err != nil {
		return err
	}
	breakdown, err := swap.PriceBreakdown(trade)
	if err != nil {
		return err
	}

	fmt.Printf("Swap %s %s for %s %s\n",
		trade.InputAmount.FormatSignificant(6), trade.InputAmount.Currency.Symbol,
		trade.OutputAmount.FormatSignificant(6), trade.OutputAmount.Currency.Symbol)
	fmt.Printf("  execution price   1 %s = %s %s\n",
		trade.InputAmount.Currency.Symbol,
		trade.ExecutionPrice.FormatSignificant(6),
		trade.OutputAmount.Currency.Symbol)
	fmt.Printf("  price impact      %s%% (%s%% excluding fees, severity %d)\n",
		trade.PriceImpact.PercentString(2),
		breakdown.ImpactExcludingFee.PercentString(2),
		swap.WarningSeverity(&breakdown.ImpactExcludingFee))
	fmt.Printf("  lp fee            %s%% (%s %s)\n",
		breakdown.RealizedLPFee.PercentString(2),
		breakdown.RealizedLPFeeAmount.FormatSignificant(6),
		breakdown.RealizedLPFeeAmount.Currency.Symbol)
	fmt.Printf("  route             %s\n", describeRoute(trade.Route))
	switch trade.Type {
	case model.ExactInput:
		fmt.Printf("  minimum received  %s %s at %d bips\n",
			bounds.MinOutput.FormatSignificant(6), bounds.MinOutput.Currency.Symbol, slippageBips)
	case model.ExactOutput:
		fmt.Printf("  maximum spent     %s %s at %d bips\n",
			bounds.MaxInput.FormatSignificant(6), bounds.MaxInput.Currency.Symbol, slippageBips)
	}
	if trade.QuoteBlock != 0 {
		fmt.Printf("  quote block       %d\n", trade.QuoteBlock)
	}
	if !result.GasEstimateUSD.IsZero() {
		fmt.Printf("  gas estimate      $%s\n", result.GasEstimateUSD.StringFixed(2))
	}
	return nil
}

// describeRoute renders the hop chain, e.g. "WETH >(v2 0.30%) USDC".
func describeRoute(route *model.Route) string {
	var b strings.Builder
	b.WriteString(route.Path[0].Symbol)
	for i, pool := range route.Pools {
		fmt.Fprintf(&b, " >(%s %s%%) %s", pool.Kind, pool.FeeFraction().PercentString(2), route.Path[i+1].Symbol)
	}
	return b.String()
}
