package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"swapScope/internal/api"
	"swapScope/internal/config"
	"swapScope/internal/router"
	"swapScope/internal/storage"
	"swapScope/internal/storage/postgres"
	"swapScope/internal/watcher"
)

func runServe(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadServe(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	armed := 0
	for _, v := range []string{cfg.WatchInput, cfg.WatchOutput, cfg.WatchAmount} {
		if v != "" {
			armed++
		}
	}
	if armed != 0 && armed != 3 {
		return fmt.Errorf("watch-input, watch-output, and watch-amount go together")
	}

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

	server, err := api.NewServer(api.Config{
		ListenAddr:   cfg.ListenAddr,
		SlippageBips: cfg.SlippageBips,
		DeadlineTTL:  cfg.DeadlineTTL,
		Contracts:    p.contracts,
		Tokens:       p.tokens,
	}, p.engine, p.client, p.client, logger)
	if err != nil {
		return err
	}

	// without Postgres the watcher idles over an empty in-process log;
	// with it, it finalizes what swap commands writing the same DSN left
	// pending
	var store storage.PendingStore = storage.NewMemoryLog()
	if cfg.PgDSN != "" {
		pg, err := postgres.NewStore(ctx, cfg.PgDSN)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		defer pg.Close()
		if err := pg.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
		store = pg
	}
	w, err := watcher.NewWatcher(watcher.Config{
		PollInterval: cfg.WatchInterval,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, store, p.client, logger)
	if err != nil {
		return err
	}

	logger.Info("serve start",
		zap.Uint64("chain_id", p.chainID),
		zap.String("listen", cfg.ListenAddr),
		zap.String("quoter", cfg.Quoter),
		zap.String("router_api", cfg.RouterAPI),
		zap.Bool("postgres", cfg.PgDSN != ""),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Run(gctx) })
	g.Go(func() error { return w.Run(gctx) })

	if armed == 3 {
		poller, err := standingQuote(gctx, p, cfg, logger)
		if err != nil {
			return err
		}
		g.Go(func() error { return poller.Run(gctx) })
		g.Go(func() error { return logStandingQuote(gctx, poller, cfg.PollInterval, logger) })
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// standingQuote arms a poller with the configured pair so the daemon keeps
// one derivation fresh on its own.
func standingQuote(ctx context.Context, p *pipeline, cfg config.ServeConfig, logger *zap.Logger) (*router.Poller, error) {
	input, err := p.parseCurrency(ctx, cfg.WatchInput, logger)
	if err != nil {
		return nil, err
	}
	output, err := p.parseCurrency(ctx, cfg.WatchOutput, logger)
	if err != nil {
		return nil, err
	}
	raw, err := parseRawAmount(cfg.WatchAmount)
	if err != nil {
		return nil, err
	}
	mode, err := parseSwapMode(cfg.WatchMode)
	if err != nil {
		return nil, err
	}
	req, err := quoteRequest(input, output, raw, mode)
	if err != nil {
		return nil, err
	}

	poller, err := router.NewPoller(p.engine, cfg.PollInterval, logger)
	if err != nil {
		return nil, err
	}
	poller.Update(req)
	return poller, nil
}

// logStandingQuote surfaces the poller's derivations, logging only when the
// answer changes. In-flight re-derivations stay quiet.
func logStandingQuote(ctx context.Context, poller *router.Poller, interval time.Duration, logger *zap.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last string
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			result := poller.Result()
			if result.Status == router.TradePending {
				continue
			}
			key := standingKey(result)
			if key == last {
				continue
			}
			last = key

			fields := []zap.Field{zap.Stringer("status", result.Status)}
			if result.Reason != "" {
				fields = append(fields, zap.String("reason", result.Reason))
			}
			if result.Trade != nil {
				fields = append(fields,
					zap.String("in", result.Trade.InputAmount.String()),
					zap.String("out", result.Trade.OutputAmount.String()),
					zap.String("price", result.Trade.ExecutionPrice.FormatSignificant(6)),
					zap.Uint64("quote_block", result.Trade.QuoteBlock),
				)
			}
			logger.Info("standing quote", fields...)
		}
	}
}

func standingKey(result router.TradeResult) string {
	if result.Trade == nil {
		return fmt.Sprintf("%s|%s", result.Status, result.Reason)
	}
	return fmt.Sprintf("%s|%s|%s", result.Status,
		result.Trade.InputAmount.Raw, result.Trade.OutputAmount.Raw)
}
