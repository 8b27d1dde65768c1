// Package watcher finalizes submitted transactions. It polls receipts for
// pending records, marks them confirmed or failed, and attaches the
// realized amounts decoded from the receipt's swap events.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"swapScope/internal/chain"
	"swapScope/internal/dex"
	"swapScope/internal/metrics"
	"swapScope/internal/storage"
)

// ReceiptReader reads transaction receipts. *chain.Client implements it.
type ReceiptReader interface {
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// Config holds runtime settings for the watcher.
type Config struct {
	PollInterval time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

// Watcher resolves pending transaction records against the chain.
type Watcher struct {
	cfg    Config
	store  storage.PendingStore
	client ReceiptReader
	logger *zap.Logger
}

// NewWatcher builds a watcher over a pending store.
func NewWatcher(cfg Config, store storage.PendingStore, client ReceiptReader, logger *zap.Logger) (*Watcher, error) {
	if store == nil {
		return nil, fmt.Errorf("store is nil")
	}
	if client == nil {
		return nil, fmt.Errorf("receipt reader is nil")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{cfg: cfg, store: store, client: client, logger: logger}, nil
}

// Run sweeps the pending records at a fixed interval until the context
// ends.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	w.logger.Info("transaction watcher started", zap.Duration("interval", w.cfg.PollInterval))
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("transaction watcher stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := w.Sweep(ctx); err != nil {
				if ctx.Err() != nil {
					w.logger.Info("transaction watcher stopped")
					return ctx.Err()
				}
				w.logger.Warn("sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep resolves every pending record once. A record whose receipt is not
// available yet stays pending for the next sweep.
func (w *Watcher) Sweep(ctx context.Context) error {
	pending, err := w.store.Pending(ctx)
	if err != nil {
		return fmt.Errorf("list pending records: %w", err)
	}
	metrics.PendingTransactions.Set(float64(len(pending)))

	for _, rec := range pending {
		finalized, err := w.finalize(ctx, rec)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Warn("record not finalized",
				zap.String("id", rec.ID), zap.Stringer("hash", rec.Hash), zap.Error(err))
			continue
		}
		if finalized {
			metrics.PendingTransactions.Dec()
		}
	}
	return nil
}

// finalize fetches the receipt for one record and applies it. The first
// return reports whether the record reached a final status.
func (w *Watcher) finalize(ctx context.Context, rec storage.Record) (bool, error) {
	var receipt *types.Receipt
	err := chain.WithRetry(ctx, w.cfg.MaxRetries, w.cfg.RetryBackoff, func(ctx context.Context) error {
		found, err := w.client.TransactionReceipt(ctx, rec.Hash)
		if errors.Is(err, ethereum.NotFound) {
			// not mined yet, the next sweep will look again
			return nil
		}
		if err != nil {
			return err
		}
		receipt = found
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("fetch receipt: %w", err)
	}
	if receipt == nil {
		return false, nil
	}

	update := rec
	update.FinalizedAt = time.Now().UTC()
	update.GasUsed = receipt.GasUsed
	if receipt.BlockNumber != nil {
		update.BlockNumber = receipt.BlockNumber.Uint64()
	}
	if receipt.Status == types.ReceiptStatusSuccessful {
		update.Status = storage.StatusConfirmed
		if rec.Kind == storage.KindSwap {
			w.attachRealized(&update, receipt.Logs)
		}
	} else {
		update.Status = storage.StatusFailed
	}

	if err := w.store.Update(ctx, update); err != nil {
		return false, fmt.Errorf("update record: %w", err)
	}
	metrics.WatchedConfirmations.WithLabelValues(string(update.Status)).Inc()
	w.logger.Info("transaction finalized",
		zap.Stringer("hash", rec.Hash),
		zap.String("status", string(update.Status)),
		zap.Uint64("block", update.BlockNumber),
		zap.Uint64("gas_used", update.GasUsed))
	return true, nil
}

// attachRealized fills the realized amounts from the first and last swap
// events of the route. A receipt whose events do not decode keeps the
// quoted amounts only.
func (w *Watcher) attachRealized(rec *storage.Record, logs []*types.Log) {
	events, err := dex.DecodeSwapEvents(logs)
	if err != nil {
		w.logger.Warn("swap events not decoded", zap.Stringer("hash", rec.Hash), zap.Error(err))
		return
	}
	if len(events) == 0 {
		return
	}

	first := events[0]
	last := events[len(events)-1]
	if first.AmountIn != nil && first.AmountIn.Sign() > 0 {
		rec.RealizedInputRaw = first.AmountIn.String()
	}
	if last.AmountOut != nil && last.AmountOut.Sign() > 0 {
		rec.RealizedOutputRaw = last.AmountOut.String()
	}
}
