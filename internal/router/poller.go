package router

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TradeDeriver produces a trade result for a request. *Engine implements
// it.
type TradeDeriver interface {
	BestTrade(ctx context.Context, req QuoteRequest) (TradeResult, error)
}

// Poller keeps one trade derivation fresh. Every input change and every
// poll tick starts a new derivation under a bumped generation number and
// cancels the previous one; a completion only commits if its generation is
// still current, so a slow stale derivation can never overwrite a fresher
// result. Last input wins, not last response.
type Poller struct {
	deriver  TradeDeriver
	interval time.Duration
	logger   *zap.Logger

	mu        sync.Mutex
	base      context.Context
	gen       uint64
	cancel    context.CancelFunc
	req       QuoteRequest
	hasReq    bool
	result    TradeResult
	resultGen uint64
}

// NewPoller wires a derivation poller around a deriver.
func NewPoller(deriver TradeDeriver, interval time.Duration, logger *zap.Logger) (*Poller, error) {
	if deriver == nil {
		return nil, fmt.Errorf("deriver is nil")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		deriver:  deriver,
		interval: interval,
		logger:   logger,
		base:     context.Background(),
	}, nil
}

// Update supersedes the current input set and starts deriving for it.
func (p *Poller) Update(req QuoteRequest) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.req = req
	p.hasReq = true
	p.startLocked()
}

// startLocked bumps the generation, cancels the in-flight derivation, and
// launches a new one. Callers hold p.mu.
func (p *Poller) startLocked() {
	p.gen++
	gen := p.gen
	if p.cancel != nil {
		p.cancel()
	}
	ctx, cancel := context.WithCancel(p.base)
	p.cancel = cancel
	req := p.req

	go func() {
		defer cancel()
		result, err := p.deriver.BestTrade(ctx, req)

		p.mu.Lock()
		defer p.mu.Unlock()
		if gen != p.gen {
			p.logger.Debug("discarding superseded derivation", zap.Uint64("generation", gen))
			return
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("trade derivation failed", zap.Uint64("generation", gen), zap.Error(err))
			result = TradeResult{Status: TradeNoRoute}
		}
		p.result = result
		p.resultGen = gen
	}()
}

// Result snapshots the current derivation state. While a newer input's
// derivation is still in flight the result is TradePending rather than the
// superseded value.
func (p *Poller) Result() TradeResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.hasReq {
		return invalidResult("no request submitted")
	}
	if p.resultGen != p.gen {
		return TradeResult{Status: TradePending}
	}
	return p.result
}

// Run re-derives the current input at a fixed interval until the context
// ends, so quotes track the chain even while the inputs sit still.
func (p *Poller) Run(ctx context.Context) error {
	p.mu.Lock()
	p.base = ctx
	p.mu.Unlock()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("quote poller started", zap.Duration("interval", p.interval))
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("quote poller stopped")
			return ctx.Err()
		case <-ticker.C:
			p.mu.Lock()
			if p.hasReq {
				p.startLocked()
			}
			p.mu.Unlock()
		}
	}
}
