package router

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"swapScope/internal/metrics"
	"swapScope/internal/model"
)

// quoteConcurrency bounds in-flight quote calls per derivation.
const quoteConcurrency = 8

// TradeStatus classifies the outcome of one trade derivation.
type TradeStatus int

const (
	// TradeInvalid means the request is incomplete or inconsistent.
	TradeInvalid TradeStatus = iota + 1
	// TradePending means a derivation for the current input is in flight.
	TradePending
	// TradeNoRoute means no route produced a usable quote. An expected
	// business state, not a fault.
	TradeNoRoute
	// TradeReady means Trade holds the best quote found.
	TradeReady
)

func (s TradeStatus) String() string {
	switch s {
	case TradeInvalid:
		return "invalid"
	case TradePending:
		return "pending"
	case TradeNoRoute:
		return "no_route"
	case TradeReady:
		return "ready"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// QuoteRequest is one trade-derivation input set. Nil fields mean the user
// has not chosen them yet.
type QuoteRequest struct {
	Input  *model.Currency
	Output *model.Currency
	Amount *model.TokenAmount
	Type   model.TradeType
}

// TradeResult is the sum of derivation outcomes. Reason is set for
// TradeInvalid, Trade for TradeReady. GasEstimateUSD is nonzero only when a
// remote quote supplied it.
type TradeResult struct {
	Status         TradeStatus
	Reason         string
	Trade          *model.Trade
	GasEstimateUSD decimal.Decimal
}

func invalidResult(reason string) TradeResult {
	return TradeResult{Status: TradeInvalid, Reason: reason}
}

// PoolProvider supplies candidate pool snapshots for a currency pair.
type PoolProvider interface {
	Pools(ctx context.Context, input, output model.Currency) ([]*model.Pool, error)
}

// RemoteSource is the optional off-chain routing service.
type RemoteSource interface {
	BestQuote(ctx context.Context, input, output model.Currency, amount model.TokenAmount, tradeType model.TradeType) (*RemoteQuote, error)
}

// Engine derives the best available trade for a request: remote routing
// first when configured, local discovery plus the route quoter otherwise or
// as fallback.
type Engine struct {
	provider PoolProvider
	quoter   Quoter
	remote   RemoteSource
	maxHops  int
	logger   *zap.Logger
}

// NewEngine wires a derivation engine. remote may be nil to disable the
// routing service.
func NewEngine(provider PoolProvider, quoter Quoter, remote RemoteSource, maxHops int, logger *zap.Logger) (*Engine, error) {
	if provider == nil {
		return nil, fmt.Errorf("pool provider is nil")
	}
	if quoter == nil {
		return nil, fmt.Errorf("quoter is nil")
	}
	if maxHops < 1 {
		return nil, fmt.Errorf("max hops must be at least 1")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{provider: provider, quoter: quoter, remote: remote, maxHops: maxHops, logger: logger}, nil
}

// BestTrade derives the best trade for the request. Incomplete requests and
// routeless pairs come back as statuses, not errors; errors are reserved
// for transport and programming faults.
func (e *Engine) BestTrade(ctx context.Context, req QuoteRequest) (TradeResult, error) {
	switch {
	case req.Input == nil:
		return invalidResult("input currency not selected"), nil
	case req.Output == nil:
		return invalidResult("output currency not selected"), nil
	case req.Amount == nil || req.Amount.Raw == nil || req.Amount.IsZero():
		return invalidResult("amount not entered"), nil
	case req.Type != model.ExactInput && req.Type != model.ExactOutput:
		return invalidResult("trade type not set"), nil
	case req.Input.ChainID != req.Output.ChainID:
		return invalidResult("currencies on different chains"), nil
	case req.Input.Wrapped().Equal(req.Output.Wrapped()):
		return invalidResult("input and output are the same token"), nil
	}

	if e.remote != nil {
		start := time.Now()
		result, err := e.remoteTrade(ctx, req)
		if err == nil {
			return observeQuote("remote", start, result), nil
		}
		if ctx.Err() != nil {
			return TradeResult{}, ctx.Err()
		}
		e.logger.Warn("remote routing unavailable, falling back to local discovery", zap.Error(err))
	}
	start := time.Now()
	result, err := e.localTrade(ctx, req)
	if err != nil {
		return result, err
	}
	return observeQuote("local", start, result), nil
}

// observeQuote records the outcome of one derivation against the source that
// produced it. Invalid requests never reach a source and stay uncounted.
func observeQuote(source string, start time.Time, result TradeResult) TradeResult {
	metrics.QuoteDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
	metrics.QuoteRequests.WithLabelValues(source, result.Status.String()).Inc()
	return result
}

func (e *Engine) remoteTrade(ctx context.Context, req QuoteRequest) (TradeResult, error) {
	quote, err := e.remote.BestQuote(ctx, *req.Input, *req.Output, *req.Amount, req.Type)
	if err != nil {
		return TradeResult{}, err
	}
	if err := matchesRequest(quote.Trade, req); err != nil {
		return TradeResult{}, err
	}
	return TradeResult{Status: TradeReady, Trade: quote.Trade, GasEstimateUSD: quote.GasEstimateUSD}, nil
}

func (e *Engine) localTrade(ctx context.Context, req QuoteRequest) (TradeResult, error) {
	pools, err := e.provider.Pools(ctx, *req.Input, *req.Output)
	if err != nil {
		return TradeResult{}, fmt.Errorf("fetch pools: %w", err)
	}
	routes, err := ComputeAllRoutes(pools, *req.Input, *req.Output, e.maxHops)
	if err != nil {
		return TradeResult{}, err
	}
	if len(routes) == 0 {
		return TradeResult{Status: TradeNoRoute}, nil
	}

	// Quotes fan out concurrently; the results slice keeps route order so
	// ranking stays stable across runs.
	trades := make([]*model.Trade, len(routes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(quoteConcurrency)
	for i, route := range routes {
		g.Go(func() error {
			trade, err := e.quoteRoute(gctx, route, req)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				if errors.Is(err, ErrInsufficientLiquidity) {
					e.logger.Debug("route cannot serve amount",
						zap.Int("hops", len(route.Pools)), zap.Error(err))
				} else {
					e.logger.Warn("route quote failed",
						zap.Int("hops", len(route.Pools)), zap.Error(err))
				}
				return nil
			}
			trades[i] = trade
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return TradeResult{}, err
	}

	var best *model.Trade
	for _, trade := range trades {
		if trade == nil {
			continue
		}
		better, ok, err := IsTradeBetter(trade, best, model.FractionFromInt(0))
		if err != nil {
			return TradeResult{}, err
		}
		if ok && better {
			best = trade
		}
	}
	if best == nil {
		return TradeResult{Status: TradeNoRoute}, nil
	}
	e.logger.Debug("best trade selected",
		zap.Stringer("type", req.Type),
		zap.Int("candidates", len(routes)),
		zap.Int("hops", len(best.Route.Pools)),
		zap.String("in", best.InputAmount.String()),
		zap.String("out", best.OutputAmount.String()))
	return TradeResult{Status: TradeReady, Trade: best}, nil
}

func (e *Engine) quoteRoute(ctx context.Context, route *model.Route, req QuoteRequest) (*model.Trade, error) {
	quoted, err := e.quoter.Quote(ctx, route, *req.Amount, req.Type)
	if err != nil {
		return nil, err
	}
	var trade *model.Trade
	if req.Type == model.ExactInput {
		trade, err = model.NewTrade(route, req.Type, *req.Amount, quoted)
	} else {
		trade, err = model.NewTrade(route, req.Type, quoted, *req.Amount)
	}
	if err != nil {
		return nil, err
	}
	if err := matchesRequest(trade, req); err != nil {
		return nil, err
	}
	return trade, nil
}

// matchesRequest rejects any trade whose endpoints drifted from the request
// that asked for it, so a stale async result can never be presented for a
// newer input set.
func matchesRequest(trade *model.Trade, req QuoteRequest) error {
	if trade == nil {
		return fmt.Errorf("trade is nil")
	}
	if !trade.InputAmount.Currency.Equal(*req.Input) || !trade.OutputAmount.Currency.Equal(*req.Output) {
		return fmt.Errorf("trade endpoints %s/%s do not match requested %s/%s",
			trade.InputAmount.Currency, trade.OutputAmount.Currency, req.Input, req.Output)
	}
	if trade.Type != req.Type {
		return fmt.Errorf("trade type %s does not match requested %s", trade.Type, req.Type)
	}
	return nil
}
