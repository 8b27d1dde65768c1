package router

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"swapScope/internal/metrics"
	"swapScope/internal/model"
)

// ErrStaleQuote marks a remote response whose block height lags too far
// behind the chain head to act on.
var ErrStaleQuote = errors.New("remote quote is stale")

// BlockSource supplies the latest known block height for staleness checks.
type BlockSource interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
}

// RemoteQuote is a priced trade from the routing service, with the metadata
// the service attaches to it.
type RemoteQuote struct {
	Trade          *model.Trade
	BlockNumber    uint64
	GasEstimateUSD decimal.Decimal
}

// RemoteConfig wires a RemoteClient.
type RemoteConfig struct {
	BaseURL string
	// MaxBlockAge is how many blocks behind the head a response may be
	// before it is discarded.
	MaxBlockAge uint64
	Timeout     time.Duration
}

// RemoteClient asks an off-chain routing service for the best trade. The
// service searches routes the local graph cannot see, so when it answers
// and the answer is fresh, its trade wins outright. Failures trip a circuit
// breaker so a down service does not add latency to every derivation.
type RemoteClient struct {
	httpClient *http.Client
	baseURL    string
	breaker    *gobreaker.CircuitBreaker
	blocks     BlockSource
	maxAge     uint64
	logger     *zap.Logger
}

// NewRemoteClient builds a client against the routing service.
func NewRemoteClient(cfg RemoteConfig, blocks BlockSource, logger *zap.Logger) (*RemoteClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("remote quoter base URL is empty")
	}
	if blocks == nil {
		return nil, fmt.Errorf("block source is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	maxAge := cfg.MaxBlockAge
	if maxAge == 0 {
		maxAge = 10
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "remote-quoter",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("remote quoter breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return &RemoteClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		breaker:    breaker,
		blocks:     blocks,
		maxAge:     maxAge,
		logger:     logger,
	}, nil
}

type remoteToken struct {
	Address  string `json:"address"`
	ChainID  uint64 `json:"chainId"`
	Decimals uint8  `json:"decimals"`
	Symbol   string `json:"symbol"`
}

type remoteRequest struct {
	InputAmountRaw      string      `json:"inputAmountRaw"`
	TokenIn             remoteToken `json:"tokenIn"`
	TokenOut            remoteToken `json:"tokenOut"`
	SwapDirection       string      `json:"swapDirection"`
	UseClientSideRouter bool        `json:"useClientSideRouter"`
}

type remotePool struct {
	Kind         string      `json:"kind"`
	Address      string      `json:"address"`
	Token0       remoteToken `json:"token0"`
	Token1       remoteToken `json:"token1"`
	Fee          uint32      `json:"fee"`
	Reserve0     string      `json:"reserve0,omitempty"`
	Reserve1     string      `json:"reserve1,omitempty"`
	SqrtRatioX96 string      `json:"sqrtRatioX96,omitempty"`
	Liquidity    string      `json:"liquidity,omitempty"`
	TickCurrent  int32       `json:"tickCurrent,omitempty"`
	TickSpacing  int32       `json:"tickSpacing,omitempty"`
}

type remoteResponse struct {
	QuoteAmountRaw    string       `json:"quoteAmountRaw"`
	BlockNumber       uint64       `json:"blockNumber"`
	GasUseEstimateUSD string       `json:"gasUseEstimateUSD"`
	SerializedRoute   []remotePool `json:"serializedRoute"`
}

// BestQuote requests a routed quote for the pair and rebuilds the service's
// route from the pool state it serialized alongside the amounts.
func (c *RemoteClient) BestQuote(ctx context.Context, input, output model.Currency, amount model.TokenAmount, tradeType model.TradeType) (*RemoteQuote, error) {
	direction := "exactIn"
	if tradeType == model.ExactOutput {
		direction = "exactOut"
	} else if tradeType != model.ExactInput {
		return nil, fmt.Errorf("unknown trade type %d", tradeType)
	}

	reqBody := remoteRequest{
		InputAmountRaw:      amount.Raw.String(),
		TokenIn:             encodeRemoteToken(input),
		TokenOut:            encodeRemoteToken(output),
		SwapDirection:       direction,
		UseClientSideRouter: false,
	}
	payload, err := sonic.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("encode quote request: %w", err)
	}

	raw, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/quote", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("routing service returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
		}
		return body, nil
	})
	if err != nil {
		return nil, fmt.Errorf("remote quote: %w", err)
	}

	var decoded remoteResponse
	if err := sonic.Unmarshal(raw.([]byte), &decoded); err != nil {
		return nil, fmt.Errorf("decode quote response: %w", err)
	}

	latest, err := c.blocks.LatestBlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("staleness check: %w", err)
	}
	if latest > decoded.BlockNumber && latest-decoded.BlockNumber > c.maxAge {
		metrics.StaleQuotesDiscarded.Inc()
		return nil, fmt.Errorf("response at block %d, head at %d: %w", decoded.BlockNumber, latest, ErrStaleQuote)
	}

	return c.buildQuote(input, output, amount, tradeType, decoded)
}

func (c *RemoteClient) buildQuote(input, output model.Currency, amount model.TokenAmount, tradeType model.TradeType, decoded remoteResponse) (*RemoteQuote, error) {
	quoted, ok := new(big.Int).SetString(decoded.QuoteAmountRaw, 10)
	if !ok {
		return nil, fmt.Errorf("quote amount %q is not an integer", decoded.QuoteAmountRaw)
	}

	pools := make([]*model.Pool, 0, len(decoded.SerializedRoute))
	for i, rp := range decoded.SerializedRoute {
		pool, err := decodeRemotePool(rp, decoded.BlockNumber)
		if err != nil {
			return nil, fmt.Errorf("route hop %d: %w", i, err)
		}
		pools = append(pools, pool)
	}
	route, err := model.NewRoute(pools, input, output)
	if err != nil {
		return nil, fmt.Errorf("rebuild remote route: %w", err)
	}

	var inputAmount, outputAmount model.TokenAmount
	if tradeType == model.ExactInput {
		inputAmount = amount
		outputAmount, err = model.NewTokenAmount(output, quoted)
	} else {
		outputAmount = amount
		inputAmount, err = model.NewTokenAmount(input, quoted)
	}
	if err != nil {
		return nil, err
	}
	trade, err := model.NewTrade(route, tradeType, inputAmount, outputAmount)
	if err != nil {
		return nil, err
	}
	trade.QuoteBlock = decoded.BlockNumber

	gasUSD := decimal.Zero
	if decoded.GasUseEstimateUSD != "" {
		gasUSD, err = decimal.NewFromString(decoded.GasUseEstimateUSD)
		if err != nil {
			return nil, fmt.Errorf("gas estimate %q: %w", decoded.GasUseEstimateUSD, err)
		}
	}

	c.logger.Debug("remote quote accepted",
		zap.Uint64("block", decoded.BlockNumber),
		zap.String("quoted", quoted.String()),
		zap.Int("hops", len(pools)))
	return &RemoteQuote{Trade: trade, BlockNumber: decoded.BlockNumber, GasEstimateUSD: gasUSD}, nil
}

func encodeRemoteToken(c model.Currency) remoteToken {
	w := c.Wrapped()
	return remoteToken{
		Address:  w.Address.Hex(),
		ChainID:  w.ChainID,
		Decimals: w.Decimals,
		Symbol:   w.Symbol,
	}
}

func decodeRemotePool(rp remotePool, block uint64) (*model.Pool, error) {
	pool := &model.Pool{
		Address:     common.HexToAddress(rp.Address),
		Token0:      model.NewToken(rp.Token0.ChainID, common.HexToAddress(rp.Token0.Address), rp.Token0.Decimals, rp.Token0.Symbol, ""),
		Token1:      model.NewToken(rp.Token1.ChainID, common.HexToAddress(rp.Token1.Address), rp.Token1.Decimals, rp.Token1.Symbol, ""),
		Fee:         rp.Fee,
		BlockNumber: block,
	}
	switch rp.Kind {
	case model.PoolKindV2.String():
		pool.Kind = model.PoolKindV2
		var err error
		if pool.Reserve0, err = parseRawAmount(rp.Reserve0, "reserve0"); err != nil {
			return nil, err
		}
		if pool.Reserve1, err = parseRawAmount(rp.Reserve1, "reserve1"); err != nil {
			return nil, err
		}
	case model.PoolKindV3.String():
		pool.Kind = model.PoolKindV3
		var err error
		if pool.SqrtPriceX96, err = parseRawAmount(rp.SqrtRatioX96, "sqrtRatioX96"); err != nil {
			return nil, err
		}
		if pool.Liquidity, err = parseRawAmount(rp.Liquidity, "liquidity"); err != nil {
			return nil, err
		}
		pool.Tick = rp.TickCurrent
		pool.TickSpacing = rp.TickSpacing
	default:
		return nil, fmt.Errorf("unknown pool kind %q", rp.Kind)
	}
	if err := pool.Validate(); err != nil {
		return nil, err
	}
	return pool, nil
}

func parseRawAmount(s, field string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("%s %q is not an integer", field, s)
	}
	return v, nil
}
