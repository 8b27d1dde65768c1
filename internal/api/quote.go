package api

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"swapScope/internal/dex"
	"swapScope/internal/model"
	"swapScope/internal/router"
	"swapScope/internal/swap"
)

// quoteParams are the GET /quote query parameters. Tokens go by hex address;
// the native coin goes by its symbol, "native", or the zero address.
type quoteParams struct {
	InputToken   string `form:"inputToken" binding:"required"`
	OutputToken  string `form:"outputToken" binding:"required"`
	Amount       string `form:"amount" binding:"required"`
	SwapMode     string `form:"swapMode" binding:"required"`
	SlippageBips uint64 `form:"slippageBips"`
}

// HopInfo describes one pool along the winning route.
type HopInfo struct {
	Pool     string `json:"pool"`
	Kind     string `json:"kind"`
	FeeTier  uint32 `json:"feeTier"`
	TokenIn  string `json:"tokenIn"`
	TokenOut string `json:"tokenOut"`
}

// QuoteResponse reports one successful derivation. Amounts are raw base
// units; Percent fields are percent units with two decimal places. Status is
// "ready" for routed trades, "wrap" or "unwrap" for native conversions.
type QuoteResponse struct {
	Status                    string    `json:"status"`
	InputToken                string    `json:"inputToken"`
	OutputToken               string    `json:"outputToken"`
	AmountIn                  string    `json:"amountIn"`
	AmountOut                 string    `json:"amountOut"`
	MinAmountOut              string    `json:"minAmountOut,omitempty"`
	MaxAmountIn               string    `json:"maxAmountIn,omitempty"`
	ExecutionPrice            string    `json:"executionPrice,omitempty"`
	PriceImpactPercent        string    `json:"priceImpactPercent,omitempty"`
	ImpactExcludingFeePercent string    `json:"impactExcludingFeePercent,omitempty"`
	LPFeePercent              string    `json:"lpFeePercent,omitempty"`
	LPFeeAmount               string    `json:"lpFeeAmount,omitempty"`
	Severity                  int       `json:"severity"`
	Route                     []HopInfo `json:"route,omitempty"`
	Path                      []string  `json:"path,omitempty"`
	HopCount                  int       `json:"hopCount"`
	QuoteBlock                uint64    `json:"quoteBlock,omitempty"`
	GasEstimateUSD            string    `json:"gasEstimateUSD,omitempty"`
}

func (s *Server) getQuote(c *gin.Context) {
	var params quoteParams
	if err := c.ShouldBindQuery(&params); err != nil {
		badRequest(c, "invalid query parameters: "+err.Error())
		return
	}
	ctx := c.Request.Context()

	input, output, ok := s.parsePair(c, params.InputToken, params.OutputToken)
	if !ok {
		return
	}
	amount, ok := parseRawAmount(c, params.Amount)
	if !ok {
		return
	}
	tradeType, ok := parseSwapMode(c, params.SwapMode)
	if !ok {
		return
	}
	bips, ok := s.slippage(c, params.SlippageBips)
	if !ok {
		return
	}

	if kind := swap.DetectWrap(input, output, s.contracts); kind != swap.WrapNone {
		respond(c, conversionQuote(kind, input, output, amount))
		return
	}

	fixed := input
	if tradeType == model.ExactOutput {
		fixed = output
	}
	tokenAmount, err := model.NewTokenAmount(fixed, amount)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	result, err := s.deriver.BestTrade(ctx, router.QuoteRequest{
		Input:  &input,
		Output: &output,
		Amount: &tokenAmount,
		Type:   tradeType,
	})
	if err != nil {
		internalError(c, "derive trade: "+err.Error())
		return
	}

	switch result.Status {
	case router.TradeInvalid:
		badRequest(c, result.Reason)
	case router.TradeNoRoute:
		notFound(c, fmt.Sprintf("no route between %s and %s", input, output))
	case router.TradeReady:
		resp, err := quoteResponse(result, bips)
		if err != nil {
			internalError(c, err.Error())
			return
		}
		respond(c, resp)
	default:
		internalError(c, fmt.Sprintf("unexpected derivation status %s", result.Status))
	}
}

// quoteResponse flattens a ready trade into the wire shape. Severity grades
// the impact with the fee share taken back out, so a high-fee pool does not
// read as a moving market.
func quoteResponse(result router.TradeResult, bips uint64) (QuoteResponse, error) {
	trade := result.Trade
	bounds, err := swap.SlippageAdjustedAmounts(trade, bips)
	if err != nil {
		return QuoteResponse{}, err
	}
	breakdown, err := swap.PriceBreakdown(trade)
	if err != nil {
		return QuoteResponse{}, err
	}

	route := make([]HopInfo, 0, len(trade.Route.Pools))
	for i, pool := range trade.Route.Pools {
		route = append(route, HopInfo{
			Pool:     pool.Address.Hex(),
			Kind:     pool.Kind.String(),
			FeeTier:  pool.Fee,
			TokenIn:  trade.Route.Path[i].Address.Hex(),
			TokenOut: trade.Route.Path[i+1].Address.Hex(),
		})
	}
	path := make([]string, 0, len(trade.Route.Path))
	for _, hop := range trade.Route.Path {
		path = append(path, hop.Address.Hex())
	}

	resp := QuoteResponse{
		Status:                    result.Status.String(),
		InputToken:                currencyID(trade.InputAmount.Currency),
		OutputToken:               currencyID(trade.OutputAmount.Currency),
		AmountIn:                  trade.InputAmount.Raw.String(),
		AmountOut:                 trade.OutputAmount.Raw.String(),
		ExecutionPrice:            trade.ExecutionPrice.FormatSignificant(6),
		PriceImpactPercent:        trade.PriceImpact.PercentString(2),
		ImpactExcludingFeePercent: breakdown.ImpactExcludingFee.PercentString(2),
		LPFeePercent:              breakdown.RealizedLPFee.PercentString(2),
		LPFeeAmount:               breakdown.RealizedLPFeeAmount.Raw.String(),
		Severity:                  swap.WarningSeverity(&breakdown.ImpactExcludingFee),
		Route:                     route,
		Path:                      path,
		HopCount:                  len(trade.Route.Pools),
		QuoteBlock:                trade.QuoteBlock,
	}
	switch trade.Type {
	case model.ExactInput:
		resp.MinAmountOut = bounds.MinOutput.Raw.String()
	case model.ExactOutput:
		resp.MaxAmountIn = bounds.MaxInput.Raw.String()
	}
	if !result.GasEstimateUSD.IsZero() {
		resp.GasEstimateUSD = result.GasEstimateUSD.String()
	}
	return resp, nil
}

// conversionQuote is the 1:1 answer for native/wrapped pairs. Conversions
// touch no pools, so there is nothing to bound or break down.
func conversionQuote(kind swap.WrapKind, input, output model.Currency, amount *big.Int) QuoteResponse {
	return QuoteResponse{
		Status:         kind.String(),
		InputToken:     currencyID(input),
		OutputToken:    currencyID(output),
		AmountIn:       amount.String(),
		AmountOut:      amount.String(),
		ExecutionPrice: "1",
	}
}

// parsePair resolves both endpoints, answering the request itself on
// failure.
func (s *Server) parsePair(c *gin.Context, rawInput, rawOutput string) (input, output model.Currency, ok bool) {
	ctx := c.Request.Context()
	input, err := s.parseCurrency(ctx, rawInput)
	if err != nil {
		badRequest(c, "input token: "+err.Error())
		return model.Currency{}, model.Currency{}, false
	}
	output, err = s.parseCurrency(ctx, rawOutput)
	if err != nil {
		badRequest(c, "output token: "+err.Error())
		return model.Currency{}, model.Currency{}, false
	}
	return input, output, true
}

// parseCurrency turns a request token into a currency. The native coin goes
// by its symbol, "native", or the zero address; everything else must be a
// deployed ERC-20 the chain can describe.
func (s *Server) parseCurrency(ctx context.Context, raw string) (model.Currency, error) {
	if strings.EqualFold(raw, "native") || strings.EqualFold(raw, s.contracts.NativeSymbol) {
		return s.contracts.NativeCurrency()
	}
	if !common.IsHexAddress(raw) {
		return model.Currency{}, fmt.Errorf("%q is not a token address", raw)
	}
	addr := common.HexToAddress(raw)
	if addr == (common.Address{}) {
		return s.contracts.NativeCurrency()
	}
	currency, err := dex.ResolveCurrency(ctx, s.caller, s.contracts.ChainID, addr, s.tokens, s.logger)
	if err != nil {
		return model.Currency{}, fmt.Errorf("resolve %s: %w", addr.Hex(), err)
	}
	return currency, nil
}

func parseRawAmount(c *gin.Context, raw string) (*big.Int, bool) {
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok || amount.Sign() <= 0 {
		badRequest(c, "amount must be a positive integer in base units")
		return nil, false
	}
	return amount, true
}

func parseSwapMode(c *gin.Context, mode string) (model.TradeType, bool) {
	switch mode {
	case "ExactIn":
		return model.ExactInput, true
	case "ExactOut":
		return model.ExactOutput, true
	default:
		badRequest(c, "swapMode must be ExactIn or ExactOut")
		return 0, false
	}
}

func (s *Server) slippage(c *gin.Context, bips uint64) (uint64, bool) {
	if bips == 0 {
		bips = s.cfg.SlippageBips
	}
	if bips > 10000 {
		badRequest(c, "slippageBips exceeds 100%")
		return 0, false
	}
	return bips, true
}

// currencyID names a currency on the wire: symbol for the native coin, hex
// address for tokens.
func currencyID(c model.Currency) string {
	if c.Native {
		return c.Symbol
	}
	return c.Address.Hex()
}
