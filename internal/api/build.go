package api

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"

	"swapScope/internal/model"
	"swapScope/internal/router"
	"swapScope/internal/swap"
)

// buildParams is the POST /swap/build body. Recipient must be a hex address;
// name resolution stays client-side here.
type buildParams struct {
	InputToken   string `json:"inputToken" binding:"required"`
	OutputToken  string `json:"outputToken" binding:"required"`
	Amount       string `json:"amount" binding:"required"`
	SwapMode     string `json:"swapMode" binding:"required"`
	SlippageBips uint64 `json:"slippageBips"`
	Recipient    string `json:"recipient" binding:"required"`
}

// CallCandidate is one encoded router invocation. Data is the full calldata,
// hex encoded; Value is the native amount to attach in wei.
type CallCandidate struct {
	To     string `json:"to"`
	Data   string `json:"data"`
	Value  string `json:"value"`
	Method string `json:"method"`
}

// BuildResponse carries the candidate calls for a trade, cheapest first.
// Later candidates tolerate fee-on-transfer tokens. Nothing here is signed
// or submitted; callers estimate, pick, and broadcast themselves.
type BuildResponse struct {
	Kind         string          `json:"kind"`
	AmountIn     string          `json:"amountIn"`
	AmountOut    string          `json:"amountOut"`
	MinAmountOut string          `json:"minAmountOut,omitempty"`
	MaxAmountIn  string          `json:"maxAmountIn,omitempty"`
	Deadline     string          `json:"deadline,omitempty"`
	Path         []string        `json:"path,omitempty"`
	Calls        []CallCandidate `json:"calls"`
}

func (s *Server) buildSwap(c *gin.Context) {
	var params buildParams
	if err := c.ShouldBindJSON(&params); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
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
	if !common.IsHexAddress(params.Recipient) {
		badRequest(c, "recipient is not an address")
		return
	}
	recipient := common.HexToAddress(params.Recipient)
	if recipient == (common.Address{}) {
		badRequest(c, "recipient is the zero address")
		return
	}

	if kind := swap.DetectWrap(input, output, s.contracts); kind != swap.WrapNone {
		tokenAmount, err := model.NewTokenAmount(input, amount)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		call, err := swap.BuildWrapCall(kind, tokenAmount, s.contracts)
		if err != nil {
			internalError(c, "build conversion call: "+err.Error())
			return
		}
		respond(c, BuildResponse{
			Kind:      kind.String(),
			AmountIn:  amount.String(),
			AmountOut: amount.String(),
			Calls:     []CallCandidate{describeCall(call)},
		})
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
		return
	case router.TradeNoRoute:
		notFound(c, fmt.Sprintf("no route between %s and %s", input, output))
		return
	case router.TradeReady:
	default:
		internalError(c, fmt.Sprintf("unexpected derivation status %s", result.Status))
		return
	}
	trade := result.Trade

	deadline, err := swap.TransactionDeadline(ctx, s.head, s.cfg.DeadlineTTL)
	if err != nil {
		internalError(c, "derive deadline: "+err.Error())
		return
	}
	calls, err := swap.BuildSwapCalls(trade, swap.CallOptions{
		Contracts:    s.contracts,
		Recipient:    recipient,
		SlippageBips: bips,
		Deadline:     deadline,
	})
	if err != nil {
		internalError(c, "build swap calls: "+err.Error())
		return
	}
	bounds, err := swap.SlippageAdjustedAmounts(trade, bips)
	if err != nil {
		internalError(c, err.Error())
		return
	}

	candidates := make([]CallCandidate, 0, len(calls))
	for _, call := range calls {
		candidates = append(candidates, describeCall(call))
	}
	path := make([]string, 0, len(trade.Route.Path))
	for _, hop := range trade.Route.Path {
		path = append(path, hop.Address.Hex())
	}

	resp := BuildResponse{
		Kind:      "swap",
		AmountIn:  trade.InputAmount.Raw.String(),
		AmountOut: trade.OutputAmount.Raw.String(),
		Deadline:  deadline.String(),
		Path:      path,
		Calls:     candidates,
	}
	switch trade.Type {
	case model.ExactInput:
		resp.MinAmountOut = bounds.MinOutput.Raw.String()
	case model.ExactOutput:
		resp.MaxAmountIn = bounds.MaxInput.Raw.String()
	}
	respond(c, resp)
}

func describeCall(call swap.CallDescriptor) CallCandidate {
	value := "0"
	if call.Value != nil {
		value = call.Value.String()
	}
	return CallCandidate{
		To:     call.To.Hex(),
		Data:   hexutil.Encode(call.Data),
		Value:  value,
		Method: call.Method,
	}
}
