package swap

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"swapScope/internal/chain"
	"swapScope/internal/dex"
	"swapScope/internal/metrics"
	"swapScope/internal/model"
	"swapScope/internal/storage"
)

// defaultGasMarginBips widens gas estimates by 10%.
const defaultGasMarginBips = 1000

// PreflightState gates whether a swap may be submitted at all.
type PreflightState int

const (
	// PreflightInvalid means a precondition is missing or broken.
	PreflightInvalid PreflightState = iota + 1
	// PreflightLoading means recipient resolution is still in flight.
	PreflightLoading
	// PreflightValid means submission can be attempted. Estimation may
	// still fail later; that is a submission-time concern.
	PreflightValid
)

func (s PreflightState) String() string {
	switch s {
	case PreflightInvalid:
		return "invalid"
	case PreflightLoading:
		return "loading"
	case PreflightValid:
		return "valid"
	default:
		return fmt.Sprintf("preflight(%d)", int(s))
	}
}

// Preflight is the submission gate for a swap request.
type Preflight struct {
	State     PreflightState
	Reason    string
	Recipient common.Address
}

// Resolver turns recipient names into addresses. chain.ENSResolver is the
// production implementation.
type Resolver interface {
	Resolve(ctx context.Context, name string) (common.Address, error)
	TryResolve(name string) (common.Address, chain.ResolveState)
}

// SwapParams describes one submission attempt. Recipient may be empty (the
// connected account), a hex address, or a name for the resolver.
type SwapParams struct {
	Trade        *model.Trade
	SlippageBips uint64
	Recipient    string
	Deadline     *big.Int
}

// OrchestratorConfig carries the static wiring of an Orchestrator. Resolver,
// Recorder, and Pending are optional.
type OrchestratorConfig struct {
	Contracts     dex.Contracts
	GasMarginBips uint64
	Resolver      Resolver
	Recorder      storage.Recorder
	Pending       PendingApprovals
}

// Orchestrator runs the estimate-probe-select-submit flow for swaps,
// approvals, and native conversions.
type Orchestrator struct {
	wallet    chain.Wallet
	caller    dex.Caller
	contracts dex.Contracts
	resolver  Resolver
	recorder  storage.Recorder
	pending   PendingApprovals
	margin    uint64
	logger    *zap.Logger
}

// NewOrchestrator builds an Orchestrator with its dependencies.
func NewOrchestrator(cfg OrchestratorConfig, wallet chain.Wallet, caller dex.Caller, logger *zap.Logger) (*Orchestrator, error) {
	if wallet == nil {
		return nil, fmt.Errorf("wallet is nil")
	}
	if caller == nil {
		return nil, fmt.Errorf("chain caller is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	margin := cfg.GasMarginBips
	if margin == 0 {
		margin = defaultGasMarginBips
	}
	return &Orchestrator{
		wallet:    wallet,
		caller:    caller,
		contracts: cfg.Contracts,
		resolver:  cfg.Resolver,
		recorder:  cfg.Recorder,
		pending:   cfg.Pending,
		margin:    margin,
		logger:    logger,
	}, nil
}

// Preflight validates a request without touching the chain. Estimation
// failures never surface here.
func (o *Orchestrator) Preflight(params SwapParams) Preflight {
	if params.Trade == nil || params.Trade.Route == nil {
		return Preflight{State: PreflightInvalid, Reason: "no trade to submit"}
	}

	raw := strings.TrimSpace(params.Recipient)
	if raw == "" {
		return Preflight{State: PreflightValid, Recipient: o.wallet.Account()}
	}
	if common.IsHexAddress(raw) {
		addr := common.HexToAddress(raw)
		if addr == (common.Address{}) {
			return Preflight{State: PreflightInvalid, Reason: "recipient is the zero address"}
		}
		return Preflight{State: PreflightValid, Recipient: addr}
	}
	if o.resolver == nil {
		return Preflight{State: PreflightInvalid, Reason: "recipient names need a resolver"}
	}
	addr, state := o.resolver.TryResolve(raw)
	switch state {
	case chain.ResolvePending:
		return Preflight{State: PreflightLoading}
	case chain.ResolveDone:
		return Preflight{State: PreflightValid, Recipient: addr}
	default:
		return Preflight{State: PreflightInvalid, Reason: fmt.Sprintf("recipient %q does not resolve", raw)}
	}
}

// Swap estimates the candidate calls, picks the winner, and submits it. The
// returned hash is already registered in the transaction log.
func (o *Orchestrator) Swap(ctx context.Context, params SwapParams) (common.Hash, error) {
	if params.Trade == nil || params.Trade.Route == nil {
		return common.Hash{}, fmt.Errorf("trade is nil")
	}
	recipient, err := o.resolveRecipient(ctx, params.Recipient)
	if err != nil {
		return common.Hash{}, err
	}
	calls, err := BuildSwapCalls(params.Trade, CallOptions{
		Contracts:    o.contracts,
		Recipient:    recipient,
		SlippageBips: params.SlippageBips,
		Deadline:     params.Deadline,
	})
	if err != nil {
		return common.Hash{}, err
	}
	if len(calls) == 0 {
		return common.Hash{}, fmt.Errorf("no swap call to estimate")
	}

	chosen, err := selectCall(o.estimateCalls(ctx, calls))
	if err != nil {
		return common.Hash{}, err
	}
	hash, err := o.submit(ctx, chosen.call, chosen.gas, "swap")
	if err != nil {
		return common.Hash{}, err
	}

	account := o.wallet.Account()
	rec := storage.NewRecord(storage.KindSwap, o.wallet.ChainID(), hash, account, swapSummary(params.Trade, account, recipient))
	rec.InputSymbol = params.Trade.InputAmount.Currency.Symbol
	rec.OutputSymbol = params.Trade.OutputAmount.Currency.Symbol
	rec.InputRaw = params.Trade.InputAmount.Raw.String()
	rec.OutputRaw = params.Trade.OutputAmount.Raw.String()
	o.record(ctx, rec)
	return hash, nil
}

// ApprovalState classifies the connected account's allowance for the spender.
func (o *Orchestrator) ApprovalState(ctx context.Context, amount model.TokenAmount, spender common.Address) (ApprovalState, error) {
	return CheckApproval(ctx, o.caller, o.pending, amount, o.wallet.Account(), spender)
}

// Approve submits an allowance for the spender. Unlimited first; tokens that
// restrict approval amounts get the exact amount on retry.
func (o *Orchestrator) Approve(ctx context.Context, amount model.TokenAmount, spender common.Address) (common.Hash, error) {
	call, err := BuildApproveCall(amount.Currency, spender, amount.Raw, false)
	if err != nil {
		return common.Hash{}, err
	}
	gas, err := o.wallet.EstimateGas(ctx, callMsg(call))
	if err != nil {
		metrics.GasEstimations.WithLabelValues("failure").Inc()
		call, err = BuildApproveCall(amount.Currency, spender, amount.Raw, true)
		if err != nil {
			return common.Hash{}, err
		}
		gas, err = o.wallet.EstimateGas(ctx, callMsg(call))
		if err != nil {
			metrics.GasEstimations.WithLabelValues("failure").Inc()
			return common.Hash{}, fmt.Errorf("estimate approve: %w", err)
		}
	}
	metrics.GasEstimations.WithLabelValues("success").Inc()

	hash, err := o.submit(ctx, call, gas, "approve")
	if err != nil {
		return common.Hash{}, err
	}
	account := o.wallet.Account()
	rec := storage.NewRecord(storage.KindApproval, o.wallet.ChainID(), hash, account, fmt.Sprintf("Approve %s", amount.Currency.Symbol))
	rec.Token = amount.Currency.Address
	rec.Spender = spender
	o.record(ctx, rec)
	return hash, nil
}

// SubmitWrap converts between the native coin and its wrapped token. The
// pair must be a conversion; real swaps go through Swap.
func (o *Orchestrator) SubmitWrap(ctx context.Context, input, output model.Currency, raw *big.Int) (common.Hash, error) {
	kind := DetectWrap(input, output, o.contracts)
	if kind == WrapNone {
		return common.Hash{}, fmt.Errorf("%s/%s is not a native conversion", input, output)
	}
	amount, err := model.NewTokenAmount(input, raw)
	if err != nil {
		return common.Hash{}, err
	}
	call, err := BuildWrapCall(kind, amount, o.contracts)
	if err != nil {
		return common.Hash{}, err
	}
	gas, err := o.wallet.EstimateGas(ctx, callMsg(call))
	if err != nil {
		metrics.GasEstimations.WithLabelValues("failure").Inc()
		return common.Hash{}, fmt.Errorf("estimate %s: %w", call.Method, err)
	}
	metrics.GasEstimations.WithLabelValues("success").Inc()

	hash, err := o.submit(ctx, call, gas, kind.String())
	if err != nil {
		return common.Hash{}, err
	}
	verb := "Wrap"
	if kind == WrapWithdraw {
		verb = "Unwrap"
	}
	account := o.wallet.Account()
	rec := storage.NewRecord(storage.KindWrap, o.wallet.ChainID(), hash, account, fmt.Sprintf("%s %s to %s", verb, amount, output.Symbol))
	rec.InputSymbol = input.Symbol
	rec.OutputSymbol = output.Symbol
	rec.InputRaw = raw.String()
	rec.OutputRaw = raw.String()
	o.record(ctx, rec)
	return hash, nil
}

func (o *Orchestrator) resolveRecipient(ctx context.Context, recipient string) (common.Address, error) {
	raw := strings.TrimSpace(recipient)
	if raw == "" {
		return o.wallet.Account(), nil
	}
	if common.IsHexAddress(raw) {
		addr := common.HexToAddress(raw)
		if addr == (common.Address{}) {
			return common.Address{}, fmt.Errorf("recipient is the zero address")
		}
		return addr, nil
	}
	if o.resolver == nil {
		return common.Address{}, fmt.Errorf("recipient names need a resolver")
	}
	addr, err := o.resolver.Resolve(ctx, raw)
	if err != nil {
		return common.Address{}, fmt.Errorf("resolve recipient %q: %w", raw, err)
	}
	return addr, nil
}

type callEstimate struct {
	call CallDescriptor
	gas  uint64
	err  error
}

// estimateCalls runs gas estimation for every candidate in parallel. Failed
// candidates are probed immediately so their error already carries the
// revert reason.
func (o *Orchestrator) estimateCalls(ctx context.Context, calls []CallDescriptor) []callEstimate {
	estimates := make([]callEstimate, len(calls))
	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		g.Go(func() error {
			gas, err := o.wallet.EstimateGas(gctx, callMsg(call))
			if err != nil {
				metrics.GasEstimations.WithLabelValues("failure").Inc()
				o.logger.Debug("gas estimation failed", zap.String("method", call.Method), zap.Error(err))
				estimates[i] = callEstimate{call: call, err: o.probe(gctx, call)}
				return nil
			}
			metrics.GasEstimations.WithLabelValues("success").Inc()
			estimates[i] = callEstimate{call: call, gas: gas}
			return nil
		})
	}
	_ = g.Wait()
	return estimates
}

// probe re-issues a failed candidate as a static call to capture its revert
// reason. A probe that succeeds means estimation failed for transient
// reasons.
func (o *Orchestrator) probe(ctx context.Context, call CallDescriptor) error {
	_, err := o.wallet.CallStatic(ctx, callMsg(call))
	if err == nil {
		return fmt.Errorf("unexpected issue estimating gas for %s, try again", call.Method)
	}
	if reason, ok := chain.RevertReason(err); ok {
		return friendlyRevertError(reason)
	}
	return fmt.Errorf("the swap cannot succeed: %w", err)
}

// selectCall picks the latest candidate that passed estimation. Later
// candidates tolerate more token behavior, so a later success supersedes an
// earlier one. With no success the last captured failure surfaces.
func selectCall(estimates []callEstimate) (callEstimate, error) {
	for i := len(estimates) - 1; i >= 0; i-- {
		if estimates[i].err == nil {
			return estimates[i], nil
		}
	}
	return callEstimate{}, estimates[len(estimates)-1].err
}

// friendlyRevertError maps well-known router revert strings onto messages a
// user can act on.
func friendlyRevertError(reason string) error {
	switch {
	case strings.Contains(reason, "EXPIRED"):
		return fmt.Errorf("the transaction deadline has passed, rebuild the swap with a fresh deadline")
	case strings.Contains(reason, "INSUFFICIENT_OUTPUT_AMOUNT"),
		strings.Contains(reason, "EXCESSIVE_INPUT_AMOUNT"),
		strings.Contains(reason, "Too little received"),
		strings.Contains(reason, "Too much requested"):
		return fmt.Errorf("the swap will not succeed due to price movement or a fee on transfer, raise the slippage tolerance")
	case strings.Contains(reason, "TRANSFER_FROM_FAILED"):
		return fmt.Errorf("the input token cannot be transferred, there may be an issue with the token contract")
	case strings.Contains(reason, "TRANSFER_FAILED"):
		return fmt.Errorf("the output token cannot be transferred, there may be an issue with the token contract")
	default:
		return fmt.Errorf("the swap cannot succeed: %s", reason)
	}
}

// submit sends the call with the margin applied to the estimated gas. User
// rejection stays quiet; provider faults log the full call context.
func (o *Orchestrator) submit(ctx context.Context, call CallDescriptor, gas uint64, action string) (common.Hash, error) {
	limit := gas * (10000 + o.margin) / 10000
	hash, err := o.wallet.SendTransaction(ctx, callMsg(call), limit)
	if err != nil {
		if chain.IsUserRejected(err) {
			metrics.SubmissionFailures.WithLabelValues("rejected").Inc()
			return common.Hash{}, chain.ErrTransactionRejected
		}
		metrics.SubmissionFailures.WithLabelValues("provider").Inc()
		o.logger.Error("transaction submission failed",
			zap.String("method", call.Method),
			zap.Any("args", call.Args),
			zap.Any("value", call.Value),
			zap.Error(err))
		return common.Hash{}, fmt.Errorf("%s failed: %w", action, err)
	}
	metrics.Submissions.Inc()
	return hash, nil
}

func (o *Orchestrator) record(ctx context.Context, rec storage.Record) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.Put(ctx, rec); err != nil {
		o.logger.Warn("transaction record not stored", zap.String("id", rec.ID), zap.Error(err))
	}
}

func callMsg(call CallDescriptor) ethereum.CallMsg {
	msg := ethereum.CallMsg{To: &call.To, Data: call.Data}
	if call.Value != nil && call.Value.Sign() > 0 {
		msg.Value = call.Value
	}
	return msg
}

func swapSummary(trade *model.Trade, account, recipient common.Address) string {
	s := fmt.Sprintf("Swap %s %s for %s %s",
		trade.InputAmount.FormatSignificant(3), trade.InputAmount.Currency.Symbol,
		trade.OutputAmount.FormatSignificant(3), trade.OutputAmount.Currency.Symbol)
	if recipient != account {
		s += " to " + shortenAddress(recipient)
	}
	return s
}

func shortenAddress(addr common.Address) string {
	hex := addr.Hex()
	return hex[:6] + "..." + hex[len(hex)-4:]
}

// HeadReader provides the latest block header.
type HeadReader interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// TransactionDeadline derives the unix deadline routers enforce: the latest
// block timestamp plus the configured ttl. The local clock plays no part; on
// slow chains it can drift minutes from block time.
func TransactionDeadline(ctx context.Context, reader HeadReader, ttl time.Duration) (*big.Int, error) {
	if reader == nil {
		return nil, fmt.Errorf("head reader is nil")
	}
	head, err := reader.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch head: %w", err)
	}
	return new(big.Int).SetUint64(head.Time + uint64(ttl/time.Second)), nil
}
