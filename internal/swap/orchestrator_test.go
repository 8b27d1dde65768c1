package swap

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/stretchr/testify/require"

	"swapScope/internal/chain"
	"swapScope/internal/model"
	"swapScope/internal/storage"
)

type sentCall struct {
	data  []byte
	value *big.Int
	gas   uint64
}

// fakeWallet scripts estimation and submission outcomes keyed by calldata.
// Unkeyed calls estimate successfully with a default gas.
type fakeWallet struct {
	mu        sync.Mutex
	account   common.Address
	estimates map[string]uint64
	estErrs   map[string]error
	staticErr map[string]error
	sendErr   error
	sendHash  common.Hash
	sent      []sentCall
}

func newFakeWallet() *fakeWallet {
	return &fakeWallet{
		account:   common.HexToAddress("0x00000000000000000000000000000000000000FF"),
		estimates: map[string]uint64{},
		estErrs:   map[string]error{},
		staticErr: map[string]error{},
		sendHash:  common.HexToHash("0x1111111111111111111111111111111111111111111111111111111111111111"),
	}
}

func callKey(data []byte) string { return common.Bytes2Hex(data) }

func (w *fakeWallet) Account() common.Address { return w.account }

func (w *fakeWallet) ChainID() uint64 { return 1 }

func (w *fakeWallet) SupportsTypedData() bool { return false }

func (w *fakeWallet) EstimateGas(_ context.Context, call ethereum.CallMsg) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err, ok := w.estErrs[callKey(call.Data)]; ok {
		return 0, err
	}
	if gas, ok := w.estimates[callKey(call.Data)]; ok {
		return gas, nil
	}
	return 50_000, nil
}

func (w *fakeWallet) CallStatic(_ context.Context, call ethereum.CallMsg) ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err, ok := w.staticErr[callKey(call.Data)]; ok {
		return nil, err
	}
	return nil, nil
}

func (w *fakeWallet) SendTransaction(_ context.Context, call ethereum.CallMsg, gasLimit uint64) (common.Hash, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.sendErr != nil {
		return common.Hash{}, w.sendErr
	}
	w.sent = append(w.sent, sentCall{data: call.Data, value: call.Value, gas: gasLimit})
	return w.sendHash, nil
}

func (w *fakeWallet) SignTypedData(context.Context, apitypes.TypedData) ([]byte, error) {
	return nil, fmt.Errorf("typed data signing not scripted")
}

// stubCaller answers every eth_call with a fixed payload.
type stubCaller struct {
	ret []byte
	err error
}

func (c stubCaller) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return c.ret, c.err
}

type fakeResolver struct {
	addr  common.Address
	state chain.ResolveState
	err   error
}

func (r fakeResolver) Resolve(context.Context, string) (common.Address, error) {
	return r.addr, r.err
}

func (r fakeResolver) TryResolve(string) (common.Address, chain.ResolveState) {
	return r.addr, r.state
}

func testOrchestrator(t *testing.T, wallet *fakeWallet, cfg OrchestratorConfig) *Orchestrator {
	t.Helper()
	if cfg.Contracts.ChainID == 0 {
		cfg.Contracts = mainnetContracts(t)
	}
	o, err := NewOrchestrator(cfg, wallet, stubCaller{}, nil)
	require.NoError(t, err)
	return o
}

func swapCandidates(t *testing.T, trade *model.Trade, recipient common.Address, deadline *big.Int) []CallDescriptor {
	t.Helper()
	calls, err := BuildSwapCalls(trade, CallOptions{
		Contracts:    mainnetContracts(t),
		Recipient:    recipient,
		SlippageBips: 50,
		Deadline:     deadline,
	})
	require.NoError(t, err)
	return calls
}

func TestSelectCallPrefersLatestSuccess(t *testing.T) {
	t.Parallel()

	ok := func(method string, gas uint64) callEstimate {
		return callEstimate{call: CallDescriptor{Method: method}, gas: gas}
	}
	failed := func(method, reason string) callEstimate {
		return callEstimate{call: CallDescriptor{Method: method}, err: errors.New(reason)}
	}

	chosen, err := selectCall([]callEstimate{ok("a", 1), ok("b", 2)})
	require.NoError(t, err)
	require.Equal(t, "b", chosen.call.Method)

	chosen, err = selectCall([]callEstimate{ok("a", 1), failed("b", "b broke")})
	require.NoError(t, err)
	require.Equal(t, "a", chosen.call.Method)

	chosen, err = selectCall([]callEstimate{failed("a", "a broke"), ok("b", 2)})
	require.NoError(t, err)
	require.Equal(t, "b", chosen.call.Method)

	_, err = selectCall([]callEstimate{failed("a", "a broke"), failed("b", "b broke")})
	require.EqualError(t, err, "b broke")
}

func TestFriendlyRevertMessages(t *testing.T) {
	t.Parallel()

	cases := []struct {
		reason string
		want   string
	}{
		{reason: "UniswapV2Router: EXPIRED", want: "deadline"},
		{reason: "UniswapV2Router: INSUFFICIENT_OUTPUT_AMOUNT", want: "slippage"},
		{reason: "UniswapV2Router: EXCESSIVE_INPUT_AMOUNT", want: "slippage"},
		{reason: "Too little received", want: "slippage"},
		{reason: "Too much requested", want: "slippage"},
		{reason: "TransferHelper: TRANSFER_FROM_FAILED", want: "input token"},
		{reason: "UniswapV2: TRANSFER_FAILED", want: "output token"},
		{reason: "K", want: "the swap cannot succeed: K"},
	}
	for _, tc := range cases {
		t.Run(tc.reason, func(t *testing.T) {
			t.Parallel()
			err := friendlyRevertError(tc.reason)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestSwapSubmitsLatestEstimatedCandidate(t *testing.T) {
	t.Parallel()

	wallet := newFakeWallet()
	log := storage.NewMemoryLog()
	o := testOrchestrator(t, wallet, OrchestratorConfig{Recorder: log, Pending: log})

	trade := tokenPairTrade(t, model.ExactInput, 1000, 987)
	deadline := big.NewInt(1_800_000_000)
	candidates := swapCandidates(t, trade, wallet.account, deadline)
	require.Len(t, candidates, 2)
	wallet.estimates[callKey(candidates[0].Data)] = 100_000
	wallet.estimates[callKey(candidates[1].Data)] = 80_000

	hash, err := o.Swap(context.Background(), SwapParams{Trade: trade, SlippageBips: 50, Deadline: deadline})
	require.NoError(t, err)
	require.Equal(t, wallet.sendHash, hash)

	require.Len(t, wallet.sent, 1)
	require.Equal(t, candidates[1].Data, wallet.sent[0].data, "the tolerant variant wins when it also estimates")
	require.Equal(t, uint64(88_000), wallet.sent[0].gas, "margin widens the estimate by 10%")
	require.Nil(t, wallet.sent[0].value)

	records := log.All()
	require.Len(t, records, 1)
	rec := records[0]
	require.Equal(t, storage.KindSwap, rec.Kind)
	require.Equal(t, wallet.sendHash, rec.Hash)
	require.Equal(t, wallet.account, rec.From)
	require.Equal(t, storage.StatusPending, rec.Status)
	require.Equal(t, "AAA", rec.InputSymbol)
	require.Equal(t, "BBB", rec.OutputSymbol)
	require.Equal(t, "1000", rec.InputRaw)
	require.Equal(t, "987", rec.OutputRaw)
	require.Contains(t, rec.Summary, "Swap ")
	require.Contains(t, rec.Summary, "AAA for")
	require.NotContains(t, rec.Summary, " to 0x", "self swaps carry no recipient clause")
}

func TestSwapFallsBackWhenTolerantVariantFails(t *testing.T) {
	t.Parallel()

	wallet := newFakeWallet()
	o := testOrchestrator(t, wallet, OrchestratorConfig{})

	trade := tokenPairTrade(t, model.ExactInput, 1000, 987)
	deadline := big.NewInt(1_800_000_000)
	candidates := swapCandidates(t, trade, wallet.account, deadline)
	wallet.estimates[callKey(candidates[0].Data)] = 100_000
	wallet.estErrs[callKey(candidates[1].Data)] = errors.New("execution reverted")
	wallet.staticErr[callKey(candidates[1].Data)] = errors.New("opaque failure")

	_, err := o.Swap(context.Background(), SwapParams{Trade: trade, SlippageBips: 50, Deadline: deadline})
	require.NoError(t, err)
	require.Len(t, wallet.sent, 1)
	require.Equal(t, candidates[0].Data, wallet.sent[0].data)
	require.Equal(t, uint64(110_000), wallet.sent[0].gas)
}

func TestSwapSurfacesLastFailureWhenNothingEstimates(t *testing.T) {
	t.Parallel()

	wallet := newFakeWallet()
	log := storage.NewMemoryLog()
	o := testOrchestrator(t, wallet, OrchestratorConfig{Recorder: log})

	trade := tokenPairTrade(t, model.ExactInput, 1000, 987)
	deadline := big.NewInt(1_800_000_000)
	candidates := swapCandidates(t, trade, wallet.account, deadline)
	wallet.estErrs[callKey(candidates[0].Data)] = errors.New("revert a")
	wallet.estErrs[callKey(candidates[1].Data)] = errors.New("revert b")
	wallet.staticErr[callKey(candidates[0].Data)] = errors.New("first reason")
	wallet.staticErr[callKey(candidates[1].Data)] = errors.New("second reason")

	_, err := o.Swap(context.Background(), SwapParams{Trade: trade, SlippageBips: 50, Deadline: deadline})
	require.Error(t, err)
	require.Contains(t, err.Error(), "the swap cannot succeed")
	require.Contains(t, err.Error(), "second reason", "the later candidate's failure wins")
	require.Empty(t, wallet.sent)
	require.Empty(t, log.All())
}

func TestSwapProbeSuccessReadsAsTransient(t *testing.T) {
	t.Parallel()

	wallet := newFakeWallet()
	o := testOrchestrator(t, wallet, OrchestratorConfig{})

	trade := tokenPairTrade(t, model.ExactInput, 1000, 987)
	deadline := big.NewInt(1_800_000_000)
	candidates := swapCandidates(t, trade, wallet.account, deadline)
	wallet.estErrs[callKey(candidates[0].Data)] = errors.New("gas required exceeds allowance")
	wallet.estErrs[callKey(candidates[1].Data)] = errors.New("gas required exceeds allowance")

	_, err := o.Swap(context.Background(), SwapParams{Trade: trade, SlippageBips: 50, Deadline: deadline})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unexpected issue estimating gas")
	require.Contains(t, err.Error(), "try again")
}

// userRejection mimics the EIP-1193 rejection code providers return.
type userRejection struct{}

func (userRejection) Error() string  { return "user rejected the request" }
func (userRejection) ErrorCode() int { return 4001 }

func TestSwapUserRejectionStaysQuiet(t *testing.T) {
	t.Parallel()

	wallet := newFakeWallet()
	wallet.sendErr = userRejection{}
	log := storage.NewMemoryLog()
	o := testOrchestrator(t, wallet, OrchestratorConfig{Recorder: log})

	trade := tokenPairTrade(t, model.ExactInput, 1000, 987)
	_, err := o.Swap(context.Background(), SwapParams{Trade: trade, SlippageBips: 50, Deadline: big.NewInt(1_800_000_000)})
	require.ErrorIs(t, err, chain.ErrTransactionRejected)
	require.Empty(t, log.All(), "rejected attempts leave no pending record")
}

func TestSwapProviderFaultIsWrapped(t *testing.T) {
	t.Parallel()

	wallet := newFakeWallet()
	wallet.sendErr = errors.New("nonce too low")
	o := testOrchestrator(t, wallet, OrchestratorConfig{})

	trade := tokenPairTrade(t, model.ExactInput, 1000, 987)
	_, err := o.Swap(context.Background(), SwapParams{Trade: trade, SlippageBips: 50, Deadline: big.NewInt(1_800_000_000)})
	require.Error(t, err)
	require.Contains(t, err.Error(), "swap failed")
	require.Contains(t, err.Error(), "nonce too low")
}

func TestSwapNeedsDeadline(t *testing.T) {
	t.Parallel()

	wallet := newFakeWallet()
	o := testOrchestrator(t, wallet, OrchestratorConfig{})

	trade := tokenPairTrade(t, model.ExactInput, 1000, 987)
	_, err := o.Swap(context.Background(), SwapParams{Trade: trade, SlippageBips: 50})
	require.Error(t, err)
	require.Contains(t, err.Error(), "no swap call to estimate")
}

func TestSwapRecordsExplicitRecipient(t *testing.T) {
	t.Parallel()

	wallet := newFakeWallet()
	log := storage.NewMemoryLog()
	resolved := common.HexToAddress("0x00000000000000000000000000000000000000AB")
	o := testOrchestrator(t, wallet, OrchestratorConfig{
		Recorder: log,
		Resolver: fakeResolver{addr: resolved},
	})

	trade := tokenPairTrade(t, model.ExactInput, 1000, 987)
	_, err := o.Swap(context.Background(), SwapParams{
		Trade:        trade,
		SlippageBips: 50,
		Recipient:    "friend.eth",
		Deadline:     big.NewInt(1_800_000_000),
	})
	require.NoError(t, err)

	records := log.All()
	require.Len(t, records, 1)
	require.Contains(t, records[0].Summary, " to "+shortenAddress(resolved))
}

func TestPreflightStates(t *testing.T) {
	t.Parallel()

	trade := tokenPairTrade(t, model.ExactInput, 1000, 987)
	resolved := common.HexToAddress("0x00000000000000000000000000000000000000AB")

	cases := []struct {
		name      string
		trade     *model.Trade
		recipient string
		resolver  Resolver
		want      PreflightState
		reason    string
	}{
		{name: "no trade", trade: nil, want: PreflightInvalid, reason: "no trade"},
		{name: "self recipient", trade: trade, recipient: "", want: PreflightValid},
		{name: "hex recipient", trade: trade, recipient: resolved.Hex(), want: PreflightValid},
		{name: "zero recipient", trade: trade, recipient: "0x0000000000000000000000000000000000000000", want: PreflightInvalid, reason: "zero address"},
		{name: "name without resolver", trade: trade, recipient: "friend.eth", want: PreflightInvalid, reason: "resolver"},
		{name: "name resolving", trade: trade, recipient: "friend.eth", resolver: fakeResolver{state: chain.ResolvePending}, want: PreflightLoading},
		{name: "name resolved", trade: trade, recipient: "friend.eth", resolver: fakeResolver{addr: resolved, state: chain.ResolveDone}, want: PreflightValid},
		{name: "name failed", trade: trade, recipient: "friend.eth", resolver: fakeResolver{state: chain.ResolveFailed}, want: PreflightInvalid, reason: "does not resolve"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			wallet := newFakeWallet()
			o := testOrchestrator(t, wallet, OrchestratorConfig{Resolver: tc.resolver})
			got := o.Preflight(SwapParams{Trade: tc.trade, Recipient: tc.recipient})
			require.Equal(t, tc.want, got.State, "reason: %s", got.Reason)
			if tc.reason != "" {
				require.Contains(t, got.Reason, tc.reason)
			}
			if tc.want == PreflightValid && tc.recipient == "" {
				require.Equal(t, wallet.account, got.Recipient)
			}
		})
	}
}

func TestApproveFallsBackToExactAmount(t *testing.T) {
	t.Parallel()

	wallet := newFakeWallet()
	log := storage.NewMemoryLog()
	o := testOrchestrator(t, wallet, OrchestratorConfig{Recorder: log})

	contracts := mainnetContracts(t)
	dai := swapToken(t, "0x6B175474E89094C44Da98b954EedeAC495271d0F", "DAI")
	amount, err := model.NewTokenAmount(dai, big.NewInt(1234))
	require.NoError(t, err)

	unlimited, err := BuildApproveCall(dai, contracts.RouterV2, amount.Raw, false)
	require.NoError(t, err)
	exact, err := BuildApproveCall(dai, contracts.RouterV2, amount.Raw, true)
	require.NoError(t, err)
	wallet.estErrs[callKey(unlimited.Data)] = errors.New("approval amount restricted")

	hash, err := o.Approve(context.Background(), amount, contracts.RouterV2)
	require.NoError(t, err)
	require.Equal(t, wallet.sendHash, hash)
	require.Len(t, wallet.sent, 1)
	require.Equal(t, exact.Data, wallet.sent[0].data)

	records := log.All()
	require.Len(t, records, 1)
	require.Equal(t, storage.KindApproval, records[0].Kind)
	require.Equal(t, "Approve DAI", records[0].Summary)
	require.Equal(t, dai.Address, records[0].Token)
	require.Equal(t, contracts.RouterV2, records[0].Spender)
}

func TestApprovalStateClassification(t *testing.T) {
	t.Parallel()

	contracts := mainnetContracts(t)
	dai := swapToken(t, "0x6B175474E89094C44Da98b954EedeAC495271d0F", "DAI")
	amount, err := model.NewTokenAmount(dai, big.NewInt(1000))
	require.NoError(t, err)

	allowanceReply := func(n int64) []byte {
		return common.LeftPadBytes(big.NewInt(n).Bytes(), 32)
	}

	t.Run("allowance covers the amount", func(t *testing.T) {
		t.Parallel()
		o, err := NewOrchestrator(OrchestratorConfig{Contracts: contracts}, newFakeWallet(), stubCaller{ret: allowanceReply(2000)}, nil)
		require.NoError(t, err)
		state, err := o.ApprovalState(context.Background(), amount, contracts.RouterV2)
		require.NoError(t, err)
		require.Equal(t, Approved, state)
	})

	t.Run("allowance too small", func(t *testing.T) {
		t.Parallel()
		o, err := NewOrchestrator(OrchestratorConfig{Contracts: contracts}, newFakeWallet(), stubCaller{ret: allowanceReply(500)}, nil)
		require.NoError(t, err)
		state, err := o.ApprovalState(context.Background(), amount, contracts.RouterV2)
		require.NoError(t, err)
		require.Equal(t, NotApproved, state)
	})

	t.Run("approval already in flight", func(t *testing.T) {
		t.Parallel()
		wallet := newFakeWallet()
		log := storage.NewMemoryLog()
		rec := storage.NewRecord(storage.KindApproval, 1, common.HexToHash("0x22"), wallet.account, "Approve DAI")
		rec.Token = dai.Address
		rec.Spender = contracts.RouterV2
		require.NoError(t, log.Put(context.Background(), rec))

		o, err := NewOrchestrator(OrchestratorConfig{Contracts: contracts, Pending: log}, wallet, stubCaller{ret: allowanceReply(500)}, nil)
		require.NoError(t, err)
		state, err := o.ApprovalState(context.Background(), amount, contracts.RouterV2)
		require.NoError(t, err)
		require.Equal(t, ApprovalPending, state)
	})

	t.Run("native coin never needs approval", func(t *testing.T) {
		t.Parallel()
		eth := nativeCurrency(t, contracts)
		native, err := model.NewTokenAmount(eth, big.NewInt(1000))
		require.NoError(t, err)
		o, err := NewOrchestrator(OrchestratorConfig{Contracts: contracts}, newFakeWallet(), stubCaller{err: errors.New("no chain access")}, nil)
		require.NoError(t, err)
		state, err := o.ApprovalState(context.Background(), native, contracts.RouterV2)
		require.NoError(t, err)
		require.Equal(t, Approved, state, "the check must not touch the chain")
	})
}

func TestSubmitWrapRecordsConversion(t *testing.T) {
	t.Parallel()

	contracts := mainnetContracts(t)
	eth := nativeCurrency(t, contracts)
	weth := contracts.WrappedCurrency()
	raw := new(big.Int)
	raw.SetString("1500000000000000000", 10)

	t.Run("wrap", func(t *testing.T) {
		t.Parallel()
		wallet := newFakeWallet()
		log := storage.NewMemoryLog()
		o := testOrchestrator(t, wallet, OrchestratorConfig{Recorder: log})

		hash, err := o.SubmitWrap(context.Background(), eth, weth, raw)
		require.NoError(t, err)
		require.Equal(t, wallet.sendHash, hash)
		require.Len(t, wallet.sent, 1)
		require.Equal(t, raw, wallet.sent[0].value)

		records := log.All()
		require.Len(t, records, 1)
		require.Equal(t, storage.KindWrap, records[0].Kind)
		require.Equal(t, "Wrap 1.5 ETH to WETH", records[0].Summary)
	})

	t.Run("unwrap", func(t *testing.T) {
		t.Parallel()
		wallet := newFakeWallet()
		log := storage.NewMemoryLog()
		o := testOrchestrator(t, wallet, OrchestratorConfig{Recorder: log})

		_, err := o.SubmitWrap(context.Background(), weth, eth, raw)
		require.NoError(t, err)
		require.Len(t, wallet.sent, 1)
		require.Nil(t, wallet.sent[0].value)
		require.Equal(t, "Unwrap 1.5 WETH to ETH", log.All()[0].Summary)
	})

	t.Run("not a conversion", func(t *testing.T) {
		t.Parallel()
		wallet := newFakeWallet()
		o := testOrchestrator(t, wallet, OrchestratorConfig{})
		dai := swapToken(t, "0x6B175474E89094C44Da98b954EedeAC495271d0F", "DAI")
		_, err := o.SubmitWrap(context.Background(), eth, dai, raw)
		require.Error(t, err)
	})
}

type fakeHeadReader struct {
	header *types.Header
	err    error
}

func (r fakeHeadReader) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return r.header, r.err
}

func TestTransactionDeadline(t *testing.T) {
	t.Parallel()

	deadline, err := TransactionDeadline(context.Background(), fakeHeadReader{header: &types.Header{Time: 1_700_000_000}}, 30*time.Minute)
	require.NoError(t, err)
	require.Equal(t, uint64(1_700_001_800), deadline.Uint64())

	_, err = TransactionDeadline(context.Background(), nil, time.Minute)
	require.Error(t, err)

	_, err = TransactionDeadline(context.Background(), fakeHeadReader{err: errors.New("node down")}, time.Minute)
	require.Error(t, err)
}

func TestShortenAddress(t *testing.T) {
	t.Parallel()

	addr := common.HexToAddress("0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B")
	require.Equal(t, "0xAb58...eC9B", shortenAddress(addr))
}
