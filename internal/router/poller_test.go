package router

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// echoDeriver answers every request with the requested amount in Reason so
// tests can tell which input a committed result belongs to. A non-nil gate
// holds all in-flight derivations until it is closed.
type echoDeriver struct {
	gate chan struct{}

	mu    sync.Mutex
	calls int
}

func (d *echoDeriver) BestTrade(ctx context.Context, req QuoteRequest) (TradeResult, error) {
	d.mu.Lock()
	d.calls++
	d.mu.Unlock()
	if d.gate != nil {
		select {
		case <-ctx.Done():
			return TradeResult{}, ctx.Err()
		case <-d.gate:
		}
	}
	return TradeResult{Status: TradeReady, Reason: req.Amount.Raw.String()}, nil
}

func (d *echoDeriver) derivations() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func pollerRequest(t *testing.T, amount int64) QuoteRequest {
	t.Helper()
	tokenA := routerToken(t, "0x0000000000000000000000000000000000000001", "AAA")
	tokenB := routerToken(t, "0x0000000000000000000000000000000000000002", "BBB")
	return engineRequest(t, tokenA, tokenB, amount)
}

func TestNewPollerValidates(t *testing.T) {
	t.Parallel()

	if _, err := NewPoller(nil, time.Second, nil); err == nil {
		t.Fatal("expected error for nil deriver")
	}
	if _, err := NewPoller(&echoDeriver{}, 0, nil); err == nil {
		t.Fatal("expected error for zero interval")
	}
}

func TestPollerResultBeforeAnyUpdate(t *testing.T) {
	t.Parallel()

	poller, err := NewPoller(&echoDeriver{}, time.Second, nil)
	require.NoError(t, err)

	result := poller.Result()
	require.Equal(t, TradeInvalid, result.Status)
	require.Contains(t, result.Reason, "no request")
}

func TestPollerPendingWhileDerivationInFlight(t *testing.T) {
	t.Parallel()

	deriver := &echoDeriver{gate: make(chan struct{})}
	poller, err := NewPoller(deriver, time.Second, nil)
	require.NoError(t, err)

	poller.Update(pollerRequest(t, 1))
	require.Equal(t, TradePending, poller.Result().Status)

	close(deriver.gate)
	require.Eventually(t, func() bool {
		result := poller.Result()
		return result.Status == TradeReady && result.Reason == "1"
	}, 2*time.Second, 5*time.Millisecond)
}

func TestPollerLastInputWins(t *testing.T) {
	t.Parallel()

	deriver := &echoDeriver{gate: make(chan struct{})}
	poller, err := NewPoller(deriver, time.Second, nil)
	require.NoError(t, err)

	poller.Update(pollerRequest(t, 1))
	poller.Update(pollerRequest(t, 2))
	require.Equal(t, TradePending, poller.Result().Status)

	// Releasing both derivations at once must surface the second input's
	// result no matter which goroutine finishes first.
	close(deriver.gate)
	require.Eventually(t, func() bool {
		result := poller.Result()
		return result.Status == TradeReady && result.Reason == "2"
	}, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		return deriver.derivations() == 2
	}, 2*time.Second, 5*time.Millisecond)
}

func TestPollerRunRederivesOnTicks(t *testing.T) {
	t.Parallel()

	deriver := &echoDeriver{}
	poller, err := NewPoller(deriver, 10*time.Millisecond, nil)
	require.NoError(t, err)
	poller.Update(pollerRequest(t, 7))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- poller.Run(ctx) }()

	require.Eventually(t, func() bool {
		return deriver.derivations() >= 3
	}, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		result := poller.Result()
		return result.Status == TradeReady && result.Reason == "7"
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestPollerRunIdlesWithoutRequest(t *testing.T) {
	t.Parallel()

	deriver := &echoDeriver{}
	poller, err := NewPoller(deriver, 10*time.Millisecond, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- poller.Run(ctx) }()

	require.Never(t, func() bool {
		return deriver.derivations() > 0
	}, 100*time.Millisecond, 10*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}
