package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/callback-engine/internal/interfaces"
)

// immediateTimer fires without waiting so the retry loop runs under test
// without sleeping.
type immediateTimer struct {
	ch chan time.Time
}

func (t *immediateTimer) Start(time.Duration) {
	if t.ch == nil {
		t.ch = make(chan time.Time, 1)
	}
	t.ch <- time.Now()
}

func (t *immediateTimer) C() <-chan time.Time { return t.ch }

func (t *immediateTimer) Stop() {}

func testPoller() *Poller {
	return NewPollerWithTimer(zap.NewNop(), &immediateTimer{})
}

func TestReconcileRespectsAttemptBound(t *testing.T) {
	calls := 0
	query := func(ctx context.Context, ref string) (interfaces.QueryResult, error) {
		calls++
		return interfaces.QueryResult{}, nil
	}

	result, found, err := testPoller().Reconcile(context.Background(), "TX-1", query, 3, 0)
	require.NoError(t, err)
	require.False(t, found)
	require.Equal(t, 3, calls)
	require.Empty(t, result.Status)
}

func TestReconcileReturnsOnceFound(t *testing.T) {
	calls := 0
	query := func(ctx context.Context, ref string) (interfaces.QueryResult, error) {
		calls++
		if calls < 3 {
			return interfaces.QueryResult{}, nil
		}
		return interfaces.QueryResult{Found: true, Status: "settled", RawAmount: "1000", RawCurrency: "EUR"}, nil
	}

	result, found, err := testPoller().Reconcile(context.Background(), "TX-1", query, 5, 0)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 3, calls)
	require.Equal(t, "settled", result.Status)
}

func TestReconcileFirstAttemptSuccessQueriesOnce(t *testing.T) {
	calls := 0
	query := func(ctx context.Context, ref string) (interfaces.QueryResult, error) {
		calls++
		return interfaces.QueryResult{Found: true, Status: "authorized"}, nil
	}

	_, found, err := testPoller().Reconcile(context.Background(), "TX-1", query, 5, 0)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 1, calls)
}

func TestReconcileTransportErrorStopsImmediately(t *testing.T) {
	calls := 0
	query := func(ctx context.Context, ref string) (interfaces.QueryResult, error) {
		calls++
		return interfaces.QueryResult{}, errors.New("connection refused")
	}

	_, found, err := testPoller().Reconcile(context.Background(), "TX-1", query, 5, 0)
	require.Error(t, err)
	require.False(t, found)
	require.Equal(t, 1, calls)
}

func TestReconcileCancelledContextIsConservativeNotFound(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	query := func(ctx context.Context, ref string) (interfaces.QueryResult, error) {
		cancel()
		return interfaces.QueryResult{}, nil
	}

	_, found, err := testPoller().Reconcile(ctx, "TX-1", query, 5, 0)
	require.NoError(t, err)
	require.False(t, found)
}

func TestReconcileMinimumOneAttempt(t *testing.T) {
	calls := 0
	query := func(ctx context.Context, ref string) (interfaces.QueryResult, error) {
		calls++
		return interfaces.QueryResult{}, nil
	}

	_, found, err := testPoller().Reconcile(context.Background(), "TX-1", query, 0, 0)
	require.NoError(t, err)
	require.False(t, found)
	require.Equal(t, 1, calls)
}
