// Package reconcile copes with the propagation lag between notification
// delivery and the processor's own query API: a bounded, cancellable
// retry-with-backoff around the per-processor query function.
package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/callback-engine/internal/interfaces"
)

// errNotIndexed drives the retry loop; it never escapes Reconcile.
var errNotIndexed = errors.New("transaction not indexed yet")

// Poller runs bounded reconciliation queries. The zero delay plus an
// immediate timer make it deterministic under test.
type Poller struct {
	logger *zap.Logger
	// timer overrides backoff's wall-clock timer; nil means real time.
	timer backoff.Timer
}

func NewPoller(logger *zap.Logger) *Poller {
	return &Poller{logger: logger}
}

// NewPollerWithTimer injects a timer so tests run without sleeping.
func NewPollerWithTimer(logger *zap.Logger, timer backoff.Timer) *Poller {
	return &Poller{logger: logger, timer: timer}
}

// Reconcile invokes query until it reports found, the attempt budget is
// exhausted, or ctx is cancelled. Exactly maxAttempts invocations occur
// when the transaction never shows up; exhaustion is reported through
// found=false, not an error. A transport error from query stops the loop
// immediately and is returned.
func (p *Poller) Reconcile(ctx context.Context, transactionRef string, query interfaces.QueryFunc, maxAttempts int, delay time.Duration) (interfaces.QueryResult, bool, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var result interfaces.QueryResult
	attempt := 0

	operation := func() error {
		attempt++
		res, err := query(ctx, transactionRef)
		if err != nil {
			return backoff.Permanent(err)
		}
		if !res.Found {
			p.logger.Info("transaction not yet indexed by processor",
				zap.String("transaction_ref", transactionRef),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", maxAttempts),
			)
			return errNotIndexed
		}
		result = res
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(delay), uint64(maxAttempts-1)),
		ctx,
	)

	err := backoff.RetryNotifyWithTimer(operation, policy, nil, p.timer)
	if err != nil {
		if errors.Is(err, errNotIndexed) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			p.logger.Warn("reconciliation attempts exhausted",
				zap.String("transaction_ref", transactionRef),
				zap.Int("attempts", attempt),
			)
			return interfaces.QueryResult{}, false, nil
		}
		return interfaces.QueryResult{}, false, err
	}

	return result, true, nil
}
