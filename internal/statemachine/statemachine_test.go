package statemachine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/akylbek/payment-system/callback-engine/internal/models"
)

func pending() *models.Payment {
	return &models.Payment{
		ReferenceID: "ORDER-1",
		Status:      models.StatusPendingAuthorization,
	}
}

func TestApplyLegalTransition(t *testing.T) {
	p := pending()
	result := Apply(p, models.StatusAuthorized, "notification AUTHORISED")

	require.True(t, result.Applied)
	require.Equal(t, models.StatusPendingAuthorization, result.From)
	require.Equal(t, models.StatusAuthorized, p.Status)
	require.True(t, result.TriggerCompletion)
}

func TestApplyIllegalTransitionLeavesPaymentUntouched(t *testing.T) {
	p := pending()
	result := Apply(p, models.StatusRefunded, "out of order refund")

	require.False(t, result.Applied)
	require.Equal(t, models.StatusPendingAuthorization, p.Status)
	require.Equal(t, models.StatusPendingAuthorization, result.Current)
}

func TestApplyDuplicateIsRejected(t *testing.T) {
	p := pending()
	first := Apply(p, models.StatusAuthorized, "notification AUTHORISED")
	require.True(t, first.Applied)
	require.True(t, first.TriggerCompletion)

	// Re-delivery of the same notification: Authorized is not reachable
	// from Authorized, so nothing is re-applied and nothing re-fires.
	second := Apply(p, models.StatusAuthorized, "notification AUTHORISED")
	require.False(t, second.Applied)
	require.False(t, second.TriggerCompletion)
	require.Equal(t, models.StatusAuthorized, p.Status)
}

func TestTerminalStatusesHaveNoExits(t *testing.T) {
	all := []models.PaymentStatus{
		models.StatusPendingAuthorization,
		models.StatusAuthorized,
		models.StatusAcquired,
		models.StatusAcquireFailed,
		models.StatusRefunded,
		models.StatusRefundFailed,
		models.StatusDeclined,
		models.StatusCancelled,
	}
	terminals := []models.PaymentStatus{
		models.StatusDeclined,
		models.StatusCancelled,
		models.StatusRefunded,
	}

	for _, terminal := range terminals {
		for _, target := range all {
			p := &models.Payment{ReferenceID: "ORDER-1", Status: terminal}
			result := Apply(p, target, "any")
			require.False(t, result.Applied, "%s -> %s must be rejected", terminal, target)
			require.Equal(t, terminal, p.Status)
		}
	}
}

func TestCompletionFlagOnlyForAuthorizationPath(t *testing.T) {
	// Acquired -> Refunded is applied but never triggers fulfillment.
	p := &models.Payment{ReferenceID: "ORDER-1", Status: models.StatusAcquired}
	result := Apply(p, models.StatusRefunded, "operation refund")
	require.True(t, result.Applied)
	require.False(t, result.TriggerCompletion)

	// A decline does not trigger either.
	p = pending()
	result = Apply(p, models.StatusDeclined, "notification REFUSED")
	require.True(t, result.Applied)
	require.False(t, result.TriggerCompletion)
}

func TestCompletionFlagSuppressedOnceSignalled(t *testing.T) {
	p := pending()
	p.CompletionSignalled = true

	result := Apply(p, models.StatusAuthorized, "notification AUTHORISED")
	require.True(t, result.Applied)
	require.False(t, result.TriggerCompletion)
}

func TestCompletionFlagNotRepeatedAcrossLifecycle(t *testing.T) {
	p := pending()

	first := Apply(p, models.StatusAuthorized, "auth response")
	require.True(t, first.TriggerCompletion)
	p.CompletionSignalled = true

	second := Apply(p, models.StatusAcquired, "capture notification")
	require.True(t, second.Applied)
	require.False(t, second.TriggerCompletion)
}

func TestFailedStatesAreRetryable(t *testing.T) {
	p := &models.Payment{ReferenceID: "ORDER-1", Status: models.StatusAcquireFailed}
	require.True(t, Apply(p, models.StatusAcquired, "operation acquire").Applied)

	p = &models.Payment{ReferenceID: "ORDER-1", Status: models.StatusRefundFailed}
	require.True(t, Apply(p, models.StatusRefunded, "operation refund").Applied)
}
