// Package statemachine owns the legal transitions of the canonical payment
// lifecycle and the idempotency guard: a duplicate notification whose
// target status is not reachable from the current status is rejected
// without mutation.
package statemachine

import "github.com/akylbek/payment-system/callback-engine/internal/models"

// transitions maps each status to the set of statuses reachable from it.
// Declined, Cancelled and Refunded are terminal. AcquireFailed and
// RefundFailed are re-enterable so a later operation retry can proceed.
var transitions = map[models.PaymentStatus]map[models.PaymentStatus]struct{}{
	models.StatusPendingAuthorization: set(
		models.StatusAuthorized,
		models.StatusAcquired,
		models.StatusDeclined,
		models.StatusCancelled,
	),
	models.StatusAuthorized: set(
		models.StatusAcquired,
		models.StatusAcquireFailed,
		models.StatusCancelled,
		models.StatusDeclined,
	),
	models.StatusAcquired: set(
		models.StatusRefunded,
		models.StatusRefundFailed,
	),
	models.StatusAcquireFailed: set(
		models.StatusAcquired,
		models.StatusCancelled,
	),
	models.StatusRefundFailed: set(
		models.StatusRefunded,
	),
	models.StatusDeclined:  {},
	models.StatusCancelled: {},
	models.StatusRefunded:  {},
}

func set(statuses ...models.PaymentStatus) map[models.PaymentStatus]struct{} {
	m := make(map[models.PaymentStatus]struct{}, len(statuses))
	for _, s := range statuses {
		m[s] = struct{}{}
	}
	return m
}

// Result reports whether a transition was applied. On rejection Current
// holds the unchanged status so callers can classify the duplicate.
type Result struct {
	Applied bool
	Current models.PaymentStatus
	From    models.PaymentStatus
	Reason  string
	// TriggerCompletion is true only for the first successful transition
	// of this payment out of PendingAuthorization/Authorized into
	// Authorized/Acquired. It is what keeps order fulfillment from firing
	// twice when both an authorization response and a later notification
	// claim success.
	TriggerCompletion bool
}

// CanTransition reports whether target is reachable from current.
func CanTransition(current, target models.PaymentStatus) bool {
	reachable, ok := transitions[current]
	if !ok {
		return false
	}
	_, ok = reachable[target]
	return ok
}

// Apply moves payment to target if the transition is legal, mutating
// payment.Status in place. Illegal transitions leave the payment untouched.
func Apply(payment *models.Payment, target models.PaymentStatus, reason string) Result {
	if !CanTransition(payment.Status, target) {
		return Result{Current: payment.Status, Reason: reason}
	}

	from := payment.Status
	payment.Status = target

	trigger := completionQualifies(from, target) && !payment.CompletionSignalled
	return Result{
		Applied:           true,
		Current:           target,
		From:              from,
		Reason:            reason,
		TriggerCompletion: trigger,
	}
}

func completionQualifies(from, to models.PaymentStatus) bool {
	if from != models.StatusPendingAuthorization && from != models.StatusAuthorized {
		return false
	}
	return to == models.StatusAuthorized || to == models.StatusAcquired
}
