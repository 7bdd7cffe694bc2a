// Package interfaces holds the collaborator contracts the engine consumes:
// the payment store, the processing lock, event publishing, the fulfillment
// completion signal, and the per-processor remote transport closures.
package interfaces

import (
	"context"
	"time"

	"github.com/akylbek/payment-system/callback-engine/internal/models"
)

// PaymentRepository persists payments keyed by merchant reference id. The
// compare-and-set contract of TransitionStatus and MarkCompletionSignalled
// is what keeps the idempotency guarantee intact under concurrent delivery
// of duplicate notifications.
type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetByReferenceID(ctx context.Context, referenceID string) (*models.Payment, error)
	// TransitionStatus updates status only when the stored status still
	// equals from; the returned count is zero when a concurrent delivery
	// won the race.
	TransitionStatus(ctx context.Context, referenceID string, from, to models.PaymentStatus) (int64, error)
	SetTransactionID(ctx context.Context, referenceID, transactionID string) error
	SaveProperties(ctx context.Context, referenceID string, properties map[string]string) error
	// MarkCompletionSignalled flips the flag only if currently unset and
	// reports whether this caller won.
	MarkCompletionSignalled(ctx context.Context, referenceID string) (bool, error)
}

// ProcessingLocker serializes concurrent processing of one reference id
// across instances.
type ProcessingLocker interface {
	Acquire(ctx context.Context, referenceID string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, referenceID string) error
}

// EventPublisher emits a state-changed event for every applied transition.
type EventPublisher interface {
	PublishStateChanged(ctx context.Context, event models.StateChangedEvent) error
}

// CompletionSignaler notifies the fulfillment pipeline. Invoked at most
// once per payment; downstream behavior is entirely external.
type CompletionSignaler interface {
	SignalCompletion(ctx context.Context, event models.CompletionEvent) error
}

// QueryResult is the normalized shape of a processor settlement query.
type QueryResult struct {
	Found       bool
	Status      string
	RawAmount   string
	RawCurrency string
}

// QueryFunc queries the processor's authoritative transaction status.
// Found=false means the processor has not indexed the transaction; it is
// not an error.
type QueryFunc func(ctx context.Context, transactionRef string) (QueryResult, error)

// PerformResult is the normalized shape of a remote operation call.
type PerformResult struct {
	Success     bool
	Status      string
	RawResponse string
}

// PerformFunc executes a cancel/acquire/refund against the processor.
type PerformFunc func(ctx context.Context, operation string, transactionRef string) (PerformResult, error)
