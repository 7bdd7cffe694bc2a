package models

import "time"

// PaymentStatus is the canonical payment lifecycle status. Processor-native
// vocabularies are mapped onto this set by the translate package.
type PaymentStatus string

const (
	StatusPendingAuthorization PaymentStatus = "PENDING_AUTHORIZATION"
	StatusAuthorized           PaymentStatus = "AUTHORIZED"
	StatusAcquired             PaymentStatus = "ACQUIRED"
	StatusAcquireFailed        PaymentStatus = "ACQUIRE_FAILED"
	StatusRefunded             PaymentStatus = "REFUNDED"
	StatusRefundFailed         PaymentStatus = "REFUND_FAILED"
	StatusDeclined             PaymentStatus = "DECLINED"
	StatusCancelled            PaymentStatus = "CANCELLED"
)

// IsTerminal reports whether the status has no outgoing transitions.
// AcquireFailed and RefundFailed are not terminal: a later retry of the
// operation may still move the payment forward.
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case StatusDeclined, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

// Payment is the record correlated to inbound processor notifications.
// Identity is the merchant-assigned ReferenceID; TransactionID is assigned
// by the remote processor once known. Payments are never deleted, only
// transitioned.
type Payment struct {
	ReferenceID         string            `json:"reference_id"`
	TransactionID       string            `json:"transaction_id,omitempty"`
	AmountCents         int64             `json:"amount_cents"`
	CurrencyCode        string            `json:"currency_code"`
	Status              PaymentStatus     `json:"status"`
	Processor           string            `json:"processor"`
	CompletionSignalled bool              `json:"completion_signalled"`
	Properties          map[string]string `json:"properties,omitempty"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

// SetProperty records processor-specific auxiliary state (security tokens,
// recurring references) in the open-ended property bag.
func (p *Payment) SetProperty(key, value string) {
	if p.Properties == nil {
		p.Properties = make(map[string]string)
	}
	p.Properties[key] = value
}

// StateChangedEvent is published to Kafka for every applied transition.
type StateChangedEvent struct {
	EventID       string        `json:"event_id"`
	ReferenceID   string        `json:"reference_id"`
	TransactionID string        `json:"transaction_id,omitempty"`
	Processor     string        `json:"processor"`
	PreviousState PaymentStatus `json:"previous_state"`
	State         PaymentStatus `json:"state"`
	Reason        string        `json:"reason,omitempty"`
	OccurredAt    time.Time     `json:"occurred_at"`
}

// CompletionEvent is the payload of the at-most-once fulfillment signal.
type CompletionEvent struct {
	ReferenceID   string        `json:"reference_id"`
	TransactionID string        `json:"transaction_id,omitempty"`
	AmountCents   int64         `json:"amount_cents"`
	CurrencyCode  string        `json:"currency_code"`
	Status        PaymentStatus `json:"status"`
}
