package models

// RejectReason classifies why a callback or operation did not change the
// payment. These are expected failure paths, not errors.
type RejectReason string

const (
	ReasonAuthenticationFailure  RejectReason = "AUTHENTICATION_FAILURE"
	ReasonUnsupportedStatus      RejectReason = "UNSUPPORTED_STATUS"
	ReasonIllegalTransition      RejectReason = "ILLEGAL_TRANSITION"
	ReasonReconciliationNotFound RejectReason = "RECONCILIATION_NOT_FOUND"
	ReasonRemoteOperationFailure RejectReason = "REMOTE_OPERATION_FAILURE"
	ReasonUnknownPayment         RejectReason = "UNKNOWN_PAYMENT"
)

// Outcome is the result of processing one inbound notification or one
// outbound operation. The inbound request is acknowledged regardless of
// Applied, so processors stop re-delivering.
type Outcome struct {
	Applied bool          `json:"applied"`
	Reason  RejectReason  `json:"reason,omitempty"`
	Status  PaymentStatus `json:"status,omitempty"`
	// RawValue carries the offending processor value for
	// UnsupportedStatus and the remote message for RemoteOperationFailure.
	RawValue  string `json:"raw_value,omitempty"`
	Signalled bool   `json:"-"`
}

// Rejected builds a non-applied outcome with the payment's current status.
func Rejected(reason RejectReason, current PaymentStatus, raw string) Outcome {
	return Outcome{Reason: reason, Status: current, RawValue: raw}
}
