package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/akylbek/payment-system/callback-engine/internal/models"
	"github.com/akylbek/payment-system/callback-engine/internal/processors"
	"github.com/akylbek/payment-system/callback-engine/internal/statemachine"
	"github.com/akylbek/payment-system/callback-engine/internal/translate"
)

// Operation is a merchant-initiated remote call against a payment.
type Operation string

const (
	OperationCancel  Operation = "cancel"
	OperationAcquire Operation = "acquire"
	OperationRefund  Operation = "refund"
)

// OperationExecutor drives cancel/acquire/refund through the same status
// translation and state machine the callback path uses. It queries the
// remote settlement status before mutating anything: a refund of a payment
// the processor has not yet settled degrades to a cancel.
type OperationExecutor struct {
	core *CallbackProcessor
}

func NewOperationExecutor(core *CallbackProcessor) *OperationExecutor {
	return &OperationExecutor{core: core}
}

// Execute runs one operation for the payment identified by referenceID.
func (e *OperationExecutor) Execute(ctx context.Context, proc processors.Processor, referenceID string, op Operation) (models.Outcome, error) {
	payment, err := e.core.repo.GetByReferenceID(ctx, referenceID)
	if err != nil {
		return models.Outcome{}, err
	}
	if payment.TransactionID == "" {
		return models.Rejected(models.ReasonRemoteOperationFailure, payment.Status, "no transaction reference assigned yet"), nil
	}

	locked, err := e.core.locker.Acquire(ctx, referenceID, processingLockTTL)
	if err != nil {
		return models.Outcome{}, err
	}
	if !locked {
		return models.Rejected(models.ReasonIllegalTransition, payment.Status, ""), nil
	}
	defer e.core.locker.Release(context.WithoutCancel(ctx), referenceID)

	// Query-before-mutate: the remote settlement status decides whether
	// the requested operation qualifies at all.
	queried, err := proc.Query(ctx, payment.TransactionID)
	if err != nil {
		return e.failOperation(ctx, proc, payment, op, err.Error())
	}
	if !queried.Found {
		return models.Rejected(models.ReasonReconciliationNotFound, payment.Status, payment.TransactionID), nil
	}

	remoteStatus, err := proc.Profile.Statuses.Translate(queried.Status)
	var unsupported *translate.UnsupportedStatusError
	if errors.As(err, &unsupported) {
		return models.Rejected(models.ReasonUnsupportedStatus, payment.Status, unsupported.Raw), nil
	}
	if err != nil {
		return models.Outcome{}, err
	}

	op, outcome := qualifyOperation(op, remoteStatus, payment)
	if outcome != nil {
		return *outcome, nil
	}

	performed, err := proc.Perform(ctx, string(op), payment.TransactionID)
	if err != nil {
		return e.failOperation(ctx, proc, payment, op, err.Error())
	}
	if !performed.Success {
		return e.failOperation(ctx, proc, payment, op, performed.RawResponse)
	}

	target := successTarget(op)
	result, raced, err := e.core.applyAndPersist(ctx, payment, target, fmt.Sprintf("operation %s", op))
	if err != nil {
		return models.Outcome{}, err
	}
	if !result.Applied || raced {
		return models.Rejected(models.ReasonIllegalTransition, payment.Status, ""), nil
	}

	signalled := false
	if result.TriggerCompletion {
		signalled, err = e.core.signalCompletion(ctx, payment)
		if err != nil {
			e.core.logger.Error("completion signal failed",
				zap.String("reference_id", referenceID),
				zap.Error(err),
			)
		}
	}

	return models.Outcome{Applied: true, Status: target, Signalled: signalled}, nil
}

// qualifyOperation checks the remote settlement status against the
// requested operation. It may substitute the operation (refund before
// settlement becomes cancel) or reject it outright.
func qualifyOperation(op Operation, remote models.PaymentStatus, payment *models.Payment) (Operation, *models.Outcome) {
	switch op {
	case OperationRefund:
		if remote == models.StatusAuthorized {
			// Settlement still pending on the processor side.
			return OperationCancel, nil
		}
		if remote != models.StatusAcquired {
			out := models.Rejected(models.ReasonRemoteOperationFailure, payment.Status,
				fmt.Sprintf("refund requires a settled transaction, remote reports %s", remote))
			return op, &out
		}
	case OperationAcquire:
		if remote != models.StatusAuthorized {
			out := models.Rejected(models.ReasonRemoteOperationFailure, payment.Status,
				fmt.Sprintf("acquire requires an authorized transaction, remote reports %s", remote))
			return op, &out
		}
	case OperationCancel:
		if remote == models.StatusAcquired || remote == models.StatusRefunded {
			out := models.Rejected(models.ReasonRemoteOperationFailure, payment.Status,
				fmt.Sprintf("cannot cancel a settled transaction, remote reports %s", remote))
			return op, &out
		}
	}
	return op, nil
}

// failOperation records the remote failure: acquire and refund move the
// payment to their *Failed variant, a failed cancel leaves it unchanged.
// The raw remote message is surfaced either way and never retried here.
func (e *OperationExecutor) failOperation(ctx context.Context, proc processors.Processor, payment *models.Payment, op Operation, rawMessage string) (models.Outcome, error) {
	e.core.logger.Error("remote operation failed",
		zap.String("processor", proc.Profile.Name),
		zap.String("reference_id", payment.ReferenceID),
		zap.String("operation", string(op)),
		zap.String("remote_message", rawMessage),
	)

	target := failureTarget(op)
	if target == "" || !statemachine.CanTransition(payment.Status, target) {
		return models.Rejected(models.ReasonRemoteOperationFailure, payment.Status, rawMessage), nil
	}

	if _, _, err := e.core.applyAndPersist(ctx, payment, target, fmt.Sprintf("operation %s failed", op)); err != nil {
		return models.Outcome{}, err
	}
	return models.Rejected(models.ReasonRemoteOperationFailure, payment.Status, rawMessage), nil
}

func successTarget(op Operation) models.PaymentStatus {
	switch op {
	case OperationCancel:
		return models.StatusCancelled
	case OperationAcquire:
		return models.StatusAcquired
	default:
		return models.StatusRefunded
	}
}

func failureTarget(op Operation) models.PaymentStatus {
	switch op {
	case OperationAcquire:
		return models.StatusAcquireFailed
	case OperationRefund:
		return models.StatusRefundFailed
	default:
		return ""
	}
}
