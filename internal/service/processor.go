package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/callback-engine/internal/interfaces"
	"github.com/akylbek/payment-system/callback-engine/internal/models"
	"github.com/akylbek/payment-system/callback-engine/internal/processors"
	"github.com/akylbek/payment-system/callback-engine/internal/reconcile"
	"github.com/akylbek/payment-system/callback-engine/internal/signature"
	"github.com/akylbek/payment-system/callback-engine/internal/statemachine"
	"github.com/akylbek/payment-system/callback-engine/internal/telemetry"
	"github.com/akylbek/payment-system/callback-engine/internal/translate"
)

const processingLockTTL = 30 * time.Second

// CallbackProcessor orchestrates one inbound notification:
// verify -> (optionally reconcile) -> translate -> transition -> signal.
// No payment mutation happens before the authenticity check passes.
type CallbackProcessor struct {
	repo       interfaces.PaymentRepository
	locker     interfaces.ProcessingLocker
	events     interfaces.EventPublisher
	completion interfaces.CompletionSignaler
	poller     *reconcile.Poller
	logger     *zap.Logger
}

func NewCallbackProcessor(
	repo interfaces.PaymentRepository,
	locker interfaces.ProcessingLocker,
	events interfaces.EventPublisher,
	completion interfaces.CompletionSignaler,
	poller *reconcile.Poller,
	logger *zap.Logger,
) *CallbackProcessor {
	return &CallbackProcessor{
		repo:       repo,
		locker:     locker,
		events:     events,
		completion: completion,
		poller:     poller,
		logger:     logger,
	}
}

// Process handles one notification for the given processor. The returned
// error is reserved for infrastructure failures; every expected failure
// path (forged signature, unknown status, duplicate delivery, exhausted
// reconciliation) is an Outcome so the transport layer can acknowledge the
// notification either way.
func (p *CallbackProcessor) Process(ctx context.Context, proc processors.Processor, fields map[string]string) (models.Outcome, error) {
	profile := proc.Profile

	referenceID := fields[profile.ReferenceField]
	if referenceID == "" {
		return models.Rejected(models.ReasonUnknownPayment, "", ""), nil
	}

	payment, err := p.repo.GetByReferenceID(ctx, referenceID)
	if errors.Is(err, sql.ErrNoRows) {
		p.logger.Warn("notification for unknown payment",
			zap.String("processor", profile.Name),
			zap.String("reference_id", referenceID),
		)
		return models.Rejected(models.ReasonUnknownPayment, "", ""), nil
	}
	if err != nil {
		return models.Outcome{}, err
	}

	if !signature.Verify(profile.Scheme, fields, proc.Secret) {
		p.logger.Warn("notification failed authentication",
			zap.String("processor", profile.Name),
			zap.String("reference_id", referenceID),
		)
		return models.Rejected(models.ReasonAuthenticationFailure, payment.Status, ""), nil
	}

	locked, err := p.locker.Acquire(ctx, referenceID, processingLockTTL)
	if err != nil {
		return models.Outcome{}, err
	}
	if !locked {
		// A concurrent delivery of the same notification holds the lock;
		// treat like any other duplicate.
		return models.Rejected(models.ReasonIllegalTransition, payment.Status, ""), nil
	}
	defer p.locker.Release(context.WithoutCancel(ctx), referenceID)

	// The processor-assigned transaction id is recorded whatever the
	// outcome, so it is never lost on a decline.
	if txID := fields[profile.TransactionField]; txID != "" && payment.TransactionID == "" {
		if err := p.repo.SetTransactionID(ctx, referenceID, txID); err != nil {
			return models.Outcome{}, err
		}
		payment.TransactionID = txID
	}

	target, reason, short, err := p.resolveTarget(ctx, proc, payment, fields)
	if err != nil {
		return models.Outcome{}, err
	}
	if short != nil {
		return *short, nil
	}

	result, raced, err := p.applyAndPersist(ctx, payment, target, reason)
	if err != nil {
		return models.Outcome{}, err
	}
	if !result.Applied || raced {
		p.logger.Info("duplicate or out-of-order notification rejected",
			zap.String("processor", profile.Name),
			zap.String("reference_id", referenceID),
			zap.String("current_state", string(payment.Status)),
			zap.String("target_state", string(target)),
		)
		return models.Rejected(models.ReasonIllegalTransition, payment.Status, ""), nil
	}

	signalled := false
	if result.TriggerCompletion {
		signalled, err = p.signalCompletion(ctx, payment)
		if err != nil {
			p.logger.Error("completion signal failed",
				zap.String("reference_id", referenceID),
				zap.Error(err),
			)
		}
	}

	return models.Outcome{Applied: true, Status: target, Signalled: signalled}, nil
}

// resolveTarget translates the notification into a canonical target
// status, reconciling against the processor's query API when the
// notification carries only a correlation id. A non-nil outcome short-
// circuits processing.
func (p *CallbackProcessor) resolveTarget(ctx context.Context, proc processors.Processor, payment *models.Payment, fields map[string]string) (models.PaymentStatus, string, *models.Outcome, error) {
	profile := proc.Profile

	rawStatus := fields[profile.StatusField]
	reason := fmt.Sprintf("notification %s", rawStatus)

	if profile.ReconcileOnly {
		result, found, err := p.poller.Reconcile(ctx, payment.TransactionID, proc.Query, proc.ReconcileMaxAttempts, proc.ReconcileDelay)
		if err != nil {
			return "", "", nil, err
		}
		if !found {
			telemetry.ReconciliationExhausted.WithLabelValues(profile.Name).Inc()
			out := models.Rejected(models.ReasonReconciliationNotFound, payment.Status, payment.TransactionID)
			return "", "", &out, nil
		}
		p.recordReconciledAmounts(ctx, payment, result)
		rawStatus = result.Status
		reason = fmt.Sprintf("reconciled %s", rawStatus)
	}

	var (
		target models.PaymentStatus
		err    error
	)
	if eventCode := fields[profile.EventField]; profile.EventField != "" && eventCode != "" {
		target, err = profile.Events.Translate(eventCode, parseSuccessFlag(fields[profile.SuccessField]))
		reason = fmt.Sprintf("notification %s success=%s", eventCode, fields[profile.SuccessField])
	} else {
		target, err = profile.Statuses.Translate(rawStatus)
	}

	var unsupported *translate.UnsupportedStatusError
	if errors.As(err, &unsupported) {
		p.logger.Error("processor status outside declared vocabulary",
			zap.String("processor", profile.Name),
			zap.String("reference_id", payment.ReferenceID),
			zap.String("raw_status", unsupported.Raw),
		)
		out := models.Rejected(models.ReasonUnsupportedStatus, payment.Status, unsupported.Raw)
		return "", "", &out, nil
	}
	if err != nil {
		return "", "", nil, err
	}

	return target, reason, nil, nil
}

// applyAndPersist runs the in-memory transition and its compare-and-set
// counterpart in the store. raced is true when another delivery won the
// persistence race after the in-memory check passed.
func (p *CallbackProcessor) applyAndPersist(ctx context.Context, payment *models.Payment, target models.PaymentStatus, reason string) (statemachine.Result, bool, error) {
	result := statemachine.Apply(payment, target, reason)
	if !result.Applied {
		return result, false, nil
	}

	rows, err := p.repo.TransitionStatus(ctx, payment.ReferenceID, result.From, target)
	if err != nil {
		payment.Status = result.From
		return statemachine.Result{}, false, err
	}
	if rows == 0 {
		payment.Status = result.From
		return result, true, nil
	}

	telemetry.TransitionsApplied.WithLabelValues(string(result.From), string(target)).Inc()

	event := models.StateChangedEvent{
		EventID:       uuid.NewString(),
		ReferenceID:   payment.ReferenceID,
		TransactionID: payment.TransactionID,
		Processor:     payment.Processor,
		PreviousState: result.From,
		State:         target,
		Reason:        reason,
		OccurredAt:    time.Now().UTC(),
	}
	if err := p.events.PublishStateChanged(ctx, event); err != nil {
		p.logger.Error("failed to publish state change",
			zap.String("reference_id", payment.ReferenceID),
			zap.Error(err),
		)
	}

	p.logger.Info("payment state transition",
		zap.String("reference_id", payment.ReferenceID),
		zap.String("from_state", string(result.From)),
		zap.String("to_state", string(target)),
		zap.String("reason", reason),
	)

	return result, false, nil
}

// signalCompletion fires the fulfillment signal at most once per payment:
// the store flag is flipped with a compare-and-set before sending, so a
// concurrent duplicate can never signal twice.
func (p *CallbackProcessor) signalCompletion(ctx context.Context, payment *models.Payment) (bool, error) {
	won, err := p.repo.MarkCompletionSignalled(ctx, payment.ReferenceID)
	if err != nil {
		return false, err
	}
	if !won {
		return false, nil
	}
	payment.CompletionSignalled = true

	telemetry.CompletionSignals.Inc()
	return true, p.completion.SignalCompletion(ctx, models.CompletionEvent{
		ReferenceID:   payment.ReferenceID,
		TransactionID: payment.TransactionID,
		AmountCents:   payment.AmountCents,
		CurrencyCode:  payment.CurrencyCode,
		Status:        payment.Status,
	})
}

func (p *CallbackProcessor) recordReconciledAmounts(ctx context.Context, payment *models.Payment, result interfaces.QueryResult) {
	props := map[string]string{
		"reconciledAmount":   result.RawAmount,
		"reconciledCurrency": result.RawCurrency,
	}
	if result.RawCurrency != "" && !strings.EqualFold(result.RawCurrency, payment.CurrencyCode) {
		p.logger.Warn("reconciled currency differs from payment",
			zap.String("reference_id", payment.ReferenceID),
			zap.String("payment_currency", payment.CurrencyCode),
			zap.String("reconciled_currency", result.RawCurrency),
		)
	}
	if err := p.repo.SaveProperties(ctx, payment.ReferenceID, props); err != nil {
		p.logger.Error("failed to save reconciled properties",
			zap.String("reference_id", payment.ReferenceID),
			zap.Error(err),
		)
		return
	}
	for k, v := range props {
		payment.SetProperty(k, v)
	}
}

func parseSuccessFlag(v string) bool {
	return strings.EqualFold(v, "true") || v == "1"
}
