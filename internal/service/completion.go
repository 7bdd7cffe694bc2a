package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/akylbek/payment-system/callback-engine/internal/models"
)

const completionSubject = "order.fulfillment"
const completionTimeout = 5 * time.Second

// NatsCompletionSignaler notifies the fulfillment service over NATS
// request/reply so the engine knows the signal was taken.
type NatsCompletionSignaler struct {
	nc *nats.Conn
}

func NewNatsCompletionSignaler(nc *nats.Conn) *NatsCompletionSignaler {
	return &NatsCompletionSignaler{nc: nc}
}

func (s *NatsCompletionSignaler) SignalCompletion(ctx context.Context, event models.CompletionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, completionTimeout)
		defer cancel()
	}

	_, err = s.nc.RequestWithContext(ctx, completionSubject, payload)
	return err
}
