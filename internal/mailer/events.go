package mailer

import (
	"context"
	"time"

	"go.uber.org/zap"

	"greybackend/internal/model"
)

// DeliveryEvent is published after each audited attempt.
type DeliveryEvent struct {
	ReceiptID  string               `json:"receipt_id"`
	Status     model.DeliveryStatus `json:"status"`
	Mock       bool                 `json:"mock"`
	Recipients []string             `json:"recipients"`
	Subject    string               `json:"subject"`
	MessageID  string               `json:"message_id,omitempty"`
	Error      string               `json:"error,omitempty"`
	OccurredAt time.Time            `json:"occurred_at"`
}

func deliveryEvent(r *Receipt, subject string, status model.DeliveryStatus, errMsg string, at time.Time) DeliveryEvent {
	return DeliveryEvent{
		ReceiptID:  r.ID,
		Status:     status,
		Mock:       r.Mock,
		Recipients: r.Recipients,
		Subject:    subject,
		MessageID:  r.MessageID,
		Error:      errMsg,
		OccurredAt: at.UTC(),
	}
}

func (d *Dispatcher) publish(ctx context.Context, log *zap.Logger, routingKey string, ev DeliveryEvent) {
	if d.opts.Events == nil {
		return
	}
	err := d.breaker.Execute(func() error {
		return d.opts.Events.Publish(ctx, routingKey, ev)
	})
	if err != nil {
		log.Warn("delivery event not published", zap.String("routing_key", routingKey), zap.Error(err))
	}
}
