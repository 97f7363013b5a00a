package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/zapkart/zapkart-backend/pkg/db/models"
	pkgerrors "github.com/zapkart/zapkart-backend/pkg/errors"
	"github.com/zapkart/zapkart-backend/pkg/logger"
	"github.com/zapkart/zapkart-backend/pkg/outbox"
	"github.com/zapkart/zapkart-backend/pkg/outbox/payloads"
)

// Notification kinds, one per customer-facing event.
const (
	KindOrderConfirmed = "order_confirmed"
	KindPaymentFailed  = "payment_failed"
	KindItemCancelled  = "item_cancelled"
	KindItemReturned   = "item_returned"
)

// Notification is one message bound for a customer channel.
type Notification struct {
	UserID uuid.UUID
	Kind   string
	Title  string
	Body   string
}

// Sender delivers notifications. The production sender is whatever channel
// provider ops wires in; the log sender stands in until then.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

type logSender struct {
	logg *logger.Logger
}

// NewLogSender returns a Sender that records each notification as a
// structured log line.
func NewLogSender(logg *logger.Logger) Sender {
	return &logSender{logg: logg}
}

func (s *logSender) Send(ctx context.Context, n Notification) error {
	if s.logg == nil {
		return nil
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"user_id": n.UserID.String(),
		"kind":    n.Kind,
		"title":   n.Title,
	})
	s.logg.Info(logCtx, "notification sent")
	return nil
}

// Service turns outbox events into customer notifications.
type Service struct {
	sender Sender
}

// NewService builds a notification service with the required dependencies.
func NewService(sender Sender) (*Service, error) {
	if sender == nil {
		return nil, fmt.Errorf("sender required")
	}
	return &Service{sender: sender}, nil
}

// HandleOrderConfirmed notifies the buyer that their order went through.
func (s *Service) HandleOrderConfirmed(ctx context.Context, envelope outbox.PayloadEnvelope, event models.OutboxEvent) error {
	var payload payloads.OrderConfirmedEvent
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode order confirmed payload")
	}
	return s.sender.Send(ctx, Notification{
		UserID: payload.UserID,
		Kind:   KindOrderConfirmed,
		Title:  "Order confirmed",
		Body:   fmt.Sprintf("Your order %s is confirmed.", payload.OrderNumber),
	})
}

// HandleOrderPaymentFailed tells the buyer the payment did not go through
// and any captured money is on its way back.
func (s *Service) HandleOrderPaymentFailed(ctx context.Context, envelope outbox.PayloadEnvelope, event models.OutboxEvent) error {
	var payload payloads.OrderPaymentFailedEvent
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode payment failed payload")
	}
	return s.sender.Send(ctx, Notification{
		UserID: payload.UserID,
		Kind:   KindPaymentFailed,
		Title:  "Payment could not be completed",
		Body:   fmt.Sprintf("We could not complete your order: %s.", payload.Reason),
	})
}

// HandleItemCancelled confirms a line-item cancellation and its refund.
func (s *Service) HandleItemCancelled(ctx context.Context, envelope outbox.PayloadEnvelope, event models.OutboxEvent) error {
	return s.handleItemResolved(ctx, envelope, KindItemCancelled, "Item cancelled")
}

// HandleItemReturned confirms an approved return and its refund.
func (s *Service) HandleItemReturned(ctx context.Context, envelope outbox.PayloadEnvelope, event models.OutboxEvent) error {
	return s.handleItemResolved(ctx, envelope, KindItemReturned, "Return approved")
}

func (s *Service) handleItemResolved(ctx context.Context, envelope outbox.PayloadEnvelope, kind, title string) error {
	var payload payloads.OrderItemResolvedEvent
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode item resolved payload")
	}
	body := "No refund is due for this item."
	if payload.RefundCents > 0 {
		body = fmt.Sprintf("A refund of %d.%02d has been credited to your wallet.", payload.RefundCents/100, payload.RefundCents%100)
	}
	return s.sender.Send(ctx, Notification{
		UserID: payload.UserID,
		Kind:   kind,
		Title:  title,
		Body:   body,
	})
}
