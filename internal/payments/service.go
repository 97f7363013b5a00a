package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zapkart/zapkart-backend/internal/checkout"
	"github.com/zapkart/zapkart-backend/internal/orders"
	"github.com/zapkart/zapkart-backend/pkg/db/models"
	"github.com/zapkart/zapkart-backend/pkg/enums"
	pkgerrors "github.com/zapkart/zapkart-backend/pkg/errors"
	"github.com/zapkart/zapkart-backend/pkg/gateway"
	"github.com/zapkart/zapkart-backend/pkg/logger"
	"github.com/zapkart/zapkart-backend/pkg/outbox"
	"github.com/zapkart/zapkart-backend/pkg/outbox/payloads"
)

// Gateway callback event names, matching the provider's webhook payloads.
const (
	CallbackEventCaptured = "payment.captured"
	CallbackEventFailed   = "payment.failed"
)

// StartInput identifies whose draft is being paid.
type StartInput struct {
	UserID  uuid.UUID
	DraftID uuid.UUID
}

// StartResult is what a payment start hands back to the client. Wallet and
// cash-on-delivery reconcile inline, so Order is already confirmed for them;
// online payments return the gateway order the client SDK completes.
type StartResult struct {
	Attempt      *models.PaymentAttempt
	Order        *models.Order
	GatewayOrder *gateway.GatewayOrder
}

// CallbackInput is the parsed, signature-verified body of a gateway webhook.
type CallbackInput struct {
	GatewayRef string
	Event      string
	Reason     string
}

// Service drives payment attempts from start through reconciliation.
type Service interface {
	StartAttempt(ctx context.Context, input StartInput) (*StartResult, error)
	HandleCallback(ctx context.Context, input CallbackInput) error
	HandleRefundPending(ctx context.Context, envelope outbox.PayloadEnvelope, event models.OutboxEvent) error
}

type orderConfirmer interface {
	ConfirmFromDraft(ctx context.Context, input orders.ConfirmInput) (*models.Order, error)
	RecordPaymentFailure(ctx context.Context, input orders.FailureInput) (*models.Order, error)
}

type gatewayClient interface {
	CreateOrder(ctx context.Context, amountCents int, currency, receipt string) (*gateway.GatewayOrder, error)
	Refund(ctx context.Context, paymentRef string, amountCents int) (*gateway.RefundResult, error)
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo    Repository
	drafts  checkout.Repository
	orders  orderConfirmer
	gateway gatewayClient
	events  eventEmitter
	runner  txRunner
	logg    *logger.Logger
}

// NewService builds a payment service with the required dependencies.
func NewService(repo Repository, drafts checkout.Repository, orderSvc orderConfirmer, gatewayClient gatewayClient, events eventEmitter, runner txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payment repository required")
	}
	if drafts == nil {
		return nil, fmt.Errorf("checkout repository required")
	}
	if orderSvc == nil {
		return nil, fmt.Errorf("order service required")
	}
	if gatewayClient == nil {
		return nil, fmt.Errorf("gateway client required")
	}
	if events == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	if runner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		repo:    repo,
		drafts:  drafts,
		orders:  orderSvc,
		gateway: gatewayClient,
		events:  events,
		runner:  runner,
		logg:    logg,
	}, nil
}

// StartAttempt opens a payment attempt against an open draft. Wallet and
// cash-on-delivery settle synchronously; online attempts park in
// awaiting_capture until the gateway webhook reports the outcome.
func (s *service) StartAttempt(ctx context.Context, input StartInput) (*StartResult, error) {
	draft, err := s.drafts.FindByIDForUser(ctx, input.DraftID, input.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "checkout draft not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load checkout draft")
	}
	if draft.Status != enums.DraftStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "checkout draft is no longer open")
	}
	if draft.Expired(time.Now()) {
		if err := s.drafts.ExpireDraft(ctx, draft.ID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire draft")
		}
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "checkout draft has expired")
	}

	switch draft.PaymentMethod {
	case enums.PaymentMethodOnline:
		return s.startOnline(ctx, draft)
	case enums.PaymentMethodWallet, enums.PaymentMethodCOD:
		return s.startInline(ctx, draft)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported payment method")
	}
}

func (s *service) startOnline(ctx context.Context, draft *models.CheckoutDraft) (*StartResult, error) {
	gwOrder, err := s.gateway.CreateOrder(ctx, draft.TotalCents, draft.Currency, draft.ID.String())
	if err != nil {
		return nil, err
	}

	attempt := &models.PaymentAttempt{
		ID:          uuid.New(),
		DraftID:     draft.ID,
		UserID:      draft.UserID,
		Method:      draft.PaymentMethod,
		Status:      enums.PaymentStatusAwaitingCapture,
		AmountCents: draft.TotalCents,
		Currency:    draft.Currency,
		GatewayRef:  gwOrder.ID,
	}
	if _, err := s.repo.CreateAttempt(ctx, attempt); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment attempt")
	}

	if s.logg != nil {
		logCtx := s.logg.WithDraftID(ctx, draft.ID.String())
		logCtx = s.logg.WithField(logCtx, "gateway_ref", gwOrder.ID)
		s.logg.Info(logCtx, "online payment attempt opened")
	}
	return &StartResult{Attempt: attempt, GatewayOrder: gwOrder}, nil
}

// startInline settles wallet and cash-on-delivery attempts in the request
// path. A failed confirmation closes the attempt but leaves the draft open,
// so a topped-up wallet can try again before the draft expires.
func (s *service) startInline(ctx context.Context, draft *models.CheckoutDraft) (*StartResult, error) {
	attempt := &models.PaymentAttempt{
		ID:          uuid.New(),
		DraftID:     draft.ID,
		UserID:      draft.UserID,
		Method:      draft.PaymentMethod,
		Status:      enums.PaymentStatusCreated,
		AmountCents: draft.TotalCents,
		Currency:    draft.Currency,
	}
	if _, err := s.repo.CreateAttempt(ctx, attempt); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment attempt")
	}

	order, err := s.orders.ConfirmFromDraft(ctx, orders.ConfirmInput{
		DraftID:          draft.ID,
		PaymentAttemptID: &attempt.ID,
	})
	if err != nil {
		reason := err.Error()
		if appErr := pkgerrors.As(err); appErr != nil {
			reason = appErr.Message()
		}
		if _, updErr := s.repo.UpdateStatus(ctx, attempt.ID, enums.PaymentStatusCreated, enums.PaymentStatusFailed, reason); updErr != nil {
			return nil, updErr
		}
		return nil, err
	}

	if _, err := s.repo.UpdateStatus(ctx, attempt.ID, enums.PaymentStatusCreated, enums.PaymentStatusCaptured, ""); err != nil {
		return nil, err
	}
	attempt.Status = enums.PaymentStatusCaptured
	return &StartResult{Attempt: attempt, Order: order}, nil
}

// HandleCallback reconciles a gateway webhook. Replays of settled attempts
// are absorbed, and a captured payment that cannot become an order turns
// into a payment-failed record with a pending refund.
func (s *service) HandleCallback(ctx context.Context, input CallbackInput) error {
	if input.GatewayRef == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "gateway reference is required")
	}

	attempt, err := s.repo.FindByGatewayRef(ctx, input.GatewayRef)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "payment attempt not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment attempt")
	}
	switch input.Event {
	case CallbackEventCaptured:
		if attempt.Status == enums.PaymentStatusFailed {
			// The attempt already settled as failed; a late capture for it
			// is the gateway's problem to reverse, not ours to confirm.
			return pkgerrors.New(pkgerrors.CodeStateConflict, "attempt already settled as failed")
		}
		return s.reconcileCapture(ctx, attempt)
	case CallbackEventFailed:
		if attempt.Status.IsTerminal() {
			return nil
		}
		reason := input.Reason
		if reason == "" {
			reason = "payment failed at gateway"
		}
		if _, err := s.repo.UpdateStatus(ctx, attempt.ID, attempt.Status, enums.PaymentStatusFailed, reason); err != nil {
			return err
		}
		if s.logg != nil {
			logCtx := s.logg.WithDraftID(ctx, attempt.DraftID.String())
			s.logg.Warn(logCtx, "gateway reported payment failure")
		}
		return nil
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown callback event")
	}
}

// reconcileCapture marks the attempt captured and drives the confirmation.
// Confirmation is idempotent on the draft, so a redelivered webhook that
// finds the attempt already captured simply finishes or re-finds the order.
func (s *service) reconcileCapture(ctx context.Context, attempt *models.PaymentAttempt) error {
	if attempt.Status != enums.PaymentStatusCaptured {
		if _, err := s.repo.UpdateStatus(ctx, attempt.ID, attempt.Status, enums.PaymentStatusCaptured, ""); err != nil {
			return err
		}
	}

	order, err := s.orders.ConfirmFromDraft(ctx, orders.ConfirmInput{
		DraftID:          attempt.DraftID,
		PaymentAttemptID: &attempt.ID,
	})
	if err == nil {
		if order.PaymentAttemptID != nil && *order.PaymentAttemptID != attempt.ID {
			// The draft's order was confirmed against a different attempt, so
			// this capture is a second charge for the same draft. The order
			// stands; this attempt's money goes back.
			return s.refundDoubleCapture(ctx, attempt, order)
		}
		return nil
	}

	appErr := pkgerrors.As(err)
	if appErr == nil || (appErr.Code() != pkgerrors.CodeStateConflict &&
		appErr.Code() != pkgerrors.CodeConflict &&
		appErr.Code() != pkgerrors.CodeValidation) {
		// Transient failure; the gateway will redeliver and the consumed
		// draft lets the retry find or finish the order.
		return err
	}

	// The money is captured but the order cannot be confirmed. Close the
	// draft and queue the refund.
	_, failErr := s.orders.RecordPaymentFailure(ctx, orders.FailureInput{
		DraftID:          attempt.DraftID,
		PaymentAttemptID: &attempt.ID,
		GatewayRef:       attempt.GatewayRef,
		CapturedCents:    attempt.AmountCents,
		Reason:           appErr.Message(),
	})
	return failErr
}

// refundDoubleCapture queues a gateway refund for an attempt whose money was
// captured after another attempt had already confirmed the draft's order.
func (s *service) refundDoubleCapture(ctx context.Context, attempt *models.PaymentAttempt, order *models.Order) error {
	if s.logg != nil {
		logCtx := s.logg.WithDraftID(ctx, attempt.DraftID.String())
		logCtx = s.logg.WithOrderID(logCtx, order.ID.String())
		logCtx = s.logg.WithField(logCtx, "gateway_ref", attempt.GatewayRef)
		s.logg.Error(logCtx, "duplicate capture for one draft",
			pkgerrors.New(pkgerrors.CodeInvariant, "order confirmed against a different payment attempt"))
	}
	return s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		// The status swap is the emission guard: a redelivered webhook finds
		// the attempt already settled and must not queue a second refund.
		moved, err := s.repo.WithTx(tx).UpdateStatus(ctx, attempt.ID, enums.PaymentStatusCaptured, enums.PaymentStatusFailed, "duplicate capture refunded")
		if err != nil {
			return err
		}
		if !moved {
			return nil
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentRefundPending,
			AggregateType: enums.AggregatePaymentAttempt,
			AggregateID:   attempt.ID,
			Data: payloads.RefundPendingEvent{
				PaymentAttemptID: attempt.ID,
				OrderID:          order.ID,
				UserID:           attempt.UserID,
				GatewayRef:       attempt.GatewayRef,
				AmountCents:      attempt.AmountCents,
				Reason:           "duplicate capture for an already confirmed draft",
			},
		})
	})
}

// HandleRefundPending is the outbox handler that pushes captured money back
// through the gateway once a confirmation has definitively failed.
func (s *service) HandleRefundPending(ctx context.Context, envelope outbox.PayloadEnvelope, event models.OutboxEvent) error {
	var payload payloads.RefundPendingEvent
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode refund payload")
	}
	if payload.GatewayRef == "" || payload.AmountCents <= 0 {
		return pkgerrors.New(pkgerrors.CodeInvariant, "refund payload missing gateway reference or amount")
	}

	result, err := s.gateway.Refund(ctx, payload.GatewayRef, payload.AmountCents)
	if err != nil {
		return err
	}
	if s.logg != nil {
		fields := map[string]any{
			"refund_id":    result.ID,
			"gateway_ref":  payload.GatewayRef,
			"amount_cents": payload.AmountCents,
		}
		logCtx := s.logg.WithFields(ctx, fields)
		logCtx = s.logg.WithOrderID(logCtx, payload.OrderID.String())
		s.logg.Info(logCtx, "gateway refund initiated")
	}
	return nil
}
