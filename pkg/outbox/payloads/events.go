package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/zapkart/zapkart-backend/pkg/enums"
)

// OrderConfirmedEvent signals that payment reconciled and stock was committed.
type OrderConfirmedEvent struct {
	OrderID     uuid.UUID           `json:"order_id"`
	OrderNumber string              `json:"order_number"`
	UserID      uuid.UUID           `json:"user_id"`
	Method      enums.PaymentMethod `json:"method"`
	TotalCents  int                 `json:"total_cents"`
	ConfirmedAt time.Time           `json:"confirmed_at"`
}

// OrderPaymentFailedEvent reports a captured payment that could not be turned
// into a confirmed order (typically a stock shortfall).
type OrderPaymentFailedEvent struct {
	OrderID uuid.UUID `json:"order_id"`
	UserID  uuid.UUID `json:"user_id"`
	DraftID uuid.UUID `json:"draft_id"`
	Reason  string    `json:"reason"`
}

// RefundPendingEvent asks the refund worker to push money back through the gateway.
type RefundPendingEvent struct {
	PaymentAttemptID uuid.UUID `json:"payment_attempt_id"`
	OrderID          uuid.UUID `json:"order_id"`
	UserID           uuid.UUID `json:"user_id"`
	GatewayRef       string    `json:"gateway_ref"`
	AmountCents      int       `json:"amount_cents"`
	Reason           string    `json:"reason"`
}

// OrderItemResolvedEvent covers both cancellations and completed returns.
type OrderItemResolvedEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderItemID uuid.UUID `json:"order_item_id"`
	UserID      uuid.UUID `json:"user_id"`
	RefundCents int       `json:"refund_cents"`
	ResolvedAt  time.Time `json:"resolved_at"`
}

// ReferralRewardedEvent reports a first-purchase referral payout.
type ReferralRewardedEvent struct {
	ReferrerID     uuid.UUID `json:"referrer_id"`
	ReferredUserID uuid.UUID `json:"referred_user_id"`
	OrderID        uuid.UUID `json:"order_id"`
	AmountCents    int       `json:"amount_cents"`
}
