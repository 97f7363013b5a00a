package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/zapkart/zapkart-backend/pkg/enums"
)

// Order is the committed outcome of a checkout draft. The unique draft_id
// column is what makes confirmation exactly-once under concurrent callbacks.
type Order struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber      string              `gorm:"column:order_number;not null;uniqueIndex"`
	UserID           uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	DraftID          uuid.UUID           `gorm:"column:draft_id;type:uuid;not null;uniqueIndex"`
	PaymentAttemptID *uuid.UUID          `gorm:"column:payment_attempt_id;type:uuid"`
	PaymentMethod    enums.PaymentMethod `gorm:"column:payment_method;type:text;not null"`
	Status           enums.OrderStatus   `gorm:"column:status;type:text;not null"`
	CouponID         *uuid.UUID          `gorm:"column:coupon_id;type:uuid"`
	Currency         string              `gorm:"column:currency;not null;default:'INR'"`
	SubtotalCents    int                 `gorm:"column:subtotal_cents;not null"`
	DiscountCents    int                 `gorm:"column:discount_cents;not null;default:0"`
	TotalCents       int                 `gorm:"column:total_cents;not null"`
	FailureReason    string              `gorm:"column:failure_reason"`
	ConfirmedAt      *time.Time          `gorm:"column:confirmed_at"`
	CancelledAt      *time.Time          `gorm:"column:cancelled_at"`
	Items            []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// ActiveItems returns the items that have not been cancelled or returned.
func (o *Order) ActiveItems() []OrderItem {
	out := make([]OrderItem, 0, len(o.Items))
	for _, it := range o.Items {
		if it.Status == enums.OrderItemStatusActive {
			out = append(out, it)
		}
	}
	return out
}
