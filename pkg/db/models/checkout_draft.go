package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/zapkart/zapkart-backend/pkg/enums"
)

// CheckoutDraft is a priced, not-yet-committed checkout proposal. Its id doubles
// as the idempotency key tying payment attempts and the resulting order together.
type CheckoutDraft struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID        uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	CartID        uuid.UUID           `gorm:"column:cart_id;type:uuid;not null"`
	CouponID      *uuid.UUID          `gorm:"column:coupon_id;type:uuid"`
	PaymentMethod enums.PaymentMethod `gorm:"column:payment_method;type:text;not null"`
	Status        enums.DraftStatus   `gorm:"column:status;type:text;not null;default:'pending'"`
	Currency      string              `gorm:"column:currency;not null;default:'INR'"`
	SubtotalCents int                 `gorm:"column:subtotal_cents;not null"`
	DiscountCents int                 `gorm:"column:discount_cents;not null;default:0"`
	TotalCents    int                 `gorm:"column:total_cents;not null"`
	ExpiresAt     time.Time           `gorm:"column:expires_at;not null"`
	ConsumedAt    *time.Time          `gorm:"column:consumed_at"`
	Items         []CheckoutDraftItem `gorm:"foreignKey:DraftID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// Expired reports whether the draft can no longer accept payment attempts.
func (d *CheckoutDraft) Expired(now time.Time) bool {
	return now.After(d.ExpiresAt)
}

// CheckoutDraftItem freezes the authoritative price of one line at quote time.
type CheckoutDraftItem struct {
	ID                uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	DraftID           uuid.UUID `gorm:"column:draft_id;type:uuid;not null;index"`
	ProductID         uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	Name              string    `gorm:"column:name;not null"`
	Qty               int       `gorm:"column:qty;not null"`
	UnitPriceCents    int       `gorm:"column:unit_price_cents;not null"`
	LineSubtotalCents int       `gorm:"column:line_subtotal_cents;not null"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
}
