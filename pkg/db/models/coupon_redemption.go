package models

import (
	"time"

	"github.com/google/uuid"
)

// CouponRedemption records that a coupon was burned by exactly one order.
// The unique order_id index is the guard against double-application.
type CouponRedemption struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CouponID      uuid.UUID `gorm:"column:coupon_id;type:uuid;not null;index"`
	OrderID       uuid.UUID `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	UserID        uuid.UUID `gorm:"column:user_id;type:uuid;not null"`
	DiscountCents int       `gorm:"column:discount_cents;not null"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
}
