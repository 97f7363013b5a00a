package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/zapkart/zapkart-backend/pkg/enums"
)

// OrderItem is an immutable snapshot of one purchased line. DiscountShareCents
// is the item's pro-rata slice of the order-level coupon discount, fixed at
// confirmation so refunds never have to re-derive it.
type OrderItem struct {
	ID                 uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID            uuid.UUID             `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID          uuid.UUID             `gorm:"column:product_id;type:uuid;not null"`
	Name               string                `gorm:"column:name;not null"`
	Qty                int                   `gorm:"column:qty;not null"`
	UnitPriceCents     int                   `gorm:"column:unit_price_cents;not null"`
	LineSubtotalCents  int                   `gorm:"column:line_subtotal_cents;not null"`
	DiscountShareCents int                   `gorm:"column:discount_share_cents;not null;default:0"`
	Status             enums.OrderItemStatus `gorm:"column:status;type:text;not null;default:'active'"`
	ReturnReason       string                `gorm:"column:return_reason"`
	ResolvedAt         *time.Time            `gorm:"column:resolved_at"`
	CreatedAt          time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

// RefundCents is the amount owed back if this item is cancelled or returned:
// what the customer actually paid for the line after its discount share.
func (i *OrderItem) RefundCents() int {
	return i.LineSubtotalCents - i.DiscountShareCents
}
