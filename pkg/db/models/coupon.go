package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Coupon is a percentage discount with optional category scoping. UsedCount is
// advanced with a compare-and-swap so UsageLimit holds under concurrency.
type Coupon struct {
	ID               uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code             string         `gorm:"column:code;not null;uniqueIndex"`
	Description      string         `gorm:"column:description"`
	DiscountPercent  int            `gorm:"column:discount_percent;not null"`
	MaxDiscountCents int            `gorm:"column:max_discount_cents;not null;default:0"`
	MinOrderCents    int            `gorm:"column:min_order_cents;not null;default:0"`
	UsageLimit       int            `gorm:"column:usage_limit;not null;default:0"`
	UsedCount        int            `gorm:"column:used_count;not null;default:0"`
	Categories       pq.StringArray `gorm:"column:categories;type:text[]"`
	ValidFrom        time.Time      `gorm:"column:valid_from;not null"`
	ValidUntil       time.Time      `gorm:"column:valid_until;not null"`
	IsActive         bool           `gorm:"column:is_active;not null;default:true"`
	CreatedAt        time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

// AppliesToCategory reports whether the coupon covers the given category.
// An empty Categories list means the coupon is storewide.
func (c *Coupon) AppliesToCategory(categoryID uuid.UUID) bool {
	if len(c.Categories) == 0 {
		return true
	}
	id := categoryID.String()
	for _, cat := range c.Categories {
		if cat == id {
			return true
		}
	}
	return false
}
