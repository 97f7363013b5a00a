package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is the catalog record consulted for authoritative prices. Listing
// flags feed the shared availability predicate; nothing else reads them directly.
type Product struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CategoryID   uuid.UUID `gorm:"column:category_id;type:uuid;not null"`
	Name         string    `gorm:"column:name;not null"`
	SKU          string    `gorm:"column:sku;not null;uniqueIndex"`
	PriceCents   int       `gorm:"column:price_cents;not null"`
	OfferPercent int       `gorm:"column:offer_percent;not null;default:0"`
	IsListed     bool      `gorm:"column:is_listed;not null;default:true"`
	IsDeleted    bool      `gorm:"column:is_deleted;not null;default:false"`
	Category     *Category `gorm:"foreignKey:CategoryID"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
