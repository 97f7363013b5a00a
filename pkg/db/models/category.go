package models

import (
	"time"

	"github.com/google/uuid"
)

// Category groups products and may carry its own offer percent.
type Category struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name         string    `gorm:"column:name;not null;uniqueIndex"`
	OfferPercent int       `gorm:"column:offer_percent;not null;default:0"`
	IsListed     bool      `gorm:"column:is_listed;not null;default:true"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
