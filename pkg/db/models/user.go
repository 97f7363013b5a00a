package models

import (
	"time"

	"github.com/google/uuid"
)

// User carries the identity fields the order core needs; authentication lives
// upstream and only the claims reach this service.
type User struct {
	ID           uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email        string     `gorm:"column:email;not null;uniqueIndex"`
	FullName     string     `gorm:"column:full_name;not null"`
	ReferralCode string     `gorm:"column:referral_code;not null;uniqueIndex"`
	ReferredBy   *uuid.UUID `gorm:"column:referred_by;type:uuid"`
	IsBlocked    bool       `gorm:"column:is_blocked;not null;default:false"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
