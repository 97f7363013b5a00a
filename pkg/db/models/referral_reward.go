package models

import (
	"time"

	"github.com/google/uuid"
)

// ReferralReward marks that a referrer was paid for a referred user's first
// purchase. The composite unique index makes the reward once-per-pair.
type ReferralReward struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ReferrerID     uuid.UUID `gorm:"column:referrer_id;type:uuid;not null;uniqueIndex:idx_referral_rewards_pair"`
	ReferredUserID uuid.UUID `gorm:"column:referred_user_id;type:uuid;not null;uniqueIndex:idx_referral_rewards_pair"`
	OrderID        uuid.UUID `gorm:"column:order_id;type:uuid;not null"`
	AmountCents    int       `gorm:"column:amount_cents;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}
