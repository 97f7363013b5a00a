package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/zapkart/zapkart-backend/pkg/enums"
)

// PaymentAttempt tracks one try at collecting money for a checkout draft.
// A draft may accumulate several failed attempts before one captures.
type PaymentAttempt struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	DraftID       uuid.UUID           `gorm:"column:draft_id;type:uuid;not null;index"`
	UserID        uuid.UUID           `gorm:"column:user_id;type:uuid;not null"`
	Method        enums.PaymentMethod `gorm:"column:method;type:text;not null"`
	Status        enums.PaymentStatus `gorm:"column:status;type:text;not null;default:'created'"`
	AmountCents   int                 `gorm:"column:amount_cents;not null"`
	Currency      string              `gorm:"column:currency;not null;default:'INR'"`
	GatewayRef    string              `gorm:"column:gateway_ref;uniqueIndex:idx_payment_attempts_gateway_ref,where:gateway_ref <> ''"`
	FailureReason string              `gorm:"column:failure_reason"`
	CapturedAt    *time.Time          `gorm:"column:captured_at"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
