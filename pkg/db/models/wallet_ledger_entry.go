package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/zapkart/zapkart-backend/pkg/enums"
)

// WalletLedgerEntry is one immutable row in a user's append-only wallet ledger.
// Credits are positive, debits negative; the balance is always SUM(amount_cents).
// IdempotencyKey makes every business-meaningful movement at-most-once.
type WalletLedgerEntry struct {
	ID             uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID         uuid.UUID             `gorm:"column:user_id;type:uuid;not null;index"`
	Type           enums.LedgerEntryType `gorm:"column:type;type:text;not null"`
	AmountCents    int                   `gorm:"column:amount_cents;not null"`
	Currency       string                `gorm:"column:currency;not null;default:'INR'"`
	IdempotencyKey string                `gorm:"column:idempotency_key;not null;uniqueIndex"`
	OrderID        *uuid.UUID            `gorm:"column:order_id;type:uuid"`
	Note           string                `gorm:"column:note"`
	Metadata       json.RawMessage       `gorm:"column:metadata;type:jsonb"`
	CreatedAt      time.Time             `gorm:"column:created_at;autoCreateTime"`
}
