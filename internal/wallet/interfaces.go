package wallet

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zapkart/zapkart-backend/pkg/db/models"
	"github.com/zapkart/zapkart-backend/pkg/pagination"
)

// Repository defines persistence operations for the wallet ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Balance(ctx context.Context, userID uuid.UUID) (int, error)
	InsertCredit(ctx context.Context, entry *models.WalletLedgerEntry) error
	InsertDebitGuarded(ctx context.Context, entry *models.WalletLedgerEntry) (bool, error)
	ListEntries(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.WalletLedgerEntry, string, error)
}
