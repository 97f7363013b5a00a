package wallet

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zapkart/zapkart-backend/pkg/db/models"
	"github.com/zapkart/zapkart-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a wallet repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Balance(ctx context.Context, userID uuid.UUID) (int, error) {
	var balance int
	err := r.db.WithContext(ctx).
		Model(&models.WalletLedgerEntry{}).
		Select("COALESCE(SUM(amount_cents), 0)").
		Where("user_id = ?", userID).
		Scan(&balance).Error
	return balance, err
}

func (r *repository) InsertCredit(ctx context.Context, entry *models.WalletLedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// InsertDebitGuarded appends a debit only while the resulting balance stays
// non-negative. Ledger inserts for one user do not conflict at the row level,
// so under READ COMMITTED two concurrent debits could each pass the sum check
// against a snapshot missing the other. A per-user advisory lock serializes
// them; the lock is released when the surrounding transaction ends.
func (r *repository) InsertDebitGuarded(ctx context.Context, entry *models.WalletLedgerEntry) (bool, error) {
	if r.db.Dialector.Name() == "postgres" {
		err := r.db.WithContext(ctx).
			Exec("SELECT pg_advisory_xact_lock(hashtext(?))", entry.UserID.String()).Error
		if err != nil {
			return false, err
		}
	}
	res := r.db.WithContext(ctx).Exec(`
		INSERT INTO wallet_ledger_entries (id, user_id, type, amount_cents, currency, idempotency_key, order_id, note, created_at)
		SELECT ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP
		WHERE (SELECT COALESCE(SUM(amount_cents), 0) FROM wallet_ledger_entries WHERE user_id = ?) >= ?
	`, entry.ID, entry.UserID, entry.Type, entry.AmountCents, entry.Currency,
		entry.IdempotencyKey, entry.OrderID, entry.Note,
		entry.UserID, -entry.AmountCents)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) ListEntries(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.WalletLedgerEntry, string, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit))

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var entries []models.WalletLedgerEntry
	if err := query.Find(&entries).Error; err != nil {
		return nil, "", err
	}

	next := ""
	if len(entries) > limit {
		entries = entries[:limit]
		last := entries[len(entries)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return entries, next, nil
}
