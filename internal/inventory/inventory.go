package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/zapkart/zapkart-backend/pkg/errors"
)

// StockCommitRequest asks for qty units of a product to be permanently deducted.
type StockCommitRequest struct {
	ProductID uuid.UUID
	Name      string
	Qty       int
}

// ShortfallDetail reports a line whose deduction could not be satisfied.
type ShortfallDetail struct {
	ProductID    uuid.UUID `json:"product_id"`
	ProductName  string    `json:"product_name,omitempty"`
	RequestedQty int       `json:"requested_qty"`
}

// CommitStock deducts stock for every request with a guarded UPDATE per row.
// The guard (available_qty >= qty) makes overselling impossible no matter how
// many confirmations race. Any shortfall fails the whole call so the caller's
// transaction rolls back all prior deductions.
func CommitStock(ctx context.Context, tx *gorm.DB, requests []StockCommitRequest) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock commit")
	}

	var shortfalls []ShortfallDetail
	for _, req := range requests {
		if req.Qty <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid quantity %d for product %s", req.Qty, req.ProductID))
		}
		res := tx.WithContext(ctx).Exec(`
			UPDATE inventory_items
			SET available_qty = available_qty - ?,
				updated_at = CURRENT_TIMESTAMP
			WHERE product_id = ? AND available_qty >= ?
		`, req.Qty, req.ProductID, req.Qty)
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "commit stock")
		}
		if res.RowsAffected == 0 {
			shortfalls = append(shortfalls, ShortfallDetail{
				ProductID:    req.ProductID,
				ProductName:  req.Name,
				RequestedQty: req.Qty,
			})
		}
	}
	if len(shortfalls) > 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("insufficient stock for %d item(s)", len(shortfalls))).
			WithDetails(map[string]any{"shortfalls": shortfalls})
	}
	return nil
}

// Reader answers advisory stock questions outside a commit transaction.
// Its answers are instantly stale; only CommitStock reserves anything.
type Reader struct {
	db *gorm.DB
}

func NewReader(db *gorm.DB) *Reader {
	return &Reader{db: db}
}

// AvailableQuantities returns the current available count per product. Products
// without an inventory row are absent from the map, which callers should treat
// as zero stock.
func (r *Reader) AvailableQuantities(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	if len(productIDs) == 0 {
		return map[uuid.UUID]int{}, nil
	}
	var rows []struct {
		ProductID    uuid.UUID `gorm:"column:product_id"`
		AvailableQty int       `gorm:"column:available_qty"`
	}
	err := r.db.WithContext(ctx).
		Table("inventory_items").
		Select("product_id, available_qty").
		Where("product_id IN ?", productIDs).
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read available stock")
	}
	out := make(map[uuid.UUID]int, len(rows))
	for _, row := range rows {
		out[row.ProductID] = row.AvailableQty
	}
	return out, nil
}

// Restock returns qty units of a product, used when a confirmed item is
// cancelled or a return is approved.
func Restock(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for restock")
	}
	res := tx.WithContext(ctx).Exec(`
		UPDATE inventory_items
		SET available_qty = available_qty + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE product_id = ?
	`, qty, productID)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "restock inventory")
	}
	return nil
}
