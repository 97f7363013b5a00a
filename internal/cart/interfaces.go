package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zapkart/zapkart-backend/pkg/db/models"
)

// Repository defines persistence operations for cart tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindActiveCartByUser(ctx context.Context, userID uuid.UUID) (*models.CartRecord, error)
	CreateCart(ctx context.Context, cart *models.CartRecord) (*models.CartRecord, error)
	UpsertItem(ctx context.Context, item *models.CartItem) error
	DeleteItem(ctx context.Context, cartID, productID uuid.UUID) error
	MarkConverted(ctx context.Context, cartID uuid.UUID) error
}
