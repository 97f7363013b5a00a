package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zapkart/zapkart-backend/pkg/db/models"
)

// Repository exposes read access to the product catalog. Cart and checkout
// always re-fetch through here so pricing never trusts client snapshots.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	FindCategoryByID(ctx context.Context, id uuid.UUID) (*models.Category, error)
}
