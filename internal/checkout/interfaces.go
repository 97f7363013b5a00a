package checkout

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zapkart/zapkart-backend/pkg/db/models"
)

// Repository defines persistence operations for checkout drafts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateDraft(ctx context.Context, draft *models.CheckoutDraft) (*models.CheckoutDraft, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.CheckoutDraft, error)
	FindByIDForUser(ctx context.Context, id, userID uuid.UUID) (*models.CheckoutDraft, error)
	ConsumeDraft(ctx context.Context, id uuid.UUID) (bool, error)
	ExpireDraft(ctx context.Context, id uuid.UUID) error
}
