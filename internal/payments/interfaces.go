package payments

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zapkart/zapkart-backend/pkg/db/models"
	"github.com/zapkart/zapkart-backend/pkg/enums"
)

// Repository defines persistence operations for payment attempts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateAttempt(ctx context.Context, attempt *models.PaymentAttempt) (*models.PaymentAttempt, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentAttempt, error)
	FindByGatewayRef(ctx context.Context, gatewayRef string) (*models.PaymentAttempt, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.PaymentStatus, failureReason string) (bool, error)
}
