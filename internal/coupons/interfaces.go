package coupons

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zapkart/zapkart-backend/pkg/db/models"
)

// Repository defines persistence operations for coupons and redemptions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByCode(ctx context.Context, code string) (*models.Coupon, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error)
	CreateRedemption(ctx context.Context, redemption *models.CouponRedemption) error
	IncrementUsage(ctx context.Context, couponID uuid.UUID) (bool, error)
}
