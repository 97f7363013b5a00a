package coupons

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zapkart/zapkart-backend/pkg/db"
	"github.com/zapkart/zapkart-backend/pkg/db/models"
	"github.com/zapkart/zapkart-backend/pkg/enums"
	pkgerrors "github.com/zapkart/zapkart-backend/pkg/errors"
	"github.com/zapkart/zapkart-backend/pkg/pricing"
)

// EligibleLine carries the data needed to scope a coupon to order lines.
type EligibleLine struct {
	ProductID         uuid.UUID
	CategoryID        uuid.UUID
	LineSubtotalCents int
}

// Quote is the outcome of validating a coupon against a set of lines.
type Quote struct {
	Coupon                *models.Coupon
	DiscountCents         int
	EligibleSubtotalCents int
}

// Service validates coupon codes and burns redemptions at confirmation.
type Service interface {
	ValidateCode(ctx context.Context, code string, lines []EligibleLine, now time.Time) (*Quote, error)
	Revalidate(ctx context.Context, tx *gorm.DB, couponID uuid.UUID, lines []EligibleLine, now time.Time) (*Quote, error)
	RedeemForOrder(ctx context.Context, tx *gorm.DB, couponID, orderID, userID uuid.UUID, discountCents int) error
}

type service struct {
	repo Repository
}

// NewService builds a coupon service with the required dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("coupons repository required")
	}
	return &service{repo: repo}, nil
}

// An invalid coupon is a conflict with current coupon state, not a malformed
// request: the code exists but cannot be honored right now.
func invalid(reason enums.CouponInvalidReason, msg string) error {
	return pkgerrors.New(pkgerrors.CodeConflict, msg).
		WithDetails(map[string]any{"reason": reason.String()})
}

// ValidateCode resolves a code and quotes the discount it would grant.
func (s *service) ValidateCode(ctx context.Context, code string, lines []EligibleLine, now time.Time) (*Quote, error) {
	coupon, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
	}
	return s.quote(coupon, lines, now)
}

// Revalidate re-checks a previously quoted coupon inside the confirmation
// transaction, where the catalog may have shifted since the draft was built.
func (s *service) Revalidate(ctx context.Context, tx *gorm.DB, couponID uuid.UUID, lines []EligibleLine, now time.Time) (*Quote, error) {
	coupon, err := s.repo.WithTx(tx).FindByID(ctx, couponID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
	}
	return s.quote(coupon, lines, now)
}

func (s *service) quote(coupon *models.Coupon, lines []EligibleLine, now time.Time) (*Quote, error) {
	if !coupon.IsActive || now.Before(coupon.ValidFrom) || now.After(coupon.ValidUntil) {
		return nil, invalid(enums.CouponInvalidExpired, "coupon is not active")
	}
	if coupon.UsageLimit > 0 && coupon.UsedCount >= coupon.UsageLimit {
		return nil, invalid(enums.CouponInvalidUsageLimitExceeded, "coupon usage limit reached")
	}

	subtotal := 0
	eligible := 0
	for _, line := range lines {
		subtotal += line.LineSubtotalCents
		if coupon.AppliesToCategory(line.CategoryID) {
			eligible += line.LineSubtotalCents
		}
	}
	if eligible == 0 {
		return nil, invalid(enums.CouponInvalidNotApplicable, "coupon does not apply to any item")
	}
	if subtotal < coupon.MinOrderCents {
		return nil, invalid(enums.CouponInvalidMinimumNotMet,
			fmt.Sprintf("order total below coupon minimum of %d", coupon.MinOrderCents))
	}

	return &Quote{
		Coupon:                coupon,
		DiscountCents:         pricing.CouponDiscountCents(eligible, coupon.DiscountPercent, coupon.MaxDiscountCents),
		EligibleSubtotalCents: eligible,
	}, nil
}

// RedeemForOrder burns one usage and records the redemption. The usage CAS and
// the unique order_id redemption row together make this at-most-once per order
// even under concurrent confirmations.
func (s *service) RedeemForOrder(ctx context.Context, tx *gorm.DB, couponID, orderID, userID uuid.UUID, discountCents int) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for coupon redemption")
	}
	repo := s.repo.WithTx(tx)

	ok, err := repo.IncrementUsage(ctx, couponID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment coupon usage")
	}
	if !ok {
		return invalid(enums.CouponInvalidUsageLimitExceeded, "coupon usage limit reached")
	}

	err = repo.CreateRedemption(ctx, &models.CouponRedemption{
		ID:            uuid.New(),
		CouponID:      couponID,
		OrderID:       orderID,
		UserID:        userID,
		DiscountCents: discountCents,
	})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "coupon already redeemed for this order")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record coupon redemption")
	}
	return nil
}
