package referrals

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zapkart/zapkart-backend/internal/wallet"
	"github.com/zapkart/zapkart-backend/pkg/config"
	"github.com/zapkart/zapkart-backend/pkg/db/models"
	"github.com/zapkart/zapkart-backend/pkg/enums"
	pkgerrors "github.com/zapkart/zapkart-backend/pkg/errors"
	"github.com/zapkart/zapkart-backend/pkg/outbox"
	"github.com/zapkart/zapkart-backend/pkg/outbox/payloads"
)

// Service pays referrers when a user they referred confirms a first order.
type Service interface {
	AwardFirstPurchase(ctx context.Context, tx *gorm.DB, userID, orderID uuid.UUID) error
}

type walletCreditor interface {
	Credit(ctx context.Context, tx *gorm.DB, input wallet.CreditInput) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type service struct {
	wallet walletCreditor
	events eventEmitter
	cfg    config.ReferralConfig
}

// NewService builds a referral service with the required dependencies.
func NewService(walletSvc walletCreditor, events eventEmitter, cfg config.ReferralConfig) (Service, error) {
	if walletSvc == nil {
		return nil, fmt.Errorf("wallet service required")
	}
	if events == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	return &service{wallet: walletSvc, events: events, cfg: cfg}, nil
}

// AwardFirstPurchase credits the referrer once per referred user. The unique
// (referrer, referred) reward row is the first-purchase guard; later orders
// hit the unique index and are silently absorbed.
func (s *service) AwardFirstPurchase(ctx context.Context, tx *gorm.DB, userID, orderID uuid.UUID) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for referral award")
	}
	if s.cfg.RewardCents <= 0 {
		return nil
	}

	var user models.User
	if err := tx.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	if user.ReferredBy == nil {
		return nil
	}

	reward := models.ReferralReward{
		ID:             uuid.New(),
		ReferrerID:     *user.ReferredBy,
		ReferredUserID: userID,
		OrderID:        orderID,
		AmountCents:    s.cfg.RewardCents,
	}
	// The unique (referrer, referred) index is the first-purchase guard.
	// ON CONFLICT DO NOTHING instead of catching the violation: a violation
	// inside the caller's transaction would poison it on postgres, and losing
	// the race must not fail the order confirmation.
	res := tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "referrer_id"}, {Name: "referred_user_id"}},
			DoNothing: true,
		}).
		Create(&reward)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "record referral reward")
	}
	if res.RowsAffected == 0 {
		// Already granted, either by an earlier order or by a concurrent
		// confirmation of the same first order.
		return nil
	}

	err := s.wallet.Credit(ctx, tx, wallet.CreditInput{
		UserID:         *user.ReferredBy,
		Type:           enums.LedgerEntryTypeReferralCredit,
		AmountCents:    s.cfg.RewardCents,
		IdempotencyKey: fmt.Sprintf("referral:%s:%s", user.ReferredBy, userID),
		OrderID:        &orderID,
		Note:           "referral reward for first purchase",
	})
	if err != nil {
		return err
	}

	return s.events.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventReferralRewarded,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Data: payloads.ReferralRewardedEvent{
			ReferrerID:     *user.ReferredBy,
			ReferredUserID: userID,
			OrderID:        orderID,
			AmountCents:    s.cfg.RewardCents,
		},
	})
}
