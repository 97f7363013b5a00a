package checkout

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zapkart/zapkart-backend/pkg/db/models"
	"github.com/zapkart/zapkart-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a checkout repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateDraft(ctx context.Context, draft *models.CheckoutDraft) (*models.CheckoutDraft, error) {
	if draft.Status == "" {
		draft.Status = enums.DraftStatusPending
	}
	if err := r.db.WithContext(ctx).Create(draft).Error; err != nil {
		return nil, err
	}
	return draft, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.CheckoutDraft, error) {
	var draft models.CheckoutDraft
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&draft).Error
	if err != nil {
		return nil, err
	}
	return &draft, nil
}

func (r *repository) FindByIDForUser(ctx context.Context, id, userID uuid.UUID) (*models.CheckoutDraft, error) {
	var draft models.CheckoutDraft
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ? AND user_id = ?", id, userID).
		First(&draft).Error
	if err != nil {
		return nil, err
	}
	return &draft, nil
}

// ConsumeDraft flips pending to consumed. Exactly one caller wins; everyone
// else sees zero rows and must treat the draft as already processed.
func (r *repository) ConsumeDraft(ctx context.Context, id uuid.UUID) (bool, error) {
	now := time.Now()
	res := r.db.WithContext(ctx).
		Model(&models.CheckoutDraft{}).
		Where("id = ? AND status = ?", id, enums.DraftStatusPending).
		Updates(map[string]any{
			"status":      enums.DraftStatusConsumed,
			"consumed_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) ExpireDraft(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.CheckoutDraft{}).
		Where("id = ? AND status = ?", id, enums.DraftStatusPending).
		Update("status", enums.DraftStatusExpired).Error
}
