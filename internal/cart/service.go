package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zapkart/zapkart-backend/pkg/availability"
	"github.com/zapkart/zapkart-backend/pkg/db/models"
	pkgerrors "github.com/zapkart/zapkart-backend/pkg/errors"
	"github.com/zapkart/zapkart-backend/pkg/pricing"
)

const maxQtyPerLine = 10

type productFinder interface {
	FindProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// Service exposes cart operations for the storefront.
type Service interface {
	GetOrCreate(ctx context.Context, userID uuid.UUID) (*models.CartRecord, error)
	SetItem(ctx context.Context, userID, productID uuid.UUID, qty int) (*models.CartRecord, error)
	RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*models.CartRecord, error)
}

type service struct {
	repo    Repository
	catalog productFinder
}

// NewService builds a cart service with the required dependencies.
func NewService(repo Repository, catalog productFinder) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{repo: repo, catalog: catalog}, nil
}

func (s *service) GetOrCreate(ctx context.Context, userID uuid.UUID) (*models.CartRecord, error) {
	record, err := s.repo.FindActiveCartByUser(ctx, userID)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	created, err := s.repo.CreateCart(ctx, &models.CartRecord{UserID: userID})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
	}
	return created, nil
}

// SetItem pins a line to the requested quantity, snapshotting the current
// effective price. Quantity zero removes the line.
func (s *service) SetItem(ctx context.Context, userID, productID uuid.UUID, qty int) (*models.CartRecord, error) {
	if qty < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative")
	}
	if qty > maxQtyPerLine {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("quantity exceeds per-line limit of %d", maxQtyPerLine))
	}
	if qty == 0 {
		return s.RemoveItem(ctx, userID, productID)
	}

	record, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	product, err := s.catalog.FindProductByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !availability.ProductOrderable(product) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, availability.UnorderableReason(product)).
			WithDetails(map[string]any{"product_id": productID})
	}

	categoryOffer := 0
	if product.Category != nil {
		categoryOffer = product.Category.OfferPercent
	}
	item := &models.CartItem{
		ID:             uuid.New(),
		CartID:         record.ID,
		ProductID:      productID,
		Qty:            qty,
		UnitPriceCents: pricing.FinalUnitPriceCents(product.PriceCents, product.OfferPercent, categoryOffer),
	}
	if err := s.repo.UpsertItem(ctx, item); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert cart item")
	}
	return s.repo.FindActiveCartByUser(ctx, userID)
}

func (s *service) RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*models.CartRecord, error) {
	record, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.DeleteItem(ctx, record.ID, productID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart item")
	}
	return s.repo.FindActiveCartByUser(ctx, userID)
}
