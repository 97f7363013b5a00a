package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zapkart/zapkart-backend/internal/coupons"
	"github.com/zapkart/zapkart-backend/pkg/availability"
	"github.com/zapkart/zapkart-backend/pkg/config"
	"github.com/zapkart/zapkart-backend/pkg/db/models"
	"github.com/zapkart/zapkart-backend/pkg/enums"
	pkgerrors "github.com/zapkart/zapkart-backend/pkg/errors"
	"github.com/zapkart/zapkart-backend/pkg/pricing"
)

type cartLoader interface {
	FindActiveCartByUser(ctx context.Context, userID uuid.UUID) (*models.CartRecord, error)
}

type productLoader interface {
	FindProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
}

type couponValidator interface {
	ValidateCode(ctx context.Context, code string, lines []coupons.EligibleLine, now time.Time) (*coupons.Quote, error)
}

type stockReader interface {
	AvailableQuantities(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]int, error)
}

// BuildDraftInput carries everything needed to quote a checkout.
type BuildDraftInput struct {
	UserID        uuid.UUID
	CouponCode    string
	PaymentMethod enums.PaymentMethod
}

// Service turns active carts into priced, expiring checkout drafts.
type Service interface {
	BuildDraft(ctx context.Context, input BuildDraftInput) (*models.CheckoutDraft, error)
	GetDraft(ctx context.Context, draftID, userID uuid.UUID) (*models.CheckoutDraft, error)
}

type service struct {
	repo    Repository
	cart    cartLoader
	catalog productLoader
	coupons couponValidator
	stock   stockReader
	cfg     config.CheckoutConfig
}

// NewService builds a checkout service with the required dependencies.
func NewService(repo Repository, cart cartLoader, catalog productLoader, couponSvc couponValidator, stock stockReader, cfg config.CheckoutConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("checkout repository required")
	}
	if cart == nil {
		return nil, fmt.Errorf("cart loader required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog loader required")
	}
	if couponSvc == nil {
		return nil, fmt.Errorf("coupon validator required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock reader required")
	}
	return &service{repo: repo, cart: cart, catalog: catalog, coupons: couponSvc, stock: stock, cfg: cfg}, nil
}

// BuildDraft re-prices the active cart from the catalog, applies the optional
// coupon, and freezes the result as a pending draft with a TTL. Cart prices
// are never trusted; the catalog is the only pricing source here.
func (s *service) BuildDraft(ctx context.Context, input BuildDraftInput) (*models.CheckoutDraft, error) {
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment method %q", input.PaymentMethod))
	}

	record, err := s.cart.FindActiveCartByUser(ctx, input.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if len(record.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	productIDs := make([]uuid.UUID, 0, len(record.Items))
	for _, item := range record.Items {
		productIDs = append(productIDs, item.ProductID)
	}
	products, err := s.catalog.FindProductsByIDs(ctx, productIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}
	byID := make(map[uuid.UUID]*models.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	// Advisory only: nothing is reserved until confirmation, but quoting a
	// draft for stock we already know is gone just queues a doomed payment.
	stock, err := s.stock.AvailableQuantities(ctx, productIDs)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	draftID := uuid.New()
	var (
		items       []models.CheckoutDraftItem
		eligible    []coupons.EligibleLine
		unorderable []map[string]any
		subtotal    int
	)
	for _, cartItem := range record.Items {
		product := byID[cartItem.ProductID]
		if !availability.ProductOrderable(product) {
			unorderable = append(unorderable, map[string]any{
				"product_id": cartItem.ProductID,
				"reason":     availability.UnorderableReason(product),
			})
			continue
		}
		if avail := stock[cartItem.ProductID]; avail < cartItem.Qty {
			unorderable = append(unorderable, map[string]any{
				"product_id":    cartItem.ProductID,
				"reason":        "insufficient stock",
				"requested_qty": cartItem.Qty,
				"available_qty": avail,
			})
			continue
		}
		categoryOffer := 0
		if product.Category != nil {
			categoryOffer = product.Category.OfferPercent
		}
		unitPrice := pricing.FinalUnitPriceCents(product.PriceCents, product.OfferPercent, categoryOffer)
		lineSubtotal := unitPrice * cartItem.Qty
		subtotal += lineSubtotal
		items = append(items, models.CheckoutDraftItem{
			ID:                uuid.New(),
			DraftID:           draftID,
			ProductID:         product.ID,
			Name:              product.Name,
			Qty:               cartItem.Qty,
			UnitPriceCents:    unitPrice,
			LineSubtotalCents: lineSubtotal,
		})
		eligible = append(eligible, coupons.EligibleLine{
			ProductID:         product.ID,
			CategoryID:        product.CategoryID,
			LineSubtotalCents: lineSubtotal,
		})
	}
	if len(unorderable) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("%d cart item(s) are no longer orderable", len(unorderable))).
			WithDetails(map[string]any{"items": unorderable})
	}

	discount := 0
	var couponID *uuid.UUID
	if input.CouponCode != "" {
		quote, err := s.coupons.ValidateCode(ctx, input.CouponCode, eligible, now)
		if err != nil {
			return nil, err
		}
		discount = quote.DiscountCents
		couponID = &quote.Coupon.ID
	}

	draft := &models.CheckoutDraft{
		ID:            draftID,
		UserID:        input.UserID,
		CartID:        record.ID,
		CouponID:      couponID,
		PaymentMethod: input.PaymentMethod,
		Status:        enums.DraftStatusPending,
		Currency:      s.cfg.Currency,
		SubtotalCents: subtotal,
		DiscountCents: discount,
		TotalCents:    subtotal - discount,
		ExpiresAt:     now.Add(s.cfg.DraftTTL),
		Items:         items,
	}
	created, err := s.repo.CreateDraft(ctx, draft)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout draft")
	}
	return created, nil
}

func (s *service) GetDraft(ctx context.Context, draftID, userID uuid.UUID) (*models.CheckoutDraft, error) {
	draft, err := s.repo.FindByIDForUser(ctx, draftID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "checkout draft not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load checkout draft")
	}
	return draft, nil
}
