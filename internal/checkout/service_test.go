package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zapkart/zapkart-backend/internal/coupons"
	"github.com/zapkart/zapkart-backend/pkg/config"
	"github.com/zapkart/zapkart-backend/pkg/db/models"
	"github.com/zapkart/zapkart-backend/pkg/enums"
	pkgerrors "github.com/zapkart/zapkart-backend/pkg/errors"
)

type stubDraftRepo struct {
	created  *models.CheckoutDraft
	draft    *models.CheckoutDraft
	findErr  error
	consumed bool
}

func (s *stubDraftRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubDraftRepo) CreateDraft(ctx context.Context, draft *models.CheckoutDraft) (*models.CheckoutDraft, error) {
	s.created = draft
	return draft, nil
}

func (s *stubDraftRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.CheckoutDraft, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.draft, nil
}

func (s *stubDraftRepo) FindByIDForUser(ctx context.Context, id, userID uuid.UUID) (*models.CheckoutDraft, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.draft, nil
}

func (s *stubDraftRepo) ConsumeDraft(ctx context.Context, id uuid.UUID) (bool, error) {
	was := s.consumed
	s.consumed = true
	return !was, nil
}

func (s *stubDraftRepo) ExpireDraft(ctx context.Context, id uuid.UUID) error { return nil }

type stubCartLoader struct {
	record *models.CartRecord
	err    error
}

func (s stubCartLoader) FindActiveCartByUser(ctx context.Context, userID uuid.UUID) (*models.CartRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.record, nil
}

type stubProductLoader struct {
	products []models.Product
}

func (s stubProductLoader) FindProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	return s.products, nil
}

// stubStockReader with a nil map reports ample stock for every product.
type stubStockReader struct {
	qty map[uuid.UUID]int
}

func (s stubStockReader) AvailableQuantities(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]int, error) {
	out := make(map[uuid.UUID]int, len(ids))
	for _, id := range ids {
		if s.qty == nil {
			out[id] = 100
			continue
		}
		out[id] = s.qty[id]
	}
	return out, nil
}

type stubCouponValidator struct {
	quote *coupons.Quote
	err   error
	calls int
}

func (s *stubCouponValidator) ValidateCode(ctx context.Context, code string, lines []coupons.EligibleLine, now time.Time) (*coupons.Quote, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.quote, nil
}

func testConfig() config.CheckoutConfig {
	return config.CheckoutConfig{DraftTTL: 30 * time.Minute, Currency: "INR"}
}

func catalogProduct(id uuid.UUID, priceCents, offer int) models.Product {
	return models.Product{
		ID:         id,
		CategoryID: uuid.New(),
		Name:       "Widget",
		PriceCents: priceCents, OfferPercent: offer,
		IsListed: true,
		Category: &models.Category{ID: uuid.New(), IsListed: true},
	}
}

func TestBuildDraft_PricesFromCatalogNotCart(t *testing.T) {
	t.Parallel()

	productID := uuid.New()
	cartRecord := &models.CartRecord{
		ID:     uuid.New(),
		Status: enums.CartStatusActive,
		Items: []models.CartItem{
			// Stale snapshot price; catalog says 9000 with a 10% offer.
			{ProductID: productID, Qty: 2, UnitPriceCents: 1},
		},
	}
	repo := &stubDraftRepo{}
	svc, err := NewService(repo, stubCartLoader{record: cartRecord}, stubProductLoader{
		products: []models.Product{catalogProduct(productID, 9000, 10)},
	}, &stubCouponValidator{}, stubStockReader{}, testConfig())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	draft, err := svc.BuildDraft(context.Background(), BuildDraftInput{
		UserID:        uuid.New(),
		PaymentMethod: enums.PaymentMethodOnline,
	})
	if err != nil {
		t.Fatalf("build draft: %v", err)
	}
	if draft.SubtotalCents != 16200 {
		t.Fatalf("expected catalog-derived subtotal 16200, got %d", draft.SubtotalCents)
	}
	if draft.TotalCents != 16200 || draft.DiscountCents != 0 {
		t.Fatalf("unexpected totals %+v", draft)
	}
	if len(draft.Items) != 1 || draft.Items[0].UnitPriceCents != 8100 {
		t.Fatalf("expected re-priced line, got %+v", draft.Items)
	}
	if draft.Status != enums.DraftStatusPending {
		t.Fatalf("expected pending draft, got %s", draft.Status)
	}
	if !draft.ExpiresAt.After(time.Now()) {
		t.Fatal("expected future expiry")
	}
}

func TestBuildDraft_EmptyCartRejected(t *testing.T) {
	t.Parallel()

	svc, _ := NewService(&stubDraftRepo{}, stubCartLoader{record: &models.CartRecord{ID: uuid.New()}}, stubProductLoader{}, &stubCouponValidator{}, stubStockReader{}, testConfig())
	_, err := svc.BuildDraft(context.Background(), BuildDraftInput{UserID: uuid.New(), PaymentMethod: enums.PaymentMethodWallet})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	svc, _ = NewService(&stubDraftRepo{}, stubCartLoader{err: gorm.ErrRecordNotFound}, stubProductLoader{}, &stubCouponValidator{}, stubStockReader{}, testConfig())
	_, err = svc.BuildDraft(context.Background(), BuildDraftInput{UserID: uuid.New(), PaymentMethod: enums.PaymentMethodWallet})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for missing cart, got %v", err)
	}
}

func TestBuildDraft_UnorderableItemConflicts(t *testing.T) {
	t.Parallel()

	productID := uuid.New()
	delisted := catalogProduct(productID, 1000, 0)
	delisted.IsListed = false
	cartRecord := &models.CartRecord{
		ID:     uuid.New(),
		Status: enums.CartStatusActive,
		Items:  []models.CartItem{{ProductID: productID, Qty: 1}},
	}
	svc, _ := NewService(&stubDraftRepo{}, stubCartLoader{record: cartRecord}, stubProductLoader{
		products: []models.Product{delisted},
	}, &stubCouponValidator{}, stubStockReader{}, testConfig())

	_, err := svc.BuildDraft(context.Background(), BuildDraftInput{UserID: uuid.New(), PaymentMethod: enums.PaymentMethodOnline})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected conflict for unorderable item, got %v", err)
	}
}

func TestBuildDraft_OutOfStockItemConflicts(t *testing.T) {
	t.Parallel()

	productID := uuid.New()
	cartRecord := &models.CartRecord{
		ID:     uuid.New(),
		Status: enums.CartStatusActive,
		Items:  []models.CartItem{{ProductID: productID, Qty: 3}},
	}
	svc, _ := NewService(&stubDraftRepo{}, stubCartLoader{record: cartRecord}, stubProductLoader{
		products: []models.Product{catalogProduct(productID, 1000, 0)},
	}, &stubCouponValidator{}, stubStockReader{qty: map[uuid.UUID]int{productID: 2}}, testConfig())

	_, err := svc.BuildDraft(context.Background(), BuildDraftInput{UserID: uuid.New(), PaymentMethod: enums.PaymentMethodOnline})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected conflict for out-of-stock item, got %v", err)
	}
	details, ok := typed.Details().(map[string]any)
	if !ok {
		t.Fatalf("expected details map, got %v", typed.Details())
	}
	items, ok := details["items"].([]map[string]any)
	if !ok || len(items) != 1 {
		t.Fatalf("expected one flagged line, got %v", details)
	}
	if items[0]["reason"] != "insufficient stock" {
		t.Fatalf("reason = %v", items[0]["reason"])
	}
}

func TestBuildDraft_AppliesCouponQuote(t *testing.T) {
	t.Parallel()

	productID := uuid.New()
	couponID := uuid.New()
	cartRecord := &models.CartRecord{
		ID:     uuid.New(),
		Status: enums.CartStatusActive,
		Items:  []models.CartItem{{ProductID: productID, Qty: 1}},
	}
	validator := &stubCouponValidator{quote: &coupons.Quote{
		Coupon:        &models.Coupon{ID: couponID},
		DiscountCents: 500,
	}}
	svc, _ := NewService(&stubDraftRepo{}, stubCartLoader{record: cartRecord}, stubProductLoader{
		products: []models.Product{catalogProduct(productID, 5000, 0)},
	}, validator, stubStockReader{}, testConfig())

	draft, err := svc.BuildDraft(context.Background(), BuildDraftInput{
		UserID:        uuid.New(),
		CouponCode:    "SAVE10",
		PaymentMethod: enums.PaymentMethodOnline,
	})
	if err != nil {
		t.Fatalf("build draft: %v", err)
	}
	if validator.calls != 1 {
		t.Fatalf("expected coupon validated once, got %d", validator.calls)
	}
	if draft.DiscountCents != 500 || draft.TotalCents != 4500 {
		t.Fatalf("unexpected totals %+v", draft)
	}
	if draft.CouponID == nil || *draft.CouponID != couponID {
		t.Fatal("expected coupon pinned on draft")
	}
}

func TestBuildDraft_InvalidCouponPropagates(t *testing.T) {
	t.Parallel()

	productID := uuid.New()
	cartRecord := &models.CartRecord{
		ID:     uuid.New(),
		Status: enums.CartStatusActive,
		Items:  []models.CartItem{{ProductID: productID, Qty: 1}},
	}
	validator := &stubCouponValidator{err: pkgerrors.New(pkgerrors.CodeConflict, "coupon is not active")}
	svc, _ := NewService(&stubDraftRepo{}, stubCartLoader{record: cartRecord}, stubProductLoader{
		products: []models.Product{catalogProduct(productID, 5000, 0)},
	}, validator, stubStockReader{}, testConfig())

	_, err := svc.BuildDraft(context.Background(), BuildDraftInput{
		UserID:        uuid.New(),
		CouponCode:    "DEAD",
		PaymentMethod: enums.PaymentMethodOnline,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected coupon conflict to propagate, got %v", err)
	}
}

func TestBuildDraft_RejectsUnknownMethod(t *testing.T) {
	t.Parallel()

	svc, _ := NewService(&stubDraftRepo{}, stubCartLoader{}, stubProductLoader{}, &stubCouponValidator{}, stubStockReader{}, testConfig())
	_, err := svc.BuildDraft(context.Background(), BuildDraftInput{UserID: uuid.New(), PaymentMethod: "crypto"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
