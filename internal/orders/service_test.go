package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/zapkart/zapkart-backend/internal/cart"
	"github.com/zapkart/zapkart-backend/internal/catalog"
	"github.com/zapkart/zapkart-backend/internal/checkout"
	"github.com/zapkart/zapkart-backend/internal/coupons"
	"github.com/zapkart/zapkart-backend/internal/wallet"
	"github.com/zapkart/zapkart-backend/pkg/db/models"
	"github.com/zapkart/zapkart-backend/pkg/enums"
	pkgerrors "github.com/zapkart/zapkart-backend/pkg/errors"
	"github.com/zapkart/zapkart-backend/pkg/outbox"
	"github.com/zapkart/zapkart-backend/pkg/pagination"
)

type stubOrderRepo struct {
	byID      map[uuid.UUID]*models.Order
	byDraft   map[uuid.UUID]*models.Order
	createErr error
}

func newStubOrderRepo() *stubOrderRepo {
	return &stubOrderRepo{
		byID:    map[uuid.UUID]*models.Order{},
		byDraft: map[uuid.UUID]*models.Order{},
	}
}

func (s *stubOrderRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubOrderRepo) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.byID[order.ID] = order
	s.byDraft[order.DraftID] = order
	return order, nil
}

func (s *stubOrderRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, ok := s.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return order, nil
}

func (s *stubOrderRepo) FindByIDForUser(ctx context.Context, id, userID uuid.UUID) (*models.Order, error) {
	order, ok := s.byID[id]
	if !ok || order.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return order, nil
}

func (s *stubOrderRepo) FindByDraftID(ctx context.Context, draftID uuid.UUID) (*models.Order, error) {
	order, ok := s.byDraft[draftID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return order, nil
}

func (s *stubOrderRepo) ListForUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, string, error) {
	var out []models.Order
	for _, order := range s.byID {
		if order.UserID == userID {
			out = append(out, *order)
		}
	}
	return out, "", nil
}

func (s *stubOrderRepo) FindItem(ctx context.Context, orderID, itemID uuid.UUID) (*models.OrderItem, error) {
	order, ok := s.byID[orderID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	for i := range order.Items {
		if order.Items[i].ID == itemID {
			item := order.Items[i]
			return &item, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubOrderRepo) UpdateItemStatus(ctx context.Context, itemID uuid.UUID, from, to enums.OrderItemStatus, reason string) (bool, error) {
	for _, order := range s.byID {
		for i := range order.Items {
			if order.Items[i].ID != itemID {
				continue
			}
			if order.Items[i].Status != from {
				return false, nil
			}
			order.Items[i].Status = to
			if reason != "" {
				order.Items[i].ReturnReason = reason
			}
			return true, nil
		}
	}
	return false, nil
}

func (s *stubOrderRepo) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus) (bool, error) {
	order, ok := s.byID[orderID]
	if !ok || order.Status != from {
		return false, nil
	}
	order.Status = to
	return true, nil
}

func (s *stubOrderRepo) DeductItemTotals(ctx context.Context, orderID uuid.UUID, item *models.OrderItem) error {
	order, ok := s.byID[orderID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	order.SubtotalCents -= item.LineSubtotalCents
	order.DiscountCents -= item.DiscountShareCents
	order.TotalCents -= item.RefundCents()
	return nil
}

func (s *stubOrderRepo) CountActiveItems(ctx context.Context, orderID uuid.UUID) (int64, error) {
	order, ok := s.byID[orderID]
	if !ok {
		return 0, nil
	}
	var n int64
	for _, item := range order.Items {
		if item.Status == enums.OrderItemStatusActive || item.Status == enums.OrderItemStatusReturnRequested {
			n++
		}
	}
	return n, nil
}

type stubDraftStore struct {
	draft  *models.CheckoutDraft
	status enums.DraftStatus
}

func (s *stubDraftStore) WithTx(tx *gorm.DB) checkout.Repository { return s }

func (s *stubDraftStore) CreateDraft(ctx context.Context, draft *models.CheckoutDraft) (*models.CheckoutDraft, error) {
	return draft, nil
}

func (s *stubDraftStore) FindByID(ctx context.Context, id uuid.UUID) (*models.CheckoutDraft, error) {
	if s.draft == nil || s.draft.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.draft, nil
}

func (s *stubDraftStore) FindByIDForUser(ctx context.Context, id, userID uuid.UUID) (*models.CheckoutDraft, error) {
	return s.FindByID(ctx, id)
}

func (s *stubDraftStore) ConsumeDraft(ctx context.Context, id uuid.UUID) (bool, error) {
	if s.status != enums.DraftStatusPending {
		return false, nil
	}
	s.status = enums.DraftStatusConsumed
	return true, nil
}

func (s *stubDraftStore) ExpireDraft(ctx context.Context, id uuid.UUID) error {
	s.status = enums.DraftStatusExpired
	return nil
}

type stubCartStore struct {
	converted []uuid.UUID
}

func (s *stubCartStore) WithTx(tx *gorm.DB) cart.Repository { return s }

func (s *stubCartStore) FindActiveCartByUser(ctx context.Context, userID uuid.UUID) (*models.CartRecord, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubCartStore) CreateCart(ctx context.Context, record *models.CartRecord) (*models.CartRecord, error) {
	return record, nil
}

func (s *stubCartStore) UpsertItem(ctx context.Context, item *models.CartItem) error { return nil }

func (s *stubCartStore) DeleteItem(ctx context.Context, cartID, productID uuid.UUID) error {
	return nil
}

func (s *stubCartStore) MarkConverted(ctx context.Context, cartID uuid.UUID) error {
	s.converted = append(s.converted, cartID)
	return nil
}

type stubCatalogStore struct {
	products map[uuid.UUID]models.Product
}

func (s *stubCatalogStore) WithTx(tx *gorm.DB) catalog.Repository { return s }

func (s *stubCatalogStore) FindProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &p, nil
}

func (s *stubCatalogStore) FindProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	var out []models.Product
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *stubCatalogStore) FindCategoryByID(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	return nil, gorm.ErrRecordNotFound
}

type stubCouponSvc struct {
	revalidateErr error
	redeemed      []uuid.UUID
}

func (s *stubCouponSvc) Revalidate(ctx context.Context, tx *gorm.DB, couponID uuid.UUID, lines []coupons.EligibleLine, now time.Time) (*coupons.Quote, error) {
	if s.revalidateErr != nil {
		return nil, s.revalidateErr
	}
	return &coupons.Quote{}, nil
}

func (s *stubCouponSvc) RedeemForOrder(ctx context.Context, tx *gorm.DB, couponID, orderID, userID uuid.UUID, discountCents int) error {
	s.redeemed = append(s.redeemed, orderID)
	return nil
}

type stubWalletSvc struct {
	credits  []wallet.CreditInput
	debits   []wallet.DebitInput
	debitErr error
}

func (s *stubWalletSvc) Credit(ctx context.Context, tx *gorm.DB, input wallet.CreditInput) error {
	s.credits = append(s.credits, input)
	return nil
}

func (s *stubWalletSvc) Debit(ctx context.Context, tx *gorm.DB, input wallet.DebitInput) error {
	if s.debitErr != nil {
		return s.debitErr
	}
	s.debits = append(s.debits, input)
	return nil
}

type stubReferralSvc struct {
	awarded []uuid.UUID
}

func (s *stubReferralSvc) AwardFirstPurchase(ctx context.Context, tx *gorm.DB, userID, orderID uuid.UUID) error {
	s.awarded = append(s.awarded, orderID)
	return nil
}

type stubEmitter struct {
	events []outbox.DomainEvent
}

func (s *stubEmitter) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

func (s *stubEmitter) has(eventType enums.OutboxEventType) bool {
	for _, e := range s.events {
		if e.EventType == eventType {
			return true
		}
	}
	return false
}

type sqliteRunner struct {
	db *gorm.DB
}

func (r sqliteRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type fixture struct {
	svc     Service
	repo    *stubOrderRepo
	drafts  *stubDraftStore
	carts   *stubCartStore
	coupons *stubCouponSvc
	wallet  *stubWalletSvc
	refs    *stubReferralSvc
	events  *stubEmitter
	db      *gorm.DB
}

func newFixture(t *testing.T, draft *models.CheckoutDraft) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.InventoryItem{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	f := &fixture{
		repo:    newStubOrderRepo(),
		drafts:  &stubDraftStore{draft: draft, status: enums.DraftStatusPending},
		carts:   &stubCartStore{},
		coupons: &stubCouponSvc{},
		wallet:  &stubWalletSvc{},
		refs:    &stubReferralSvc{},
		events:  &stubEmitter{},
		db:      db,
	}
	catalogStore := &stubCatalogStore{products: map[uuid.UUID]models.Product{}}
	if draft != nil {
		for _, item := range draft.Items {
			catalogStore.products[item.ProductID] = models.Product{
				ID:         item.ProductID,
				CategoryID: uuid.New(),
				Name:       item.Name,
			}
		}
	}
	svc, err := NewService(
		f.repo,
		f.drafts,
		f.carts,
		catalogStore,
		f.coupons,
		f.wallet,
		f.refs,
		f.events,
		sqliteRunner{db},
		nil,
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	f.svc = svc
	return f
}

func (f *fixture) seedStock(t *testing.T, productID uuid.UUID, qty int) {
	t.Helper()
	if err := f.db.Create(&models.InventoryItem{ProductID: productID, AvailableQty: qty}).Error; err != nil {
		t.Fatalf("seed inventory: %v", err)
	}
}

func (f *fixture) stockOf(t *testing.T, productID uuid.UUID) int {
	t.Helper()
	var inv models.InventoryItem
	if err := f.db.First(&inv, "product_id = ?", productID).Error; err != nil {
		t.Fatalf("load inventory: %v", err)
	}
	return inv.AvailableQty
}

func testDraft(method enums.PaymentMethod) *models.CheckoutDraft {
	draftID := uuid.New()
	p1 := uuid.New()
	p2 := uuid.New()
	return &models.CheckoutDraft{
		ID:            draftID,
		UserID:        uuid.New(),
		CartID:        uuid.New(),
		PaymentMethod: method,
		Status:        enums.DraftStatusPending,
		Currency:      "INR",
		SubtotalCents: 30000,
		DiscountCents: 0,
		TotalCents:    30000,
		ExpiresAt:     time.Now().Add(30 * time.Minute),
		Items: []models.CheckoutDraftItem{
			{ID: uuid.New(), DraftID: draftID, ProductID: p1, Name: "Keyboard", Qty: 2, UnitPriceCents: 5000, LineSubtotalCents: 10000},
			{ID: uuid.New(), DraftID: draftID, ProductID: p2, Name: "Monitor", Qty: 1, UnitPriceCents: 20000, LineSubtotalCents: 20000},
		},
	}
}

func TestConfirmFromDraft_WalletMethod(t *testing.T) {
	draft := testDraft(enums.PaymentMethodWallet)
	f := newFixture(t, draft)
	f.seedStock(t, draft.Items[0].ProductID, 5)
	f.seedStock(t, draft.Items[1].ProductID, 1)

	order, err := f.svc.ConfirmFromDraft(context.Background(), ConfirmInput{DraftID: draft.ID})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if order.Status != enums.OrderStatusConfirmed {
		t.Fatalf("status = %s, want confirmed", order.Status)
	}
	if order.DraftID != draft.ID {
		t.Fatalf("draft id mismatch")
	}
	if order.OrderNumber == "" || order.OrderNumber[:3] != "ZK-" {
		t.Fatalf("order number %q lacks prefix", order.OrderNumber)
	}
	if got := f.stockOf(t, draft.Items[0].ProductID); got != 3 {
		t.Fatalf("stock after confirm = %d, want 3", got)
	}
	if got := f.stockOf(t, draft.Items[1].ProductID); got != 0 {
		t.Fatalf("stock after confirm = %d, want 0", got)
	}
	if len(f.wallet.debits) != 1 {
		t.Fatalf("wallet debits = %d, want 1", len(f.wallet.debits))
	}
	debit := f.wallet.debits[0]
	if debit.AmountCents != 30000 {
		t.Fatalf("debit amount = %d, want 30000", debit.AmountCents)
	}
	if debit.IdempotencyKey != "order_debit:"+draft.ID.String() {
		t.Fatalf("debit key = %q", debit.IdempotencyKey)
	}
	if len(f.carts.converted) != 1 || f.carts.converted[0] != draft.CartID {
		t.Fatalf("cart not converted")
	}
	if len(f.refs.awarded) != 1 {
		t.Fatalf("referral award not attempted")
	}
	if !f.events.has(enums.EventOrderConfirmed) {
		t.Fatalf("order.confirmed event not emitted")
	}
}

func TestConfirmFromDraft_SecondCallReturnsExistingOrder(t *testing.T) {
	draft := testDraft(enums.PaymentMethodWallet)
	f := newFixture(t, draft)
	f.seedStock(t, draft.Items[0].ProductID, 5)
	f.seedStock(t, draft.Items[1].ProductID, 5)

	first, err := f.svc.ConfirmFromDraft(context.Background(), ConfirmInput{DraftID: draft.ID})
	if err != nil {
		t.Fatalf("first confirm: %v", err)
	}
	second, err := f.svc.ConfirmFromDraft(context.Background(), ConfirmInput{DraftID: draft.ID})
	if err != nil {
		t.Fatalf("second confirm: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("second confirm created a new order")
	}
	if len(f.wallet.debits) != 1 {
		t.Fatalf("wallet debited %d times, want 1", len(f.wallet.debits))
	}
	if got := f.stockOf(t, draft.Items[0].ProductID); got != 3 {
		t.Fatalf("stock deducted twice: %d", got)
	}
}

func TestConfirmFromDraft_StockShortfallRollsBack(t *testing.T) {
	draft := testDraft(enums.PaymentMethodWallet)
	f := newFixture(t, draft)
	f.seedStock(t, draft.Items[0].ProductID, 1) // needs 2
	f.seedStock(t, draft.Items[1].ProductID, 5)

	_, err := f.svc.ConfirmFromDraft(context.Background(), ConfirmInput{DraftID: draft.ID})
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("err = %v, want state conflict", err)
	}
	if len(f.repo.byID) != 0 {
		t.Fatalf("order created despite shortfall")
	}
	if len(f.wallet.debits) != 0 {
		t.Fatalf("wallet debited despite shortfall")
	}
	if got := f.stockOf(t, draft.Items[1].ProductID); got != 5 {
		t.Fatalf("sibling line deducted despite rollback: %d", got)
	}
}

func TestConfirmFromDraft_DiscountSharesSumToDiscount(t *testing.T) {
	draft := testDraft(enums.PaymentMethodOnline)
	couponID := uuid.New()
	draft.CouponID = &couponID
	draft.DiscountCents = 1001
	draft.TotalCents = draft.SubtotalCents - draft.DiscountCents
	f := newFixture(t, draft)
	f.seedStock(t, draft.Items[0].ProductID, 5)
	f.seedStock(t, draft.Items[1].ProductID, 5)

	order, err := f.svc.ConfirmFromDraft(context.Background(), ConfirmInput{DraftID: draft.ID})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	var sum int
	for _, item := range order.Items {
		sum += item.DiscountShareCents
	}
	if sum != 1001 {
		t.Fatalf("discount shares sum = %d, want 1001", sum)
	}
	if len(f.coupons.redeemed) != 1 {
		t.Fatalf("coupon not redeemed")
	}
	if len(f.wallet.debits) != 0 {
		t.Fatalf("online order must not debit the wallet")
	}
}

func TestConfirmFromDraft_CouponRevalidationFailureAborts(t *testing.T) {
	draft := testDraft(enums.PaymentMethodOnline)
	couponID := uuid.New()
	draft.CouponID = &couponID
	f := newFixture(t, draft)
	f.seedStock(t, draft.Items[0].ProductID, 5)
	f.seedStock(t, draft.Items[1].ProductID, 5)
	f.coupons.revalidateErr = pkgerrors.New(pkgerrors.CodeConflict, "coupon expired")

	_, err := f.svc.ConfirmFromDraft(context.Background(), ConfirmInput{DraftID: draft.ID})
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}
	if len(f.repo.byID) != 0 {
		t.Fatalf("order created despite invalid coupon")
	}
	if got := f.stockOf(t, draft.Items[0].ProductID); got != 5 {
		t.Fatalf("stock deducted despite abort: %d", got)
	}
}

func TestRecordPaymentFailure_WritesTerminalOrderAndRefundEvent(t *testing.T) {
	draft := testDraft(enums.PaymentMethodOnline)
	f := newFixture(t, draft)
	attemptID := uuid.New()

	order, err := f.svc.RecordPaymentFailure(context.Background(), FailureInput{
		DraftID:          draft.ID,
		PaymentAttemptID: &attemptID,
		GatewayRef:       "pay_abc123",
		CapturedCents:    30000,
		Reason:           "insufficient stock",
	})
	if err != nil {
		t.Fatalf("record failure: %v", err)
	}
	if order.Status != enums.OrderStatusPaymentFailed {
		t.Fatalf("status = %s, want payment_failed", order.Status)
	}
	if order.FailureReason != "insufficient stock" {
		t.Fatalf("failure reason = %q", order.FailureReason)
	}
	if f.drafts.status != enums.DraftStatusExpired {
		t.Fatalf("draft status = %s, want expired", f.drafts.status)
	}
	if !f.events.has(enums.EventPaymentRefundPending) {
		t.Fatalf("refund_pending event not emitted")
	}
	if !f.events.has(enums.EventOrderPaymentFailed) {
		t.Fatalf("payment_failed event not emitted")
	}
}

func TestRecordPaymentFailure_NoRefundEventWithoutCapture(t *testing.T) {
	draft := testDraft(enums.PaymentMethodWallet)
	f := newFixture(t, draft)

	_, err := f.svc.RecordPaymentFailure(context.Background(), FailureInput{
		DraftID: draft.ID,
		Reason:  "insufficient wallet balance",
	})
	if err != nil {
		t.Fatalf("record failure: %v", err)
	}
	if f.events.has(enums.EventPaymentRefundPending) {
		t.Fatalf("refund event emitted with no captured money")
	}
}

func TestRecordPaymentFailure_Idempotent(t *testing.T) {
	draft := testDraft(enums.PaymentMethodOnline)
	f := newFixture(t, draft)

	first, err := f.svc.RecordPaymentFailure(context.Background(), FailureInput{DraftID: draft.ID, Reason: "declined"})
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	eventsAfterFirst := len(f.events.events)
	second, err := f.svc.RecordPaymentFailure(context.Background(), FailureInput{DraftID: draft.ID, Reason: "declined"})
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("second call created a new order")
	}
	if len(f.events.events) != eventsAfterFirst {
		t.Fatalf("duplicate events emitted on replay")
	}
}

func confirmedOrder(f *fixture, method enums.PaymentMethod) *models.Order {
	orderID := uuid.New()
	userID := uuid.New()
	now := time.Now()
	order := &models.Order{
		ID:            orderID,
		OrderNumber:   orderNumberFor(orderID),
		UserID:        userID,
		DraftID:       uuid.New(),
		PaymentMethod: method,
		Status:        enums.OrderStatusConfirmed,
		Currency:      "INR",
		SubtotalCents: 30000,
		DiscountCents: 3000,
		TotalCents:    27000,
		ConfirmedAt:   &now,
	}
	order.Items = []models.OrderItem{
		{ID: uuid.New(), OrderID: orderID, ProductID: uuid.New(), Name: "Keyboard", Qty: 2, UnitPriceCents: 5000, LineSubtotalCents: 10000, DiscountShareCents: 1000, Status: enums.OrderItemStatusActive},
		{ID: uuid.New(), OrderID: orderID, ProductID: uuid.New(), Name: "Monitor", Qty: 1, UnitPriceCents: 20000, LineSubtotalCents: 20000, DiscountShareCents: 2000, Status: enums.OrderItemStatusActive},
	}
	f.repo.byID[orderID] = order
	f.repo.byDraft[order.DraftID] = order
	return order
}

func TestCancelItem_RefundsRestocksAndKeepsOrderOpen(t *testing.T) {
	f := newFixture(t, nil)
	order := confirmedOrder(f, enums.PaymentMethodWallet)
	item := order.Items[0]
	f.seedStock(t, item.ProductID, 0)

	updated, err := f.svc.CancelItem(context.Background(), order.UserID, order.ID, item.ID)
	if err != nil {
		t.Fatalf("cancel item: %v", err)
	}
	if updated.Status != enums.OrderStatusConfirmed {
		t.Fatalf("order status = %s, want confirmed", updated.Status)
	}
	if got := f.stockOf(t, item.ProductID); got != 2 {
		t.Fatalf("restocked qty = %d, want 2", got)
	}
	if len(f.wallet.credits) != 1 {
		t.Fatalf("wallet credits = %d, want 1", len(f.wallet.credits))
	}
	credit := f.wallet.credits[0]
	if credit.AmountCents != 9000 {
		t.Fatalf("refund = %d, want line subtotal minus discount share 9000", credit.AmountCents)
	}
	if credit.IdempotencyKey != "refund:item:"+item.ID.String() {
		t.Fatalf("refund key = %q", credit.IdempotencyKey)
	}
	if !f.events.has(enums.EventOrderItemCancelled) {
		t.Fatalf("item cancelled event not emitted")
	}
}

func TestCancelItem_LastActiveItemCancelsOrder(t *testing.T) {
	f := newFixture(t, nil)
	order := confirmedOrder(f, enums.PaymentMethodWallet)
	f.seedStock(t, order.Items[0].ProductID, 0)
	f.seedStock(t, order.Items[1].ProductID, 0)

	if _, err := f.svc.CancelItem(context.Background(), order.UserID, order.ID, order.Items[0].ID); err != nil {
		t.Fatalf("cancel first: %v", err)
	}
	updated, err := f.svc.CancelItem(context.Background(), order.UserID, order.ID, order.Items[1].ID)
	if err != nil {
		t.Fatalf("cancel second: %v", err)
	}
	if updated.Status != enums.OrderStatusCancelled {
		t.Fatalf("order status = %s, want cancelled", updated.Status)
	}
}

func TestCancelItem_ShrinksOrderTotals(t *testing.T) {
	f := newFixture(t, nil)
	order := confirmedOrder(f, enums.PaymentMethodWallet)
	item := order.Items[1] // Monitor: 20000 subtotal, 2000 discount share
	f.seedStock(t, item.ProductID, 0)

	updated, err := f.svc.CancelItem(context.Background(), order.UserID, order.ID, item.ID)
	if err != nil {
		t.Fatalf("cancel item: %v", err)
	}
	if updated.SubtotalCents != 10000 {
		t.Fatalf("subtotal = %d, want 10000", updated.SubtotalCents)
	}
	if updated.DiscountCents != 1000 {
		t.Fatalf("discount = %d, want 1000", updated.DiscountCents)
	}
	if updated.TotalCents != 9000 {
		t.Fatalf("total = %d, want remaining line total 9000", updated.TotalCents)
	}
}

func TestCancelItem_AlreadyCancelledIsNoOp(t *testing.T) {
	f := newFixture(t, nil)
	order := confirmedOrder(f, enums.PaymentMethodWallet)
	item := order.Items[0]
	f.seedStock(t, item.ProductID, 0)

	first, err := f.svc.CancelItem(context.Background(), order.UserID, order.ID, item.ID)
	if err != nil {
		t.Fatalf("first cancel: %v", err)
	}
	eventsAfterFirst := len(f.events.events)

	second, err := f.svc.CancelItem(context.Background(), order.UserID, order.ID, item.ID)
	if err != nil {
		t.Fatalf("replayed cancel: %v", err)
	}
	if len(f.wallet.credits) != 1 {
		t.Fatalf("double refund issued")
	}
	if got := f.stockOf(t, item.ProductID); got != 2 {
		t.Fatalf("stock = %d, replay must not restock again", got)
	}
	if len(f.events.events) != eventsAfterFirst {
		t.Fatalf("replay emitted extra events")
	}
	if second.TotalCents != first.TotalCents {
		t.Fatalf("replay changed totals: %d vs %d", second.TotalCents, first.TotalCents)
	}
}

func TestCancelItem_ReplayAfterOrderCancelledSucceeds(t *testing.T) {
	f := newFixture(t, nil)
	order := confirmedOrder(f, enums.PaymentMethodWallet)
	f.seedStock(t, order.Items[0].ProductID, 0)
	f.seedStock(t, order.Items[1].ProductID, 0)

	for _, item := range order.Items {
		if _, err := f.svc.CancelItem(context.Background(), order.UserID, order.ID, item.ID); err != nil {
			t.Fatalf("cancel %s: %v", item.Name, err)
		}
	}
	replayed, err := f.svc.CancelItem(context.Background(), order.UserID, order.ID, order.Items[0].ID)
	if err != nil {
		t.Fatalf("replay on cancelled order: %v", err)
	}
	if replayed.Status != enums.OrderStatusCancelled {
		t.Fatalf("status = %s, want cancelled", replayed.Status)
	}
	if len(f.wallet.credits) != 2 {
		t.Fatalf("credits = %d, want one per item", len(f.wallet.credits))
	}
}

func TestCancelItem_CODGetsNoRefund(t *testing.T) {
	f := newFixture(t, nil)
	order := confirmedOrder(f, enums.PaymentMethodCOD)
	item := order.Items[0]
	f.seedStock(t, item.ProductID, 0)

	if _, err := f.svc.CancelItem(context.Background(), order.UserID, order.ID, item.ID); err != nil {
		t.Fatalf("cancel item: %v", err)
	}
	if len(f.wallet.credits) != 0 {
		t.Fatalf("cod order must not credit the wallet")
	}
	if got := f.stockOf(t, item.ProductID); got != 2 {
		t.Fatalf("restock still expected for cod, got %d", got)
	}
}

func TestCancelItem_WrongUserNotFound(t *testing.T) {
	f := newFixture(t, nil)
	order := confirmedOrder(f, enums.PaymentMethodWallet)

	_, err := f.svc.CancelItem(context.Background(), uuid.New(), order.ID, order.Items[0].ID)
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestRequestReturn_RequiresReason(t *testing.T) {
	f := newFixture(t, nil)
	order := confirmedOrder(f, enums.PaymentMethodWallet)

	_, err := f.svc.RequestReturn(context.Background(), order.UserID, order.ID, order.Items[0].ID, "   ")
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("err = %v, want validation", err)
	}
}

func TestRequestReturn_MarksItem(t *testing.T) {
	f := newFixture(t, nil)
	order := confirmedOrder(f, enums.PaymentMethodWallet)

	item, err := f.svc.RequestReturn(context.Background(), order.UserID, order.ID, order.Items[0].ID, "damaged on arrival")
	if err != nil {
		t.Fatalf("request return: %v", err)
	}
	if item.Status != enums.OrderItemStatusReturnRequested {
		t.Fatalf("status = %s, want return_requested", item.Status)
	}
	if item.ReturnReason != "damaged on arrival" {
		t.Fatalf("reason = %q", item.ReturnReason)
	}
}

func TestResolveReturn_ApprovePaysAndRestocks(t *testing.T) {
	f := newFixture(t, nil)
	order := confirmedOrder(f, enums.PaymentMethodOnline)
	item := order.Items[1]
	f.seedStock(t, item.ProductID, 0)

	if _, err := f.svc.RequestReturn(context.Background(), order.UserID, order.ID, item.ID, "wrong size"); err != nil {
		t.Fatalf("request return: %v", err)
	}
	resolved, err := f.svc.ResolveReturn(context.Background(), order.ID, item.ID, true)
	if err != nil {
		t.Fatalf("resolve return: %v", err)
	}
	if resolved.Status != enums.OrderItemStatusReturned {
		t.Fatalf("status = %s, want returned", resolved.Status)
	}
	if got := f.stockOf(t, item.ProductID); got != 1 {
		t.Fatalf("restocked qty = %d, want 1", got)
	}
	if len(f.wallet.credits) != 1 || f.wallet.credits[0].AmountCents != 18000 {
		t.Fatalf("refund credit wrong: %+v", f.wallet.credits)
	}
	if order.TotalCents != 9000 || order.SubtotalCents != 10000 {
		t.Fatalf("order totals not shrunk: total=%d subtotal=%d", order.TotalCents, order.SubtotalCents)
	}
	if !f.events.has(enums.EventOrderItemReturned) {
		t.Fatalf("item returned event not emitted")
	}
}

func TestResolveReturn_RejectClosesWithoutMoney(t *testing.T) {
	f := newFixture(t, nil)
	order := confirmedOrder(f, enums.PaymentMethodOnline)
	item := order.Items[0]

	if _, err := f.svc.RequestReturn(context.Background(), order.UserID, order.ID, item.ID, "changed my mind"); err != nil {
		t.Fatalf("request return: %v", err)
	}
	resolved, err := f.svc.ResolveReturn(context.Background(), order.ID, item.ID, false)
	if err != nil {
		t.Fatalf("resolve return: %v", err)
	}
	if resolved.Status != enums.OrderItemStatusReturnRejected {
		t.Fatalf("status = %s, want return_rejected", resolved.Status)
	}
	if len(f.wallet.credits) != 0 {
		t.Fatalf("rejected return must not refund")
	}
}

func TestResolveReturn_NoPendingRequestConflicts(t *testing.T) {
	f := newFixture(t, nil)
	order := confirmedOrder(f, enums.PaymentMethodOnline)

	_, err := f.svc.ResolveReturn(context.Background(), order.ID, order.Items[0].ID, true)
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("err = %v, want state conflict", err)
	}
}
