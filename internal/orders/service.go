package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zapkart/zapkart-backend/internal/cart"
	"github.com/zapkart/zapkart-backend/internal/catalog"
	"github.com/zapkart/zapkart-backend/internal/checkout"
	"github.com/zapkart/zapkart-backend/internal/coupons"
	"github.com/zapkart/zapkart-backend/internal/inventory"
	"github.com/zapkart/zapkart-backend/internal/wallet"
	"github.com/zapkart/zapkart-backend/pkg/db/models"
	"github.com/zapkart/zapkart-backend/pkg/enums"
	pkgerrors "github.com/zapkart/zapkart-backend/pkg/errors"
	"github.com/zapkart/zapkart-backend/pkg/logger"
	"github.com/zapkart/zapkart-backend/pkg/outbox"
	"github.com/zapkart/zapkart-backend/pkg/outbox/payloads"
	"github.com/zapkart/zapkart-backend/pkg/pagination"
	"github.com/zapkart/zapkart-backend/pkg/pricing"
)

// ConfirmInput carries what the payment layer knows when a draft reconciles.
type ConfirmInput struct {
	DraftID          uuid.UUID
	PaymentAttemptID *uuid.UUID
}

// FailureInput records a reconciliation that could not become a confirmed
// order. CapturedCents is non-zero only when money was actually taken online
// and now has to travel back.
type FailureInput struct {
	DraftID          uuid.UUID
	PaymentAttemptID *uuid.UUID
	GatewayRef       string
	CapturedCents    int
	Reason           string
}

// Service owns the order lifecycle from draft confirmation through item-level
// cancellation and returns.
type Service interface {
	ConfirmFromDraft(ctx context.Context, input ConfirmInput) (*models.Order, error)
	RecordPaymentFailure(ctx context.Context, input FailureInput) (*models.Order, error)
	GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
	ListOrders(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, string, error)
	CancelItem(ctx context.Context, userID, orderID, itemID uuid.UUID) (*models.Order, error)
	RequestReturn(ctx context.Context, userID, orderID, itemID uuid.UUID, reason string) (*models.OrderItem, error)
	ResolveReturn(ctx context.Context, orderID, itemID uuid.UUID, approve bool) (*models.OrderItem, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type couponRedeemer interface {
	Revalidate(ctx context.Context, tx *gorm.DB, couponID uuid.UUID, lines []coupons.EligibleLine, now time.Time) (*coupons.Quote, error)
	RedeemForOrder(ctx context.Context, tx *gorm.DB, couponID, orderID, userID uuid.UUID, discountCents int) error
}

type walletMover interface {
	Credit(ctx context.Context, tx *gorm.DB, input wallet.CreditInput) error
	Debit(ctx context.Context, tx *gorm.DB, input wallet.DebitInput) error
}

type referralAwarder interface {
	AwardFirstPurchase(ctx context.Context, tx *gorm.DB, userID, orderID uuid.UUID) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type service struct {
	repo      Repository
	drafts    checkout.Repository
	carts     cart.Repository
	catalog   catalog.Repository
	coupons   couponRedeemer
	wallet    walletMover
	referrals referralAwarder
	events    eventEmitter
	runner    txRunner
	logg      *logger.Logger
}

// NewService builds an order service with the required dependencies.
func NewService(
	repo Repository,
	drafts checkout.Repository,
	carts cart.Repository,
	catalogRepo catalog.Repository,
	couponSvc couponRedeemer,
	walletSvc walletMover,
	referralSvc referralAwarder,
	events eventEmitter,
	runner txRunner,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if drafts == nil {
		return nil, fmt.Errorf("checkout repository required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if catalogRepo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if couponSvc == nil {
		return nil, fmt.Errorf("coupon service required")
	}
	if walletSvc == nil {
		return nil, fmt.Errorf("wallet service required")
	}
	if referralSvc == nil {
		return nil, fmt.Errorf("referral service required")
	}
	if events == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	if runner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		repo:      repo,
		drafts:    drafts,
		carts:     carts,
		catalog:   catalogRepo,
		coupons:   couponSvc,
		wallet:    walletSvc,
		referrals: referralSvc,
		events:    events,
		runner:    runner,
		logg:      logg,
	}, nil
}

// orderNumberFor derives a human-facing order number from the order id. The
// id is random, so the first six bytes are as collision-safe as the order
// number needs to be, and the unique index catches the rest.
func orderNumberFor(orderID uuid.UUID) string {
	return "ZK-" + strings.ToUpper(fmt.Sprintf("%x", orderID[:6]))
}

// ConfirmFromDraft turns a draft into a confirmed order: consume the draft,
// re-check the coupon, commit stock, snapshot items with their discount
// shares, move wallet money when that is the method, and queue the event.
// Everything happens in one transaction so a stock shortfall or an empty
// wallet rolls the whole confirmation back.
//
// The draft consume is a compare-and-swap on status, so exactly one of any
// concurrent callers wins; the losers find the winner's order through the
// unique draft_id and return it unchanged.
func (s *service) ConfirmFromDraft(ctx context.Context, input ConfirmInput) (*models.Order, error) {
	var confirmed *models.Order
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		drafts := s.drafts.WithTx(tx)
		repo := s.repo.WithTx(tx)

		won, err := drafts.ConsumeDraft(ctx, input.DraftID)
		if err != nil {
			return err
		}
		if !won {
			existing, err := repo.FindByDraftID(ctx, input.DraftID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeStateConflict, "checkout draft is no longer open")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load existing order")
			}
			confirmed = existing
			return nil
		}

		draft, err := drafts.FindByID(ctx, input.DraftID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load checkout draft")
		}

		now := time.Now()
		if draft.CouponID != nil {
			lines, err := s.eligibleLines(ctx, tx, draft)
			if err != nil {
				return err
			}
			if _, err := s.coupons.Revalidate(ctx, tx, *draft.CouponID, lines, now); err != nil {
				return err
			}
		}

		commits := make([]inventory.StockCommitRequest, 0, len(draft.Items))
		for _, item := range draft.Items {
			commits = append(commits, inventory.StockCommitRequest{
				ProductID: item.ProductID,
				Name:      item.Name,
				Qty:       item.Qty,
			})
		}
		if err := inventory.CommitStock(ctx, tx, commits); err != nil {
			return err
		}

		orderID := uuid.New()
		weights := make([]int, len(draft.Items))
		for i, item := range draft.Items {
			weights[i] = item.LineSubtotalCents
		}
		shares := pricing.SplitProRata(draft.DiscountCents, weights)

		items := make([]models.OrderItem, 0, len(draft.Items))
		for i, item := range draft.Items {
			items = append(items, models.OrderItem{
				ID:                 uuid.New(),
				OrderID:            orderID,
				ProductID:          item.ProductID,
				Name:               item.Name,
				Qty:                item.Qty,
				UnitPriceCents:     item.UnitPriceCents,
				LineSubtotalCents:  item.LineSubtotalCents,
				DiscountShareCents: shares[i],
				Status:             enums.OrderItemStatusActive,
			})
		}

		order := &models.Order{
			ID:               orderID,
			OrderNumber:      orderNumberFor(orderID),
			UserID:           draft.UserID,
			DraftID:          draft.ID,
			PaymentAttemptID: input.PaymentAttemptID,
			PaymentMethod:    draft.PaymentMethod,
			Status:           enums.OrderStatusConfirmed,
			CouponID:         draft.CouponID,
			Currency:         draft.Currency,
			SubtotalCents:    draft.SubtotalCents,
			DiscountCents:    draft.DiscountCents,
			TotalCents:       draft.TotalCents,
			ConfirmedAt:      &now,
			Items:            items,
		}
		if _, err := repo.CreateOrder(ctx, order); err != nil {
			return err
		}

		if draft.PaymentMethod == enums.PaymentMethodWallet && draft.TotalCents > 0 {
			err := s.wallet.Debit(ctx, tx, wallet.DebitInput{
				UserID:         draft.UserID,
				Type:           enums.LedgerEntryTypeOrderDebit,
				AmountCents:    draft.TotalCents,
				IdempotencyKey: fmt.Sprintf("order_debit:%s", draft.ID),
				OrderID:        &orderID,
				Currency:       draft.Currency,
				Note:           "payment for order " + order.OrderNumber,
			})
			if err != nil {
				return err
			}
		}

		if err := s.carts.WithTx(tx).MarkConverted(ctx, draft.CartID); err != nil {
			return err
		}

		if draft.CouponID != nil {
			if err := s.coupons.RedeemForOrder(ctx, tx, *draft.CouponID, orderID, draft.UserID, draft.DiscountCents); err != nil {
				return err
			}
		}

		if err := s.referrals.AwardFirstPurchase(ctx, tx, draft.UserID, orderID); err != nil {
			return err
		}

		err = s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderConfirmed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Data: payloads.OrderConfirmedEvent{
				OrderID:     orderID,
				OrderNumber: order.OrderNumber,
				UserID:      draft.UserID,
				Method:      draft.PaymentMethod,
				TotalCents:  draft.TotalCents,
				ConfirmedAt: now,
			},
		})
		if err != nil {
			return err
		}

		confirmed = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithOrderID(ctx, confirmed.ID.String())
		logCtx = s.logg.WithDraftID(logCtx, input.DraftID.String())
		s.logg.Info(logCtx, "order confirmed")
	}
	return confirmed, nil
}

// eligibleLines rebuilds the coupon eligibility view of a draft from the
// catalog, since draft items snapshot prices but not categories.
func (s *service) eligibleLines(ctx context.Context, tx *gorm.DB, draft *models.CheckoutDraft) ([]coupons.EligibleLine, error) {
	ids := make([]uuid.UUID, 0, len(draft.Items))
	for _, item := range draft.Items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.catalog.WithTx(tx).FindProductsByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}
	categoryByProduct := make(map[uuid.UUID]uuid.UUID, len(products))
	for _, p := range products {
		categoryByProduct[p.ID] = p.CategoryID
	}
	lines := make([]coupons.EligibleLine, 0, len(draft.Items))
	for _, item := range draft.Items {
		lines = append(lines, coupons.EligibleLine{
			ProductID:         item.ProductID,
			CategoryID:        categoryByProduct[item.ProductID],
			LineSubtotalCents: item.LineSubtotalCents,
		})
	}
	return lines, nil
}

// RecordPaymentFailure writes the terminal record for a draft whose payment
// reconciled as failed, or whose captured payment could not be confirmed.
// The draft is closed so it cannot be retried, and a refund event is queued
// when online money was actually captured.
func (s *service) RecordPaymentFailure(ctx context.Context, input FailureInput) (*models.Order, error) {
	var failed *models.Order
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		drafts := s.drafts.WithTx(tx)

		if existing, err := repo.FindByDraftID(ctx, input.DraftID); err == nil {
			failed = existing
			return nil
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load existing order")
		}

		draft, err := drafts.FindByID(ctx, input.DraftID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "checkout draft not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load checkout draft")
		}

		orderID := uuid.New()
		items := make([]models.OrderItem, 0, len(draft.Items))
		for _, item := range draft.Items {
			items = append(items, models.OrderItem{
				ID:                uuid.New(),
				OrderID:           orderID,
				ProductID:         item.ProductID,
				Name:              item.Name,
				Qty:               item.Qty,
				UnitPriceCents:    item.UnitPriceCents,
				LineSubtotalCents: item.LineSubtotalCents,
				Status:            enums.OrderItemStatusCancelled,
			})
		}
		order := &models.Order{
			ID:               orderID,
			OrderNumber:      orderNumberFor(orderID),
			UserID:           draft.UserID,
			DraftID:          draft.ID,
			PaymentAttemptID: input.PaymentAttemptID,
			PaymentMethod:    draft.PaymentMethod,
			Status:           enums.OrderStatusPaymentFailed,
			CouponID:         draft.CouponID,
			Currency:         draft.Currency,
			SubtotalCents:    draft.SubtotalCents,
			DiscountCents:    draft.DiscountCents,
			TotalCents:       draft.TotalCents,
			FailureReason:    input.Reason,
			Items:            items,
		}
		if _, err := repo.CreateOrder(ctx, order); err != nil {
			return err
		}

		if err := drafts.ExpireDraft(ctx, draft.ID); err != nil {
			return err
		}

		if input.CapturedCents > 0 && input.GatewayRef != "" {
			var attemptID uuid.UUID
			if input.PaymentAttemptID != nil {
				attemptID = *input.PaymentAttemptID
			}
			err := s.events.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventPaymentRefundPending,
				AggregateType: enums.AggregatePaymentAttempt,
				AggregateID:   attemptID,
				Data: payloads.RefundPendingEvent{
					PaymentAttemptID: attemptID,
					OrderID:          orderID,
					UserID:           draft.UserID,
					GatewayRef:       input.GatewayRef,
					AmountCents:      input.CapturedCents,
					Reason:           input.Reason,
				},
			})
			if err != nil {
				return err
			}
		}

		err = s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaymentFailed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Data: payloads.OrderPaymentFailedEvent{
				OrderID: orderID,
				UserID:  draft.UserID,
				DraftID: draft.ID,
				Reason:  input.Reason,
			},
		})
		if err != nil {
			return err
		}

		failed = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithOrderID(ctx, failed.ID.String())
		logCtx = s.logg.WithDraftID(logCtx, input.DraftID.String())
		s.logg.Warn(logCtx, "payment reconciliation failed")
	}
	return failed, nil
}

func (s *service) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByIDForUser(ctx, orderID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) ListOrders(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, string, error) {
	return s.repo.ListForUser(ctx, userID, params)
}

// CancelItem cancels a single active line on a confirmed order. Stock goes
// back, the line's paid amount returns to the wallet, and the order flips to
// cancelled if no active lines remain.
func (s *service) CancelItem(ctx context.Context, userID, orderID, itemID uuid.UUID) (*models.Order, error) {
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindByIDForUser(ctx, orderID, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		item, err := repo.FindItem(ctx, orderID, itemID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order item not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order item")
		}
		if item.Status == enums.OrderItemStatusCancelled {
			// Re-running a cancellation is a no-op: restock, refund and
			// totals were all settled the first time.
			return nil
		}
		if order.Status != enums.OrderStatusConfirmed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not open for changes")
		}

		moved, err := repo.UpdateItemStatus(ctx, itemID, enums.OrderItemStatusActive, enums.OrderItemStatusCancelled, "")
		if err != nil {
			return err
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "item can no longer be cancelled")
		}

		if err := inventory.Restock(ctx, tx, item.ProductID, item.Qty); err != nil {
			return err
		}

		if err := s.refundItem(ctx, tx, order, item); err != nil {
			return err
		}

		if err := repo.DeductItemTotals(ctx, orderID, item); err != nil {
			return err
		}

		active, err := repo.CountActiveItems(ctx, orderID)
		if err != nil {
			return err
		}
		if active == 0 {
			if _, err := repo.UpdateOrderStatus(ctx, orderID, enums.OrderStatusConfirmed, enums.OrderStatusCancelled); err != nil {
				return err
			}
		}

		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderItemCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Data: payloads.OrderItemResolvedEvent{
				OrderID:     orderID,
				OrderItemID: itemID,
				UserID:      order.UserID,
				RefundCents: item.RefundCents(),
				ResolvedAt:  time.Now(),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return s.GetOrder(ctx, userID, orderID)
}

// refundItem credits the wallet with what the customer actually paid for the
// line. Cash-on-delivery orders never captured money, so nothing comes back.
func (s *service) refundItem(ctx context.Context, tx *gorm.DB, order *models.Order, item *models.OrderItem) error {
	if order.PaymentMethod == enums.PaymentMethodCOD {
		return nil
	}
	refund := item.RefundCents()
	if refund <= 0 {
		return nil
	}
	return s.wallet.Credit(ctx, tx, wallet.CreditInput{
		UserID:         order.UserID,
		Type:           enums.LedgerEntryTypeRefundCredit,
		AmountCents:    refund,
		IdempotencyKey: fmt.Sprintf("refund:item:%s", item.ID),
		OrderID:        &order.ID,
		Currency:       order.Currency,
		Note:           "refund for order " + order.OrderNumber,
	})
}

// RequestReturn flags a delivered line for return. Money and stock only move
// once an operator approves through ResolveReturn.
func (s *service) RequestReturn(ctx context.Context, userID, orderID, itemID uuid.UUID, reason string) (*models.OrderItem, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "return reason is required")
	}

	order, err := s.repo.FindByIDForUser(ctx, orderID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.Status != enums.OrderStatusConfirmed {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not open for changes")
	}

	moved, err := s.repo.UpdateItemStatus(ctx, itemID, enums.OrderItemStatusActive, enums.OrderItemStatusReturnRequested, reason)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "item is not eligible for return")
	}

	item, err := s.repo.FindItem(ctx, orderID, itemID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order item")
	}
	return item, nil
}

// ResolveReturn settles a pending return request. Approval restocks the line
// and pays the refund; rejection just closes the request.
func (s *service) ResolveReturn(ctx context.Context, orderID, itemID uuid.UUID, approve bool) (*models.OrderItem, error) {
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		item, err := repo.FindItem(ctx, orderID, itemID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order item not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order item")
		}

		if !approve {
			moved, err := repo.UpdateItemStatus(ctx, itemID, enums.OrderItemStatusReturnRequested, enums.OrderItemStatusReturnRejected, "")
			if err != nil {
				return err
			}
			if !moved {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "no pending return on this item")
			}
			return nil
		}

		moved, err := repo.UpdateItemStatus(ctx, itemID, enums.OrderItemStatusReturnRequested, enums.OrderItemStatusReturned, "")
		if err != nil {
			return err
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "no pending return on this item")
		}

		if err := inventory.Restock(ctx, tx, item.ProductID, item.Qty); err != nil {
			return err
		}
		if err := s.refundItem(ctx, tx, order, item); err != nil {
			return err
		}
		if err := repo.DeductItemTotals(ctx, orderID, item); err != nil {
			return err
		}

		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderItemReturned,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Data: payloads.OrderItemResolvedEvent{
				OrderID:     orderID,
				OrderItemID: itemID,
				UserID:      order.UserID,
				RefundCents: item.RefundCents(),
				ResolvedAt:  time.Now(),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	item, err := s.repo.FindItem(ctx, orderID, itemID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order item")
	}
	return item, nil
}
