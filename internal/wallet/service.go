package wallet

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zapkart/zapkart-backend/pkg/db"
	"github.com/zapkart/zapkart-backend/pkg/db/models"
	"github.com/zapkart/zapkart-backend/pkg/enums"
	pkgerrors "github.com/zapkart/zapkart-backend/pkg/errors"
	"github.com/zapkart/zapkart-backend/pkg/pagination"
)

// CreditInput describes a positive wallet movement.
type CreditInput struct {
	UserID         uuid.UUID
	Type           enums.LedgerEntryType
	AmountCents    int
	IdempotencyKey string
	OrderID        *uuid.UUID
	Note           string
	Currency       string
}

// DebitInput describes a negative wallet movement guarded by the balance.
type DebitInput struct {
	UserID         uuid.UUID
	Type           enums.LedgerEntryType
	AmountCents    int
	IdempotencyKey string
	OrderID        *uuid.UUID
	Note           string
	Currency       string
}

// Service exposes the wallet ledger. All movements are append-only entries;
// the balance is always derived from their sum.
type Service interface {
	Balance(ctx context.Context, userID uuid.UUID) (int, error)
	Entries(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.WalletLedgerEntry, string, error)
	Credit(ctx context.Context, tx *gorm.DB, input CreditInput) error
	Debit(ctx context.Context, tx *gorm.DB, input DebitInput) error
}

type service struct {
	repo Repository
}

// NewService builds a wallet service with the required dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("wallet repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Balance(ctx context.Context, userID uuid.UUID) (int, error) {
	balance, err := s.repo.Balance(ctx, userID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet balance")
	}
	return balance, nil
}

func (s *service) Entries(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.WalletLedgerEntry, string, error) {
	entries, next, err := s.repo.ListEntries(ctx, userID, params)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list wallet entries")
	}
	return entries, next, nil
}

// Credit appends a positive entry. Replays with the same idempotency key are
// silently absorbed.
func (s *service) Credit(ctx context.Context, tx *gorm.DB, input CreditInput) error {
	if input.AmountCents <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "credit amount must be positive")
	}
	if input.IdempotencyKey == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "idempotency key required")
	}
	if !input.Type.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid ledger entry type %q", input.Type))
	}
	entry := &models.WalletLedgerEntry{
		ID:             uuid.New(),
		UserID:         input.UserID,
		Type:           input.Type,
		AmountCents:    input.AmountCents,
		Currency:       currencyOrDefault(input.Currency),
		IdempotencyKey: input.IdempotencyKey,
		OrderID:        input.OrderID,
		Note:           input.Note,
	}
	err := s.repo.WithTx(tx).InsertCredit(ctx, entry)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append wallet credit")
	}
	return nil
}

// Debit appends a negative entry when the balance covers it. Replays with the
// same idempotency key are silently absorbed; insufficient funds conflict.
func (s *service) Debit(ctx context.Context, tx *gorm.DB, input DebitInput) error {
	if input.AmountCents <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "debit amount must be positive")
	}
	if input.IdempotencyKey == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "idempotency key required")
	}
	if !input.Type.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid ledger entry type %q", input.Type))
	}
	entry := &models.WalletLedgerEntry{
		ID:             uuid.New(),
		UserID:         input.UserID,
		Type:           input.Type,
		AmountCents:    -input.AmountCents,
		Currency:       currencyOrDefault(input.Currency),
		IdempotencyKey: input.IdempotencyKey,
		OrderID:        input.OrderID,
		Note:           input.Note,
	}
	inserted, err := s.repo.WithTx(tx).InsertDebitGuarded(ctx, entry)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append wallet debit")
	}
	if !inserted {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient wallet balance").
			WithDetails(map[string]any{"required_cents": input.AmountCents})
	}
	return nil
}

func currencyOrDefault(currency string) string {
	if currency == "" {
		return "INR"
	}
	return currency
}
