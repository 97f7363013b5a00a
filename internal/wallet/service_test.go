package wallet

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/zapkart/zapkart-backend/pkg/enums"
	pkgerrors "github.com/zapkart/zapkart-backend/pkg/errors"
	"github.com/zapkart/zapkart-backend/pkg/pagination"
)

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Schema written by hand: sqlite rejects the postgres uuid default the
	// model declares.
	ddl := `
CREATE TABLE wallet_ledger_entries (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  type TEXT NOT NULL,
  amount_cents INTEGER NOT NULL,
  currency TEXT NOT NULL DEFAULT 'INR',
  idempotency_key TEXT NOT NULL UNIQUE,
  order_id TEXT,
  note TEXT,
  metadata TEXT,
  created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);`
	if err := db.Exec(ddl).Error; err != nil {
		t.Fatalf("create schema: %v", err)
	}
	svc, err := NewService(NewRepository(db))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, db
}

func TestCreditThenBalance(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	err := svc.Credit(ctx, nil, CreditInput{
		UserID:         userID,
		Type:           enums.LedgerEntryTypeTopUpCredit,
		AmountCents:    5000,
		IdempotencyKey: "topup:1",
	})
	if err != nil {
		t.Fatalf("credit: %v", err)
	}

	balance, err := svc.Balance(ctx, userID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 5000 {
		t.Fatalf("expected 5000, got %d", balance)
	}
}

func TestCredit_ReplaySameKeyIsAbsorbed(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	input := CreditInput{
		UserID:         userID,
		Type:           enums.LedgerEntryTypeRefundCredit,
		AmountCents:    1000,
		IdempotencyKey: "refund:item:abc",
	}
	if err := svc.Credit(ctx, nil, input); err != nil {
		t.Fatalf("first credit: %v", err)
	}
	if err := svc.Credit(ctx, nil, input); err != nil {
		t.Fatalf("replayed credit should be a no-op: %v", err)
	}

	balance, _ := svc.Balance(ctx, userID)
	if balance != 1000 {
		t.Fatalf("expected single application, got %d", balance)
	}
}

func TestDebit_InsufficientBalanceConflicts(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	err := svc.Debit(ctx, nil, DebitInput{
		UserID:         userID,
		Type:           enums.LedgerEntryTypeOrderDebit,
		AmountCents:    100,
		IdempotencyKey: "order_debit:x",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestDebit_SpendsAndReplaysAreAbsorbed(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	if err := svc.Credit(ctx, nil, CreditInput{
		UserID: userID, Type: enums.LedgerEntryTypeTopUpCredit,
		AmountCents: 3000, IdempotencyKey: "topup:1",
	}); err != nil {
		t.Fatalf("credit: %v", err)
	}

	debit := DebitInput{
		UserID: userID, Type: enums.LedgerEntryTypeOrderDebit,
		AmountCents: 2000, IdempotencyKey: "order_debit:draft-1",
	}
	if err := svc.Debit(ctx, nil, debit); err != nil {
		t.Fatalf("debit: %v", err)
	}
	if err := svc.Debit(ctx, nil, debit); err != nil {
		t.Fatalf("replayed debit should be a no-op: %v", err)
	}

	balance, _ := svc.Balance(ctx, userID)
	if balance != 1000 {
		t.Fatalf("expected 1000 after single debit, got %d", balance)
	}

	// A fresh debit larger than the remaining balance must fail.
	err := svc.Debit(ctx, nil, DebitInput{
		UserID: userID, Type: enums.LedgerEntryTypeOrderDebit,
		AmountCents: 1500, IdempotencyKey: "order_debit:draft-2",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected conflict on overdraft, got %v", err)
	}
}

func TestDebit_GuardHoldsAcrossTransactions(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	if err := svc.Credit(ctx, nil, CreditInput{
		UserID: userID, Type: enums.LedgerEntryTypeTopUpCredit,
		AmountCents: 500, IdempotencyKey: "topup:1",
	}); err != nil {
		t.Fatalf("credit: %v", err)
	}

	// Two debits of 400 against a 500 balance, each in its own transaction:
	// exactly one may land. The guard is serialized per user, so the second
	// always sees the first's committed debit.
	okErr := db.Transaction(func(tx *gorm.DB) error {
		return svc.Debit(ctx, tx, DebitInput{
			UserID: userID, Type: enums.LedgerEntryTypeOrderDebit,
			AmountCents: 400, IdempotencyKey: "order_debit:a",
		})
	})
	if okErr != nil {
		t.Fatalf("first debit: %v", okErr)
	}

	overdraft := db.Transaction(func(tx *gorm.DB) error {
		return svc.Debit(ctx, tx, DebitInput{
			UserID: userID, Type: enums.LedgerEntryTypeOrderDebit,
			AmountCents: 400, IdempotencyKey: "order_debit:b",
		})
	})
	typed := pkgerrors.As(overdraft)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict on second debit, got %v", overdraft)
	}

	balance, err := svc.Balance(ctx, userID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 100 {
		t.Fatalf("expected 100 remaining, got %d", balance)
	}
}

func TestDebit_ExactBalanceSucceeds(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	_ = svc.Credit(ctx, nil, CreditInput{
		UserID: userID, Type: enums.LedgerEntryTypeTopUpCredit,
		AmountCents: 500, IdempotencyKey: "topup:1",
	})
	if err := svc.Debit(ctx, nil, DebitInput{
		UserID: userID, Type: enums.LedgerEntryTypeOrderDebit,
		AmountCents: 500, IdempotencyKey: "order_debit:1",
	}); err != nil {
		t.Fatalf("exact-balance debit: %v", err)
	}
	balance, _ := svc.Balance(ctx, userID)
	if balance != 0 {
		t.Fatalf("expected zero balance, got %d", balance)
	}
}

func TestEntries_PaginatesNewestFirst(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	for i := 0; i < 5; i++ {
		if err := svc.Credit(ctx, nil, CreditInput{
			UserID: userID, Type: enums.LedgerEntryTypeTopUpCredit,
			AmountCents: 100 + i, IdempotencyKey: uuid.NewString(),
		}); err != nil {
			t.Fatalf("seed credit %d: %v", i, err)
		}
	}

	entries, next, err := svc.Entries(ctx, userID, pagination.Params{Limit: 3})
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if next == "" {
		t.Fatal("expected next cursor for remaining rows")
	}

	rest, _, err := svc.Entries(ctx, userID, pagination.Params{Limit: 3, Cursor: next})
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(rest) != 2 {
		t.Fatalf("expected 2 remaining entries, got %d", len(rest))
	}
}

func TestValidationErrors(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.Credit(ctx, nil, CreditInput{UserID: uuid.New(), Type: enums.LedgerEntryTypeTopUpCredit, AmountCents: 0, IdempotencyKey: "k"}); err == nil {
		t.Fatal("expected error for zero credit")
	}
	if err := svc.Credit(ctx, nil, CreditInput{UserID: uuid.New(), Type: enums.LedgerEntryTypeTopUpCredit, AmountCents: 100}); err == nil {
		t.Fatal("expected error for missing idempotency key")
	}
	if err := svc.Debit(ctx, nil, DebitInput{UserID: uuid.New(), Type: "bogus", AmountCents: 100, IdempotencyKey: "k"}); err == nil {
		t.Fatal("expected error for invalid ledger type")
	}
}
