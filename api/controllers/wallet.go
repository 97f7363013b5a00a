package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zapkart/zapkart-backend/api/responses"
	"github.com/zapkart/zapkart-backend/api/validators"
	walletsvc "github.com/zapkart/zapkart-backend/internal/wallet"
	"github.com/zapkart/zapkart-backend/pkg/db/models"
	pkgerrors "github.com/zapkart/zapkart-backend/pkg/errors"
	"github.com/zapkart/zapkart-backend/pkg/logger"
	"github.com/zapkart/zapkart-backend/pkg/pagination"
)

// WalletGet returns the caller's balance plus a cursor page of ledger entries.
func WalletGet(svc walletsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallet service unavailable"))
			return
		}

		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cursor := strings.TrimSpace(r.URL.Query().Get("cursor"))

		balance, err := svc.Balance(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entries, nextCursor, err := svc.Entries(r.Context(), userID, pagination.Params{
			Limit:  limit,
			Cursor: cursor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]ledgerEntryResponse, len(entries))
		for i := range entries {
			items[i] = newLedgerEntryResponse(&entries[i])
		}
		responses.WriteSuccess(w, walletResponse{
			BalanceCents: balance,
			Entries:      items,
			NextCursor:   nextCursor,
		})
	}
}

type walletResponse struct {
	BalanceCents int                   `json:"balance_cents"`
	Entries      []ledgerEntryResponse `json:"entries"`
	NextCursor   string                `json:"next_cursor,omitempty"`
}

type ledgerEntryResponse struct {
	ID          uuid.UUID  `json:"id"`
	Type        string     `json:"type"`
	AmountCents int        `json:"amount_cents"`
	Currency    string     `json:"currency"`
	OrderID     *uuid.UUID `json:"order_id,omitempty"`
	Note        string     `json:"note,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func newLedgerEntryResponse(entry *models.WalletLedgerEntry) ledgerEntryResponse {
	return ledgerEntryResponse{
		ID:          entry.ID,
		Type:        entry.Type.String(),
		AmountCents: entry.AmountCents,
		Currency:    entry.Currency,
		OrderID:     entry.OrderID,
		Note:        entry.Note,
		CreatedAt:   entry.CreatedAt,
	}
}
