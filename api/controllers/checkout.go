package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/zapkart/zapkart-backend/api/responses"
	"github.com/zapkart/zapkart-backend/api/validators"
	checkoutsvc "github.com/zapkart/zapkart-backend/internal/checkout"
	paymentsvc "github.com/zapkart/zapkart-backend/internal/payments"
	"github.com/zapkart/zapkart-backend/pkg/db/models"
	"github.com/zapkart/zapkart-backend/pkg/enums"
	pkgerrors "github.com/zapkart/zapkart-backend/pkg/errors"
	"github.com/zapkart/zapkart-backend/pkg/gateway"
	"github.com/zapkart/zapkart-backend/pkg/logger"
)

// CheckoutBuild prices the caller's active cart into an expiring draft.
func CheckoutBuild(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload buildDraftRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := enums.ParsePaymentMethod(payload.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}

		draft, err := svc.BuildDraft(r.Context(), checkoutsvc.BuildDraftInput{
			UserID:        userID,
			CouponCode:    payload.CouponCode,
			PaymentMethod: method,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newDraftResponse(draft))
	}
}

// CheckoutGetDraft returns one of the caller's drafts.
func CheckoutGetDraft(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		draftID, err := uuid.Parse(chi.URLParam(r, "draftID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid draft id"))
			return
		}

		draft, err := svc.GetDraft(r.Context(), draftID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newDraftResponse(draft))
	}
}

// CheckoutPay starts a payment attempt against a draft. Wallet and COD settle
// inline; online returns the gateway order the client completes.
func CheckoutPay(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		draftID, err := uuid.Parse(chi.URLParam(r, "draftID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid draft id"))
			return
		}

		result, err := svc.StartAttempt(r.Context(), paymentsvc.StartInput{
			UserID:  userID,
			DraftID: draftID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newPayResponse(result))
	}
}

type buildDraftRequest struct {
	PaymentMethod string `json:"payment_method" validate:"required"`
	CouponCode    string `json:"coupon_code"`
}

type draftResponse struct {
	ID            uuid.UUID           `json:"id"`
	Status        string              `json:"status"`
	PaymentMethod string              `json:"payment_method"`
	Currency      string              `json:"currency"`
	SubtotalCents int                 `json:"subtotal_cents"`
	DiscountCents int                 `json:"discount_cents"`
	TotalCents    int                 `json:"total_cents"`
	ExpiresAt     time.Time           `json:"expires_at"`
	Items         []draftItemResponse `json:"items"`
}

type draftItemResponse struct {
	ProductID         uuid.UUID `json:"product_id"`
	Name              string    `json:"name"`
	Qty               int       `json:"qty"`
	UnitPriceCents    int       `json:"unit_price_cents"`
	LineSubtotalCents int       `json:"line_subtotal_cents"`
}

func newDraftResponse(draft *models.CheckoutDraft) draftResponse {
	items := make([]draftItemResponse, len(draft.Items))
	for i, item := range draft.Items {
		items[i] = draftItemResponse{
			ProductID:         item.ProductID,
			Name:              item.Name,
			Qty:               item.Qty,
			UnitPriceCents:    item.UnitPriceCents,
			LineSubtotalCents: item.LineSubtotalCents,
		}
	}
	return draftResponse{
		ID:            draft.ID,
		Status:        draft.Status.String(),
		PaymentMethod: draft.PaymentMethod.String(),
		Currency:      draft.Currency,
		SubtotalCents: draft.SubtotalCents,
		DiscountCents: draft.DiscountCents,
		TotalCents:    draft.TotalCents,
		ExpiresAt:     draft.ExpiresAt,
		Items:         items,
	}
}

type payResponse struct {
	Attempt      attemptResponse       `json:"attempt"`
	Order        *orderResponse        `json:"order,omitempty"`
	GatewayOrder *gateway.GatewayOrder `json:"gateway_order,omitempty"`
}

type attemptResponse struct {
	ID          uuid.UUID `json:"id"`
	Status      string    `json:"status"`
	Method      string    `json:"method"`
	AmountCents int       `json:"amount_cents"`
	Currency    string    `json:"currency"`
	GatewayRef  string    `json:"gateway_ref,omitempty"`
}

func newPayResponse(result *paymentsvc.StartResult) payResponse {
	resp := payResponse{
		Attempt: attemptResponse{
			ID:          result.Attempt.ID,
			Status:      result.Attempt.Status.String(),
			Method:      result.Attempt.Method.String(),
			AmountCents: result.Attempt.AmountCents,
			Currency:    result.Attempt.Currency,
			GatewayRef:  result.Attempt.GatewayRef,
		},
		GatewayOrder: result.GatewayOrder,
	}
	if result.Order != nil {
		order := newOrderResponse(result.Order)
		resp.Order = &order
	}
	return resp
}
