package controllers

import (
	"net/http"

	"github.com/zapkart/zapkart-backend/api/responses"
	"github.com/zapkart/zapkart-backend/api/validators"
	ordersvc "github.com/zapkart/zapkart-backend/internal/orders"
	pkgerrors "github.com/zapkart/zapkart-backend/pkg/errors"
	"github.com/zapkart/zapkart-backend/pkg/logger"
)

const (
	returnDecisionApprove = "approve"
	returnDecisionReject  = "reject"
)

// AdminReturnDecision settles a pending return request. Approval restocks the
// line and credits the refund; rejection just closes the request.
func AdminReturnDecision(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		orderID, itemID, err := parseOrderItemParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload returnDecisionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.ResolveReturn(r.Context(), orderID, itemID, payload.Decision == returnDecisionApprove)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderItemResponse(item))
	}
}

type returnDecisionRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approve reject"`
}
