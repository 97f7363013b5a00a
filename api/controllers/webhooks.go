package controllers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/zapkart/zapkart-backend/api/responses"
	paymentsvc "github.com/zapkart/zapkart-backend/internal/payments"
	pkgerrors "github.com/zapkart/zapkart-backend/pkg/errors"
	"github.com/zapkart/zapkart-backend/pkg/logger"
)

const gatewaySignatureHeader = "X-Gateway-Signature"

type signatureVerifier interface {
	VerifyWebhookSignature(payload []byte, signature string) bool
}

type gatewayWebhookEvent struct {
	Event      string `json:"event"`
	GatewayRef string `json:"gateway_ref"`
	Reason     string `json:"reason"`
}

// PaymentWebhook receives gateway capture/failure callbacks. Reconciliation is
// idempotent, so the gateway may redeliver the same event freely.
func PaymentWebhook(svc paymentsvc.Service, verifier signatureVerifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}
		if verifier == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "gateway client unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		signature := strings.TrimSpace(r.Header.Get(gatewaySignatureHeader))
		if signature == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "gateway signature missing"))
			return
		}
		if !verifier.VerifyWebhookSignature(payload, signature) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid gateway signature"))
			return
		}

		var event gatewayWebhookEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode event"))
			return
		}

		if err := svc.HandleCallback(ctx, paymentsvc.CallbackInput{
			GatewayRef: event.GatewayRef,
			Event:      event.Event,
			Reason:     event.Reason,
		}); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "processed"})
	}
}
