package controllers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	paymentsvc "github.com/zapkart/zapkart-backend/internal/payments"
	"github.com/zapkart/zapkart-backend/pkg/db/models"
	"github.com/zapkart/zapkart-backend/pkg/outbox"
)

type fakePaymentService struct {
	calls  []paymentsvc.CallbackInput
	err    error
	starts int
}

func (f *fakePaymentService) StartAttempt(context.Context, paymentsvc.StartInput) (*paymentsvc.StartResult, error) {
	f.starts++
	return nil, nil
}

func (f *fakePaymentService) HandleCallback(_ context.Context, input paymentsvc.CallbackInput) error {
	f.calls = append(f.calls, input)
	return f.err
}

func (f *fakePaymentService) HandleRefundPending(context.Context, outbox.PayloadEnvelope, models.OutboxEvent) error {
	return nil
}

type hmacVerifier struct {
	secret string
}

func (v hmacVerifier) VerifyWebhookSignature(payload []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(v.secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil)) == signature
}

func signBody(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestPaymentWebhookVerifiesAndDispatches(t *testing.T) {
	svc := &fakePaymentService{}
	handler := PaymentWebhook(svc, hmacVerifier{secret: "secret"}, nil)

	payload := []byte(`{"event":"payment.captured","gateway_ref":"pay_123"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payment", bytes.NewReader(payload))
	req.Header.Set("X-Gateway-Signature", signBody("secret", payload))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if len(svc.calls) != 1 {
		t.Fatalf("expected one callback, got %d", len(svc.calls))
	}
	if svc.calls[0].GatewayRef != "pay_123" || svc.calls[0].Event != "payment.captured" {
		t.Fatalf("unexpected callback input %+v", svc.calls[0])
	}
}

func TestPaymentWebhookRejectsBadSignature(t *testing.T) {
	svc := &fakePaymentService{}
	handler := PaymentWebhook(svc, hmacVerifier{secret: "secret"}, nil)

	payload := []byte(`{"event":"payment.captured","gateway_ref":"pay_123"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payment", bytes.NewReader(payload))
	req.Header.Set("X-Gateway-Signature", "deadbeef")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad signature, got %d", rec.Code)
	}
	if len(svc.calls) != 0 {
		t.Fatalf("service should not run on bad signature")
	}
}

func TestPaymentWebhookRequiresSignatureHeader(t *testing.T) {
	svc := &fakePaymentService{}
	handler := PaymentWebhook(svc, hmacVerifier{secret: "secret"}, nil)

	payload := []byte(`{"event":"payment.failed","gateway_ref":"pay_456","reason":"card declined"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payment", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without signature, got %d", rec.Code)
	}
	if len(svc.calls) != 0 {
		t.Fatalf("service should not run without signature")
	}
}
