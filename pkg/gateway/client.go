package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/zapkart/zapkart-backend/pkg/config"
	pkgerrors "github.com/zapkart/zapkart-backend/pkg/errors"
	"github.com/zapkart/zapkart-backend/pkg/logger"
)

var (
	errBaseURLRequired       = errors.New("gateway base url is required")
	errKeyRequired           = errors.New("gateway key id and secret are required")
	errWebhookSecretRequired = errors.New("gateway webhook secret is required")
)

// Client talks to the card/UPI payment gateway's REST API with basic-auth
// credentials and verifies its signed callbacks.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	keyID         string
	keySecret     string
	webhookSecret string
	logger        *logger.Logger
}

// GatewayOrder is the provider-side order a client SDK completes payment against.
type GatewayOrder struct {
	ID          string `json:"id"`
	AmountCents int    `json:"amount"`
	Currency    string `json:"currency"`
	Receipt     string `json:"receipt"`
	Status      string `json:"status"`
}

// RefundResult describes an initiated refund on a captured payment.
type RefundResult struct {
	ID          string `json:"id"`
	PaymentID   string `json:"payment_id"`
	AmountCents int    `json:"amount"`
	Status      string `json:"status"`
}

// NewClient validates the gateway credentials and returns a ready client.
func NewClient(cfg config.GatewayConfig, logg *logger.Logger) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	if strings.TrimSpace(cfg.KeyID) == "" || strings.TrimSpace(cfg.KeySecret) == "" {
		return nil, errKeyRequired
	}
	if strings.TrimSpace(cfg.WebhookSecret) == "" {
		return nil, errWebhookSecretRequired
	}
	return &Client{
		httpClient:    &http.Client{Timeout: cfg.Timeout},
		baseURL:       baseURL,
		keyID:         strings.TrimSpace(cfg.KeyID),
		keySecret:     strings.TrimSpace(cfg.KeySecret),
		webhookSecret: strings.TrimSpace(cfg.WebhookSecret),
		logger:        logg,
	}, nil
}

// CreateOrder registers a provider-side order for the given amount. The receipt
// carries our draft id so gateway dashboards trace back to the checkout.
func (c *Client) CreateOrder(ctx context.Context, amountCents int, currency, receipt string) (*GatewayOrder, error) {
	body := map[string]any{
		"amount":   amountCents,
		"currency": currency,
		"receipt":  receipt,
	}
	var out GatewayOrder
	if err := c.post(ctx, "/v1/orders", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Refund asks the gateway to return amountCents of a captured payment.
func (c *Client) Refund(ctx context.Context, paymentRef string, amountCents int) (*RefundResult, error) {
	if strings.TrimSpace(paymentRef) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference is required for refund")
	}
	body := map[string]any{
		"amount": amountCents,
	}
	var out RefundResult
	path := fmt.Sprintf("/v1/payments/%s/refund", paymentRef)
	if err := c.post(ctx, path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyWebhookSignature checks the HMAC-SHA256 signature the gateway sends
// over the raw callback body. Comparison is constant time.
func (c *Client) VerifyWebhookSignature(payload []byte, signature string) bool {
	return verifySignature(payload, c.webhookSecret, signature)
}

func verifySignature(payload []byte, secret, header string) bool {
	if header == "" || secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(header))
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode gateway request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build gateway request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePayment, err, "call payment gateway")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePayment, err, "read gateway response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return pkgerrors.New(pkgerrors.CodePayment, fmt.Sprintf("gateway returned status %d", resp.StatusCode)).
			WithDetails(map[string]any{"body": string(data)})
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodePayment, err, "decode gateway response")
		}
	}
	return nil
}
