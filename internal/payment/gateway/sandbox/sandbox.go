// Package sandbox is a local payment gateway: orders are minted in-process and
// checkout is simulated by Pay. It signs callbacks exactly like a real gateway.
package sandbox

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/eventpass/internal/payment/domain"
	"github.com/smallbiznis/eventpass/internal/payment/gateway"
)

const (
	Provider        = "sandbox"
	SignatureHeader = "X-Sandbox-Signature"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return Provider
}

func (f *Factory) NewAdapter(cfg domain.AdapterConfig) (domain.Gateway, error) {
	secret := strings.TrimSpace(cfg.KeySecret)
	if secret == "" {
		return nil, domain.ErrInvalidConfig
	}
	webhookSecret := strings.TrimSpace(cfg.WebhookSecret)
	if webhookSecret == "" {
		webhookSecret = secret
	}
	return &Adapter{keySecret: secret, webhookSecret: webhookSecret}, nil
}

type Adapter struct {
	keySecret     string
	webhookSecret string
}

func (a *Adapter) Provider() string {
	return Provider
}

func (a *Adapter) CreateOrder(ctx context.Context, req domain.CreateOrderRequest) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}
	return domain.Order{OrderID: "order_" + strings.ToLower(ulid.Make().String())}, nil
}

func (a *Adapter) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	return gateway.VerifySignature(a.keySecret, orderID, paymentID, signature)
}

// Pay simulates a successful checkout and returns what the client would post back.
func (a *Adapter) Pay(orderID string) (paymentID, signature string) {
	paymentID = "pay_" + strings.ToLower(ulid.Make().String())
	return paymentID, gateway.Sign(a.keySecret, orderID, paymentID)
}

// WebhookPayload is the sandbox server callback body.
type WebhookPayload struct {
	TransactionID snowflake.ID `json:"transaction_id,omitempty"`
	OrderID       string       `json:"order_id"`
	PaymentID     string       `json:"payment_id"`
	Signature     string       `json:"signature"`
	Status        string       `json:"status"`
	FailureReason string       `json:"failure_reason,omitempty"`
}

// SignWebhook returns the header value the sandbox would send for payload.
func (a *Adapter) SignWebhook(payload []byte) string {
	return gateway.SignPayload(a.webhookSecret, payload)
}

func (a *Adapter) ParseWebhook(ctx context.Context, payload []byte, headers http.Header) (*domain.GatewayCallback, error) {
	if !gateway.VerifyPayload(a.webhookSecret, payload, headers.Get(SignatureHeader)) {
		return nil, domain.ErrInvalidWebhookSignature
	}

	var body WebhookPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if strings.TrimSpace(body.OrderID) == "" {
		return nil, domain.ErrInvalidPayload
	}

	callback := &domain.GatewayCallback{
		TransactionID:    body.TransactionID,
		GatewayOrderID:   strings.TrimSpace(body.OrderID),
		GatewayPaymentID: strings.TrimSpace(body.PaymentID),
		GatewaySignature: strings.TrimSpace(body.Signature),
		FailureReason:    body.FailureReason,
	}
	switch strings.ToLower(strings.TrimSpace(body.Status)) {
	case "captured", "paid":
		callback.Outcome = domain.CallbackCaptured
	case "failed":
		callback.Outcome = domain.CallbackFailed
	default:
		return nil, domain.ErrEventIgnored
	}
	return callback, nil
}
