package domain

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
)

type CreateOrderRequest struct {
	// Receipt is the transaction id; gateways echo it back on the order.
	Receipt  string
	Amount   int64
	Currency string
	Notes    map[string]string
}

type Order struct {
	OrderID string
}

type CallbackOutcome string

const (
	CallbackCaptured CallbackOutcome = "captured"
	CallbackFailed   CallbackOutcome = "failed"
)

// GatewayCallback is a gateway completion report after the adapter has
// authenticated it. TransactionID is zero when the gateway only knows the order.
type GatewayCallback struct {
	TransactionID    snowflake.ID
	GatewayOrderID   string
	GatewayPaymentID string
	GatewaySignature string
	Outcome          CallbackOutcome
	FailureReason    string
}

// Gateway is the payment gateway adapter. Its callbacks are untrusted and may
// arrive more than once.
type Gateway interface {
	Provider() string
	CreateOrder(ctx context.Context, req CreateOrderRequest) (Order, error)
	VerifyPaymentSignature(orderID, paymentID, signature string) bool
	ParseWebhook(ctx context.Context, payload []byte, headers http.Header) (*GatewayCallback, error)
}

type AdapterConfig struct {
	BaseURL       string
	KeyID         string
	KeySecret     string
	WebhookSecret string
	Timeout       time.Duration
}

type AdapterFactory interface {
	Provider() string
	NewAdapter(cfg AdapterConfig) (Gateway, error)
}
