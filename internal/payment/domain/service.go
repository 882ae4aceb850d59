package domain

import (
	"context"
	"errors"
	"net/http"

	"github.com/bwmarrin/snowflake"
)

type InitiateRequest struct {
	UserID        snowflake.ID
	ReferenceType ReferenceType
	ReferenceID   snowflake.ID
	// Amount is optional for event payments; when present it must match the
	// server-side price.
	Amount        *int64
	Currency      string
	Intent        Intent
}

type VerifyRequest struct {
	TransactionID    snowflake.ID
	GatewayOrderID   string
	GatewayPaymentID string
	GatewaySignature string
}

type Service interface {
	Initiate(ctx context.Context, req InitiateRequest) (Transaction, error)
	Verify(ctx context.Context, req VerifyRequest) (Transaction, error)
	Expire(ctx context.Context, id snowflake.ID, reason string) (Transaction, error)
	Get(ctx context.Context, id snowflake.ID) (Transaction, error)
	HandleWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) (Transaction, error)
}

// CompletionHandler is invoked every time Verify observes a COMPLETED
// transaction, including replays. Implementations must be idempotent.
type CompletionHandler interface {
	OnCompleted(ctx context.Context, txn Transaction) error
}

var (
	ErrInvalidOrganization     = errors.New("invalid_organization")
	ErrInvalidUser             = errors.New("invalid_user")
	ErrInvalidReferenceType    = errors.New("invalid_reference_type")
	ErrInvalidIntent           = errors.New("invalid_registration_intent")
	ErrInvalidGuest            = errors.New("invalid_guest")
	ErrInvalidAmount           = errors.New("invalid_amount")
	ErrInvalidCurrency         = errors.New("invalid_currency")
	ErrAmountMismatch          = errors.New("amount_mismatch")
	ErrEventNotFound           = errors.New("event_not_found")
	ErrTransactionNotFound     = errors.New("transaction_not_found")
	ErrGatewayUnavailable      = errors.New("gateway_unavailable")
	ErrSignatureMismatch       = errors.New("signature_mismatch")
	ErrPaymentFailed           = errors.New("payment_failed")
	ErrTransactionExpired      = errors.New("transaction_expired")
	ErrProviderNotFound        = errors.New("payment_provider_not_found")
	ErrInvalidConfig           = errors.New("invalid_payment_provider_config")
	ErrInvalidWebhookSignature = errors.New("invalid_webhook_signature")
	ErrInvalidPayload          = errors.New("invalid_payload")
	ErrEventIgnored            = errors.New("event_ignored")
)
