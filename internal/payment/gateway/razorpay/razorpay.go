// Package razorpay talks to a Razorpay-compatible orders API.
package razorpay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/smallbiznis/eventpass/internal/payment/domain"
	"github.com/smallbiznis/eventpass/internal/payment/gateway"
	"github.com/smallbiznis/eventpass/pkg/money"
)

const (
	Provider        = "razorpay"
	SignatureHeader = "X-Razorpay-Signature"

	defaultBaseURL = "https://api.razorpay.com"
	maxAttempts    = 3
)

type Factory struct {
	// hc overrides the http client; tests point it at httptest servers.
	hc *http.Client
}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return Provider
}

func (f *Factory) NewAdapter(cfg domain.AdapterConfig) (domain.Gateway, error) {
	keyID := strings.TrimSpace(cfg.KeyID)
	keySecret := strings.TrimSpace(cfg.KeySecret)
	webhookSecret := strings.TrimSpace(cfg.WebhookSecret)
	if keyID == "" || keySecret == "" || webhookSecret == "" {
		return nil, domain.ErrInvalidConfig
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	hc := f.hc
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	return &Adapter{
		baseURL:       baseURL,
		keyID:         keyID,
		keySecret:     keySecret,
		webhookSecret: webhookSecret,
		hc:            hc,
	}, nil
}

type Adapter struct {
	baseURL       string
	keyID         string
	keySecret     string
	webhookSecret string

	hc *http.Client
}

func (a *Adapter) Provider() string {
	return Provider
}

type orderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type orderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type errorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// CreateOrder opens an order. Transport errors and 5xx responses are retried
// with the same idempotency key; everything else surfaces as unavailable.
func (a *Adapter) CreateOrder(ctx context.Context, req domain.CreateOrderRequest) (domain.Order, error) {
	notes := map[string]string{
		"transaction_id": req.Receipt,
		"amount_display": money.FormatMinor(req.Amount, req.Currency) + " " + strings.ToUpper(req.Currency),
	}
	for k, v := range req.Notes {
		notes[k] = v
	}
	body, err := json.Marshal(orderRequest{
		Amount:   req.Amount,
		Currency: strings.ToUpper(req.Currency),
		Receipt:  req.Receipt,
		Notes:    notes,
	})
	if err != nil {
		return domain.Order{}, err
	}
	idempotencyKey := uuid.NewSHA1(uuid.NameSpaceURL, []byte("eventpass:order:"+req.Receipt)).String()

	backOff := 200 * time.Millisecond
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		order, retry, err := a.createOrder(ctx, body, idempotencyKey)
		if err == nil {
			return order, nil
		}
		lastErr = err
		if !retry || attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return domain.Order{}, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, ctx.Err())
		case <-time.After(backOff):
			backOff *= 2
		}
	}
	return domain.Order{}, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, lastErr)
}

func (a *Adapter) createOrder(ctx context.Context, body []byte, idempotencyKey string) (domain.Order, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return domain.Order{}, false, err
	}
	req.SetBasicAuth(a.keyID, a.keySecret)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", idempotencyKey)

	resp, err := a.hc.Do(req)
	if err != nil {
		return domain.Order{}, ctx.Err() == nil, fmt.Errorf("razorpay: http.Do: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.Order{}, true, fmt.Errorf("razorpay: read body: %w", err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return domain.Order{}, true, fmt.Errorf("razorpay: status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		var reply errorResponse
		_ = json.Unmarshal(raw, &reply)
		return domain.Order{}, false, fmt.Errorf("razorpay: status %d: %s %s", resp.StatusCode, reply.Error.Code, reply.Error.Description)
	}

	var reply orderResponse
	if err := json.Unmarshal(raw, &reply); err != nil {
		return domain.Order{}, false, fmt.Errorf("razorpay: decode order: %w", err)
	}
	if strings.TrimSpace(reply.ID) == "" {
		return domain.Order{}, false, fmt.Errorf("razorpay: order without id")
	}
	return domain.Order{OrderID: reply.ID}, false, nil
}

func (a *Adapter) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	return gateway.VerifySignature(a.keySecret, orderID, paymentID, signature)
}

type webhookEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID               string            `json:"id"`
				OrderID          string            `json:"order_id"`
				Status           string            `json:"status"`
				ErrorCode        string            `json:"error_code"`
				ErrorDescription string            `json:"error_description"`
				Notes            map[string]string `json:"notes"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// ParseWebhook authenticates the envelope with the webhook secret. Webhooks
// carry no checkout signature, so one is derived from the key secret once the
// envelope is trusted and Verify treats the callback like a checkout return.
func (a *Adapter) ParseWebhook(ctx context.Context, payload []byte, headers http.Header) (*domain.GatewayCallback, error) {
	if !gateway.VerifyPayload(a.webhookSecret, payload, headers.Get(SignatureHeader)) {
		return nil, domain.ErrInvalidWebhookSignature
	}

	var envelope webhookEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	entity := envelope.Payload.Payment.Entity
	if strings.TrimSpace(entity.OrderID) == "" || strings.TrimSpace(entity.ID) == "" {
		return nil, domain.ErrInvalidPayload
	}

	callback := &domain.GatewayCallback{
		GatewayOrderID:   entity.OrderID,
		GatewayPaymentID: entity.ID,
	}
	if raw := strings.TrimSpace(entity.Notes["transaction_id"]); raw != "" {
		if id, err := snowflake.ParseString(raw); err == nil {
			callback.TransactionID = id
		}
	}

	switch envelope.Event {
	case "payment.captured", "order.paid":
		callback.Outcome = domain.CallbackCaptured
		callback.GatewaySignature = gateway.Sign(a.keySecret, entity.OrderID, entity.ID)
	case "payment.failed":
		callback.Outcome = domain.CallbackFailed
		callback.FailureReason = strings.TrimSpace(entity.ErrorCode + " " + entity.ErrorDescription)
	default:
		return nil, domain.ErrEventIgnored
	}
	return callback, nil
}
