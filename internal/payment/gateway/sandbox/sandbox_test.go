package sandbox

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/smallbiznis/eventpass/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAdapter(t *testing.T) *Adapter {
	t.Helper()
	gw, err := NewFactory().NewAdapter(domain.AdapterConfig{KeySecret: "key_secret", WebhookSecret: "whsec"})
	require.NoError(t, err)
	return gw.(*Adapter)
}

func TestNewAdapterRequiresSecret(t *testing.T) {
	_, err := NewFactory().NewAdapter(domain.AdapterConfig{})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestCreateOrderAndPay(t *testing.T) {
	gw := newAdapter(t)

	order, err := gw.CreateOrder(context.Background(), domain.CreateOrderRequest{Receipt: "1", Amount: 750, Currency: "INR"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(order.OrderID, "order_"))

	paymentID, sig := gw.Pay(order.OrderID)
	assert.True(t, gw.VerifyPaymentSignature(order.OrderID, paymentID, sig))
	assert.False(t, gw.VerifyPaymentSignature("order_other", paymentID, sig))
}

func TestParseWebhook(t *testing.T) {
	gw := newAdapter(t)
	payload, err := json.Marshal(WebhookPayload{
		TransactionID: 42,
		OrderID:       "order_1",
		PaymentID:     "pay_1",
		Signature:     "abc",
		Status:        "captured",
	})
	require.NoError(t, err)

	headers := http.Header{}
	headers.Set(SignatureHeader, gw.SignWebhook(payload))

	callback, err := gw.ParseWebhook(context.Background(), payload, headers)
	require.NoError(t, err)
	assert.Equal(t, "42", callback.TransactionID.String())
	assert.Equal(t, domain.CallbackCaptured, callback.Outcome)
	assert.Equal(t, "order_1", callback.GatewayOrderID)

	headers.Set(SignatureHeader, "deadbeef")
	_, err = gw.ParseWebhook(context.Background(), payload, headers)
	assert.ErrorIs(t, err, domain.ErrInvalidWebhookSignature)
}

func TestParseWebhookIgnoresUnknownStatus(t *testing.T) {
	gw := newAdapter(t)
	payload := []byte(`{"order_id":"order_1","status":"authorized"}`)
	headers := http.Header{}
	headers.Set(SignatureHeader, gw.SignWebhook(payload))

	_, err := gw.ParseWebhook(context.Background(), payload, headers)
	assert.ErrorIs(t, err, domain.ErrEventIgnored)
}
