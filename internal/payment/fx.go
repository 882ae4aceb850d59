package payment

import (
	"github.com/smallbiznis/eventpass/internal/config"
	"github.com/smallbiznis/eventpass/internal/payment/domain"
	"github.com/smallbiznis/eventpass/internal/payment/gateway"
	"github.com/smallbiznis/eventpass/internal/payment/gateway/razorpay"
	"github.com/smallbiznis/eventpass/internal/payment/gateway/sandbox"
	"github.com/smallbiznis/eventpass/internal/payment/repository"
	paymentservice "github.com/smallbiznis/eventpass/internal/payment/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(func() *gateway.Registry {
		return gateway.NewRegistry(
			sandbox.NewFactory(),
			razorpay.NewFactory(),
		)
	}),
	fx.Provide(NewGateway),
	fx.Provide(paymentservice.NewService),
)

// NewGateway builds the configured gateway adapter.
func NewGateway(cfg config.Config, registry *gateway.Registry, log *zap.Logger) (domain.Gateway, error) {
	gw, err := registry.NewAdapter(cfg.Gateway.Provider, domain.AdapterConfig{
		BaseURL:       cfg.Gateway.BaseURL,
		KeyID:         cfg.Gateway.KeyID,
		KeySecret:     cfg.Gateway.KeySecret,
		WebhookSecret: cfg.Gateway.WebhookSecret,
		Timeout:       cfg.Gateway.Timeout,
	})
	if err != nil {
		return nil, err
	}
	log.Named("payment.gateway").Info("payment gateway configured", zap.String("provider", gw.Provider()))
	return gw, nil
}
