package registration

import (
	paymentdomain "github.com/smallbiznis/eventpass/internal/payment/domain"
	"github.com/smallbiznis/eventpass/internal/registration/domain"
	"github.com/smallbiznis/eventpass/internal/registration/repository"
	"github.com/smallbiznis/eventpass/internal/registration/service"
	"go.uber.org/fx"
)

var Module = fx.Module("registration.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
	fx.Provide(
		func(s *service.Service) domain.Service { return s },
		func(s *service.Service) paymentdomain.CompletionHandler { return s },
	),
)
