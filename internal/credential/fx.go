package credential

import (
	"github.com/smallbiznis/eventpass/internal/config"
	"github.com/smallbiznis/eventpass/internal/credential/domain"
	"github.com/smallbiznis/eventpass/internal/credential/repository"
	"github.com/smallbiznis/eventpass/internal/credential/service"
	"github.com/smallbiznis/eventpass/internal/credential/token"
	registrationdomain "github.com/smallbiznis/eventpass/internal/registration/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("credential.service",
	fx.Provide(repository.Provide),
	fx.Provide(func(cfg config.Config) (*token.Signer, error) {
		return token.NewSigner(cfg.Token.Secret)
	}),
	fx.Provide(service.New),
	fx.Provide(func(s domain.Service) registrationdomain.CredentialRevoker { return s }),
)
