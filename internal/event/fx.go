package event

import (
	"github.com/smallbiznis/eventpass/internal/event/repository"
	"github.com/smallbiznis/eventpass/internal/event/service"
	"go.uber.org/fx"
)

var Module = fx.Module("event.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
