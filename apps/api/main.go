package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventpass/internal/authorization"
	"github.com/smallbiznis/eventpass/internal/cache"
	"github.com/smallbiznis/eventpass/internal/checkin"
	"github.com/smallbiznis/eventpass/internal/clock"
	"github.com/smallbiznis/eventpass/internal/config"
	"github.com/smallbiznis/eventpass/internal/credential"
	"github.com/smallbiznis/eventpass/internal/event"
	"github.com/smallbiznis/eventpass/internal/ledger"
	"github.com/smallbiznis/eventpass/internal/migration"
	"github.com/smallbiznis/eventpass/internal/notification"
	"github.com/smallbiznis/eventpass/internal/observability"
	"github.com/smallbiznis/eventpass/internal/payment"
	"github.com/smallbiznis/eventpass/internal/ratelimit"
	"github.com/smallbiznis/eventpass/internal/registration"
	"github.com/smallbiznis/eventpass/internal/server"
	"github.com/smallbiznis/eventpass/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		cache.Module,
		ratelimit.Module,

		event.Module,
		ledger.Module,
		notification.Module,
		payment.Module,
		registration.Module,
		credential.Module,
		checkin.Module,
		authorization.Module,

		// No scheduler module; run apps/scheduler alongside.
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
