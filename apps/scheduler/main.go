package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventpass/internal/clock"
	"github.com/smallbiznis/eventpass/internal/config"
	"github.com/smallbiznis/eventpass/internal/event"
	"github.com/smallbiznis/eventpass/internal/notification"
	"github.com/smallbiznis/eventpass/internal/observability"
	"github.com/smallbiznis/eventpass/internal/payment"
	"github.com/smallbiznis/eventpass/internal/scheduler"
	"github.com/smallbiznis/eventpass/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		// Domain services required by the reconciliation sweep. The outbox
		// dispatcher rides along in this process.
		event.Module,
		notification.Module,
		payment.Module,

		// No server module!
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
