package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventpass/internal/clock"
	"github.com/smallbiznis/eventpass/internal/config"
	eventdomain "github.com/smallbiznis/eventpass/internal/event/domain"
	"github.com/smallbiznis/eventpass/internal/orgcontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	demoEventName     = "Demo Gala"
	demoEventSlug     = "demo-gala"
	demoEventFee      = 150000
	demoEventGuestFee = 50000
	demoEventCurrency = "INR"
	demoEventCapacity = 200
	demoEventLeadTime = 14 * 24 * time.Hour
)

var Module = fx.Module("seed",
	fx.Invoke(registerDemoSeed),
)

func registerDemoSeed(lc fx.Lifecycle, cfg config.Config, db *gorm.DB, events eventdomain.Service, clk clock.Clock, log *zap.Logger) {
	if cfg.IsProduction() || cfg.SeedDemoOrgID == "" {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			orgID, err := snowflake.ParseString(cfg.SeedDemoOrgID)
			if err != nil || orgID <= 0 {
				return fmt.Errorf("invalid SEED_DEMO_ORG %q", cfg.SeedDemoOrgID)
			}
			event, created, err := EnsureDemoEvent(ctx, db, events, clk, orgID)
			if err != nil {
				return err
			}
			log.Named("seed").Info("demo event ready",
				zap.String("org_id", orgID.String()),
				zap.String("event_id", event.ID.String()),
				zap.Bool("created", created),
			)
			return nil
		},
	})
}

// EnsureDemoEvent creates the demo event for an organization unless one with
// the demo slug already exists.
func EnsureDemoEvent(ctx context.Context, db *gorm.DB, events eventdomain.Service, clk clock.Clock, orgID snowflake.ID) (eventdomain.Event, bool, error) {
	if db == nil || events == nil {
		return eventdomain.Event{}, false, errors.New("seed dependencies are required")
	}

	var existing eventdomain.Event
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, name, slug, fee, guest_fee, currency, max_capacity, confirmed_count, starts_at, created_at, updated_at
		FROM events WHERE org_id = ? AND slug = ?`,
		orgID, demoEventSlug,
	).Scan(&existing).Error
	if err != nil {
		return eventdomain.Event{}, false, err
	}
	if existing.ID != 0 {
		return existing, false, nil
	}

	capacity := int64(demoEventCapacity)
	event, err := events.Create(orgcontext.WithOrgID(ctx, orgID.Int64()), eventdomain.CreateEventRequest{
		Name:        demoEventName,
		Fee:         demoEventFee,
		GuestFee:    demoEventGuestFee,
		Currency:    demoEventCurrency,
		MaxCapacity: &capacity,
		StartsAt:    clk.Now().Add(demoEventLeadTime),
	})
	if err != nil {
		return eventdomain.Event{}, false, err
	}
	return event, true, nil
}
