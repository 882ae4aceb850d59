package notification

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventpass/internal/clock"
	"github.com/smallbiznis/eventpass/internal/notification/domain"
	"go.uber.org/fx"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type OutboxParams struct {
	fx.In

	DB    *gorm.DB
	GenID *snowflake.Node
	Clock clock.Clock
}

type Outbox struct {
	db    *gorm.DB
	genID *snowflake.Node
	clock clock.Clock
}

func NewOutbox(p OutboxParams) *Outbox {
	return &Outbox{db: p.DB, genID: p.GenID, clock: p.Clock}
}

func (o *Outbox) Publish(ctx context.Context, event domain.Event) error {
	return o.PublishTx(ctx, o.db, event)
}

func (o *Outbox) PublishTx(ctx context.Context, tx *gorm.DB, event domain.Event) error {
	if event.OrgID == 0 || strings.TrimSpace(string(event.Type)) == "" || event.AggregateID == 0 {
		return domain.ErrInvalidEvent
	}

	dedupeKey := strings.TrimSpace(event.DedupeKey)
	if dedupeKey == "" {
		dedupeKey = fmt.Sprintf("%s:%s", event.Type, event.AggregateID)
	}
	payload := datatypes.JSONMap{}
	for k, v := range event.Payload {
		payload[k] = v
	}

	now := o.clock.Now()
	return tx.WithContext(ctx).Exec(
		`INSERT INTO notification_outbox (
			id, org_id, event_type, aggregate_id, dedupe_key, payload, status, attempts, next_attempt_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
		ON CONFLICT (dedupe_key) DO NOTHING`,
		o.genID.Generate(),
		event.OrgID,
		string(event.Type),
		event.AggregateID,
		dedupeKey,
		payload,
		string(domain.OutboxStatusPending),
		now,
		now,
	).Error
}

var _ domain.Publisher = (*Outbox)(nil)
