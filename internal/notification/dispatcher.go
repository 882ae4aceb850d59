package notification

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/eventpass/internal/clock"
	"github.com/smallbiznis/eventpass/internal/config"
	"github.com/smallbiznis/eventpass/internal/notification/domain"
	obsmetrics "github.com/smallbiznis/eventpass/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxBackoff = 5 * time.Minute

type DispatcherParams struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	Sink       domain.Sink
	Gate       *config.GateConfigHolder
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

// Dispatcher drains pending outbox rows into the configured sink. Delivery is
// at-least-once; consumers dedupe on the event id.
type Dispatcher struct {
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	sink       domain.Sink
	gate       *config.GateConfigHolder
	obsMetrics *obsmetrics.Metrics
}

func NewDispatcher(p DispatcherParams) *Dispatcher {
	return &Dispatcher{
		db:         p.DB,
		log:        p.Log.Named("notification.dispatcher"),
		clock:      p.Clock,
		sink:       p.Sink,
		gate:       p.Gate,
		obsMetrics: p.ObsMetrics,
	}
}

// RunForever polls until ctx is cancelled.
func (d *Dispatcher) RunForever(ctx context.Context) {
	d.log.Info("dispatcher started", zap.String("sink", d.sink.Name()))
	for {
		interval := d.gate.Get().OutboxPollInterval
		delivered, err := d.DispatchBatch(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			d.log.Warn("dispatch batch failed", zap.Error(err))
		}

		// Drain without sleeping while there is a backlog.
		if delivered > 0 && err == nil {
			continue
		}

		select {
		case <-ctx.Done():
			d.log.Info("dispatcher stopped")
			return
		case <-time.After(interval):
		}
	}
}

// DispatchBatch delivers up to one batch of due events and returns how many
// were published.
func (d *Dispatcher) DispatchBatch(ctx context.Context) (int, error) {
	cfg := d.gate.Get()
	published := 0

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		events, err := d.claim(ctx, tx, cfg.OutboxBatchSize)
		if err != nil {
			return err
		}

		for _, event := range events {
			if err := ctx.Err(); err != nil {
				return err
			}
			deliverErr := d.sink.Deliver(ctx, event)
			if deliverErr == nil {
				if err := d.markPublished(ctx, tx, event); err != nil {
					return err
				}
				published++
				d.obsMetrics.RecordOutboxDelivery(ctx, string(event.EventType), "published")
				continue
			}

			outcome := "retry"
			if event.Attempts+1 >= cfg.OutboxMaxAttempts {
				outcome = "failed"
			}
			d.log.Warn("notification delivery failed",
				zap.String("outbox_id", event.ID.String()),
				zap.String("event_type", string(event.EventType)),
				zap.Int("attempt", event.Attempts+1),
				zap.String("outcome", outcome),
				zap.Error(deliverErr),
			)
			if err := d.markFailedAttempt(ctx, tx, event, deliverErr, outcome == "failed"); err != nil {
				return err
			}
			d.obsMetrics.RecordOutboxDelivery(ctx, string(event.EventType), outcome)
		}
		return nil
	})
	return published, err
}

func (d *Dispatcher) claim(ctx context.Context, tx *gorm.DB, limit int) ([]domain.OutboxEvent, error) {
	query := `SELECT id, org_id, event_type, aggregate_id, dedupe_key, payload, status, attempts, last_error, next_attempt_at, created_at, published_at
		 FROM notification_outbox
		 WHERE status = ? AND next_attempt_at <= ?
		 ORDER BY id
		 LIMIT ?`
	if tx.Dialector.Name() == "postgres" {
		// Lets several replicas drain the outbox without double delivery.
		query += ` FOR UPDATE SKIP LOCKED`
	}

	var events []domain.OutboxEvent
	err := tx.WithContext(ctx).Raw(query, string(domain.OutboxStatusPending), d.clock.Now(), limit).Scan(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (d *Dispatcher) markPublished(ctx context.Context, tx *gorm.DB, event domain.OutboxEvent) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE notification_outbox SET status = ?, attempts = attempts + 1, published_at = ?, last_error = NULL WHERE id = ?`,
		string(domain.OutboxStatusPublished),
		d.clock.Now(),
		event.ID,
	).Error
}

func (d *Dispatcher) markFailedAttempt(ctx context.Context, tx *gorm.DB, event domain.OutboxEvent, cause error, final bool) error {
	status := domain.OutboxStatusPending
	if final {
		status = domain.OutboxStatusFailed
	}
	return tx.WithContext(ctx).Exec(
		`UPDATE notification_outbox SET status = ?, attempts = attempts + 1, last_error = ?, next_attempt_at = ? WHERE id = ?`,
		string(status),
		cause.Error(),
		d.clock.Now().Add(backoff(event.Attempts+1)),
		event.ID,
	).Error
}

func backoff(attempt int) time.Duration {
	if attempt <= 0 {
		return time.Second
	}
	delay := time.Duration(attempt*attempt) * time.Second
	if delay > maxBackoff {
		return maxBackoff
	}
	return delay
}
