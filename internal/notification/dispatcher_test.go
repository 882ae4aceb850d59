package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/smallbiznis/eventpass/internal/clock"
	"github.com/smallbiznis/eventpass/internal/config"
	"github.com/smallbiznis/eventpass/internal/notification/domain"
	"github.com/smallbiznis/eventpass/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type recordingSink struct {
	mu        sync.Mutex
	err       error
	delivered []domain.OutboxEvent
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Deliver(_ context.Context, event domain.OutboxEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.delivered = append(s.delivered, event)
	return nil
}

type fixture struct {
	db     *gorm.DB
	clock  *clock.FakeClock
	outbox *Outbox
	sink   *recordingSink
	disp   *Dispatcher
}

func newFixture(t *testing.T, maxAttempts int) fixture {
	t.Helper()
	conn := testutil.NewDB(t)
	clk := clock.NewFakeClock(time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC))
	outbox := NewOutbox(OutboxParams{DB: conn, GenID: testutil.NewNode(t), Clock: clk})

	gate := config.DefaultGateConfig()
	gate.OutboxBatchSize = 10
	gate.OutboxMaxAttempts = maxAttempts

	sink := &recordingSink{}
	disp := NewDispatcher(DispatcherParams{
		DB:    conn,
		Log:   zap.NewNop(),
		Clock: clk,
		Sink:  sink,
		Gate:  config.NewStaticGateConfigHolder(gate),
	})
	return fixture{db: conn, clock: clk, outbox: outbox, sink: sink, disp: disp}
}

func countByStatus(t *testing.T, conn *gorm.DB, status domain.OutboxStatus) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Raw(`SELECT COUNT(*) FROM notification_outbox WHERE status = ?`, string(status)).Scan(&n).Error)
	return n
}

func TestPublishDedupesOnKey(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	event := domain.Event{
		OrgID:       1,
		Type:        domain.EventRegistrationConfirmed,
		AggregateID: 55,
		Payload:     map[string]any{"event_id": "9"},
	}

	require.NoError(t, f.outbox.Publish(ctx, event))
	require.NoError(t, f.outbox.Publish(ctx, event))

	assert.Equal(t, int64(1), countByStatus(t, f.db, domain.OutboxStatusPending))

	var key string
	require.NoError(t, f.db.Raw(`SELECT dedupe_key FROM notification_outbox`).Scan(&key).Error)
	assert.Equal(t, "registration.confirmed:55", key)
}

func TestPublishRejectsIncompleteEvent(t *testing.T) {
	f := newFixture(t, 3)
	err := f.outbox.Publish(context.Background(), domain.Event{Type: domain.EventRegistrationConfirmed})
	assert.ErrorIs(t, err, domain.ErrInvalidEvent)
}

func TestPublishTxRollsBackWithCaller(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()

	err := f.db.Transaction(func(tx *gorm.DB) error {
		if err := f.outbox.PublishTx(ctx, tx, domain.Event{OrgID: 1, Type: domain.EventRegistrationCheckedIn, AggregateID: 7}); err != nil {
			return err
		}
		return errors.New("state change failed")
	})
	require.Error(t, err)
	assert.Equal(t, int64(0), countByStatus(t, f.db, domain.OutboxStatusPending))
}

func TestDispatchBatchPublishes(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		require.NoError(t, f.outbox.Publish(ctx, domain.Event{
			OrgID:       1,
			Type:        domain.EventRegistrationConfirmed,
			AggregateID: 100 + snowflakeID(i),
			Payload:     map[string]any{"amount": 750, "currency": "INR"},
		}))
	}

	n, err := f.disp.DispatchBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Len(t, f.sink.delivered, 3)
	assert.Equal(t, "INR", f.sink.delivered[0].Payload["currency"])
	assert.Equal(t, int64(3), countByStatus(t, f.db, domain.OutboxStatusPublished))

	n, err = f.disp.DispatchBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, f.sink.delivered, 3)
}

func TestDispatchBatchRetriesThenFails(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	f.sink.err = errors.New("broker down")
	require.NoError(t, f.outbox.Publish(ctx, domain.Event{OrgID: 1, Type: domain.EventRegistrationCheckedIn, AggregateID: 9}))

	_, err := f.disp.DispatchBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), countByStatus(t, f.db, domain.OutboxStatusPending))

	// Backoff not elapsed yet.
	_, err = f.disp.DispatchBatch(ctx)
	require.NoError(t, err)
	var attempts int
	require.NoError(t, f.db.Raw(`SELECT attempts FROM notification_outbox`).Scan(&attempts).Error)
	assert.Equal(t, 1, attempts)

	f.clock.Advance(2 * time.Second)
	_, err = f.disp.DispatchBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), countByStatus(t, f.db, domain.OutboxStatusFailed))

	var lastErr string
	require.NoError(t, f.db.Raw(`SELECT last_error FROM notification_outbox`).Scan(&lastErr).Error)
	assert.Equal(t, "broker down", lastErr)
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, time.Second, backoff(1))
	assert.Equal(t, 9*time.Second, backoff(3))
	assert.Equal(t, maxBackoff, backoff(100))
}
