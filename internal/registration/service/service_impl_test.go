package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventpass/internal/clock"
	eventrepo "github.com/smallbiznis/eventpass/internal/event/repository"
	ledgerservice "github.com/smallbiznis/eventpass/internal/ledger/service"
	"github.com/smallbiznis/eventpass/internal/notification"
	"github.com/smallbiznis/eventpass/internal/orgcontext"
	paymentdomain "github.com/smallbiznis/eventpass/internal/payment/domain"
	paymentrepo "github.com/smallbiznis/eventpass/internal/payment/repository"
	"github.com/smallbiznis/eventpass/internal/registration/domain"
	"github.com/smallbiznis/eventpass/internal/registration/repository"
	"github.com/smallbiznis/eventpass/internal/testutil"
	"github.com/smallbiznis/eventpass/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	testOrgID   = snowflake.ID(100)
	testEventID = snowflake.ID(500)
)

type recordingRevoker struct {
	mu    sync.Mutex
	calls []snowflake.ID
}

func (r *recordingRevoker) RevokeTx(_ context.Context, _ *gorm.DB, _ snowflake.ID, registrationID snowflake.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, registrationID)
	return nil
}

type fixture struct {
	db      *gorm.DB
	node    *snowflake.Node
	svc     *Service
	revoker *recordingRevoker
	ctx     context.Context
}

func newFixture(t *testing.T, capacity *int64) fixture {
	t.Helper()

	conn := testutil.NewDB(t)
	node := testutil.NewNode(t)
	clk := clock.NewFakeClock(time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC))
	testutil.SeedEvent(t, conn, testutil.EventSeed{
		ID:          testEventID,
		OrgID:       testOrgID,
		Fee:         500,
		GuestFee:    100,
		MaxCapacity: capacity,
	})

	revoker := &recordingRevoker{}
	svc := NewService(Params{
		DB:          conn,
		Log:         zap.NewNop(),
		GenID:       node,
		Clock:       clk,
		Repo:        repository.Provide(),
		PaymentRepo: paymentrepo.Provide(),
		EventRepo:   eventrepo.Provide(),
		Ledger: ledgerservice.NewService(ledgerservice.Params{
			DB:    conn,
			Log:   zap.NewNop(),
			GenID: node,
			Clock: clk,
		}),
		Publisher: notification.NewOutbox(notification.OutboxParams{DB: conn, GenID: node, Clock: clk}),
		Revoker:   revoker,
	})

	return fixture{
		db:      conn,
		node:    node,
		svc:     svc,
		revoker: revoker,
		ctx:     orgcontext.WithOrgID(context.Background(), testOrgID.Int64()),
	}
}

func eventIntent(guests int, donation int64) paymentdomain.Intent {
	intent := paymentdomain.Intent{
		Kind: paymentdomain.IntentKindEventRegistration,
		Event: &paymentdomain.EventPaymentIntent{
			EventID:        testEventID,
			MealPreference: "veg",
			DonationAmount: donation,
		},
	}
	for i := 0; i < guests; i++ {
		intent.Event.Guests = append(intent.Event.Guests, paymentdomain.GuestIntent{
			Name:           "Guest",
			Email:          " Guest@Example.com ",
			MealPreference: "non-veg",
		})
	}
	return intent
}

// seedTransaction stores a payment transaction in the given status.
func (f fixture) seedTransaction(t *testing.T, userID snowflake.ID, ref paymentdomain.ReferenceType, intent paymentdomain.Intent, amount int64, status paymentdomain.Status) paymentdomain.Transaction {
	t.Helper()

	raw, err := json.Marshal(intent)
	require.NoError(t, err)

	now := time.Now().UTC()
	txn := paymentdomain.Transaction{
		ID:                 f.node.Generate(),
		OrgID:              testOrgID,
		ReferenceType:      ref,
		ReferenceID:        testEventID,
		UserID:             userID,
		Amount:             amount,
		Currency:           "INR",
		Status:             paymentdomain.StatusInitiated,
		Provider:           "sandbox",
		RegistrationIntent: datatypes.JSON(raw),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	txn.GatewayOrderID = "order_" + txn.ID.String()

	repo := paymentrepo.Provide()
	require.NoError(t, repo.Insert(context.Background(), f.db, &txn))
	if status != paymentdomain.StatusInitiated {
		moved, err := repo.TransitionFromInitiated(context.Background(), f.db, txn.ID, paymentdomain.Transition{To: status, At: now})
		require.NoError(t, err)
		require.True(t, moved)
		txn.Status = status
	}
	return txn
}

func (f fixture) completedEventPayment(t *testing.T, userID snowflake.ID) paymentdomain.Transaction {
	t.Helper()
	return f.seedTransaction(t, userID, paymentdomain.ReferenceTypeEventPayment, eventIntent(2, 50), 750, paymentdomain.StatusCompleted)
}

func count(t *testing.T, conn *gorm.DB, query string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Raw(query, args...).Scan(&n).Error)
	return n
}

func confirmedCount(t *testing.T, conn *gorm.DB) int64 {
	return count(t, conn, `SELECT confirmed_count FROM events WHERE id = ?`, testEventID)
}

func TestCommitStoresRegistration(t *testing.T) {
	f := newFixture(t, nil)
	txn := f.completedEventPayment(t, 900)

	registration, err := f.svc.Commit(f.ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, registration.Status)
	assert.Equal(t, int64(750), registration.TotalAmount)
	assert.Equal(t, int64(50), registration.DonationAmount)
	assert.Equal(t, int64(700), registration.FeeAmount())
	assert.Equal(t, 2, registration.GuestCount)
	assert.Equal(t, txn.ID, registration.SourceTransactionID)
	require.NotNil(t, registration.MealPreference)
	assert.Equal(t, "veg", *registration.MealPreference)

	got, err := f.svc.Get(f.ctx, registration.ID)
	require.NoError(t, err)
	require.Len(t, got.Guests, 2)
	assert.Equal(t, "guest@example.com", got.Guests[0].Email)

	assert.Equal(t, int64(1), confirmedCount(t, f.db))
	assert.Equal(t, int64(2), count(t, f.db, `SELECT COUNT(*) FROM ledger_entries`))
	assert.Equal(t, int64(700), count(t, f.db,
		`SELECT SUM(l.amount) FROM ledger_entry_lines l JOIN ledger_entries e ON e.id = l.ledger_entry_id
		 WHERE e.source_type = 'event_registration' AND l.direction = 'credit'`))
	assert.Equal(t, int64(1), count(t, f.db, `SELECT COUNT(*) FROM notification_outbox WHERE event_type = 'registration.confirmed'`))
}

func TestCommitIsIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	txn := f.completedEventPayment(t, 900)

	first, err := f.svc.Commit(f.ctx, txn.ID)
	require.NoError(t, err)
	second, err := f.svc.Commit(f.ctx, txn.ID)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, second.Guests, 2)
	assert.Equal(t, int64(1), count(t, f.db, `SELECT COUNT(*) FROM event_registrations`))
	assert.Equal(t, int64(1), confirmedCount(t, f.db))
}

func TestCommitConcurrentCallersCreateOneRegistration(t *testing.T) {
	f := newFixture(t, nil)
	txn := f.completedEventPayment(t, 900)

	const callers = 10
	var wg sync.WaitGroup
	ids := make(chan snowflake.ID, callers)
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			registration, err := f.svc.Commit(f.ctx, txn.ID)
			if err != nil {
				errs <- err
				return
			}
			ids <- registration.ID
		}()
	}
	wg.Wait()
	close(ids)
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	seen := map[snowflake.ID]struct{}{}
	for id := range ids {
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, 1)
	assert.Equal(t, int64(1), count(t, f.db, `SELECT COUNT(*) FROM event_registrations`))
	assert.Equal(t, int64(2), count(t, f.db, `SELECT COUNT(*) FROM registration_guests`))
	assert.Equal(t, int64(1), confirmedCount(t, f.db))
}

func TestCommitNeverExceedsCapacity(t *testing.T) {
	capacity := int64(3)
	f := newFixture(t, &capacity)

	txns := make([]paymentdomain.Transaction, capacity+1)
	for i := range txns {
		txns[i] = f.completedEventPayment(t, snowflake.ID(1000+i))
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var ok, full int
	for _, txn := range txns {
		wg.Add(1)
		go func(id snowflake.ID) {
			defer wg.Done()
			_, err := f.svc.Commit(f.ctx, id)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case assert.ErrorIs(t, err, domain.ErrEventFull):
				full++
			}
		}(txn.ID)
	}
	wg.Wait()

	assert.Equal(t, 3, ok)
	assert.Equal(t, 1, full)
	assert.Equal(t, int64(3), confirmedCount(t, f.db))
	assert.Equal(t, int64(3), count(t, f.db, `SELECT COUNT(*) FROM event_registrations`))
	assert.Equal(t, int64(1), count(t, f.db, `SELECT COUNT(*) FROM notification_outbox WHERE event_type = 'payment.commit_rejected'`))
}

func TestCommitRejectsSecondRegistrationForUser(t *testing.T) {
	f := newFixture(t, nil)
	first := f.completedEventPayment(t, 900)
	second := f.completedEventPayment(t, 900)

	_, err := f.svc.Commit(f.ctx, first.ID)
	require.NoError(t, err)

	_, err = f.svc.Commit(f.ctx, second.ID)
	assert.ErrorIs(t, err, domain.ErrDuplicateRegistration)
	assert.Equal(t, int64(1), confirmedCount(t, f.db))
}

func TestCommitRequiresCompletedTransaction(t *testing.T) {
	f := newFixture(t, nil)

	initiated := f.seedTransaction(t, 900, paymentdomain.ReferenceTypeEventPayment, eventIntent(0, 0), 500, paymentdomain.StatusInitiated)
	_, err := f.svc.Commit(f.ctx, initiated.ID)
	assert.ErrorIs(t, err, domain.ErrTransactionNotCompleted)

	failed := f.seedTransaction(t, 901, paymentdomain.ReferenceTypeEventPayment, eventIntent(0, 0), 500, paymentdomain.StatusFailed)
	_, err = f.svc.Commit(f.ctx, failed.ID)
	assert.ErrorIs(t, err, domain.ErrTransactionNotCompleted)

	_, err = f.svc.Commit(f.ctx, 424242)
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)

	other := orgcontext.WithOrgID(context.Background(), 101)
	txn := f.completedEventPayment(t, 902)
	_, err = f.svc.Commit(other, txn.ID)
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)

	assert.Zero(t, count(t, f.db, `SELECT COUNT(*) FROM event_registrations`))
}

func donationIntent() paymentdomain.Intent {
	return paymentdomain.Intent{
		Kind:     paymentdomain.IntentKindDonation,
		Donation: &paymentdomain.DonationIntent{Note: "roof repairs"},
	}
}

func TestDonationsPostLedgerOnce(t *testing.T) {
	f := newFixture(t, nil)
	txn := f.seedTransaction(t, 900, paymentdomain.ReferenceTypeDonation, donationIntent(), 2500, paymentdomain.StatusCompleted)

	_, err := f.svc.Commit(f.ctx, txn.ID)
	assert.ErrorIs(t, err, domain.ErrNotRegistrationPayment)

	require.NoError(t, f.svc.OnCompleted(f.ctx, txn))
	require.NoError(t, f.svc.RecordDonation(f.ctx, txn.ID))

	assert.Equal(t, int64(1), count(t, f.db, `SELECT COUNT(*) FROM ledger_entries WHERE source_type = 'donation'`))
	assert.Equal(t, int64(1), count(t, f.db, `SELECT COUNT(*) FROM notification_outbox WHERE event_type = 'donation.received'`))
	assert.Zero(t, count(t, f.db, `SELECT COUNT(*) FROM event_registrations`))
}

func TestOnCompletedCommitsEventPayments(t *testing.T) {
	f := newFixture(t, nil)
	txn := f.completedEventPayment(t, 900)

	require.NoError(t, f.svc.OnCompleted(f.ctx, txn))
	require.NoError(t, f.svc.OnCompleted(f.ctx, txn))

	got, err := f.svc.GetByTransaction(f.ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, txn.ID, got.SourceTransactionID)
}

func TestCancelReleasesSlot(t *testing.T) {
	f := newFixture(t, nil)
	txn := f.completedEventPayment(t, 900)
	registration, err := f.svc.Commit(f.ctx, txn.ID)
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(f.ctx, registration.ID, "cannot attend")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelReason)
	assert.Equal(t, "cannot attend", *cancelled.CancelReason)
	require.NotNil(t, cancelled.CancelledAt)
	assert.Equal(t, int64(0), confirmedCount(t, f.db))
	assert.Equal(t, []snowflake.ID{registration.ID}, f.revoker.calls)
	assert.Equal(t, int64(1), count(t, f.db, `SELECT COUNT(*) FROM ledger_entries WHERE source_type = 'registration_void'`))
	assert.Equal(t, int64(1), count(t, f.db, `SELECT COUNT(*) FROM notification_outbox WHERE event_type = 'registration.cancelled'`))

	again, err := f.svc.Cancel(f.ctx, registration.ID, "")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, again.Status)
	assert.Len(t, f.revoker.calls, 1)

	// a cancelled seat does not block a fresh registration
	next := f.completedEventPayment(t, 900)
	_, err = f.svc.Commit(f.ctx, next.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), confirmedCount(t, f.db))
}

func TestCancelRejectsCheckedInRegistration(t *testing.T) {
	f := newFixture(t, nil)
	txn := f.completedEventPayment(t, 900)
	registration, err := f.svc.Commit(f.ctx, txn.ID)
	require.NoError(t, err)

	require.NoError(t, f.db.Exec(
		`INSERT INTO check_in_records (id, org_id, event_id, registration_id, checked_in_at, guests_checked_in, total_guests_allowed, checked_in_by_staff_id)
		 VALUES (?, ?, ?, ?, ?, 1, 2, 77)`,
		f.node.Generate(), testOrgID, testEventID, registration.ID, time.Now().UTC(),
	).Error)

	_, err = f.svc.Cancel(f.ctx, registration.ID, "no show")
	assert.ErrorIs(t, err, domain.ErrAlreadyCheckedIn)

	got, err := f.svc.Get(f.ctx, registration.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, got.Status)
	assert.Equal(t, int64(1), confirmedCount(t, f.db))
}

func TestListByEventPaginates(t *testing.T) {
	f := newFixture(t, nil)
	for i := 0; i < 5; i++ {
		txn := f.completedEventPayment(t, snowflake.ID(2000+i))
		_, err := f.svc.Commit(f.ctx, txn.ID)
		require.NoError(t, err)
	}

	var seen []snowflake.ID
	req := domain.ListRequest{EventID: testEventID, Pagination: pagination.Pagination{PageSize: 2}}
	for pages := 0; pages < 5; pages++ {
		resp, err := f.svc.ListByEvent(f.ctx, req)
		require.NoError(t, err)
		for _, r := range resp.Registrations {
			seen = append(seen, r.ID)
		}
		if !resp.PageInfo.HasMore {
			break
		}
		req.PageToken = resp.PageInfo.NextPageToken
	}

	require.Len(t, seen, 5)
	for i := 1; i < len(seen); i++ {
		assert.Greater(t, seen[i-1], seen[i])
	}

	_, err := f.svc.ListByEvent(f.ctx, domain.ListRequest{EventID: testEventID, Pagination: pagination.Pagination{PageToken: "%%%"}})
	assert.ErrorIs(t, err, pagination.ErrInvalidPageToken)
}
