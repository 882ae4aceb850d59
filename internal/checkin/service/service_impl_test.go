package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventpass/internal/checkin/domain"
	"github.com/smallbiznis/eventpass/internal/checkin/repository"
	"github.com/smallbiznis/eventpass/internal/clock"
	"github.com/smallbiznis/eventpass/internal/config"
	credentialdomain "github.com/smallbiznis/eventpass/internal/credential/domain"
	credentialrepo "github.com/smallbiznis/eventpass/internal/credential/repository"
	credentialservice "github.com/smallbiznis/eventpass/internal/credential/service"
	"github.com/smallbiznis/eventpass/internal/credential/token"
	eventrepo "github.com/smallbiznis/eventpass/internal/event/repository"
	"github.com/smallbiznis/eventpass/internal/notification"
	"github.com/smallbiznis/eventpass/internal/orgcontext"
	registrationdomain "github.com/smallbiznis/eventpass/internal/registration/domain"
	registrationrepo "github.com/smallbiznis/eventpass/internal/registration/repository"
	"github.com/smallbiznis/eventpass/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	testOrgID   = snowflake.ID(100)
	testEventID = snowflake.ID(500)
	testStaffID = snowflake.ID(900)
)

type memoryCache struct {
	mu          sync.Mutex
	items       map[snowflake.ID]domain.Stats
	hits        int
	invalidated int
}

func (c *memoryCache) Get(_ context.Context, _, eventID snowflake.ID) (*domain.Stats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	stats, ok := c.items[eventID]
	if !ok {
		return nil, nil
	}
	c.hits++
	return &stats, nil
}

func (c *memoryCache) Set(_ context.Context, _, eventID snowflake.ID, stats domain.Stats, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[eventID] = stats
	return nil
}

func (c *memoryCache) Invalidate(_ context.Context, _, eventID snowflake.ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, eventID)
	c.invalidated++
	return nil
}

type fixture struct {
	db          *gorm.DB
	node        *snowflake.Node
	clock       *clock.FakeClock
	credentials credentialdomain.Service
	cache       *memoryCache
	svc         domain.Service
	ctx         context.Context
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	conn := testutil.NewDB(t)
	node := testutil.NewNode(t)
	clk := clock.NewFakeClock(time.Date(2026, 8, 20, 18, 0, 0, 0, time.UTC))
	testutil.SeedEvent(t, conn, testutil.EventSeed{ID: testEventID, OrgID: testOrgID, Fee: 500, GuestFee: 100})

	signer, err := token.NewSigner("gate-secret")
	require.NoError(t, err)
	credentials := credentialservice.New(credentialservice.Params{
		DB:               conn,
		Log:              zap.NewNop(),
		GenID:            node,
		Clock:            clk,
		Cfg:              config.Config{},
		Repo:             credentialrepo.Provide(),
		RegistrationRepo: registrationrepo.Provide(),
		Signer:           signer,
	})

	cache := &memoryCache{items: map[snowflake.ID]domain.Stats{}}
	svc := NewService(Params{
		DB:               conn,
		Log:              zap.NewNop(),
		GenID:            node,
		Clock:            clk,
		Gate:             config.NewStaticGateConfigHolder(config.DefaultGateConfig()),
		Repo:             repository.Provide(),
		RegistrationRepo: registrationrepo.Provide(),
		CredentialRepo:   credentialrepo.Provide(),
		EventRepo:        eventrepo.Provide(),
		Credentials:      credentials,
		Publisher:        notification.NewOutbox(notification.OutboxParams{DB: conn, GenID: node, Clock: clk}),
		Cache:            cache,
	})

	return fixture{
		db:          conn,
		node:        node,
		clock:       clk,
		credentials: credentials,
		cache:       cache,
		svc:         svc,
		ctx:         orgcontext.WithOrgID(context.Background(), testOrgID.Int64()),
	}
}

// admit seeds a confirmed registration and issues its credential.
func (f fixture) admit(t *testing.T, guests int) (registrationdomain.Registration, string) {
	t.Helper()
	now := f.clock.Now()
	registration := registrationdomain.Registration{
		ID:                  f.node.Generate(),
		OrgID:               testOrgID,
		EventID:             testEventID,
		UserID:              f.node.Generate(),
		Status:              registrationdomain.StatusConfirmed,
		GuestCount:          guests,
		TotalAmount:         500 + int64(guests)*100,
		Currency:            "INR",
		SourceTransactionID: f.node.Generate(),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	require.NoError(t, registrationrepo.Provide().Insert(context.Background(), f.db, &registration))

	credential, err := f.credentials.Issue(f.ctx, registration.ID)
	require.NoError(t, err)
	return registration, credential.Token
}

func (f fixture) count(t *testing.T, query string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Raw(query, args...).Scan(&n).Error)
	return n
}

func TestScanChecksInOnce(t *testing.T) {
	f := newFixture(t)
	registration, tok := f.admit(t, 2)

	record, err := f.svc.Scan(f.ctx, domain.ScanRequest{
		Token:           tok,
		GuestsCheckedIn: 2,
		Location:        "north gate",
		StaffID:         testStaffID,
	})
	require.NoError(t, err)
	assert.Equal(t, registration.ID, record.RegistrationID)
	assert.Equal(t, testEventID, record.EventID)
	assert.Equal(t, 2, record.GuestsCheckedIn)
	assert.Equal(t, 2, record.TotalGuestsAllowed)
	require.NotNil(t, record.CheckInLocation)
	assert.Equal(t, "north gate", *record.CheckInLocation)
	assert.Nil(t, record.Notes)

	assert.Equal(t, int64(1), f.count(t, `SELECT scan_count FROM qr_credentials WHERE registration_id = ?`, registration.ID))
	assert.Equal(t, int64(1), f.count(t, `SELECT COUNT(*) FROM notification_outbox WHERE event_type = 'registration.checked_in'`))

	f.clock.Advance(time.Minute)
	_, err = f.svc.Scan(f.ctx, domain.ScanRequest{Token: tok, GuestsCheckedIn: 1, StaffID: 901})
	require.ErrorIs(t, err, domain.ErrAlreadyCheckedIn)

	var already *domain.AlreadyCheckedInError
	require.True(t, errors.As(err, &already))
	assert.Equal(t, testStaffID, already.Record.CheckedInByStaffID)
	assert.Equal(t, record.CheckedInAt.Unix(), already.Record.CheckedInAt.Unix())

	assert.Equal(t, int64(1), f.count(t, `SELECT COUNT(*) FROM check_in_records`))
	assert.Equal(t, int64(1), f.count(t, `SELECT scan_count FROM qr_credentials WHERE registration_id = ?`, registration.ID))
	assert.Equal(t, int64(1), f.count(t, `SELECT COUNT(*) FROM notification_outbox WHERE event_type = 'registration.checked_in'`))
}

func TestScanConcurrentGatesAdmitOnce(t *testing.T) {
	f := newFixture(t)
	_, tok := f.admit(t, 1)

	const gates = 10
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ok      int
		already int
	)
	for i := 0; i < gates; i++ {
		wg.Add(1)
		go func(staff int) {
			defer wg.Done()
			_, err := f.svc.Scan(f.ctx, domain.ScanRequest{Token: tok, StaffID: snowflake.ID(1000 + staff)})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, domain.ErrAlreadyCheckedIn):
				already++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, gates-1, already)
	assert.Equal(t, int64(1), f.count(t, `SELECT COUNT(*) FROM check_in_records`))
	assert.Equal(t, int64(1), f.count(t, `SELECT scan_count FROM qr_credentials`))
}

func TestScanBoundsGuestCount(t *testing.T) {
	f := newFixture(t)
	_, tok := f.admit(t, 2)

	_, err := f.svc.Scan(f.ctx, domain.ScanRequest{Token: tok, GuestsCheckedIn: 3, StaffID: testStaffID})
	assert.ErrorIs(t, err, domain.ErrGuestCountExceeded)

	_, err = f.svc.Scan(f.ctx, domain.ScanRequest{Token: tok, GuestsCheckedIn: -1, StaffID: testStaffID})
	assert.ErrorIs(t, err, domain.ErrGuestCountExceeded)
	assert.Zero(t, f.count(t, `SELECT COUNT(*) FROM check_in_records`))

	record, err := f.svc.Scan(f.ctx, domain.ScanRequest{Token: tok, GuestsCheckedIn: 0, StaffID: testStaffID})
	require.NoError(t, err)
	assert.Zero(t, record.GuestsCheckedIn)
}

func TestScanRejectsRevokedCredential(t *testing.T) {
	f := newFixture(t)
	registration, tok := f.admit(t, 0)
	require.NoError(t, f.credentials.Revoke(f.ctx, registration.ID))

	_, err := f.svc.Scan(f.ctx, domain.ScanRequest{Token: tok, StaffID: testStaffID})
	assert.ErrorIs(t, err, credentialdomain.ErrTokenRevoked)
	assert.Zero(t, f.count(t, `SELECT COUNT(*) FROM check_in_records`))
}

func TestScanRejectsCancelledRegistration(t *testing.T) {
	f := newFixture(t)
	registration, tok := f.admit(t, 0)
	require.NoError(t, f.db.Exec(`UPDATE event_registrations SET status = 'CANCELLED' WHERE id = ?`, registration.ID).Error)

	_, err := f.svc.Scan(f.ctx, domain.ScanRequest{Token: tok, StaffID: testStaffID})
	assert.ErrorIs(t, err, domain.ErrRegistrationNotConfirmed)
}

func TestScanRejectsForeignOrgAndBadInput(t *testing.T) {
	f := newFixture(t)
	_, tok := f.admit(t, 0)

	other := orgcontext.WithOrgID(context.Background(), 101)
	_, err := f.svc.Scan(other, domain.ScanRequest{Token: tok, StaffID: testStaffID})
	assert.ErrorIs(t, err, credentialdomain.ErrInvalidToken)

	_, err = f.svc.Scan(f.ctx, domain.ScanRequest{Token: tok})
	assert.ErrorIs(t, err, domain.ErrInvalidStaff)

	_, err = f.svc.Scan(context.Background(), domain.ScanRequest{Token: tok, StaffID: testStaffID})
	assert.ErrorIs(t, err, domain.ErrInvalidOrganization)

	_, err = f.svc.Scan(f.ctx, domain.ScanRequest{Token: "not-a-token", StaffID: testStaffID})
	assert.ErrorIs(t, err, credentialdomain.ErrInvalidToken)
}

func TestStatsUsesCacheAndInvalidatesOnScan(t *testing.T) {
	f := newFixture(t)
	_, first := f.admit(t, 2)
	f.admit(t, 0)

	stats, err := f.svc.Stats(f.ctx, testEventID)
	require.NoError(t, err)
	assert.Equal(t, domain.Stats{EventID: testEventID, TotalConfirmed: 2}, stats)

	_, err = f.svc.Stats(f.ctx, testEventID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.cache.hits)

	_, err = f.svc.Scan(f.ctx, domain.ScanRequest{Token: first, GuestsCheckedIn: 2, StaffID: testStaffID})
	require.NoError(t, err)
	assert.Equal(t, 1, f.cache.invalidated)

	stats, err = f.svc.Stats(f.ctx, testEventID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalConfirmed)
	assert.Equal(t, int64(1), stats.TotalCheckedIn)
	assert.Equal(t, int64(2), stats.TotalGuestsCheckedIn)

	_, err = f.svc.Stats(f.ctx, 999)
	assert.ErrorIs(t, err, domain.ErrEventNotFound)
}

func TestGetByRegistration(t *testing.T) {
	f := newFixture(t)
	registration, tok := f.admit(t, 1)

	_, err := f.svc.GetByRegistration(f.ctx, registration.ID)
	assert.ErrorIs(t, err, domain.ErrNotCheckedIn)

	_, err = f.svc.Scan(f.ctx, domain.ScanRequest{Token: tok, GuestsCheckedIn: 1, StaffID: testStaffID, Notes: " vip "})
	require.NoError(t, err)

	record, err := f.svc.GetByRegistration(f.ctx, registration.ID)
	require.NoError(t, err)
	require.NotNil(t, record.Notes)
	assert.Equal(t, "vip", *record.Notes)

	other := orgcontext.WithOrgID(context.Background(), 101)
	_, err = f.svc.GetByRegistration(other, registration.ID)
	assert.ErrorIs(t, err, domain.ErrNotCheckedIn)
}

func TestRejectionReasonIsBounded(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{credentialdomain.ErrInvalidToken, "invalid_token"},
		{credentialdomain.ErrTokenRevoked, "token_revoked"},
		{credentialdomain.ErrTokenExpired, "token_expired"},
		{domain.ErrGuestCountExceeded, "guest_count_exceeded"},
		{domain.ErrRegistrationNotConfirmed, "registration_not_confirmed"},
		{&domain.AlreadyCheckedInError{}, "already_checked_in"},
		{errors.Join(errors.New("scan failed"), credentialdomain.ErrTokenRevoked), "token_revoked"},
		{errors.New("pq: connection to 10.0.0.7 refused"), "internal"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, rejectionReason(tc.err), tc.err.Error())
	}
}
