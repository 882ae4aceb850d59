package service

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/eventpass/internal/clock"
	"github.com/smallbiznis/eventpass/internal/event/domain"
	"github.com/smallbiznis/eventpass/internal/event/repository"
	"github.com/smallbiznis/eventpass/internal/orgcontext"
	"github.com/smallbiznis/eventpass/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) domain.Service {
	t.Helper()
	return New(Params{
		DB:    testutil.NewDB(t),
		Log:   zap.NewNop(),
		GenID: testutil.NewNode(t),
		Clock: clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)),
		Repo:  repository.Provide(),
	})
}

func TestCreateEventGeneratesSlug(t *testing.T) {
	svc := newTestService(t)
	ctx := orgcontext.WithOrgID(context.Background(), 100)
	capacity := int64(150)

	event, err := svc.Create(ctx, domain.CreateEventRequest{
		Name:        "Diwali Dinner & Dance 2026",
		Fee:         500,
		GuestFee:    100,
		Currency:    "inr",
		MaxCapacity: &capacity,
		StartsAt:    time.Date(2026, 11, 8, 18, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, "diwali-dinner-and-dance-2026", event.Slug)
	assert.Equal(t, "INR", event.Currency)

	got, err := svc.Get(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, event.Slug, got.Slug)
	require.NotNil(t, got.MaxCapacity)
	assert.Equal(t, int64(150), *got.MaxCapacity)
	assert.Equal(t, int64(0), got.ConfirmedCount)
}

func TestCreateEventDisambiguatesDuplicateSlug(t *testing.T) {
	svc := newTestService(t)
	ctx := orgcontext.WithOrgID(context.Background(), 100)
	req := domain.CreateEventRequest{Name: "Picnic", Currency: "USD", StartsAt: time.Now()}

	first, err := svc.Create(ctx, req)
	require.NoError(t, err)
	second, err := svc.Create(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, "picnic", first.Slug)
	assert.NotEqual(t, first.Slug, second.Slug)
	assert.Contains(t, second.Slug, "picnic-")
}

func TestCreateEventValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := orgcontext.WithOrgID(context.Background(), 100)

	_, err := svc.Create(context.Background(), domain.CreateEventRequest{Name: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidOrganization)

	_, err = svc.Create(ctx, domain.CreateEventRequest{Name: "x", Fee: -1, Currency: "USD", StartsAt: time.Now()})
	assert.ErrorIs(t, err, domain.ErrInvalidFee)

	_, err = svc.Create(ctx, domain.CreateEventRequest{Name: "x", Currency: "US", StartsAt: time.Now()})
	assert.ErrorIs(t, err, domain.ErrInvalidCurrency)
}

func TestGetEventIsOrgScoped(t *testing.T) {
	svc := newTestService(t)
	event, err := svc.Create(orgcontext.WithOrgID(context.Background(), 100), domain.CreateEventRequest{
		Name: "Gala", Currency: "USD", StartsAt: time.Now(),
	})
	require.NoError(t, err)

	_, err = svc.Get(orgcontext.WithOrgID(context.Background(), 200), event.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAmountDue(t *testing.T) {
	event := domain.Event{Fee: 500, GuestFee: 100}
	assert.Equal(t, int64(750), event.AmountDue(2, 50))
	assert.Equal(t, int64(500), event.AmountDue(0, 0))
}
