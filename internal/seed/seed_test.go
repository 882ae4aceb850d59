package seed

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/eventpass/internal/clock"
	"github.com/smallbiznis/eventpass/internal/event/repository"
	eventservice "github.com/smallbiznis/eventpass/internal/event/service"
	"github.com/smallbiznis/eventpass/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEnsureDemoEventIsIdempotent(t *testing.T) {
	conn := testutil.NewDB(t)
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	events := eventservice.New(eventservice.Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: testutil.NewNode(t),
		Clock: clk,
		Repo:  repository.Provide(),
	})
	ctx := context.Background()

	first, created, err := EnsureDemoEvent(ctx, conn, events, clk, 500)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, demoEventSlug, first.Slug)
	require.NotNil(t, first.MaxCapacity)
	assert.Equal(t, int64(demoEventCapacity), *first.MaxCapacity)

	second, created, err := EnsureDemoEvent(ctx, conn, events, clk, 500)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	other, created, err := EnsureDemoEvent(ctx, conn, events, clk, 600)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestEnsureDemoEventRequiresDependencies(t *testing.T) {
	_, _, err := EnsureDemoEvent(context.Background(), nil, nil, clock.NewFakeClock(time.Now()), 1)
	assert.Error(t, err)
}
