package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/eventpass/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tokenBucketSHA = redis.NewScript(tokenBucketScript).Hash()

func gateWith(rate float64, burst int) *config.GateConfigHolder {
	cfg := config.DefaultGateConfig()
	cfg.ScanRatePerSecond = rate
	cfg.ScanBurst = burst
	return config.NewStaticGateConfigHolder(cfg)
}

func TestScanLimiterAllows(t *testing.T) {
	client, mock := redismock.NewClientMock()
	defer mock.ClearExpect()
	limiter := NewScanLimiter(client, gateWith(5, 10))

	mock.ExpectEvalSha(tokenBucketSHA, []string{"eventpass:scan:100:900"}, float64(5), 10, int64(4000)).
		SetVal([]interface{}{int64(1), int64(9), int64(1760000000000)})

	res, err := limiter.Allow(context.Background(), 100, 900)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 10, res.Limit)
	assert.Equal(t, 9, res.Remaining)
	assert.Zero(t, res.RetryAfter)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScanLimiterRejectsWithRetryAfter(t *testing.T) {
	client, mock := redismock.NewClientMock()
	defer mock.ClearExpect()
	limiter := NewScanLimiter(client, gateWith(2, 1))

	mock.ExpectEvalSha(tokenBucketSHA, []string{"eventpass:scan:100:901"}, float64(2), 1, int64(1000)).
		SetVal([]interface{}{int64(0), int64(0), int64(1760000000000)})

	res, err := limiter.Allow(context.Background(), 100, 901)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 500*time.Millisecond, res.RetryAfter)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScanLimiterSurfacesRedisError(t *testing.T) {
	client, mock := redismock.NewClientMock()
	defer mock.ClearExpect()
	limiter := NewScanLimiter(client, gateWith(5, 10))

	mock.ExpectEvalSha(tokenBucketSHA, []string{"eventpass:scan:100:902"}, float64(5), 10, int64(4000)).
		SetErr(errors.New("redis down"))

	_, err := limiter.Allow(context.Background(), 100, 902)
	assert.EqualError(t, err, "redis down")
}

func TestScanLimiterDisabled(t *testing.T) {
	res, err := NewScanLimiter(nil, gateWith(5, 10)).Allow(context.Background(), 100, 900)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	client, _ := redismock.NewClientMock()
	res, err = NewScanLimiter(client, gateWith(0, 0)).Allow(context.Background(), 100, 900)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	var nilLimiter *ScanLimiter
	assert.False(t, nilLimiter.Enabled())
}

func TestBucketTTL(t *testing.T) {
	assert.Equal(t, 4*time.Second, bucketTTL(5, 10))
	assert.Equal(t, time.Second, bucketTTL(100, 1))
}
