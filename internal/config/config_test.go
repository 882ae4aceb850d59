package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_TYPE", "")
	t.Setenv("PAYMENT_GATEWAY", "")
	t.Setenv("NOTIFY_SINK", "")
	t.Setenv("RECONCILE_INTERVAL", "")
	t.Setenv("PAYMENT_EXPIRE_AFTER", "")

	cfg := Load()

	assert.Equal(t, "postgres", cfg.DBType)
	assert.Equal(t, "sandbox", cfg.Gateway.Provider)
	assert.Equal(t, "log", cfg.Notify.Sink)
	assert.Equal(t, 10*time.Second, cfg.Gateway.Timeout)
	assert.Empty(t, cfg.BootstrapAdmins)
	assert.Equal(t, time.Minute, cfg.Reconcile.Interval)
	assert.Zero(t, cfg.Reconcile.PaymentExpireAfter)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_TYPE", "sqlite")
	t.Setenv("PAYMENT_GATEWAY", "Razorpay")
	t.Setenv("QR_TOKEN_TTL", "72h")
	t.Setenv("DATABASE_RUN_MIGRATIONS", "off")
	t.Setenv("REDIS_DB", "not-a-number")
	t.Setenv("BOOTSTRAP_ADMINS", " 1:2, ,3:4 ")
	t.Setenv("PAYMENT_EXPIRE_AFTER", "30m")

	cfg := Load()

	assert.Equal(t, "sqlite", cfg.DBType)
	assert.Equal(t, "razorpay", cfg.Gateway.Provider)
	assert.Equal(t, 72*time.Hour, cfg.Token.TTL)
	assert.False(t, cfg.DBRunMigrations)
	assert.Equal(t, 0, cfg.Redis.DB)
	assert.Equal(t, []string{"1:2", "3:4"}, cfg.BootstrapAdmins)
	assert.Equal(t, 30*time.Minute, cfg.Reconcile.PaymentExpireAfter)
}

func TestGateConfigValidation(t *testing.T) {
	require.NoError(t, validateGateConfig(DefaultGateConfig()))

	bad := DefaultGateConfig()
	bad.OutboxBatchSize = 0
	require.Error(t, validateGateConfig(bad))

	bad = DefaultGateConfig()
	bad.StatsCacheTTL = -time.Second
	require.Error(t, validateGateConfig(bad))

	bad = DefaultGateConfig()
	bad.ScanBurst = 0
	require.Error(t, validateGateConfig(bad))

	off := DefaultGateConfig()
	off.ScanRatePerSecond = 0
	off.ScanBurst = 0
	require.NoError(t, validateGateConfig(off))
}

func TestStaticGateConfigHolder(t *testing.T) {
	cfg := DefaultGateConfig()
	cfg.OutboxBatchSize = 7

	holder := NewStaticGateConfigHolder(cfg)
	assert.Equal(t, 7, holder.Get().OutboxBatchSize)
}
