package scheduler

import (
	"time"

	"github.com/smallbiznis/eventpass/internal/config"
)

// Config controls scheduler intervals and batch sizes.
type Config struct {
	RunInterval        time.Duration
	BatchSize          int
	JobTimeout         time.Duration
	PaymentExpireAfter time.Duration
}

func DefaultConfig() Config {
	return Config{
		RunInterval: time.Minute,
		BatchSize:   50,
		JobTimeout:  30 * time.Second,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		RunInterval:        cfg.Reconcile.Interval,
		BatchSize:          cfg.Reconcile.BatchSize,
		PaymentExpireAfter: cfg.Reconcile.PaymentExpireAfter,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	return c
}
