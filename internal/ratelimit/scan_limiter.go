package ratelimit

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/eventpass/internal/config"
)

const keyScanStaff = "eventpass:scan:%s:%s"

// ScanLimiter throttles QR scans per gate staff member so a leaked staff
// credential cannot be used to probe tokens at speed.
type ScanLimiter struct {
	bucket *TokenBucket
	gate   *config.GateConfigHolder
}

func NewScanLimiter(client *redis.Client, gate *config.GateConfigHolder) *ScanLimiter {
	return &ScanLimiter{
		bucket: NewTokenBucket(client),
		gate:   gate,
	}
}

func (l *ScanLimiter) Enabled() bool {
	if l == nil || l.bucket == nil || l.gate == nil {
		return false
	}
	cfg := l.gate.Get()
	return cfg.ScanRatePerSecond > 0 && cfg.ScanBurst > 0
}

// Allow always admits when throttling is disabled.
func (l *ScanLimiter) Allow(ctx context.Context, orgID, staffID snowflake.ID) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	cfg := l.gate.Get()
	return l.bucket.Allow(ctx, fmt.Sprintf(keyScanStaff, orgID, staffID), cfg.ScanRatePerSecond, cfg.ScanBurst)
}
