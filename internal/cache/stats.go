package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	checkindomain "github.com/smallbiznis/eventpass/internal/checkin/domain"
)

const keyCheckInStats = "eventpass:checkin:stats:%s:%s"

type StatsCache struct {
	client *redis.Client
}

func NewStatsCache(client *redis.Client) *StatsCache {
	return &StatsCache{client: client}
}

// ProvideStatsCache yields a nil interface when redis is disabled so the
// check-in service falls back to reading the database every time.
func ProvideStatsCache(client *redis.Client) checkindomain.StatsCache {
	if client == nil {
		return nil
	}
	return NewStatsCache(client)
}

func statsKey(orgID, eventID snowflake.ID) string {
	return fmt.Sprintf(keyCheckInStats, orgID, eventID)
}

func (c *StatsCache) Get(ctx context.Context, orgID, eventID snowflake.ID) (*checkindomain.Stats, error) {
	raw, err := c.client.Get(ctx, statsKey(orgID, eventID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var stats checkindomain.Stats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *StatsCache) Set(ctx context.Context, orgID, eventID snowflake.ID, stats checkindomain.Stats, ttl time.Duration) error {
	payload, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, statsKey(orgID, eventID), payload, ttl).Err()
}

func (c *StatsCache) Invalidate(ctx context.Context, orgID, eventID snowflake.ID) error {
	return c.client.Del(ctx, statsKey(orgID, eventID)).Err()
}
