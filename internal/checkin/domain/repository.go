package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, record *CheckInRecord) error
	FindByRegistration(ctx context.Context, db *gorm.DB, orgID, registrationID snowflake.ID) (*CheckInRecord, error)
	Stats(ctx context.Context, db *gorm.DB, orgID, eventID snowflake.ID) (Stats, error)
}

// StatsCache holds recent Stats results. Get returns nil on a miss.
type StatsCache interface {
	Get(ctx context.Context, orgID, eventID snowflake.ID) (*Stats, error)
	Set(ctx context.Context, orgID, eventID snowflake.ID, stats Stats, ttl time.Duration) error
	Invalidate(ctx context.Context, orgID, eventID snowflake.ID) error
}
