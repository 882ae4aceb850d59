package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Scan(ctx context.Context, req ScanRequest) (CheckInRecord, error)
	Stats(ctx context.Context, eventID snowflake.ID) (Stats, error)
	GetByRegistration(ctx context.Context, registrationID snowflake.ID) (CheckInRecord, error)
}
