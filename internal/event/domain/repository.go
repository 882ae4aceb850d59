package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, event *Event) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Event, error)

	// ReserveSlot increments confirmed_count when capacity allows and reports
	// whether a slot was taken.
	ReserveSlot(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (bool, error)
	ReleaseSlot(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) error
}
