package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListFilter struct {
	OrgID    snowflake.ID
	EventID  snowflake.ID
	Status   Status
	// BeforeID continues a page; ids are time ordered.
	BeforeID snowflake.ID
	Limit    int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, registration *Registration) error
	InsertGuests(ctx context.Context, db *gorm.DB, guests []Guest) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Registration, error)
	FindBySourceTransaction(ctx context.Context, db *gorm.DB, transactionID snowflake.ID) (*Registration, error)
	FindActiveByEventUser(ctx context.Context, db *gorm.DB, orgID, eventID, userID snowflake.ID) (*Registration, error)
	ListGuests(ctx context.Context, db *gorm.DB, registrationID snowflake.ID) ([]Guest, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Registration, error)
	// MarkCancelled only moves CONFIRMED rows and reports whether it did.
	MarkCancelled(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, reason *string, at time.Time) (bool, error)
	HasCheckIn(ctx context.Context, db *gorm.DB, registrationID snowflake.ID) (bool, error)
}
