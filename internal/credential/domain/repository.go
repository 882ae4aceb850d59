package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// Insert reports false when the registration already has a credential.
	Insert(ctx context.Context, db *gorm.DB, credential *Credential) (bool, error)
	FindByRegistration(ctx context.Context, db *gorm.DB, registrationID snowflake.ID) (*Credential, error)
	Deactivate(ctx context.Context, db *gorm.DB, orgID, registrationID snowflake.ID, at time.Time) error
	// IncrementScan only counts scans of active credentials.
	IncrementScan(ctx context.Context, db *gorm.DB, registrationID snowflake.ID) (bool, error)
}
