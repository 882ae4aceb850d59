package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Transition is a conditional status change applied only while the row is
// still INITIATED.
type Transition struct {
	To               Status
	GatewayPaymentID *string
	GatewaySignature *string
	FailureReason    *string
	At               time.Time
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, txn *Transaction) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Transaction, error)
	FindByGatewayOrderID(ctx context.Context, db *gorm.DB, orderID string) (*Transaction, error)
	// TransitionFromInitiated reports false when another caller already moved the row.
	TransitionFromInitiated(ctx context.Context, db *gorm.DB, id snowflake.ID, t Transition) (bool, error)
}
