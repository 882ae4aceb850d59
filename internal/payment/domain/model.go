package domain

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type ReferenceType string

const (
	ReferenceTypeEventPayment ReferenceType = "EVENT_PAYMENT"
	ReferenceTypeDonation     ReferenceType = "DONATION"
)

// Status moves forward only: INITIATED -> COMPLETED | FAILED | EXPIRED.
type Status string

const (
	StatusInitiated Status = "INITIATED"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusExpired   Status = "EXPIRED"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusExpired
}

const (
	FailureReasonSignatureMismatch = "signature_mismatch"
	FailureReasonGatewayDeclined   = "gateway_declined"
)

// Transaction is the lifecycle record of one payment attempt and the single
// source of truth for whether money has arrived.
type Transaction struct {
	ID                 snowflake.ID   `gorm:"primaryKey" json:"id"`
	OrgID              snowflake.ID   `gorm:"not null" json:"organization_id"`
	ReferenceType      ReferenceType  `gorm:"type:text;not null" json:"reference_type"`
	ReferenceID        snowflake.ID   `gorm:"not null" json:"reference_id"`
	UserID             snowflake.ID   `gorm:"not null" json:"user_id"`
	Amount             int64          `gorm:"not null" json:"amount"`
	Currency           string         `gorm:"type:text;not null" json:"currency"`
	Status             Status         `gorm:"type:text;not null" json:"status"`
	Provider           string         `gorm:"type:text;not null" json:"provider"`
	GatewayOrderID     string         `gorm:"type:text;not null" json:"gateway_order_id"`
	GatewayPaymentID   *string        `json:"gateway_payment_id,omitempty"`
	GatewaySignature   *string        `json:"-"`
	RegistrationIntent datatypes.JSON `gorm:"type:jsonb;not null" json:"registration_intent"`
	FailureReason      *string        `json:"failure_reason,omitempty"`
	CreatedAt          time.Time      `gorm:"not null" json:"created_at"`
	CompletedAt        *time.Time     `json:"completed_at,omitempty"`
	UpdatedAt          time.Time      `gorm:"not null" json:"updated_at"`
}

func (Transaction) TableName() string { return "payment_transactions" }

// Intent decodes the stored registration intent.
func (t Transaction) Intent() (Intent, error) {
	var intent Intent
	if len(t.RegistrationIntent) == 0 {
		return intent, ErrInvalidIntent
	}
	if err := json.Unmarshal(t.RegistrationIntent, &intent); err != nil {
		return intent, ErrInvalidIntent
	}
	if err := intent.Validate(t.ReferenceType); err != nil {
		return intent, err
	}
	return intent, nil
}
