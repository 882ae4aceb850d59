package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
)

// Registration is a confirmed seat at an event, created only from a COMPLETED
// payment transaction. SourceTransactionID is unique.
type Registration struct {
	ID                  snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID               snowflake.ID `gorm:"not null" json:"organization_id"`
	EventID             snowflake.ID `gorm:"not null" json:"event_id"`
	UserID              snowflake.ID `gorm:"not null" json:"user_id"`
	Status              Status       `gorm:"type:text;not null" json:"status"`
	MealPreference      *string      `json:"meal_preference,omitempty"`
	GuestCount          int          `gorm:"not null" json:"guest_count"`
	TotalAmount         int64        `gorm:"not null" json:"total_amount"`
	DonationAmount      int64        `gorm:"not null" json:"donation_amount"`
	Currency            string       `gorm:"type:text;not null" json:"currency"`
	SourceTransactionID snowflake.ID `gorm:"not null" json:"source_transaction_id"`
	CancelReason        *string      `json:"cancel_reason,omitempty"`
	CreatedAt           time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt           time.Time    `gorm:"not null" json:"updated_at"`
	CancelledAt         *time.Time   `json:"cancelled_at,omitempty"`

	Guests []Guest `gorm:"-" json:"guests"`
}

func (Registration) TableName() string { return "event_registrations" }

// FeeAmount is the part of the total that is event revenue.
func (r Registration) FeeAmount() int64 {
	return r.TotalAmount - r.DonationAmount
}

type Guest struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	RegistrationID snowflake.ID `gorm:"not null" json:"registration_id"`
	Name           string       `gorm:"not null" json:"name"`
	Email          string       `gorm:"not null" json:"email"`
	Phone          *string      `json:"phone,omitempty"`
	MealPreference *string      `json:"meal_preference,omitempty"`
	CreatedAt      time.Time    `gorm:"not null" json:"created_at"`
}

func (Guest) TableName() string { return "registration_guests" }
