package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Event is the minimal event shape the registration pipeline depends on.
// MaxCapacity nil means unlimited.
type Event struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID          snowflake.ID `gorm:"not null;index" json:"organization_id"`
	Name           string       `gorm:"not null" json:"name"`
	Slug           string       `gorm:"not null" json:"slug"`
	Fee            int64        `gorm:"not null" json:"fee"`
	GuestFee       int64        `gorm:"not null" json:"guest_fee"`
	Currency       string       `gorm:"not null" json:"currency"`
	MaxCapacity    *int64       `json:"max_capacity,omitempty"`
	ConfirmedCount int64        `gorm:"not null" json:"confirmed_count"`
	StartsAt       time.Time    `gorm:"not null" json:"starts_at"`
	CreatedAt      time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time    `gorm:"not null" json:"updated_at"`
}

func (Event) TableName() string { return "events" }

// AmountDue is the registration price for the given number of guests plus a
// voluntary donation, in minor units.
func (e Event) AmountDue(guestCount int, donation int64) int64 {
	return e.Fee + e.GuestFee*int64(guestCount) + donation
}
