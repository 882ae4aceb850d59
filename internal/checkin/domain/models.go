package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// CheckInRecord is the single admission of a registration. Its unique
// registration_id decides concurrent scans.
type CheckInRecord struct {
	ID                 snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID              snowflake.ID `gorm:"not null" json:"organization_id"`
	EventID            snowflake.ID `gorm:"not null" json:"event_id"`
	RegistrationID     snowflake.ID `gorm:"not null" json:"registration_id"`
	CheckedInAt        time.Time    `gorm:"not null" json:"checked_in_at"`
	GuestsCheckedIn    int          `gorm:"not null" json:"guests_checked_in"`
	TotalGuestsAllowed int          `gorm:"not null" json:"total_guests_allowed"`
	CheckInLocation    *string      `json:"check_in_location,omitempty"`
	CheckedInByStaffID snowflake.ID `gorm:"not null" json:"checked_in_by_staff_id"`
	Notes              *string      `json:"notes,omitempty"`
}

func (CheckInRecord) TableName() string { return "check_in_records" }

type ScanRequest struct {
	Token           string
	GuestsCheckedIn int
	Location        string
	StaffID         snowflake.ID
	Notes           string
}

type Stats struct {
	EventID              snowflake.ID `json:"event_id"`
	TotalConfirmed       int64        `json:"total_confirmed"`
	TotalCheckedIn       int64        `json:"total_checked_in"`
	TotalGuestsCheckedIn int64        `json:"total_guests_checked_in"`
}
