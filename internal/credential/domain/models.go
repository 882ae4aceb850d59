package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Credential is the QR credential of a registration. At most one exists per
// registration; revocation flips IsActive and never deletes the row.
type Credential struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID          snowflake.ID `gorm:"not null" json:"organization_id"`
	RegistrationID snowflake.ID `gorm:"not null" json:"registration_id"`
	Token          string       `gorm:"type:text;not null" json:"token"`
	Nonce          string       `gorm:"type:text;not null" json:"-"`
	GeneratedAt    time.Time    `gorm:"not null" json:"generated_at"`
	ExpiresAt      *time.Time   `json:"expires_at,omitempty"`
	ScanCount      int          `gorm:"not null" json:"scan_count"`
	IsActive       bool         `gorm:"not null" json:"is_active"`
	RevokedAt      *time.Time   `json:"revoked_at,omitempty"`
}

func (Credential) TableName() string { return "qr_credentials" }

// TokenClaims is what a verified token asserts.
type TokenClaims struct {
	RegistrationID snowflake.ID
	EventID        snowflake.ID
	UserID         snowflake.ID
	OrgID          snowflake.ID
	Nonce          string
	IssuedAt       time.Time
	ExpiresAt      *time.Time
}
