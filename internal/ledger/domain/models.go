package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// LedgerEntryDirection represents debit or credit postings.
type LedgerEntryDirection string

const (
	LedgerEntryDirectionDebit  LedgerEntryDirection = "debit"
	LedgerEntryDirectionCredit LedgerEntryDirection = "credit"
)

type LedgerSourceType string

const (
	SourceTypeEventRegistration LedgerSourceType = "event_registration" // registration fee and guest fees
	SourceTypeDonation          LedgerSourceType = "donation"           // voluntary donation, keyed by payment transaction
	SourceTypeRegistrationVoid  LedgerSourceType = "registration_void"  // reversal on cancellation
)

type LedgerAccountCode string

const (
	AccountCodeCash            LedgerAccountCode = "cash"
	AccountCodeEventRevenue    LedgerAccountCode = "event_revenue"
	AccountCodeDonationRevenue LedgerAccountCode = "donation_revenue"
	AccountCodeRefundLiab      LedgerAccountCode = "refund_liability"
)

var accountNames = map[LedgerAccountCode]string{
	AccountCodeCash:            "Cash",
	AccountCodeEventRevenue:    "Event Revenue",
	AccountCodeDonationRevenue: "Donation Revenue",
	AccountCodeRefundLiab:      "Refund Liability",
}

// AccountName returns the display name for a known account code.
func AccountName(code LedgerAccountCode) string {
	if name, ok := accountNames[code]; ok {
		return name
	}
	return string(code)
}

// LedgerAccount defines a chart-of-accounts entry.
type LedgerAccount struct {
	ID        snowflake.ID      `gorm:"primaryKey"`
	OrgID     snowflake.ID      `gorm:"not null"`
	Code      LedgerAccountCode `gorm:"type:text;not null"`
	Name      string            `gorm:"type:text;not null"`
	CreatedAt time.Time         `gorm:"not null"`
}

func (LedgerAccount) TableName() string { return "ledger_accounts" }

// LedgerEntry is the immutable header for a financial event. At most one
// entry exists per (org, source type, source id).
type LedgerEntry struct {
	ID         snowflake.ID     `gorm:"primaryKey"`
	OrgID      snowflake.ID     `gorm:"not null"`
	SourceType LedgerSourceType `gorm:"type:text;not null"`
	SourceID   snowflake.ID     `gorm:"not null"`
	Currency   string           `gorm:"type:text;not null"`
	OccurredAt time.Time        `gorm:"not null"`
	CreatedAt  time.Time        `gorm:"not null"`
}

func (LedgerEntry) TableName() string { return "ledger_entries" }

// LedgerEntryLine is a double-entry posting line.
type LedgerEntryLine struct {
	ID            snowflake.ID         `gorm:"primaryKey"`
	LedgerEntryID snowflake.ID         `gorm:"not null"`
	AccountID     snowflake.ID         `gorm:"not null"`
	Direction     LedgerEntryDirection `gorm:"type:text;not null"`
	Amount        int64                `gorm:"not null"`
	CreatedAt     time.Time            `gorm:"not null"`
}

func (LedgerEntryLine) TableName() string { return "ledger_entry_lines" }

// PostingLine is one side of a posting request, addressed by account code.
type PostingLine struct {
	Account   LedgerAccountCode
	Direction LedgerEntryDirection
	Amount    int64
}

type PostingRequest struct {
	OrgID      snowflake.ID
	SourceType LedgerSourceType
	SourceID   snowflake.ID
	Currency   string
	OccurredAt time.Time
	Lines      []PostingLine
}

// Settlement builds the two-line posting that moves amount from cash into
// the given revenue account.
func Settlement(revenue LedgerAccountCode, amount int64) []PostingLine {
	return []PostingLine{
		{Account: AccountCodeCash, Direction: LedgerEntryDirectionDebit, Amount: amount},
		{Account: revenue, Direction: LedgerEntryDirectionCredit, Amount: amount},
	}
}
