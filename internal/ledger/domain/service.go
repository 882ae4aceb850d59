package domain

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type Service interface {
	// Post writes the entry in its own transaction.
	Post(ctx context.Context, req PostingRequest) (bool, error)
	// PostTx writes the entry inside the caller's transaction. It reports
	// false when an entry for the same source already exists.
	PostTx(ctx context.Context, tx *gorm.DB, req PostingRequest) (bool, error)
}

var (
	ErrInvalidOrganization  = errors.New("invalid_organization")
	ErrInvalidSourceType    = errors.New("invalid_source_type")
	ErrInvalidSourceID      = errors.New("invalid_source_id")
	ErrInvalidCurrency      = errors.New("invalid_currency")
	ErrInvalidOccurredAt    = errors.New("invalid_occurred_at")
	ErrInvalidEntryLines    = errors.New("invalid_entry_lines")
	ErrInvalidAccount       = errors.New("invalid_account")
	ErrInvalidLineDirection = errors.New("invalid_line_direction")
	ErrInvalidLineAmount    = errors.New("invalid_line_amount")
	ErrUnbalancedEntry      = errors.New("unbalanced_entry")
)

// ValidateBalanced checks that debits equal credits and the entry moves money.
func ValidateBalanced(lines []PostingLine) error {
	var debit, credit int64
	for _, line := range lines {
		switch line.Direction {
		case LedgerEntryDirectionDebit:
			debit += line.Amount
		case LedgerEntryDirectionCredit:
			credit += line.Amount
		default:
			return ErrInvalidLineDirection
		}
	}
	if debit != credit || debit == 0 {
		return ErrUnbalancedEntry
	}
	return nil
}
