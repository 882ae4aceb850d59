package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventpass/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListRequest struct {
	EventID snowflake.ID
	Status  Status
	pagination.Pagination
}

type ListResponse struct {
	Registrations []*Registration     `json:"registrations"`
	PageInfo      pagination.PageInfo `json:"page_info"`
}

type Service interface {
	// Commit turns a COMPLETED event payment into a registration. Safe to call
	// any number of times for the same transaction.
	Commit(ctx context.Context, transactionID snowflake.ID) (Registration, error)
	RecordDonation(ctx context.Context, transactionID snowflake.ID) error
	Get(ctx context.Context, id snowflake.ID) (Registration, error)
	GetByTransaction(ctx context.Context, transactionID snowflake.ID) (Registration, error)
	ListByEvent(ctx context.Context, req ListRequest) (ListResponse, error)
	Cancel(ctx context.Context, id snowflake.ID, reason string) (Registration, error)
}

// CredentialRevoker deactivates the QR credential of a registration inside the
// caller's transaction.
type CredentialRevoker interface {
	RevokeTx(ctx context.Context, tx *gorm.DB, orgID, registrationID snowflake.ID) error
}

var (
	ErrInvalidOrganization     = errors.New("invalid_organization")
	ErrNotFound                = errors.New("registration_not_found")
	ErrTransactionNotFound     = errors.New("transaction_not_found")
	ErrTransactionNotCompleted = errors.New("transaction_not_completed")
	ErrNotRegistrationPayment  = errors.New("not_registration_payment")
	ErrNotDonationPayment      = errors.New("not_donation_payment")
	ErrDuplicateRegistration   = errors.New("duplicate_registration")
	ErrEventFull               = errors.New("event_full")
	ErrEventNotFound           = errors.New("event_not_found")
	ErrAlreadyCheckedIn        = errors.New("already_checked_in")
	ErrInvalidEvent            = errors.New("invalid_event")
)
