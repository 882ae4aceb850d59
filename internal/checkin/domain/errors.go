package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidOrganization      = errors.New("invalid_organization")
	ErrInvalidStaff             = errors.New("invalid_staff")
	ErrAlreadyCheckedIn         = errors.New("already_checked_in")
	ErrGuestCountExceeded       = errors.New("guest_count_exceeded")
	ErrRegistrationNotConfirmed = errors.New("registration_not_confirmed")
	ErrNotCheckedIn             = errors.New("not_checked_in")
	ErrEventNotFound            = errors.New("event_not_found")
)

// AlreadyCheckedInError carries the record that won, so the gate can show who
// admitted the guest and when.
type AlreadyCheckedInError struct {
	Record CheckInRecord
}

func (e *AlreadyCheckedInError) Error() string {
	return fmt.Sprintf("%s: registration %s at %s",
		ErrAlreadyCheckedIn, e.Record.RegistrationID, e.Record.CheckedInAt.Format("2006-01-02T15:04:05Z07:00"))
}

func (e *AlreadyCheckedInError) Is(target error) bool {
	return target == ErrAlreadyCheckedIn
}
