package domain

import (
	"net/mail"
	"strings"

	"github.com/bwmarrin/snowflake"
)

type IntentKind string

const (
	IntentKindEventRegistration IntentKind = "event_registration"
	IntentKindDonation          IntentKind = "donation"
)

// Intent is what the payer asked for, captured at initiation and replayed at
// commit. Exactly one arm is set and it must agree with the reference type.
type Intent struct {
	Kind     IntentKind          `json:"kind"`
	Event    *EventPaymentIntent `json:"event,omitempty"`
	Donation *DonationIntent     `json:"donation,omitempty"`
}

type EventPaymentIntent struct {
	EventID        snowflake.ID  `json:"event_id"`
	MealPreference string        `json:"meal_preference,omitempty"`
	Guests         []GuestIntent `json:"guests,omitempty"`
	DonationAmount int64         `json:"donation_amount,omitempty"`
}

type GuestIntent struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Phone          string `json:"phone,omitempty"`
	MealPreference string `json:"meal_preference,omitempty"`
}

type DonationIntent struct {
	Note      string `json:"note,omitempty"`
	Anonymous bool   `json:"anonymous,omitempty"`
}

// GuestCount is the number of named guests accompanying the registrant.
func (e EventPaymentIntent) GuestCount() int {
	return len(e.Guests)
}

func (i Intent) Validate(ref ReferenceType) error {
	switch ref {
	case ReferenceTypeEventPayment:
		if i.Kind != IntentKindEventRegistration || i.Event == nil || i.Donation != nil {
			return ErrInvalidIntent
		}
		return i.Event.validate()
	case ReferenceTypeDonation:
		if i.Kind != IntentKindDonation || i.Donation == nil || i.Event != nil {
			return ErrInvalidIntent
		}
		return nil
	default:
		return ErrInvalidReferenceType
	}
}

func (e EventPaymentIntent) validate() error {
	if e.EventID == 0 {
		return ErrInvalidIntent
	}
	if e.DonationAmount < 0 {
		return ErrInvalidAmount
	}
	for _, guest := range e.Guests {
		if strings.TrimSpace(guest.Name) == "" {
			return ErrInvalidGuest
		}
		if _, err := mail.ParseAddress(strings.TrimSpace(guest.Email)); err != nil {
			return ErrInvalidGuest
		}
	}
	return nil
}
