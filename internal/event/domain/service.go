package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type CreateEventRequest struct {
	Name        string    `json:"name"`
	Fee         int64     `json:"fee"`
	GuestFee    int64     `json:"guest_fee"`
	Currency    string    `json:"currency"`
	MaxCapacity *int64    `json:"max_capacity,omitempty"`
	StartsAt    time.Time `json:"starts_at"`
}

type Service interface {
	Create(ctx context.Context, req CreateEventRequest) (Event, error)
	Get(ctx context.Context, id snowflake.ID) (Event, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidFee          = errors.New("invalid_fee")
	ErrInvalidCurrency     = errors.New("invalid_currency")
	ErrInvalidCapacity     = errors.New("invalid_capacity")
	ErrInvalidStartsAt     = errors.New("invalid_starts_at")
	ErrNotFound            = errors.New("event_not_found")
)
