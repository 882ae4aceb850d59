package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type EventType string

const (
	EventRegistrationConfirmed EventType = "registration.confirmed"
	EventRegistrationCancelled EventType = "registration.cancelled"
	EventRegistrationCheckedIn EventType = "registration.checked_in"
	EventPaymentFailed         EventType = "payment.failed"
	EventPaymentCommitRejected EventType = "payment.commit_rejected"
	EventDonationReceived      EventType = "donation.received"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "PENDING"
	OutboxStatusPublished OutboxStatus = "PUBLISHED"
	OutboxStatusFailed    OutboxStatus = "FAILED"
)

// OutboxEvent is a state-change notification persisted alongside the change
// and delivered asynchronously.
type OutboxEvent struct {
	ID            snowflake.ID      `gorm:"primaryKey" json:"id"`
	OrgID         snowflake.ID      `gorm:"not null" json:"organization_id"`
	EventType     EventType         `gorm:"type:text;not null" json:"event_type"`
	AggregateID   snowflake.ID      `gorm:"not null" json:"aggregate_id"`
	DedupeKey     string            `gorm:"type:text;not null" json:"dedupe_key"`
	Payload       datatypes.JSONMap `gorm:"type:jsonb;not null" json:"payload"`
	Status        OutboxStatus      `gorm:"type:text;not null" json:"status"`
	Attempts      int               `gorm:"not null" json:"attempts"`
	LastError     *string           `json:"last_error,omitempty"`
	NextAttemptAt time.Time         `gorm:"not null" json:"next_attempt_at"`
	CreatedAt     time.Time         `gorm:"not null" json:"created_at"`
	PublishedAt   *time.Time        `json:"published_at,omitempty"`
}

func (OutboxEvent) TableName() string { return "notification_outbox" }

// Event is what domain services hand to the outbox.
type Event struct {
	OrgID       snowflake.ID
	Type        EventType
	AggregateID snowflake.ID
	Payload     map[string]any
	// DedupeKey defaults to "<type>:<aggregate id>".
	DedupeKey string
}

// Publisher records notifications. PublishTx must be called with the same
// transaction as the state change it describes.
type Publisher interface {
	PublishTx(ctx context.Context, tx *gorm.DB, event Event) error
	Publish(ctx context.Context, event Event) error
}

// Sink delivers an outbox event to the outside world.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, event OutboxEvent) error
}

var (
	ErrInvalidEvent = errors.New("invalid_notification_event")
)
