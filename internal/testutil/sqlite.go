// Package testutil provides an in-memory SQLite database carrying the same
// tables and unique indexes as the postgres migrations.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var schema = []string{
	`CREATE TABLE events (
		id INTEGER PRIMARY KEY,
		org_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		slug TEXT NOT NULL,
		fee INTEGER NOT NULL DEFAULT 0,
		guest_fee INTEGER NOT NULL DEFAULT 0,
		currency TEXT NOT NULL,
		max_capacity INTEGER,
		confirmed_count INTEGER NOT NULL DEFAULT 0,
		starts_at DATETIME NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE UNIQUE INDEX ux_events_org_slug ON events (org_id, slug)`,
	`CREATE TABLE payment_transactions (
		id INTEGER PRIMARY KEY,
		org_id INTEGER NOT NULL,
		reference_type TEXT NOT NULL,
		reference_id INTEGER NOT NULL,
		user_id INTEGER NOT NULL,
		amount INTEGER NOT NULL,
		currency TEXT NOT NULL,
		status TEXT NOT NULL,
		provider TEXT NOT NULL,
		gateway_order_id TEXT NOT NULL,
		gateway_payment_id TEXT,
		gateway_signature TEXT,
		registration_intent TEXT NOT NULL,
		failure_reason TEXT,
		created_at DATETIME NOT NULL,
		completed_at DATETIME,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE UNIQUE INDEX ux_payment_transactions_gateway_order ON payment_transactions (gateway_order_id)`,
	`CREATE TABLE event_registrations (
		id INTEGER PRIMARY KEY,
		org_id INTEGER NOT NULL,
		event_id INTEGER NOT NULL,
		user_id INTEGER NOT NULL,
		status TEXT NOT NULL,
		meal_preference TEXT,
		guest_count INTEGER NOT NULL DEFAULT 0,
		total_amount INTEGER NOT NULL,
		donation_amount INTEGER NOT NULL DEFAULT 0,
		currency TEXT NOT NULL,
		source_transaction_id INTEGER NOT NULL,
		cancel_reason TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		cancelled_at DATETIME
	)`,
	`CREATE UNIQUE INDEX ux_event_registrations_source_txn ON event_registrations (source_transaction_id)`,
	`CREATE UNIQUE INDEX ux_event_registrations_active_user ON event_registrations (event_id, user_id) WHERE status <> 'CANCELLED'`,
	`CREATE TABLE registration_guests (
		id INTEGER PRIMARY KEY,
		registration_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		phone TEXT,
		meal_preference TEXT,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE qr_credentials (
		id INTEGER PRIMARY KEY,
		org_id INTEGER NOT NULL,
		registration_id INTEGER NOT NULL,
		token TEXT NOT NULL,
		nonce TEXT NOT NULL,
		generated_at DATETIME NOT NULL,
		expires_at DATETIME,
		scan_count INTEGER NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		revoked_at DATETIME
	)`,
	`CREATE UNIQUE INDEX ux_qr_credentials_registration ON qr_credentials (registration_id)`,
	`CREATE TABLE check_in_records (
		id INTEGER PRIMARY KEY,
		org_id INTEGER NOT NULL,
		event_id INTEGER NOT NULL,
		registration_id INTEGER NOT NULL,
		checked_in_at DATETIME NOT NULL,
		guests_checked_in INTEGER NOT NULL,
		total_guests_allowed INTEGER NOT NULL,
		check_in_location TEXT,
		checked_in_by_staff_id INTEGER NOT NULL,
		notes TEXT
	)`,
	`CREATE UNIQUE INDEX ux_check_in_records_registration ON check_in_records (registration_id)`,
	`CREATE TABLE ledger_accounts (
		id INTEGER PRIMARY KEY,
		org_id INTEGER NOT NULL,
		code TEXT NOT NULL,
		name TEXT NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE UNIQUE INDEX ux_ledger_accounts_org_code ON ledger_accounts (org_id, code)`,
	`CREATE TABLE ledger_entries (
		id INTEGER PRIMARY KEY,
		org_id INTEGER NOT NULL,
		source_type TEXT NOT NULL,
		source_id INTEGER NOT NULL,
		currency TEXT NOT NULL,
		occurred_at DATETIME NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE UNIQUE INDEX ux_ledger_entries_source ON ledger_entries (org_id, source_type, source_id)`,
	`CREATE TABLE ledger_entry_lines (
		id INTEGER PRIMARY KEY,
		ledger_entry_id INTEGER NOT NULL,
		account_id INTEGER NOT NULL,
		direction TEXT NOT NULL,
		amount INTEGER NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE notification_outbox (
		id INTEGER PRIMARY KEY,
		org_id INTEGER NOT NULL,
		event_type TEXT NOT NULL,
		aggregate_id INTEGER NOT NULL,
		dedupe_key TEXT NOT NULL,
		payload TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'PENDING',
		attempts INTEGER NOT NULL DEFAULT 0,
		last_error TEXT,
		next_attempt_at DATETIME NOT NULL,
		created_at DATETIME NOT NULL,
		published_at DATETIME
	)`,
	`CREATE UNIQUE INDEX ux_notification_outbox_dedupe ON notification_outbox (dedupe_key)`,
}

// NewDB opens a private in-memory database with the full schema. The pool is
// limited to one connection so goroutines in race tests serialize on it while
// the unique indexes still decide the winner.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
	return conn
}

// NewNode returns a snowflake node for generating row ids in tests.
func NewNode(t testing.TB) *snowflake.Node {
	t.Helper()

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return node
}

// EventSeed describes an events row inserted by SeedEvent.
type EventSeed struct {
	ID          snowflake.ID
	OrgID       snowflake.ID
	Fee         int64
	GuestFee    int64
	Currency    string
	MaxCapacity *int64
}

func SeedEvent(t testing.TB, conn *gorm.DB, seed EventSeed) {
	t.Helper()

	currency := seed.Currency
	if currency == "" {
		currency = "INR"
	}
	now := time.Now().UTC()
	err := conn.Exec(
		`INSERT INTO events (id, org_id, name, slug, fee, guest_fee, currency, max_capacity, confirmed_count, starts_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?)`,
		seed.ID, seed.OrgID, "Annual Gala", fmt.Sprintf("annual-gala-%d", seed.ID),
		seed.Fee, seed.GuestFee, currency, seed.MaxCapacity, now.Add(72*time.Hour), now, now,
	).Error
	if err != nil {
		t.Fatalf("seed event: %v", err)
	}
}
