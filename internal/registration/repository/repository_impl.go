package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventpass/internal/registration/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const selectRegistration = `SELECT id, org_id, event_id, user_id, status, meal_preference, guest_count,
		total_amount, donation_amount, currency, source_transaction_id, cancel_reason,
		created_at, updated_at, cancelled_at
	FROM event_registrations`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, registration *domain.Registration) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO event_registrations (
			id, org_id, event_id, user_id, status, meal_preference, guest_count,
			total_amount, donation_amount, currency, source_transaction_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		registration.ID,
		registration.OrgID,
		registration.EventID,
		registration.UserID,
		string(registration.Status),
		registration.MealPreference,
		registration.GuestCount,
		registration.TotalAmount,
		registration.DonationAmount,
		registration.Currency,
		registration.SourceTransactionID,
		registration.CreatedAt,
		registration.UpdatedAt,
	).Error
}

func (r *repo) InsertGuests(ctx context.Context, db *gorm.DB, guests []domain.Guest) error {
	for _, guest := range guests {
		if err := db.WithContext(ctx).Exec(
			`INSERT INTO registration_guests (
				id, registration_id, name, email, phone, meal_preference, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			guest.ID,
			guest.RegistrationID,
			guest.Name,
			guest.Email,
			guest.Phone,
			guest.MealPreference,
			guest.CreatedAt,
		).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.Registration, error) {
	return r.findOne(ctx, db, selectRegistration+` WHERE org_id = ? AND id = ? LIMIT 1`, orgID, id)
}

func (r *repo) FindBySourceTransaction(ctx context.Context, db *gorm.DB, transactionID snowflake.ID) (*domain.Registration, error) {
	return r.findOne(ctx, db, selectRegistration+` WHERE source_transaction_id = ? LIMIT 1`, transactionID)
}

func (r *repo) FindActiveByEventUser(ctx context.Context, db *gorm.DB, orgID, eventID, userID snowflake.ID) (*domain.Registration, error) {
	return r.findOne(ctx, db,
		selectRegistration+` WHERE org_id = ? AND event_id = ? AND user_id = ? AND status <> ? LIMIT 1`,
		orgID, eventID, userID, string(domain.StatusCancelled),
	)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.Registration, error) {
	var item domain.Registration
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&item).Error; err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) ListGuests(ctx context.Context, db *gorm.DB, registrationID snowflake.ID) ([]domain.Guest, error) {
	var guests []domain.Guest
	err := db.WithContext(ctx).Raw(
		`SELECT id, registration_id, name, email, phone, meal_preference, created_at
		 FROM registration_guests
		 WHERE registration_id = ?
		 ORDER BY id ASC`,
		registrationID,
	).Scan(&guests).Error
	if err != nil {
		return nil, err
	}
	return guests, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.Registration, error) {
	query := selectRegistration + ` WHERE org_id = ? AND event_id = ?`
	args := []any{filter.OrgID, filter.EventID}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.BeforeID != 0 {
		query += ` AND id < ?`
		args = append(args, filter.BeforeID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, filter.Limit)

	var items []*domain.Registration
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) MarkCancelled(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, reason *string, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE event_registrations
		 SET status = ?, cancel_reason = ?, cancelled_at = ?, updated_at = ?
		 WHERE org_id = ? AND id = ? AND status = ?`,
		string(domain.StatusCancelled),
		reason,
		at,
		at,
		orgID,
		id,
		string(domain.StatusConfirmed),
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) HasCheckIn(ctx context.Context, db *gorm.DB, registrationID snowflake.ID) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM check_in_records WHERE registration_id = ?`,
		registrationID,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
