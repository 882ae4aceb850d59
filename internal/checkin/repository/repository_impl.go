package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventpass/internal/checkin/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, record *domain.CheckInRecord) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO check_in_records (
			id, org_id, event_id, registration_id, checked_in_at, guests_checked_in,
			total_guests_allowed, check_in_location, checked_in_by_staff_id, notes
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.OrgID,
		record.EventID,
		record.RegistrationID,
		record.CheckedInAt,
		record.GuestsCheckedIn,
		record.TotalGuestsAllowed,
		record.CheckInLocation,
		record.CheckedInByStaffID,
		record.Notes,
	).Error
}

func (r *repo) FindByRegistration(ctx context.Context, db *gorm.DB, orgID, registrationID snowflake.ID) (*domain.CheckInRecord, error) {
	var item domain.CheckInRecord
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, event_id, registration_id, checked_in_at, guests_checked_in,
			total_guests_allowed, check_in_location, checked_in_by_staff_id, notes
		 FROM check_in_records
		 WHERE org_id = ? AND registration_id = ?
		 LIMIT 1`,
		orgID,
		registrationID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) Stats(ctx context.Context, db *gorm.DB, orgID, eventID snowflake.ID) (domain.Stats, error) {
	var row struct {
		TotalConfirmed       int64
		TotalCheckedIn       int64
		TotalGuestsCheckedIn int64
	}
	err := db.WithContext(ctx).Raw(
		`SELECT
			(SELECT COUNT(1) FROM event_registrations
			  WHERE org_id = ? AND event_id = ? AND status = 'CONFIRMED') AS total_confirmed,
			(SELECT COUNT(1) FROM check_in_records
			  WHERE org_id = ? AND event_id = ?) AS total_checked_in,
			(SELECT COALESCE(SUM(guests_checked_in), 0) FROM check_in_records
			  WHERE org_id = ? AND event_id = ?) AS total_guests_checked_in`,
		orgID, eventID,
		orgID, eventID,
		orgID, eventID,
	).Scan(&row).Error
	if err != nil {
		return domain.Stats{}, err
	}
	return domain.Stats{
		EventID:              eventID,
		TotalConfirmed:       row.TotalConfirmed,
		TotalCheckedIn:       row.TotalCheckedIn,
		TotalGuestsCheckedIn: row.TotalGuestsCheckedIn,
	}, nil
}
