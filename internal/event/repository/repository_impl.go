package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventpass/internal/event/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, event *domain.Event) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO events (id, org_id, name, slug, fee, guest_fee, currency, max_capacity, confirmed_count, starts_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?)`,
		event.ID,
		event.OrgID,
		event.Name,
		event.Slug,
		event.Fee,
		event.GuestFee,
		event.Currency,
		event.MaxCapacity,
		event.StartsAt,
		event.CreatedAt,
		event.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.Event, error) {
	var event domain.Event
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, name, slug, fee, guest_fee, currency, max_capacity, confirmed_count, starts_at, created_at, updated_at
		 FROM events WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	).Scan(&event).Error
	if err != nil {
		return nil, err
	}
	if event.ID == 0 {
		return nil, nil
	}
	return &event, nil
}

func (r *repo) ReserveSlot(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE events SET confirmed_count = confirmed_count + 1
		 WHERE org_id = ? AND id = ? AND (max_capacity IS NULL OR confirmed_count < max_capacity)`,
		orgID,
		id,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) ReleaseSlot(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`UPDATE events SET confirmed_count = confirmed_count - 1
		 WHERE org_id = ? AND id = ? AND confirmed_count > 0`,
		orgID,
		id,
	).Error
}
