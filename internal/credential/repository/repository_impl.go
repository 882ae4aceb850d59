package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventpass/internal/credential/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, credential *domain.Credential) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO qr_credentials (
			id, org_id, registration_id, token, nonce, generated_at, expires_at, scan_count, is_active
		) VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)
		ON CONFLICT (registration_id) DO NOTHING`,
		credential.ID,
		credential.OrgID,
		credential.RegistrationID,
		credential.Token,
		credential.Nonce,
		credential.GeneratedAt,
		credential.ExpiresAt,
		true,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindByRegistration(ctx context.Context, db *gorm.DB, registrationID snowflake.ID) (*domain.Credential, error) {
	var item domain.Credential
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, registration_id, token, nonce, generated_at, expires_at,
			scan_count, is_active, revoked_at
		 FROM qr_credentials
		 WHERE registration_id = ?
		 LIMIT 1`,
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

func (r *repo) Deactivate(ctx context.Context, db *gorm.DB, orgID, registrationID snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE qr_credentials
		 SET is_active = ?, revoked_at = ?
		 WHERE org_id = ? AND registration_id = ? AND is_active = ?`,
		false,
		at,
		orgID,
		registrationID,
		true,
	).Error
}

func (r *repo) IncrementScan(ctx context.Context, db *gorm.DB, registrationID snowflake.ID) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE qr_credentials
		 SET scan_count = scan_count + 1
		 WHERE registration_id = ? AND is_active = ?`,
		registrationID,
		true,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
