package scheduler

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	paymentdomain "github.com/smallbiznis/eventpass/internal/payment/domain"
)

type staleTransaction struct {
	ID    snowflake.ID `gorm:"column:id"`
	OrgID snowflake.ID `gorm:"column:org_id"`
}

func (s *Scheduler) fetchStaleTransactions(ctx context.Context, cutoff time.Time, limit int) ([]staleTransaction, error) {
	var rows []staleTransaction
	err := s.db.WithContext(ctx).Raw(
		`SELECT id, org_id
		FROM payment_transactions
		WHERE status = ? AND created_at <= ?
		ORDER BY created_at ASC, id ASC
		LIMIT ?`,
		paymentdomain.StatusInitiated, cutoff.UTC(), limit,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
