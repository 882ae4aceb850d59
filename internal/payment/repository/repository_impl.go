package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventpass/internal/payment/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const selectTransaction = `SELECT id, org_id, reference_type, reference_id, user_id, amount, currency,
		status, provider, gateway_order_id, gateway_payment_id, gateway_signature,
		registration_intent, failure_reason, created_at, completed_at, updated_at
	FROM payment_transactions`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, txn *domain.Transaction) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO payment_transactions (
			id, org_id, reference_type, reference_id, user_id, amount, currency,
			status, provider, gateway_order_id, registration_intent, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.ID,
		txn.OrgID,
		string(txn.ReferenceType),
		txn.ReferenceID,
		txn.UserID,
		txn.Amount,
		txn.Currency,
		string(txn.Status),
		txn.Provider,
		txn.GatewayOrderID,
		txn.RegistrationIntent,
		txn.CreatedAt,
		txn.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Transaction, error) {
	var item domain.Transaction
	err := db.WithContext(ctx).Raw(selectTransaction+` WHERE id = ? LIMIT 1`, id).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindByGatewayOrderID(ctx context.Context, db *gorm.DB, orderID string) (*domain.Transaction, error) {
	var item domain.Transaction
	err := db.WithContext(ctx).Raw(selectTransaction+` WHERE gateway_order_id = ? LIMIT 1`, orderID).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) TransitionFromInitiated(ctx context.Context, db *gorm.DB, id snowflake.ID, t domain.Transition) (bool, error) {
	var completedAt any
	if t.To == domain.StatusCompleted {
		completedAt = t.At
	}
	res := db.WithContext(ctx).Exec(
		`UPDATE payment_transactions
		 SET status = ?, gateway_payment_id = ?, gateway_signature = ?, failure_reason = ?,
			completed_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		string(t.To),
		t.GatewayPaymentID,
		t.GatewaySignature,
		t.FailureReason,
		completedAt,
		t.At,
		id,
		string(domain.StatusInitiated),
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
