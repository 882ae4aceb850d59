package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventpass/internal/clock"
	ledgerdomain "github.com/smallbiznis/eventpass/internal/ledger/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

func NewService(p Params) ledgerdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("ledger.service"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *Service) Post(ctx context.Context, req ledgerdomain.PostingRequest) (bool, error) {
	var inserted bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		inserted, err = s.PostTx(ctx, tx, req)
		return err
	})
	return inserted, err
}

func (s *Service) PostTx(ctx context.Context, tx *gorm.DB, req ledgerdomain.PostingRequest) (bool, error) {
	lines, err := validate(req)
	if err != nil {
		return false, err
	}

	now := s.clock.Now()
	entryID := s.genID.Generate()
	result := tx.WithContext(ctx).Exec(
		`INSERT INTO ledger_entries (
			id, org_id, source_type, source_id, currency, occurred_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (org_id, source_type, source_id) DO NOTHING`,
		entryID,
		req.OrgID,
		string(req.SourceType),
		req.SourceID,
		strings.ToUpper(strings.TrimSpace(req.Currency)),
		req.OccurredAt.UTC(),
		now,
	)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		s.log.Debug("ledger entry already posted",
			zap.String("source_type", string(req.SourceType)),
			zap.String("source_id", req.SourceID.String()),
		)
		return false, nil
	}

	for _, line := range lines {
		accountID, err := s.ensureAccount(ctx, tx, req.OrgID, line.Account)
		if err != nil {
			return false, err
		}
		if err := tx.WithContext(ctx).Exec(
			`INSERT INTO ledger_entry_lines (
				id, ledger_entry_id, account_id, direction, amount, created_at
			) VALUES (?, ?, ?, ?, ?, ?)`,
			s.genID.Generate(),
			entryID,
			accountID,
			string(line.Direction),
			line.Amount,
			now,
		).Error; err != nil {
			return false, err
		}
	}

	return true, nil
}

func (s *Service) ensureAccount(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, code ledgerdomain.LedgerAccountCode) (snowflake.ID, error) {
	if err := tx.WithContext(ctx).Exec(
		`INSERT INTO ledger_accounts (id, org_id, code, name, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (org_id, code) DO NOTHING`,
		s.genID.Generate(),
		orgID,
		string(code),
		ledgerdomain.AccountName(code),
		s.clock.Now(),
	).Error; err != nil {
		return 0, err
	}

	var account ledgerdomain.LedgerAccount
	if err := tx.WithContext(ctx).Raw(
		`SELECT id, org_id, code, name, created_at FROM ledger_accounts WHERE org_id = ? AND code = ?`,
		orgID,
		string(code),
	).Scan(&account).Error; err != nil {
		return 0, err
	}
	if account.ID == 0 {
		return 0, ledgerdomain.ErrInvalidAccount
	}
	return account.ID, nil
}

func validate(req ledgerdomain.PostingRequest) ([]ledgerdomain.PostingLine, error) {
	if req.OrgID == 0 {
		return nil, ledgerdomain.ErrInvalidOrganization
	}
	if strings.TrimSpace(string(req.SourceType)) == "" {
		return nil, ledgerdomain.ErrInvalidSourceType
	}
	if req.SourceID == 0 {
		return nil, ledgerdomain.ErrInvalidSourceID
	}
	if strings.TrimSpace(req.Currency) == "" {
		return nil, ledgerdomain.ErrInvalidCurrency
	}
	if req.OccurredAt.IsZero() {
		return nil, ledgerdomain.ErrInvalidOccurredAt
	}
	if len(req.Lines) < 2 {
		return nil, ledgerdomain.ErrInvalidEntryLines
	}

	normalized := make([]ledgerdomain.PostingLine, 0, len(req.Lines))
	for _, line := range req.Lines {
		if strings.TrimSpace(string(line.Account)) == "" {
			return nil, ledgerdomain.ErrInvalidAccount
		}
		direction, err := normalizeDirection(line.Direction)
		if err != nil {
			return nil, err
		}
		if line.Amount < 0 {
			return nil, ledgerdomain.ErrInvalidLineAmount
		}
		normalized = append(normalized, ledgerdomain.PostingLine{
			Account:   line.Account,
			Direction: direction,
			Amount:    line.Amount,
		})
	}

	if err := ledgerdomain.ValidateBalanced(normalized); err != nil {
		return nil, err
	}
	return normalized, nil
}

func normalizeDirection(direction ledgerdomain.LedgerEntryDirection) (ledgerdomain.LedgerEntryDirection, error) {
	switch strings.ToLower(strings.TrimSpace(string(direction))) {
	case string(ledgerdomain.LedgerEntryDirectionDebit):
		return ledgerdomain.LedgerEntryDirectionDebit, nil
	case string(ledgerdomain.LedgerEntryDirectionCredit):
		return ledgerdomain.LedgerEntryDirectionCredit, nil
	default:
		return "", ledgerdomain.ErrInvalidLineDirection
	}
}
