package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventpass/internal/clock"
	eventdomain "github.com/smallbiznis/eventpass/internal/event/domain"
	ledgerdomain "github.com/smallbiznis/eventpass/internal/ledger/domain"
	notificationdomain "github.com/smallbiznis/eventpass/internal/notification/domain"
	"github.com/smallbiznis/eventpass/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/eventpass/internal/observability/metrics"
	"github.com/smallbiznis/eventpass/internal/orgcontext"
	paymentdomain "github.com/smallbiznis/eventpass/internal/payment/domain"
	"github.com/smallbiznis/eventpass/internal/registration/domain"
	"github.com/smallbiznis/eventpass/pkg/db"
	"github.com/smallbiznis/eventpass/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        domain.Repository
	PaymentRepo paymentdomain.Repository
	EventRepo   eventdomain.Repository
	Ledger      ledgerdomain.Service
	Publisher   notificationdomain.Publisher
	Revoker     domain.CredentialRevoker `optional:"true"`
	ObsMetrics  *obsmetrics.Metrics      `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	paymentRepo paymentdomain.Repository
	eventRepo   eventdomain.Repository
	ledger      ledgerdomain.Service
	publisher   notificationdomain.Publisher
	revoker     domain.CredentialRevoker
	obsMetrics  *obsmetrics.Metrics
}

func NewService(p Params) *Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("registration.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		paymentRepo: p.PaymentRepo,
		eventRepo:   p.EventRepo,
		ledger:      p.Ledger,
		publisher:   p.Publisher,
		revoker:     p.Revoker,
		obsMetrics:  p.ObsMetrics,
	}
}

// OnCompleted routes a settled payment to the operation its reference type
// asks for.
func (s *Service) OnCompleted(ctx context.Context, txn paymentdomain.Transaction) error {
	switch txn.ReferenceType {
	case paymentdomain.ReferenceTypeEventPayment:
		_, err := s.Commit(ctx, txn.ID)
		return err
	case paymentdomain.ReferenceTypeDonation:
		return s.RecordDonation(ctx, txn.ID)
	default:
		return paymentdomain.ErrInvalidReferenceType
	}
}

func (s *Service) Commit(ctx context.Context, transactionID snowflake.ID) (domain.Registration, error) {
	txn, err := s.completedTransaction(ctx, transactionID)
	if err != nil {
		return domain.Registration{}, err
	}
	intent, err := txn.Intent()
	if err != nil {
		return domain.Registration{}, err
	}
	switch intent.Kind {
	case paymentdomain.IntentKindEventRegistration:
	case paymentdomain.IntentKindDonation:
		return domain.Registration{}, domain.ErrNotRegistrationPayment
	default:
		return domain.Registration{}, paymentdomain.ErrInvalidIntent
	}

	if existing, err := s.repo.FindBySourceTransaction(ctx, s.db, txn.ID); err != nil {
		return domain.Registration{}, err
	} else if existing != nil {
		return s.withGuests(ctx, s.db, *existing)
	}

	registration, err := s.commit(ctx, txn, *intent.Event)
	if err != nil && db.IsDuplicateKeyErr(err) {
		// Either a concurrent commit of this transaction won, or the user
		// already holds an active registration for the event.
		existing, findErr := s.repo.FindBySourceTransaction(ctx, s.db, txn.ID)
		if findErr != nil {
			return domain.Registration{}, findErr
		}
		if existing != nil {
			return s.withGuests(ctx, s.db, *existing)
		}
		err = domain.ErrDuplicateRegistration
	}
	if err != nil {
		s.rejected(ctx, txn, err)
		return domain.Registration{}, err
	}

	s.obsMetrics.RecordRegistrationCommitted(ctx)
	logger.WithContext(ctx, s.log).Info("registration committed",
		zap.String("registration_id", registration.ID.String()),
		zap.String("event_id", registration.EventID.String()),
		zap.String("transaction_id", txn.ID.String()),
		zap.Int("guest_count", registration.GuestCount),
	)
	return registration, nil
}

func (s *Service) commit(ctx context.Context, txn paymentdomain.Transaction, intent paymentdomain.EventPaymentIntent) (domain.Registration, error) {
	now := s.clock.Now()
	registration := domain.Registration{
		ID:                  s.genID.Generate(),
		OrgID:               txn.OrgID,
		EventID:             intent.EventID,
		UserID:              txn.UserID,
		Status:              domain.StatusConfirmed,
		MealPreference:      optional(intent.MealPreference),
		GuestCount:          intent.GuestCount(),
		TotalAmount:         txn.Amount,
		DonationAmount:      intent.DonationAmount,
		Currency:            txn.Currency,
		SourceTransactionID: txn.ID,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	for _, guest := range intent.Guests {
		registration.Guests = append(registration.Guests, domain.Guest{
			ID:             s.genID.Generate(),
			RegistrationID: registration.ID,
			Name:           strings.TrimSpace(guest.Name),
			Email:          strings.ToLower(strings.TrimSpace(guest.Email)),
			Phone:          optional(guest.Phone),
			MealPreference: optional(guest.MealPreference),
			CreatedAt:      now,
		})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		active, err := s.repo.FindActiveByEventUser(ctx, tx, txn.OrgID, intent.EventID, txn.UserID)
		if err != nil {
			return err
		}
		if active != nil && active.SourceTransactionID != txn.ID {
			return domain.ErrDuplicateRegistration
		}

		event, err := s.eventRepo.FindByID(ctx, tx, txn.OrgID, intent.EventID)
		if err != nil {
			return err
		}
		if event == nil {
			return domain.ErrEventNotFound
		}
		if event.Currency != txn.Currency {
			return domain.ErrInvalidEvent
		}

		if err := s.repo.Insert(ctx, tx, &registration); err != nil {
			return err
		}
		if err := s.repo.InsertGuests(ctx, tx, registration.Guests); err != nil {
			return err
		}

		reserved, err := s.eventRepo.ReserveSlot(ctx, tx, txn.OrgID, intent.EventID)
		if err != nil {
			return err
		}
		if !reserved {
			return domain.ErrEventFull
		}

		if fee := registration.FeeAmount(); fee > 0 {
			if _, err := s.ledger.PostTx(ctx, tx, ledgerdomain.PostingRequest{
				OrgID:      txn.OrgID,
				SourceType: ledgerdomain.SourceTypeEventRegistration,
				SourceID:   registration.ID,
				Currency:   txn.Currency,
				OccurredAt: now,
				Lines:      ledgerdomain.Settlement(ledgerdomain.AccountCodeEventRevenue, fee),
			}); err != nil {
				return err
			}
		}
		if registration.DonationAmount > 0 {
			if _, err := s.ledger.PostTx(ctx, tx, ledgerdomain.PostingRequest{
				OrgID:      txn.OrgID,
				SourceType: ledgerdomain.SourceTypeDonation,
				SourceID:   txn.ID,
				Currency:   txn.Currency,
				OccurredAt: now,
				Lines:      ledgerdomain.Settlement(ledgerdomain.AccountCodeDonationRevenue, registration.DonationAmount),
			}); err != nil {
				return err
			}
		}

		return s.publisher.PublishTx(ctx, tx, notificationdomain.Event{
			OrgID:       txn.OrgID,
			Type:        notificationdomain.EventRegistrationConfirmed,
			AggregateID: registration.ID,
			Payload: map[string]any{
				"registration_id": registration.ID.String(),
				"event_id":        registration.EventID.String(),
				"event_name":      event.Name,
				"user_id":         registration.UserID.String(),
				"guest_count":     registration.GuestCount,
				"amount":          registration.TotalAmount,
				"currency":        registration.Currency,
			},
		})
	})
	if err != nil {
		return domain.Registration{}, err
	}
	return registration, nil
}

// rejected records why a paid transaction did not become a registration so the
// payer can be refunded out of band.
func (s *Service) rejected(ctx context.Context, txn paymentdomain.Transaction, cause error) {
	var reason string
	switch {
	case errors.Is(cause, domain.ErrEventFull):
		reason = "event_full"
	case errors.Is(cause, domain.ErrDuplicateRegistration):
		reason = "duplicate_registration"
	case errors.Is(cause, domain.ErrEventNotFound), errors.Is(cause, domain.ErrInvalidEvent):
		reason = "event_unavailable"
	default:
		logger.WithContext(ctx, s.log).Error("registration commit failed",
			zap.String("transaction_id", txn.ID.String()),
			zap.Error(cause),
		)
		return
	}

	s.obsMetrics.RecordCommitConflict(ctx, reason)
	logger.WithContext(ctx, s.log).Warn("registration commit rejected",
		zap.String("transaction_id", txn.ID.String()),
		zap.String("reason", reason),
	)
	if err := s.publisher.Publish(ctx, notificationdomain.Event{
		OrgID:       txn.OrgID,
		Type:        notificationdomain.EventPaymentCommitRejected,
		AggregateID: txn.ID,
		Payload: map[string]any{
			"transaction_id": txn.ID.String(),
			"user_id":        txn.UserID.String(),
			"reason":         reason,
			"amount":         txn.Amount,
			"currency":       txn.Currency,
		},
	}); err != nil {
		logger.WithContext(ctx, s.log).Warn("commit rejection not recorded", zap.Error(err))
	}
}

func (s *Service) RecordDonation(ctx context.Context, transactionID snowflake.ID) error {
	txn, err := s.completedTransaction(ctx, transactionID)
	if err != nil {
		return err
	}
	if txn.ReferenceType != paymentdomain.ReferenceTypeDonation {
		return domain.ErrNotDonationPayment
	}
	intent, err := txn.Intent()
	if err != nil {
		return err
	}

	var posted bool
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		posted, err = s.ledger.PostTx(ctx, tx, ledgerdomain.PostingRequest{
			OrgID:      txn.OrgID,
			SourceType: ledgerdomain.SourceTypeDonation,
			SourceID:   txn.ID,
			Currency:   txn.Currency,
			OccurredAt: s.clock.Now(),
			Lines:      ledgerdomain.Settlement(ledgerdomain.AccountCodeDonationRevenue, txn.Amount),
		})
		if err != nil || !posted {
			return err
		}
		payload := map[string]any{
			"transaction_id": txn.ID.String(),
			"amount":         txn.Amount,
			"currency":       txn.Currency,
			"note":           intent.Donation.Note,
		}
		if !intent.Donation.Anonymous {
			payload["user_id"] = txn.UserID.String()
		}
		return s.publisher.PublishTx(ctx, tx, notificationdomain.Event{
			OrgID:       txn.OrgID,
			Type:        notificationdomain.EventDonationReceived,
			AggregateID: txn.ID,
			Payload:     payload,
		})
	})
	if err != nil {
		return err
	}
	if posted {
		logger.WithContext(ctx, s.log).Info("donation recorded",
			zap.String("transaction_id", txn.ID.String()),
			zap.Int64("amount", txn.Amount),
		)
	}
	return nil
}

func (s *Service) completedTransaction(ctx context.Context, transactionID snowflake.ID) (paymentdomain.Transaction, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return paymentdomain.Transaction{}, domain.ErrInvalidOrganization
	}
	txn, err := s.paymentRepo.FindByID(ctx, s.db, transactionID)
	if err != nil {
		return paymentdomain.Transaction{}, err
	}
	if txn == nil || txn.OrgID != orgID {
		return paymentdomain.Transaction{}, domain.ErrTransactionNotFound
	}
	if txn.Status != paymentdomain.StatusCompleted {
		return paymentdomain.Transaction{}, domain.ErrTransactionNotCompleted
	}
	return *txn, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (domain.Registration, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.Registration{}, domain.ErrInvalidOrganization
	}
	registration, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return domain.Registration{}, err
	}
	if registration == nil {
		return domain.Registration{}, domain.ErrNotFound
	}
	return s.withGuests(ctx, s.db, *registration)
}

func (s *Service) GetByTransaction(ctx context.Context, transactionID snowflake.ID) (domain.Registration, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.Registration{}, domain.ErrInvalidOrganization
	}
	registration, err := s.repo.FindBySourceTransaction(ctx, s.db, transactionID)
	if err != nil {
		return domain.Registration{}, err
	}
	if registration == nil || registration.OrgID != orgID {
		return domain.Registration{}, domain.ErrNotFound
	}
	return s.withGuests(ctx, s.db, *registration)
}

func (s *Service) ListByEvent(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.ListResponse{}, domain.ErrInvalidOrganization
	}
	if req.EventID == 0 {
		return domain.ListResponse{}, domain.ErrEventNotFound
	}

	filter := domain.ListFilter{
		OrgID:   orgID,
		EventID: req.EventID,
		Status:  domain.Status(strings.ToUpper(strings.TrimSpace(string(req.Status)))),
		Limit:   req.Limit() + 1,
	}
	if req.PageToken != "" {
		cursor, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return domain.ListResponse{}, err
		}
		beforeID, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return domain.ListResponse{}, pagination.ErrInvalidPageToken
		}
		filter.BeforeID = beforeID
	}

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return domain.ListResponse{}, err
	}
	page, info, err := pagination.BuildCursorPage(items, req.Limit(), func(r *domain.Registration) pagination.Cursor {
		return pagination.Cursor{ID: r.ID.String()}
	})
	if err != nil {
		return domain.ListResponse{}, err
	}
	if page == nil {
		page = []*domain.Registration{}
	}
	return domain.ListResponse{Registrations: page, PageInfo: info}, nil
}

func (s *Service) Cancel(ctx context.Context, id snowflake.ID, reason string) (domain.Registration, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return domain.Registration{}, err
	}
	if current.Status == domain.StatusCancelled {
		return current, nil
	}

	now := s.clock.Now()
	cancelReason := optional(reason)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Revoke first: a concurrent scan increments the same credential row,
		// so whichever commits second sees the other's effect.
		if s.revoker != nil {
			if err := s.revoker.RevokeTx(ctx, tx, current.OrgID, current.ID); err != nil {
				return err
			}
		}
		checkedIn, err := s.repo.HasCheckIn(ctx, tx, current.ID)
		if err != nil {
			return err
		}
		if checkedIn {
			return domain.ErrAlreadyCheckedIn
		}

		moved, err := s.repo.MarkCancelled(ctx, tx, current.OrgID, current.ID, cancelReason, now)
		if err != nil || !moved {
			return err
		}
		if err := s.eventRepo.ReleaseSlot(ctx, tx, current.OrgID, current.EventID); err != nil {
			return err
		}
		if fee := current.FeeAmount(); fee > 0 {
			if _, err := s.ledger.PostTx(ctx, tx, ledgerdomain.PostingRequest{
				OrgID:      current.OrgID,
				SourceType: ledgerdomain.SourceTypeRegistrationVoid,
				SourceID:   current.ID,
				Currency:   current.Currency,
				OccurredAt: now,
				Lines: []ledgerdomain.PostingLine{
					{Account: ledgerdomain.AccountCodeEventRevenue, Direction: ledgerdomain.LedgerEntryDirectionDebit, Amount: fee},
					{Account: ledgerdomain.AccountCodeRefundLiab, Direction: ledgerdomain.LedgerEntryDirectionCredit, Amount: fee},
				},
			}); err != nil {
				return err
			}
		}
		payload := map[string]any{
			"registration_id": current.ID.String(),
			"event_id":        current.EventID.String(),
			"user_id":         current.UserID.String(),
		}
		if cancelReason != nil {
			payload["reason"] = *cancelReason
		}
		return s.publisher.PublishTx(ctx, tx, notificationdomain.Event{
			OrgID:       current.OrgID,
			Type:        notificationdomain.EventRegistrationCancelled,
			AggregateID: current.ID,
			Payload:     payload,
		})
	})
	if err != nil {
		return domain.Registration{}, err
	}

	logger.WithContext(ctx, s.log).Info("registration cancelled",
		zap.String("registration_id", current.ID.String()),
	)
	return s.Get(ctx, id)
}

func (s *Service) withGuests(ctx context.Context, conn *gorm.DB, registration domain.Registration) (domain.Registration, error) {
	guests, err := s.repo.ListGuests(ctx, conn, registration.ID)
	if err != nil {
		return domain.Registration{}, err
	}
	if guests == nil {
		guests = []domain.Guest{}
	}
	registration.Guests = guests
	return registration, nil
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
