package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventpass/internal/checkin/domain"
	"github.com/smallbiznis/eventpass/internal/clock"
	"github.com/smallbiznis/eventpass/internal/config"
	credentialdomain "github.com/smallbiznis/eventpass/internal/credential/domain"
	eventdomain "github.com/smallbiznis/eventpass/internal/event/domain"
	notificationdomain "github.com/smallbiznis/eventpass/internal/notification/domain"
	"github.com/smallbiznis/eventpass/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/eventpass/internal/observability/metrics"
	"github.com/smallbiznis/eventpass/internal/orgcontext"
	registrationdomain "github.com/smallbiznis/eventpass/internal/registration/domain"
	"github.com/smallbiznis/eventpass/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB               *gorm.DB
	Log              *zap.Logger
	GenID            *snowflake.Node
	Clock            clock.Clock
	Gate             *config.GateConfigHolder
	Repo             domain.Repository
	RegistrationRepo registrationdomain.Repository
	CredentialRepo   credentialdomain.Repository
	EventRepo        eventdomain.Repository
	Credentials      credentialdomain.Service
	Publisher        notificationdomain.Publisher
	Cache            domain.StatsCache    `optional:"true"`
	ObsMetrics       *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db               *gorm.DB
	log              *zap.Logger
	genID            *snowflake.Node
	clock            clock.Clock
	gate             *config.GateConfigHolder
	repo             domain.Repository
	registrationRepo registrationdomain.Repository
	credentialRepo   credentialdomain.Repository
	eventRepo        eventdomain.Repository
	credentials      credentialdomain.Service
	publisher        notificationdomain.Publisher
	cache            domain.StatsCache
	obsMetrics       *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:               p.DB,
		log:              p.Log.Named("checkin.service"),
		genID:            p.GenID,
		clock:            p.Clock,
		gate:             p.Gate,
		repo:             p.Repo,
		registrationRepo: p.RegistrationRepo,
		credentialRepo:   p.CredentialRepo,
		eventRepo:        p.EventRepo,
		credentials:      p.Credentials,
		publisher:        p.Publisher,
		cache:            p.Cache,
		obsMetrics:       p.ObsMetrics,
	}
}

func (s *Service) Scan(ctx context.Context, req domain.ScanRequest) (domain.CheckInRecord, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.CheckInRecord{}, domain.ErrInvalidOrganization
	}
	if req.StaffID == 0 {
		return domain.CheckInRecord{}, domain.ErrInvalidStaff
	}

	claims, err := s.credentials.Decode(ctx, strings.TrimSpace(req.Token))
	if err != nil {
		s.rejected(ctx, err)
		return domain.CheckInRecord{}, err
	}
	if claims.OrgID != orgID {
		s.rejected(ctx, credentialdomain.ErrInvalidToken)
		return domain.CheckInRecord{}, credentialdomain.ErrInvalidToken
	}

	registration, err := s.registrationRepo.FindByID(ctx, s.db, orgID, claims.RegistrationID)
	if err != nil {
		return domain.CheckInRecord{}, err
	}
	if registration == nil || registration.EventID != claims.EventID {
		s.rejected(ctx, credentialdomain.ErrInvalidToken)
		return domain.CheckInRecord{}, credentialdomain.ErrInvalidToken
	}
	if registration.Status != registrationdomain.StatusConfirmed {
		s.rejected(ctx, domain.ErrRegistrationNotConfirmed)
		return domain.CheckInRecord{}, domain.ErrRegistrationNotConfirmed
	}
	if req.GuestsCheckedIn < 0 || req.GuestsCheckedIn > registration.GuestCount {
		s.rejected(ctx, domain.ErrGuestCountExceeded)
		return domain.CheckInRecord{}, domain.ErrGuestCountExceeded
	}

	record := domain.CheckInRecord{
		ID:                 s.genID.Generate(),
		OrgID:              orgID,
		EventID:            registration.EventID,
		RegistrationID:     registration.ID,
		CheckedInAt:        s.clock.Now(),
		GuestsCheckedIn:    req.GuestsCheckedIn,
		TotalGuestsAllowed: registration.GuestCount,
		CheckedInByStaffID: req.StaffID,
		CheckInLocation:    optional(req.Location),
		Notes:              optional(req.Notes),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, &record); err != nil {
			return err
		}
		active, err := s.credentialRepo.IncrementScan(ctx, tx, registration.ID)
		if err != nil {
			return err
		}
		if !active {
			return credentialdomain.ErrTokenRevoked
		}
		return s.publisher.PublishTx(ctx, tx, notificationdomain.Event{
			OrgID:       orgID,
			Type:        notificationdomain.EventRegistrationCheckedIn,
			AggregateID: registration.ID,
			Payload: map[string]any{
				"event_id":          registration.EventID.String(),
				"user_id":           registration.UserID.String(),
				"guests_checked_in": record.GuestsCheckedIn,
				"staff_id":          record.CheckedInByStaffID.String(),
				"checked_in_at":     record.CheckedInAt,
			},
		})
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return s.alreadyCheckedIn(ctx, orgID, registration.ID)
		}
		if errors.Is(err, credentialdomain.ErrTokenRevoked) {
			s.rejected(ctx, err)
		}
		return domain.CheckInRecord{}, err
	}

	s.obsMetrics.RecordCheckIn(ctx)
	s.invalidate(ctx, orgID, registration.EventID)
	logger.WithContext(ctx, s.log).Info("guest checked in",
		zap.String("registration_id", registration.ID.String()),
		zap.String("event_id", registration.EventID.String()),
		zap.Int("guests_checked_in", record.GuestsCheckedIn),
		zap.String("staff_id", req.StaffID.String()),
	)
	return record, nil
}

func (s *Service) alreadyCheckedIn(ctx context.Context, orgID, registrationID snowflake.ID) (domain.CheckInRecord, error) {
	existing, err := s.repo.FindByRegistration(ctx, s.db, orgID, registrationID)
	if err != nil {
		return domain.CheckInRecord{}, err
	}
	if existing == nil {
		return domain.CheckInRecord{}, domain.ErrAlreadyCheckedIn
	}
	s.rejected(ctx, domain.ErrAlreadyCheckedIn)
	return domain.CheckInRecord{}, &domain.AlreadyCheckedInError{Record: *existing}
}

func (s *Service) rejected(ctx context.Context, err error) {
	s.obsMetrics.RecordScanRejected(ctx, rejectionReason(err))
}

// rejectionReason keeps the metric label set closed.
func rejectionReason(err error) string {
	for _, known := range []error{
		credentialdomain.ErrInvalidToken,
		credentialdomain.ErrTokenRevoked,
		credentialdomain.ErrTokenExpired,
		domain.ErrRegistrationNotConfirmed,
		domain.ErrGuestCountExceeded,
		domain.ErrAlreadyCheckedIn,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "internal"
}

func (s *Service) Stats(ctx context.Context, eventID snowflake.ID) (domain.Stats, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.Stats{}, domain.ErrInvalidOrganization
	}
	log := logger.WithContext(ctx, s.log)

	ttl := s.gate.Get().StatsCacheTTL
	if s.cache != nil && ttl > 0 {
		cached, err := s.cache.Get(ctx, orgID, eventID)
		if err != nil {
			log.Warn("stats cache read failed", zap.Error(err))
		} else if cached != nil {
			return *cached, nil
		}
	}

	event, err := s.eventRepo.FindByID(ctx, s.db, orgID, eventID)
	if err != nil {
		return domain.Stats{}, err
	}
	if event == nil {
		return domain.Stats{}, domain.ErrEventNotFound
	}

	stats, err := s.repo.Stats(ctx, s.db, orgID, eventID)
	if err != nil {
		return domain.Stats{}, err
	}
	if s.cache != nil && ttl > 0 {
		if err := s.cache.Set(ctx, orgID, eventID, stats, ttl); err != nil {
			log.Warn("stats cache write failed", zap.Error(err))
		}
	}
	return stats, nil
}

func (s *Service) invalidate(ctx context.Context, orgID, eventID snowflake.ID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, orgID, eventID); err != nil {
		logger.WithContext(ctx, s.log).Warn("stats cache invalidate failed", zap.Error(err))
	}
}

func (s *Service) GetByRegistration(ctx context.Context, registrationID snowflake.ID) (domain.CheckInRecord, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.CheckInRecord{}, domain.ErrInvalidOrganization
	}
	record, err := s.repo.FindByRegistration(ctx, s.db, orgID, registrationID)
	if err != nil {
		return domain.CheckInRecord{}, err
	}
	if record == nil {
		return domain.CheckInRecord{}, domain.ErrNotCheckedIn
	}
	return *record, nil
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
