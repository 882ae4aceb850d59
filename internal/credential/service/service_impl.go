package service

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/eventpass/internal/clock"
	"github.com/smallbiznis/eventpass/internal/config"
	"github.com/smallbiznis/eventpass/internal/credential/domain"
	"github.com/smallbiznis/eventpass/internal/credential/token"
	"github.com/smallbiznis/eventpass/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/eventpass/internal/observability/metrics"
	"github.com/smallbiznis/eventpass/internal/orgcontext"
	registrationdomain "github.com/smallbiznis/eventpass/internal/registration/domain"
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
	Cfg              config.Config
	Repo             domain.Repository
	RegistrationRepo registrationdomain.Repository
	Signer           *token.Signer
	ObsMetrics       *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db               *gorm.DB
	log              *zap.Logger
	genID            *snowflake.Node
	clock            clock.Clock
	ttl              time.Duration
	repo             domain.Repository
	registrationRepo registrationdomain.Repository
	signer           *token.Signer
	obsMetrics       *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:               p.DB,
		log:              p.Log.Named("credential.service"),
		genID:            p.GenID,
		clock:            p.Clock,
		ttl:              p.Cfg.Token.TTL,
		repo:             p.Repo,
		registrationRepo: p.RegistrationRepo,
		signer:           p.Signer,
		obsMetrics:       p.ObsMetrics,
	}
}

func (s *Service) Issue(ctx context.Context, registrationID snowflake.ID) (domain.Credential, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.Credential{}, domain.ErrInvalidOrganization
	}

	registration, err := s.registrationRepo.FindByID(ctx, s.db, orgID, registrationID)
	if err != nil {
		return domain.Credential{}, err
	}
	if registration == nil || registration.Status != registrationdomain.StatusConfirmed {
		return domain.Credential{}, domain.ErrRegistrationNotConfirmed
	}

	existing, err := s.repo.FindByRegistration(ctx, s.db, registrationID)
	if err != nil {
		return domain.Credential{}, err
	}
	if existing != nil {
		return s.issued(*existing, s.clock.Now())
	}

	now := s.clock.Now()
	claims := domain.TokenClaims{
		RegistrationID: registration.ID,
		EventID:        registration.EventID,
		UserID:         registration.UserID,
		OrgID:          registration.OrgID,
		Nonce:          ulid.Make().String(),
		IssuedAt:       now,
	}
	if s.ttl > 0 {
		expiresAt := now.Add(s.ttl)
		claims.ExpiresAt = &expiresAt
	}
	signed, err := s.signer.Sign(claims)
	if err != nil {
		return domain.Credential{}, err
	}

	credential := domain.Credential{
		ID:             s.genID.Generate(),
		OrgID:          registration.OrgID,
		RegistrationID: registration.ID,
		Token:          signed,
		Nonce:          claims.Nonce,
		GeneratedAt:    now,
		ExpiresAt:      claims.ExpiresAt,
		IsActive:       true,
	}
	inserted, err := s.repo.Insert(ctx, s.db, &credential)
	if err != nil {
		return domain.Credential{}, err
	}
	if inserted {
		s.obsMetrics.RecordCredentialIssued(ctx)
		logger.WithContext(ctx, s.log).Info("qr credential issued",
			zap.String("registration_id", registration.ID.String()),
		)
		return credential, nil
	}

	// Lost the race to a concurrent issuer; hand out its token.
	stored, err := s.repo.FindByRegistration(ctx, s.db, registrationID)
	if err != nil {
		return domain.Credential{}, err
	}
	if stored == nil {
		return domain.Credential{}, domain.ErrRegistrationNotConfirmed
	}
	return s.issued(*stored, s.clock.Now())
}

// issued hands out a stored credential. An expired one is never reissued, so
// QR_TOKEN_TTL has to outlive the event.
func (s *Service) issued(credential domain.Credential, now time.Time) (domain.Credential, error) {
	if !credential.IsActive {
		return domain.Credential{}, domain.ErrTokenRevoked
	}
	if credential.ExpiresAt != nil && !now.Before(*credential.ExpiresAt) {
		return domain.Credential{}, domain.ErrTokenExpired
	}
	return credential, nil
}

func (s *Service) Decode(ctx context.Context, raw string) (domain.TokenClaims, error) {
	log := logger.WithContext(ctx, s.log)

	claims, err := s.signer.Verify(raw, s.clock.Now())
	if err != nil {
		log.Warn("qr token rejected", zap.String("reason", err.Error()))
		return domain.TokenClaims{}, err
	}

	credential, err := s.repo.FindByRegistration(ctx, s.db, claims.RegistrationID)
	if err != nil {
		return domain.TokenClaims{}, err
	}
	if credential == nil || credential.OrgID != claims.OrgID ||
		subtle.ConstantTimeCompare([]byte(credential.Token), []byte(raw)) != 1 {
		log.Warn("qr token rejected",
			zap.String("reason", "unknown_token"),
			zap.String("registration_id", claims.RegistrationID.String()),
		)
		return domain.TokenClaims{}, domain.ErrInvalidToken
	}
	if !credential.IsActive {
		log.Warn("qr token rejected",
			zap.String("reason", "revoked"),
			zap.String("registration_id", claims.RegistrationID.String()),
		)
		return domain.TokenClaims{}, domain.ErrTokenRevoked
	}
	return claims, nil
}

func (s *Service) Revoke(ctx context.Context, registrationID snowflake.ID) error {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.ErrInvalidOrganization
	}
	return s.RevokeTx(ctx, s.db, orgID, registrationID)
}

func (s *Service) RevokeTx(ctx context.Context, tx *gorm.DB, orgID, registrationID snowflake.ID) error {
	if err := s.repo.Deactivate(ctx, tx, orgID, registrationID, s.clock.Now()); err != nil {
		return err
	}
	logger.WithContext(ctx, s.log).Info("qr credential revoked",
		zap.String("registration_id", registrationID.String()),
	)
	return nil
}
