package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/eventpass/internal/clock"
	"github.com/smallbiznis/eventpass/internal/event/domain"
	"github.com/smallbiznis/eventpass/internal/orgcontext"
	"github.com/smallbiznis/eventpass/pkg/db"
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
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("event.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateEventRequest) (domain.Event, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.Event{}, domain.ErrInvalidOrganization
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Event{}, domain.ErrInvalidName
	}
	if req.Fee < 0 || req.GuestFee < 0 {
		return domain.Event{}, domain.ErrInvalidFee
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if len(currency) != 3 {
		return domain.Event{}, domain.ErrInvalidCurrency
	}
	if req.MaxCapacity != nil && *req.MaxCapacity < 0 {
		return domain.Event{}, domain.ErrInvalidCapacity
	}
	if req.StartsAt.IsZero() {
		return domain.Event{}, domain.ErrInvalidStartsAt
	}

	now := s.clock.Now()
	event := domain.Event{
		ID:          s.genID.Generate(),
		OrgID:       orgID,
		Name:        name,
		Slug:        slug.Make(name),
		Fee:         req.Fee,
		GuestFee:    req.GuestFee,
		Currency:    currency,
		MaxCapacity: req.MaxCapacity,
		StartsAt:    req.StartsAt.UTC(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.repo.Insert(ctx, s.db, &event)
	if db.IsDuplicateKeyErr(err) {
		// Same name reused inside the org; disambiguate with the id.
		event.Slug = fmt.Sprintf("%s-%s", event.Slug, event.ID.Base36())
		err = s.repo.Insert(ctx, s.db, &event)
	}
	if err != nil {
		return domain.Event{}, fmt.Errorf("insert event: %w", err)
	}

	s.log.Info("event created",
		zap.String("event_id", event.ID.String()),
		zap.String("slug", event.Slug),
	)
	return event, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (domain.Event, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.Event{}, domain.ErrInvalidOrganization
	}

	event, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return domain.Event{}, err
	}
	if event == nil {
		return domain.Event{}, domain.ErrNotFound
	}
	return *event, nil
}
