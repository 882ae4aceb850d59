package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventpass/internal/clock"
	obsmetrics "github.com/smallbiznis/eventpass/internal/observability/metrics"
	"github.com/smallbiznis/eventpass/internal/orgcontext"
	paymentdomain "github.com/smallbiznis/eventpass/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	JobPaymentExpiry = "payment_expiry"

	ReasonReconciliationTimeout = "reconciliation_timeout"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Payments paymentdomain.Service
	GenID    *snowflake.Node
	Clock    clock.Clock
	Config   Config                       `optional:"true"`
	Metrics  *obsmetrics.SchedulerMetrics `optional:"true"`
}

// Scheduler runs reconciliation sweeps. Every job goes through the same
// conditional transitions as request traffic, so replicas may overlap safely.
type Scheduler struct {
	db       *gorm.DB
	log      *zap.Logger
	cfg      Config
	genID    *snowflake.Node
	clock    clock.Clock
	payments paymentdomain.Service
	metrics  *obsmetrics.SchedulerMetrics
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.Payments == nil || p.GenID == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:       p.DB,
		log:      p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:      p.Config.withDefaults(),
		genID:    p.GenID,
		clock:    p.Clock,
		payments: p.Payments,
		metrics:  p.Metrics,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run := s.startJobRun(ctx, name, batchSize)
	s.logJobStart(ctx, run)
	s.metrics.IncJobRun(name)

	err := fn(ctx)
	s.metrics.ObserveJobDuration(name, time.Since(start))
	s.metrics.AddProcessed(name, run.processedCount)
	if err != nil && run.errorCount == 0 {
		run.IncError()
	}
	s.logJobFinish(ctx, run)
	if err == nil {
		return nil
	}

	s.metrics.IncJobError(name, err)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		// Soft timeout: the next tick picks up the remainder.
		s.metrics.IncJobTimeout(name)
		s.logger(ctx).Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name    string
		Enabled bool
		Run     func(context.Context) error
	}{
		{JobPaymentExpiry, s.cfg.PaymentExpireAfter > 0, func(ctx context.Context) error {
			return s.runJob(ctx, JobPaymentExpiry, s.cfg.BatchSize, s.cfg.JobTimeout, s.PaymentExpiryJob)
		}},
	}

	for _, job := range jobs {
		if job.Enabled {
			err = errors.Join(err, job.Run(parent))
		}
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// PaymentExpiryJob expires one batch of INITIATED transactions older than the
// configured window. Rows already settled by a late verify are skipped by
// Expire itself.
func (s *Scheduler) PaymentExpiryJob(ctx context.Context) error {
	run := jobRunFromContext(ctx)
	cutoff := s.clock.Now().Add(-s.cfg.PaymentExpireAfter)

	stale, err := s.fetchStaleTransactions(ctx, cutoff, s.cfg.BatchSize)
	if err != nil {
		return err
	}

	var jobErr error
	for _, row := range stale {
		if err := ctx.Err(); err != nil {
			return errors.Join(jobErr, err)
		}
		orgCtx := orgcontext.WithOrgID(ctx, row.OrgID.Int64())
		txn, err := s.payments.Expire(orgCtx, row.ID, ReasonReconciliationTimeout)
		if err != nil {
			s.logSchedulerError(orgCtx, run, "expire payment failed", JobPaymentExpiry, err,
				zap.String("transaction_id", row.ID.String()),
			)
			jobErr = errors.Join(jobErr, err)
			continue
		}
		run.AddProcessed(1)
		s.logger(orgCtx).Info("payment expired",
			zap.String("transaction_id", txn.ID.String()),
			zap.String("status", string(txn.Status)),
		)
	}
	return jobErr
}
