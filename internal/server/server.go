package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/eventpass/internal/authorization"
	checkindomain "github.com/smallbiznis/eventpass/internal/checkin/domain"
	"github.com/smallbiznis/eventpass/internal/config"
	credentialdomain "github.com/smallbiznis/eventpass/internal/credential/domain"
	eventdomain "github.com/smallbiznis/eventpass/internal/event/domain"
	obslogger "github.com/smallbiznis/eventpass/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/eventpass/internal/observability/metrics"
	obstracing "github.com/smallbiznis/eventpass/internal/observability/tracing"
	paymentdomain "github.com/smallbiznis/eventpass/internal/payment/domain"
	"github.com/smallbiznis/eventpass/internal/ratelimit"
	registrationdomain "github.com/smallbiznis/eventpass/internal/registration/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(log.Named("http"), obslogger.MiddlewareConfig{
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	log           *zap.Logger
	eventSvc      eventdomain.Service
	paymentSvc    paymentdomain.Service
	registrations registrationdomain.Service
	credentials   credentialdomain.Service
	checkins      checkindomain.Service
	authzSvc      authorization.Service
	scanLimiter   *ratelimit.ScanLimiter
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	Log           *zap.Logger
	EventSvc      eventdomain.Service
	PaymentSvc    paymentdomain.Service
	Registrations registrationdomain.Service
	Credentials   credentialdomain.Service
	CheckIns      checkindomain.Service
	AuthzSvc      authorization.Service
	ScanLimiter   *ratelimit.ScanLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		log:           p.Log.Named("http.server"),
		eventSvc:      p.EventSvc,
		paymentSvc:    p.PaymentSvc,
		registrations: p.Registrations,
		credentials:   p.Credentials,
		checkins:      p.CheckIns,
		authzSvc:      p.AuthzSvc,
		scanLimiter:   p.ScanLimiter,
	}

	s.registerRoutes()
	return s
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerRoutes() {
	v1 := s.engine.Group("/v1")

	// Gateway callbacks carry no tenant headers; the transaction names the org.
	v1.POST("/payments/webhooks/:provider", s.HandlePaymentWebhook)

	api := v1.Group("", OrgContext(), ActorContext())

	// -------- Events --------
	api.POST("/events", RequireActor(), s.authorizeOrgAction(authorization.ObjectEvent, authorization.ActionEventCreate), s.CreateEvent)
	api.GET("/events/:id", s.GetEvent)
	api.GET("/events/:id/registrations", RequireActor(), s.authorizeOrgAction(authorization.ObjectRegistration, authorization.ActionRegistrationView), s.ListEventRegistrations)
	api.GET("/events/:id/checkin-stats", RequireActor(), s.authorizeOrgAction(authorization.ObjectCheckIn, authorization.ActionCheckInStats), s.GetCheckInStats)

	// -------- Payments --------
	api.POST("/payments/intents", RequireActor(), s.CreatePaymentIntent)
	api.GET("/payments/:id", RequireActor(), s.GetPayment)
	api.POST("/payments/:id/verify", RequireActor(), s.VerifyPayment)

	// -------- Registrations --------
	api.GET("/registrations/:id", RequireActor(), s.GetRegistration)
	api.POST("/registrations/:id/cancel", RequireActor(), s.CancelRegistration)
	api.GET("/registrations/:id/qr", RequireActor(), s.GetRegistrationQR)
	api.GET("/registrations/:id/checkin", RequireActor(), s.authorizeOrgAction(authorization.ObjectCheckIn, authorization.ActionCheckInView), s.GetRegistrationCheckIn)

	// -------- Gate --------
	api.POST("/checkins/scan", RequireActor(), s.authorizeOrgAction(authorization.ObjectCheckIn, authorization.ActionCheckInScan), s.ScanRateLimit(), s.ScanCheckIn)

	// -------- Staff --------
	api.PUT("/staff/:user_id/roles/:role", RequireActor(), s.authorizeOrgAction(authorization.ObjectStaff, authorization.ActionStaffAssign), s.AssignStaffRole)
	api.DELETE("/staff/:user_id/roles/:role", RequireActor(), s.authorizeOrgAction(authorization.ObjectStaff, authorization.ActionStaffAssign), s.RevokeStaffRole)
}
