package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventpass/internal/clock"
	eventdomain "github.com/smallbiznis/eventpass/internal/event/domain"
	notificationdomain "github.com/smallbiznis/eventpass/internal/notification/domain"
	"github.com/smallbiznis/eventpass/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/eventpass/internal/observability/metrics"
	"github.com/smallbiznis/eventpass/internal/orgcontext"
	paymentdomain "github.com/smallbiznis/eventpass/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       paymentdomain.Repository
	EventRepo  eventdomain.Repository
	Gateway    paymentdomain.Gateway
	Publisher  notificationdomain.Publisher
	Completion paymentdomain.CompletionHandler `optional:"true"`
	ObsMetrics *obsmetrics.Metrics             `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       paymentdomain.Repository
	eventRepo  eventdomain.Repository
	gateway    paymentdomain.Gateway
	publisher  notificationdomain.Publisher
	completion paymentdomain.CompletionHandler
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) paymentdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payment.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		eventRepo:  p.EventRepo,
		gateway:    p.Gateway,
		publisher:  p.Publisher,
		completion: p.Completion,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) Initiate(ctx context.Context, req paymentdomain.InitiateRequest) (paymentdomain.Transaction, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return paymentdomain.Transaction{}, paymentdomain.ErrInvalidOrganization
	}
	if req.UserID == 0 {
		return paymentdomain.Transaction{}, paymentdomain.ErrInvalidUser
	}
	if err := req.Intent.Validate(req.ReferenceType); err != nil {
		return paymentdomain.Transaction{}, err
	}

	referenceID, amount, currency, err := s.price(ctx, orgID, req)
	if err != nil {
		return paymentdomain.Transaction{}, err
	}

	intent, err := json.Marshal(req.Intent)
	if err != nil {
		return paymentdomain.Transaction{}, err
	}

	// The id doubles as the gateway receipt so a webhook can find the row
	// even before the client returns from checkout.
	txnID := s.genID.Generate()
	order, err := s.gateway.CreateOrder(ctx, paymentdomain.CreateOrderRequest{
		Receipt:  txnID.String(),
		Amount:   amount,
		Currency: currency,
		Notes: map[string]string{
			"reference_type": string(req.ReferenceType),
			"reference_id":   referenceID.String(),
		},
	})
	if err != nil {
		logger.WithContext(ctx, s.log).Warn("gateway order failed",
			zap.String("provider", s.gateway.Provider()),
			zap.String("transaction_id", txnID.String()),
			zap.Error(err),
		)
		if errors.Is(err, paymentdomain.ErrGatewayUnavailable) {
			return paymentdomain.Transaction{}, err
		}
		return paymentdomain.Transaction{}, fmt.Errorf("%w: %v", paymentdomain.ErrGatewayUnavailable, err)
	}

	now := s.clock.Now()
	txn := paymentdomain.Transaction{
		ID:                 txnID,
		OrgID:              orgID,
		ReferenceType:      req.ReferenceType,
		ReferenceID:        referenceID,
		UserID:             req.UserID,
		Amount:             amount,
		Currency:           currency,
		Status:             paymentdomain.StatusInitiated,
		Provider:           s.gateway.Provider(),
		GatewayOrderID:     order.OrderID,
		RegistrationIntent: datatypes.JSON(intent),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.repo.Insert(ctx, s.db, &txn); err != nil {
		return paymentdomain.Transaction{}, err
	}

	logger.WithContext(ctx, s.log).Info("payment initiated",
		zap.String("transaction_id", txn.ID.String()),
		zap.String("gateway_order_id", txn.GatewayOrderID),
		zap.Int64("amount", txn.Amount),
		zap.String("currency", txn.Currency),
	)
	return txn, nil
}

// price resolves the reference and the amount to charge. Event payments are
// always priced on the server.
func (s *Service) price(ctx context.Context, orgID snowflake.ID, req paymentdomain.InitiateRequest) (snowflake.ID, int64, string, error) {
	switch req.ReferenceType {
	case paymentdomain.ReferenceTypeEventPayment:
		intent := req.Intent.Event
		if req.ReferenceID != 0 && req.ReferenceID != intent.EventID {
			return 0, 0, "", paymentdomain.ErrInvalidIntent
		}
		event, err := s.eventRepo.FindByID(ctx, s.db, orgID, intent.EventID)
		if err != nil {
			return 0, 0, "", err
		}
		if event == nil {
			return 0, 0, "", paymentdomain.ErrEventNotFound
		}
		if currency := normalizeCurrency(req.Currency); currency != "" && currency != event.Currency {
			return 0, 0, "", paymentdomain.ErrInvalidCurrency
		}
		amount := event.AmountDue(intent.GuestCount(), intent.DonationAmount)
		if amount <= 0 {
			return 0, 0, "", paymentdomain.ErrInvalidAmount
		}
		if req.Amount != nil && *req.Amount != amount {
			return 0, 0, "", paymentdomain.ErrAmountMismatch
		}
		return event.ID, amount, event.Currency, nil

	case paymentdomain.ReferenceTypeDonation:
		if req.Amount == nil || *req.Amount <= 0 {
			return 0, 0, "", paymentdomain.ErrInvalidAmount
		}
		currency := normalizeCurrency(req.Currency)
		if len(currency) != 3 {
			return 0, 0, "", paymentdomain.ErrInvalidCurrency
		}
		referenceID := req.ReferenceID
		if referenceID == 0 {
			referenceID = orgID
		}
		return referenceID, *req.Amount, currency, nil

	default:
		return 0, 0, "", paymentdomain.ErrInvalidReferenceType
	}
}

func (s *Service) Verify(ctx context.Context, req paymentdomain.VerifyRequest) (paymentdomain.Transaction, error) {
	txn, err := s.load(ctx, req.TransactionID)
	if err != nil {
		return paymentdomain.Transaction{}, err
	}
	if txn.Status != paymentdomain.StatusInitiated {
		return s.settled(ctx, txn, req)
	}
	if txn.Provider != s.gateway.Provider() {
		return txn, paymentdomain.ErrProviderNotFound
	}

	req.GatewayOrderID = strings.TrimSpace(req.GatewayOrderID)
	req.GatewayPaymentID = strings.TrimSpace(req.GatewayPaymentID)
	req.GatewaySignature = strings.TrimSpace(req.GatewaySignature)

	now := s.clock.Now()
	if !s.authentic(txn, req) {
		reason := paymentdomain.FailureReasonSignatureMismatch
		moved, err := s.fail(ctx, txn, paymentdomain.Transition{
			To:               paymentdomain.StatusFailed,
			GatewayPaymentID: optional(req.GatewayPaymentID),
			GatewaySignature: optional(req.GatewaySignature),
			FailureReason:    &reason,
			At:               now,
		})
		if err != nil {
			return paymentdomain.Transaction{}, err
		}
		if moved {
			logger.WithContext(ctx, s.log).Warn("payment signature mismatch",
				zap.String("transaction_id", txn.ID.String()),
				zap.String("gateway_order_id", req.GatewayOrderID),
			)
			s.obsMetrics.RecordPaymentVerification(ctx, txn.Provider, "signature_mismatch")
		}
		return s.reload(ctx, txn.ID, req)
	}

	moved, err := s.repo.TransitionFromInitiated(ctx, s.db, txn.ID, paymentdomain.Transition{
		To:               paymentdomain.StatusCompleted,
		GatewayPaymentID: &req.GatewayPaymentID,
		GatewaySignature: &req.GatewaySignature,
		At:               now,
	})
	if err != nil {
		return paymentdomain.Transaction{}, err
	}
	if moved {
		logger.WithContext(ctx, s.log).Info("payment completed",
			zap.String("transaction_id", txn.ID.String()),
			zap.String("gateway_payment_id", req.GatewayPaymentID),
		)
		s.obsMetrics.RecordPaymentVerification(ctx, txn.Provider, "completed")
	}
	return s.reload(ctx, txn.ID, req)
}

// reload re-reads after a conditional transition; whoever won, the stored
// terminal state decides the answer.
func (s *Service) reload(ctx context.Context, id snowflake.ID, req paymentdomain.VerifyRequest) (paymentdomain.Transaction, error) {
	txn, err := s.load(ctx, id)
	if err != nil {
		return paymentdomain.Transaction{}, err
	}
	return s.settled(ctx, txn, req)
}

func (s *Service) settled(ctx context.Context, txn paymentdomain.Transaction, req paymentdomain.VerifyRequest) (paymentdomain.Transaction, error) {
	switch txn.Status {
	case paymentdomain.StatusCompleted:
		// A replay must carry the same proof; a forged one gets nothing but
		// also changes nothing.
		if !s.authentic(txn, req) {
			return txn, paymentdomain.ErrSignatureMismatch
		}
		return txn, s.complete(ctx, txn)
	case paymentdomain.StatusFailed:
		if txn.FailureReason != nil && *txn.FailureReason == paymentdomain.FailureReasonSignatureMismatch {
			return txn, paymentdomain.ErrSignatureMismatch
		}
		return txn, paymentdomain.ErrPaymentFailed
	case paymentdomain.StatusExpired:
		return txn, paymentdomain.ErrTransactionExpired
	default:
		return txn, fmt.Errorf("transaction %s still %s after transition", txn.ID, txn.Status)
	}
}

func (s *Service) authentic(txn paymentdomain.Transaction, req paymentdomain.VerifyRequest) bool {
	orderID := strings.TrimSpace(req.GatewayOrderID)
	paymentID := strings.TrimSpace(req.GatewayPaymentID)
	if orderID != txn.GatewayOrderID || paymentID == "" {
		return false
	}
	if txn.GatewayPaymentID != nil && *txn.GatewayPaymentID != paymentID {
		return false
	}
	return s.gateway.VerifyPaymentSignature(txn.GatewayOrderID, paymentID, strings.TrimSpace(req.GatewaySignature))
}

func (s *Service) complete(ctx context.Context, txn paymentdomain.Transaction) error {
	if s.completion == nil {
		return nil
	}
	if err := s.completion.OnCompleted(ctx, txn); err != nil {
		logger.WithContext(ctx, s.log).Warn("completion handler rejected payment",
			zap.String("transaction_id", txn.ID.String()),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// fail moves an INITIATED transaction to FAILED and records payment.failed in
// the same database transaction.
func (s *Service) fail(ctx context.Context, txn paymentdomain.Transaction, t paymentdomain.Transition) (bool, error) {
	var moved bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		moved, err = s.repo.TransitionFromInitiated(ctx, tx, txn.ID, t)
		if err != nil || !moved {
			return err
		}
		payload := map[string]any{
			"transaction_id": txn.ID.String(),
			"user_id":        txn.UserID.String(),
			"reference_type": string(txn.ReferenceType),
			"reference_id":   txn.ReferenceID.String(),
			"amount":         txn.Amount,
			"currency":       txn.Currency,
		}
		if t.FailureReason != nil {
			payload["failure_reason"] = *t.FailureReason
		}
		return s.publisher.PublishTx(ctx, tx, notificationdomain.Event{
			OrgID:       txn.OrgID,
			Type:        notificationdomain.EventPaymentFailed,
			AggregateID: txn.ID,
			Payload:     payload,
		})
	})
	return moved, err
}

func (s *Service) Expire(ctx context.Context, id snowflake.ID, reason string) (paymentdomain.Transaction, error) {
	txn, err := s.load(ctx, id)
	if err != nil {
		return paymentdomain.Transaction{}, err
	}
	if txn.Status.Terminal() {
		return txn, nil
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "expired"
	}
	moved, err := s.repo.TransitionFromInitiated(ctx, s.db, id, paymentdomain.Transition{
		To:            paymentdomain.StatusExpired,
		FailureReason: &reason,
		At:            s.clock.Now(),
	})
	if err != nil {
		return paymentdomain.Transaction{}, err
	}
	if moved {
		logger.WithContext(ctx, s.log).Info("payment expired",
			zap.String("transaction_id", id.String()),
			zap.String("reason", reason),
		)
		s.obsMetrics.RecordPaymentVerification(ctx, txn.Provider, "expired")
	}
	return s.load(ctx, id)
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (paymentdomain.Transaction, error) {
	return s.load(ctx, id)
}

func (s *Service) HandleWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) (paymentdomain.Transaction, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider != s.gateway.Provider() {
		return paymentdomain.Transaction{}, paymentdomain.ErrProviderNotFound
	}

	callback, err := s.gateway.ParseWebhook(ctx, payload, headers)
	if err != nil {
		if errors.Is(err, paymentdomain.ErrInvalidWebhookSignature) {
			logger.WithContext(ctx, s.log).Warn("webhook signature rejected", zap.String("provider", provider))
		}
		return paymentdomain.Transaction{}, err
	}

	var found *paymentdomain.Transaction
	if callback.TransactionID != 0 {
		found, err = s.repo.FindByID(ctx, s.db, callback.TransactionID)
	} else {
		found, err = s.repo.FindByGatewayOrderID(ctx, s.db, callback.GatewayOrderID)
	}
	if err != nil {
		return paymentdomain.Transaction{}, err
	}
	if found == nil {
		return paymentdomain.Transaction{}, paymentdomain.ErrTransactionNotFound
	}

	// Gateways do not know tenants; the stored row does.
	ctx = orgcontext.WithOrgID(ctx, found.OrgID.Int64())

	if callback.Outcome == paymentdomain.CallbackFailed {
		reason := strings.TrimSpace(callback.FailureReason)
		if reason == "" {
			reason = paymentdomain.FailureReasonGatewayDeclined
		}
		moved, err := s.fail(ctx, *found, paymentdomain.Transition{
			To:               paymentdomain.StatusFailed,
			GatewayPaymentID: optional(callback.GatewayPaymentID),
			FailureReason:    &reason,
			At:               s.clock.Now(),
		})
		if err != nil {
			return paymentdomain.Transaction{}, err
		}
		if moved {
			s.obsMetrics.RecordPaymentVerification(ctx, found.Provider, "failed")
		}
		return s.load(ctx, found.ID)
	}

	return s.Verify(ctx, paymentdomain.VerifyRequest{
		TransactionID:    found.ID,
		GatewayOrderID:   callback.GatewayOrderID,
		GatewayPaymentID: callback.GatewayPaymentID,
		GatewaySignature: callback.GatewaySignature,
	})
}

func (s *Service) load(ctx context.Context, id snowflake.ID) (paymentdomain.Transaction, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return paymentdomain.Transaction{}, paymentdomain.ErrInvalidOrganization
	}
	txn, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return paymentdomain.Transaction{}, err
	}
	if txn == nil || txn.OrgID != orgID {
		return paymentdomain.Transaction{}, paymentdomain.ErrTransactionNotFound
	}
	return *txn, nil
}

func normalizeCurrency(value string) string {
	return strings.ToUpper(strings.TrimSpace(value))
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
