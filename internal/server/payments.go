package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/eventpass/internal/orgcontext"
	paymentdomain "github.com/smallbiznis/eventpass/internal/payment/domain"
	registrationdomain "github.com/smallbiznis/eventpass/internal/registration/domain"
)

const maxWebhookBody = 1 << 20

type createPaymentIntentRequest struct {
	ReferenceType string               `json:"reference_type"`
	ReferenceID   string               `json:"reference_id"`
	Amount        *int64               `json:"amount"`
	Currency      string               `json:"currency"`
	Intent        paymentdomain.Intent `json:"intent"`
}

type verifyPaymentRequest struct {
	GatewayOrderID   string `json:"gateway_order_id"`
	GatewayPaymentID string `json:"gateway_payment_id"`
	GatewaySignature string `json:"gateway_signature"`
}

type verifyPaymentResponse struct {
	Transaction  paymentdomain.Transaction        `json:"transaction"`
	Registration *registrationdomain.Registration `json:"registration,omitempty"`
}

func (s *Server) CreatePaymentIntent(c *gin.Context) {
	var req createPaymentIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	referenceID, err := parseOptionalSnowflakeID(req.ReferenceID)
	if err != nil {
		AbortWithError(c, newValidationError("reference_id", "invalid_reference_id", "invalid reference id"))
		return
	}

	ctx := c.Request.Context()
	userID, _ := orgcontext.ActorIDFromContext(ctx)
	initiate := paymentdomain.InitiateRequest{
		UserID:        userID,
		ReferenceType: paymentdomain.ReferenceType(strings.ToUpper(strings.TrimSpace(req.ReferenceType))),
		Amount:        req.Amount,
		Currency:      req.Currency,
		Intent:        req.Intent,
	}
	if referenceID != nil {
		initiate.ReferenceID = *referenceID
	}

	txn, err := s.paymentSvc.Initiate(ctx, initiate)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"transaction": txn})
}

func (s *Server) GetPayment(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	txn, err := s.paymentSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.allowOwnerOr(c, txn.UserID, "registration", "registration.view"); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": txn})
}

func (s *Server) VerifyPayment(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req verifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ctx := c.Request.Context()
	owned, err := s.paymentSvc.Get(ctx, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.allowOwnerOr(c, owned.UserID, "registration", "registration.view"); err != nil {
		AbortWithError(c, err)
		return
	}

	txn, err := s.paymentSvc.Verify(ctx, paymentdomain.VerifyRequest{
		TransactionID:    id,
		GatewayOrderID:   req.GatewayOrderID,
		GatewayPaymentID: req.GatewayPaymentID,
		GatewaySignature: req.GatewaySignature,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := verifyPaymentResponse{Transaction: txn}
	if txn.ReferenceType == paymentdomain.ReferenceTypeEventPayment {
		registration, err := s.registrations.GetByTransaction(ctx, txn.ID)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		resp.Registration = &registration
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) HandlePaymentWebhook(c *gin.Context) {
	provider := strings.TrimSpace(c.Param("provider"))
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	_, err = s.paymentSvc.HandleWebhook(c.Request.Context(), provider, payload, c.Request.Header)
	if err != nil {
		switch {
		case errors.Is(err, paymentdomain.ErrEventIgnored),
			errors.Is(err, paymentdomain.ErrSignatureMismatch),
			errors.Is(err, paymentdomain.ErrPaymentFailed),
			errors.Is(err, paymentdomain.ErrTransactionExpired):
			// Settled outcomes; acknowledging stops gateway retries.
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
