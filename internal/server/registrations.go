package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/eventpass/internal/authorization"
)

type cancelRegistrationRequest struct {
	Reason string `json:"reason"`
}

type qrResponse struct {
	Token       string     `json:"token"`
	GeneratedAt time.Time  `json:"generated_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

func (s *Server) GetRegistration(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	registration, err := s.registrations.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.allowOwnerOr(c, registration.UserID, authorization.ObjectRegistration, authorization.ActionRegistrationView); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"registration": registration})
}

func (s *Server) CancelRegistration(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req cancelRegistrationRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	ctx := c.Request.Context()
	existing, err := s.registrations.Get(ctx, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.allowOwnerOr(c, existing.UserID, authorization.ObjectRegistration, authorization.ActionRegistrationCancel); err != nil {
		AbortWithError(c, err)
		return
	}

	registration, err := s.registrations.Cancel(ctx, id, req.Reason)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"registration": registration})
}

// GetRegistrationQR returns the registration's credential, issuing it on
// first request.
func (s *Server) GetRegistrationQR(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	registration, err := s.registrations.Get(ctx, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.allowOwnerOr(c, registration.UserID, authorization.ObjectRegistration, authorization.ActionRegistrationView); err != nil {
		AbortWithError(c, err)
		return
	}

	credential, err := s.credentials.Issue(ctx, registration.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, qrResponse{
		Token:       credential.Token,
		GeneratedAt: credential.GeneratedAt,
		ExpiresAt:   credential.ExpiresAt,
	})
}

func (s *Server) GetRegistrationCheckIn(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	record, err := s.checkins.GetByRegistration(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"check_in": record})
}
