package server

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	checkindomain "github.com/smallbiznis/eventpass/internal/checkin/domain"
	"github.com/smallbiznis/eventpass/internal/orgcontext"
	"go.uber.org/zap"
)

type scanRequest struct {
	Token           string `json:"token"`
	GuestsCheckedIn int    `json:"guests_checked_in"`
	CheckInLocation string `json:"check_in_location"`
	Notes           string `json:"notes"`
}

type scanResponse struct {
	RegistrationID     string    `json:"registration_id"`
	CheckedInAt        time.Time `json:"checked_in_at"`
	GuestsCheckedIn    int       `json:"guests_checked_in"`
	TotalGuestsAllowed int       `json:"total_guests_allowed"`
	CheckInLocation    *string   `json:"check_in_location,omitempty"`
}

// ScanRateLimit throttles scans per gate operator. Redis failures admit the
// scan so the door keeps moving.
func (s *Server) ScanRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.scanLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		orgID, _ := orgcontext.OrgIDFromContext(ctx)
		staffID, _ := orgcontext.ActorIDFromContext(ctx)

		result, err := s.scanLimiter.Allow(ctx, orgID, staffID)
		if err != nil {
			s.log.Warn("scan rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}
		if result == nil || result.Allowed {
			c.Next()
			return
		}

		seconds := int(math.Ceil(result.RetryAfter.Seconds()))
		if seconds < 1 {
			seconds = 1
		}
		c.Header("Retry-After", strconv.Itoa(seconds))
		AbortWithError(c, ErrRateLimited)
	}
}

func (s *Server) ScanCheckIn(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ctx := c.Request.Context()
	staffID, ok := orgcontext.ActorIDFromContext(ctx)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	record, err := s.checkins.Scan(ctx, checkindomain.ScanRequest{
		Token:           req.Token,
		GuestsCheckedIn: req.GuestsCheckedIn,
		Location:        req.CheckInLocation,
		StaffID:         staffID,
		Notes:           req.Notes,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, scanResponse{
		RegistrationID:     record.RegistrationID.String(),
		CheckedInAt:        record.CheckedInAt,
		GuestsCheckedIn:    record.GuestsCheckedIn,
		TotalGuestsAllowed: record.TotalGuestsAllowed,
		CheckInLocation:    record.CheckInLocation,
	})
}
