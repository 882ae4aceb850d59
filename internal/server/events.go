package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	eventdomain "github.com/smallbiznis/eventpass/internal/event/domain"
	registrationdomain "github.com/smallbiznis/eventpass/internal/registration/domain"
	"github.com/smallbiznis/eventpass/pkg/db/pagination"
)

func (s *Server) CreateEvent(c *gin.Context) {
	var req eventdomain.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	event, err := s.eventSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"event": event})
}

func (s *Server) GetEvent(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	event, err := s.eventSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"event": event})
}

type listRegistrationsQuery struct {
	pagination.Pagination
	Status string `form:"status"`
}

func (s *Server) ListEventRegistrations(c *gin.Context) {
	eventID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var query listRegistrationsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	status := registrationdomain.Status(strings.ToUpper(strings.TrimSpace(query.Status)))
	switch status {
	case "", registrationdomain.StatusConfirmed, registrationdomain.StatusCancelled:
	default:
		AbortWithError(c, newValidationError("status", "invalid_status", "invalid status"))
		return
	}

	resp, err := s.registrations.ListByEvent(c.Request.Context(), registrationdomain.ListRequest{
		EventID:    eventID,
		Status:     status,
		Pagination: query.Pagination,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetCheckInStats(c *gin.Context) {
	eventID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	stats, err := s.checkins.Stats(c.Request.Context(), eventID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}
