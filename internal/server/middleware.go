package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/eventpass/internal/orgcontext"
)

const (
	HeaderOrg   = "X-Org-ID"
	HeaderUser  = "X-User-ID"
	HeaderStaff = "X-Staff-ID"
)

// OrgContext requires X-Org-ID and scopes the request context to it.
func OrgContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID, err := parseHeaderID(c.GetHeader(HeaderOrg))
		if err != nil {
			AbortWithError(c, ErrOrgRequired)
			return
		}
		c.Request = c.Request.WithContext(orgcontext.WithOrgID(c.Request.Context(), orgID.Int64()))
		c.Next()
	}
}

// ActorContext resolves the caller from X-User-ID, falling back to the gate
// device header X-Staff-ID. Requests without either stay anonymous.
func ActorContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderUser))
		if raw == "" {
			raw = strings.TrimSpace(c.GetHeader(HeaderStaff))
		}
		if raw == "" {
			c.Next()
			return
		}
		actorID, err := parseHeaderID(raw)
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Request = c.Request.WithContext(orgcontext.WithActorID(c.Request.Context(), actorID.Int64()))
		c.Next()
	}
}

func RequireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := orgcontext.ActorIDFromContext(c.Request.Context()); !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Next()
	}
}

func parseHeaderID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id <= 0 {
		return 0, ErrInvalidRequest
	}
	return id, nil
}
