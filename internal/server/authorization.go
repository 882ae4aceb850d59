package server

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/eventpass/internal/orgcontext"
)

func (s *Server) authorizeOrgAction(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.authorizeOrgActionWithContext(c, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func (s *Server) authorizeOrgActionWithContext(c *gin.Context, object string, action string) error {
	ctx := c.Request.Context()
	actorID, ok := orgcontext.ActorIDFromContext(ctx)
	if !ok {
		return ErrUnauthorized
	}
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return ErrOrgRequired
	}
	if s.authzSvc == nil {
		return ErrForbidden
	}
	return s.authzSvc.Authorize(ctx, actorSubject(actorID), orgID, strings.TrimSpace(object), strings.TrimSpace(action))
}

// allowOwnerOr admits the resource owner, otherwise falls back to RBAC.
func (s *Server) allowOwnerOr(c *gin.Context, ownerID snowflake.ID, object string, action string) error {
	actorID, ok := orgcontext.ActorIDFromContext(c.Request.Context())
	if !ok {
		return ErrUnauthorized
	}
	if actorID == ownerID {
		return nil
	}
	return s.authorizeOrgActionWithContext(c, object, action)
}

func actorSubject(actorID snowflake.ID) string {
	return fmt.Sprintf("user:%s", actorID)
}
