package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/eventpass/internal/orgcontext"
)

func (s *Server) AssignStaffRole(c *gin.Context) {
	s.changeStaffRole(c, true)
}

func (s *Server) RevokeStaffRole(c *gin.Context) {
	s.changeStaffRole(c, false)
}

func (s *Server) changeStaffRole(c *gin.Context, assign bool) {
	userID, err := pathID(c, "user_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	role := strings.TrimSpace(c.Param("role"))

	ctx := c.Request.Context()
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		AbortWithError(c, ErrOrgRequired)
		return
	}

	if assign {
		err = s.authzSvc.AssignRole(ctx, orgID, userID, role)
	} else {
		err = s.authzSvc.RevokeRole(ctx, orgID, userID, role)
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}

	roles, err := s.authzSvc.RolesFor(ctx, orgID, userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user_id": userID.String(), "roles": roles})
}
