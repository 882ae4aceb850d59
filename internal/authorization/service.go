package authorization

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

const (
	RoleGateStaff = "gate_staff"
	RoleOrgAdmin  = "org_admin"
)

const (
	ObjectCheckIn      = "checkin"
	ObjectRegistration = "registration"
	ObjectEvent        = "event"
	ObjectStaff        = "staff"
)

const (
	ActionCheckInScan  = "checkin.scan"
	ActionCheckInStats = "checkin.stats"
	ActionCheckInView  = "checkin.view"

	ActionRegistrationView   = "registration.view"
	ActionRegistrationCancel = "registration.cancel"

	ActionEventCreate = "event.create"

	ActionStaffAssign = "staff.assign"
)

type Service interface {
	Authorize(ctx context.Context, actor string, orgID snowflake.ID, object, action string) error
	AssignRole(ctx context.Context, orgID, userID snowflake.ID, role string) error
	RevokeRole(ctx context.Context, orgID, userID snowflake.ID, role string) error
	RolesFor(ctx context.Context, orgID, userID snowflake.ID) ([]string, error)
}

var (
	ErrInvalidActor        = errors.New("invalid_actor")
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidObject       = errors.New("invalid_object")
	ErrInvalidAction       = errors.New("invalid_action")
	ErrInvalidRole         = errors.New("invalid_role")
	ErrForbidden           = errors.New("forbidden")
)
