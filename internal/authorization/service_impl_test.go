package authorization

import (
	"context"
	"testing"

	"github.com/smallbiznis/eventpass/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newService(t *testing.T) Service {
	t.Helper()
	enforcer, err := NewEnforcer(testutil.NewDB(t))
	require.NoError(t, err)
	return NewService(Params{Log: zap.NewNop(), Enforcer: enforcer})
}

func TestGateStaffCanScanOnlyInOwnOrg(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	require.NoError(t, svc.AssignRole(ctx, 100, 7, RoleGateStaff))

	assert.NoError(t, svc.Authorize(ctx, "user:7", 100, ObjectCheckIn, ActionCheckInScan))
	assert.NoError(t, svc.Authorize(ctx, "user:7", 100, ObjectCheckIn, ActionCheckInStats))
	assert.ErrorIs(t, svc.Authorize(ctx, "user:7", 100, ObjectRegistration, ActionRegistrationCancel), ErrForbidden)
	assert.ErrorIs(t, svc.Authorize(ctx, "user:7", 101, ObjectCheckIn, ActionCheckInScan), ErrForbidden)
	assert.ErrorIs(t, svc.Authorize(ctx, "user:8", 100, ObjectCheckIn, ActionCheckInScan), ErrForbidden)
}

func TestOrgAdminAndRevocation(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	require.NoError(t, svc.AssignRole(ctx, 100, 9, RoleOrgAdmin))
	require.NoError(t, svc.AssignRole(ctx, 100, 9, RoleOrgAdmin))

	assert.NoError(t, svc.Authorize(ctx, "user:9", 100, ObjectRegistration, ActionRegistrationCancel))
	assert.NoError(t, svc.Authorize(ctx, "user:9", 100, ObjectStaff, ActionStaffAssign))

	roles, err := svc.RolesFor(ctx, 100, 9)
	require.NoError(t, err)
	assert.Equal(t, []string{RoleOrgAdmin}, roles)

	require.NoError(t, svc.RevokeRole(ctx, 100, 9, RoleOrgAdmin))
	assert.ErrorIs(t, svc.Authorize(ctx, "user:9", 100, ObjectCheckIn, ActionCheckInScan), ErrForbidden)
}

func TestAuthorizeValidatesInput(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Authorize(ctx, "", 100, ObjectCheckIn, ActionCheckInScan), ErrInvalidActor)
	assert.ErrorIs(t, svc.Authorize(ctx, "api_key:3", 100, ObjectCheckIn, ActionCheckInScan), ErrInvalidActor)
	assert.ErrorIs(t, svc.Authorize(ctx, "user:abc", 100, ObjectCheckIn, ActionCheckInScan), ErrInvalidActor)
	assert.ErrorIs(t, svc.Authorize(ctx, "user:7", 0, ObjectCheckIn, ActionCheckInScan), ErrInvalidOrganization)
	assert.ErrorIs(t, svc.Authorize(ctx, "user:7", 100, "", ActionCheckInScan), ErrInvalidObject)
	assert.ErrorIs(t, svc.Authorize(ctx, "user:7", 100, ObjectCheckIn, " "), ErrInvalidAction)
	assert.NoError(t, svc.Authorize(ctx, "system", 100, ObjectCheckIn, ActionCheckInScan))
	assert.ErrorIs(t, svc.AssignRole(ctx, 100, 7, "owner"), ErrInvalidRole)
}

func TestBootstrapAdmins(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	require.NoError(t, BootstrapAdmins(ctx, svc, []string{"100:9", " 200:10 "}))
	assert.NoError(t, svc.Authorize(ctx, "user:9", 100, ObjectEvent, ActionEventCreate))
	assert.NoError(t, svc.Authorize(ctx, "user:10", 200, ObjectEvent, ActionEventCreate))
	assert.ErrorIs(t, svc.Authorize(ctx, "user:10", 100, ObjectEvent, ActionEventCreate), ErrForbidden)

	assert.Error(t, BootstrapAdmins(ctx, svc, []string{"100"}))
	assert.Error(t, BootstrapAdmins(ctx, svc, []string{"x:9"}))
}
