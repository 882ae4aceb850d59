package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/smallbiznis/eventpass/internal/config"
	"github.com/smallbiznis/eventpass/internal/observability/logger"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const actorSystem = "system"

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

// NewEnforcer stores policies and role assignments in casbin_rule through the
// gorm adapter.
func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

// Authorize accepts "system" or "user:<id>" actors.
func (s *ServiceImpl) Authorize(ctx context.Context, actor string, orgID snowflake.ID, object, action string) error {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return ErrInvalidActor
	}
	if orgID == 0 {
		return ErrInvalidOrganization
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	if actor == actorSystem {
		return nil
	}
	subject, err := parseSubject(actor)
	if err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, domainFor(orgID), object, action)
	if err != nil {
		return err
	}
	if !allowed {
		logger.WithContext(ctx, s.log).Warn("authorization denied",
			zap.String("subject", subject),
			zap.String("org_id", orgID.String()),
			zap.String("object", object),
			zap.String("action", action),
		)
		return ErrForbidden
	}
	return nil
}

func (s *ServiceImpl) AssignRole(ctx context.Context, orgID, userID snowflake.ID, role string) error {
	roleName, err := roleFor(role)
	if err != nil {
		return err
	}
	if orgID == 0 {
		return ErrInvalidOrganization
	}
	if userID == 0 {
		return ErrInvalidActor
	}

	subject := subjectFor(userID)
	has, err := s.enforcer.HasGroupingPolicy(subject, roleName, domainFor(orgID))
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	if _, err := s.enforcer.AddGroupingPolicy(subject, roleName, domainFor(orgID)); err != nil {
		return err
	}
	logger.WithContext(ctx, s.log).Info("role assigned",
		zap.String("subject", subject),
		zap.String("org_id", orgID.String()),
		zap.String("role", role),
	)
	return nil
}

func (s *ServiceImpl) RevokeRole(ctx context.Context, orgID, userID snowflake.ID, role string) error {
	roleName, err := roleFor(role)
	if err != nil {
		return err
	}
	removed, err := s.enforcer.RemoveGroupingPolicy(subjectFor(userID), roleName, domainFor(orgID))
	if err != nil {
		return err
	}
	if removed {
		logger.WithContext(ctx, s.log).Info("role revoked",
			zap.String("subject", subjectFor(userID)),
			zap.String("org_id", orgID.String()),
			zap.String("role", role),
		)
	}
	return nil
}

func (s *ServiceImpl) RolesFor(_ context.Context, orgID, userID snowflake.ID) ([]string, error) {
	rules, err := s.enforcer.GetFilteredGroupingPolicy(0, subjectFor(userID), "", domainFor(orgID))
	if err != nil {
		return nil, err
	}
	roles := make([]string, 0, len(rules))
	for _, rule := range rules {
		if len(rule) < 2 {
			continue
		}
		roles = append(roles, strings.TrimPrefix(rule[1], "role:"))
	}
	return roles, nil
}

// BootstrapAdmins grants org_admin to every "<org id>:<user id>" pair.
func BootstrapAdmins(ctx context.Context, svc Service, pairs []string) error {
	for _, pair := range pairs {
		orgRaw, userRaw, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok {
			return fmt.Errorf("invalid bootstrap admin %q", pair)
		}
		orgID, err := snowflake.ParseString(strings.TrimSpace(orgRaw))
		if err != nil || orgID == 0 {
			return fmt.Errorf("invalid bootstrap admin org %q", pair)
		}
		userID, err := snowflake.ParseString(strings.TrimSpace(userRaw))
		if err != nil || userID == 0 {
			return fmt.Errorf("invalid bootstrap admin user %q", pair)
		}
		if err := svc.AssignRole(ctx, orgID, userID, RoleOrgAdmin); err != nil {
			return err
		}
	}
	return nil
}

func registerBootstrapAdmins(lc fx.Lifecycle, cfg config.Config, svc Service) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return BootstrapAdmins(ctx, svc, cfg.BootstrapAdmins)
		},
	})
}

func parseSubject(actor string) (string, error) {
	if !strings.HasPrefix(actor, "user:") {
		return "", ErrInvalidActor
	}
	userID, err := snowflake.ParseString(strings.TrimPrefix(actor, "user:"))
	if err != nil || userID == 0 {
		return "", ErrInvalidActor
	}
	return subjectFor(userID), nil
}

func subjectFor(userID snowflake.ID) string {
	return fmt.Sprintf("user:%s", userID)
}

func domainFor(orgID snowflake.ID) string {
	return fmt.Sprintf("org:%s", orgID)
}

func roleFor(role string) (string, error) {
	switch role {
	case RoleGateStaff, RoleOrgAdmin:
		return "role:" + role, nil
	default:
		return "", ErrInvalidRole
	}
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		{"role:" + RoleGateStaff, ObjectCheckIn, ActionCheckInScan},
		{"role:" + RoleGateStaff, ObjectCheckIn, ActionCheckInStats},
		{"role:" + RoleGateStaff, ObjectCheckIn, ActionCheckInView},

		{"role:" + RoleOrgAdmin, ObjectCheckIn, ActionCheckInScan},
		{"role:" + RoleOrgAdmin, ObjectCheckIn, ActionCheckInStats},
		{"role:" + RoleOrgAdmin, ObjectCheckIn, ActionCheckInView},
		{"role:" + RoleOrgAdmin, ObjectRegistration, ActionRegistrationView},
		{"role:" + RoleOrgAdmin, ObjectRegistration, ActionRegistrationCancel},
		{"role:" + RoleOrgAdmin, ObjectEvent, ActionEventCreate},
		{"role:" + RoleOrgAdmin, ObjectStaff, ActionStaffAssign},
	}
	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
