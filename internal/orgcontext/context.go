package orgcontext

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// OrgContextKey is the request context key for the active organization ID.
type OrgContextKey struct{}

// ActorContextKey is the request context key for the authenticated user or staff member.
type ActorContextKey struct{}

// WithOrgID stores the org ID in the context.
func WithOrgID(ctx context.Context, orgID int64) context.Context {
	return context.WithValue(ctx, OrgContextKey{}, orgID)
}

// OrgIDFromContext returns the org ID from context, if set.
func OrgIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	if ctx == nil {
		return 0, false
	}
	return parseID(ctx.Value(OrgContextKey{}))
}

// WithActorID stores the acting user (or gate staff) ID in the context.
func WithActorID(ctx context.Context, actorID int64) context.Context {
	return context.WithValue(ctx, ActorContextKey{}, actorID)
}

func ActorIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	if ctx == nil {
		return 0, false
	}
	return parseID(ctx.Value(ActorContextKey{}))
}

func parseID(value any) (snowflake.ID, bool) {
	switch typed := value.(type) {
	case int64:
		if typed <= 0 {
			return 0, false
		}
		return snowflake.ID(typed), true
	case snowflake.ID:
		if typed <= 0 {
			return 0, false
		}
		return typed, true
	case string:
		parsed, err := snowflake.ParseString(strings.TrimSpace(typed))
		if err == nil && parsed > 0 {
			return parsed, true
		}
	}
	return 0, false
}
