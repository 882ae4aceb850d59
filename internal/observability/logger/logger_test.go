package logger

import (
	"context"
	"testing"

	"github.com/smallbiznis/eventpass/internal/orgcontext"
	obscontext "github.com/smallbiznis/eventpass/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithContextAddsCorrelationFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	ctx := obscontext.WithRequestID(context.Background(), "req-1")
	ctx = orgcontext.WithOrgID(ctx, 10)
	ctx = orgcontext.WithActorID(ctx, 20)

	WithContext(ctx, base).Info("hello")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "req-1", fields["request_id"])
		assert.Equal(t, "10", fields["org_id"])
		assert.Equal(t, "20", fields["actor_id"])
	}
}

func TestOperationFromSQL(t *testing.T) {
	assert.Equal(t, "INSERT", operationFromSQL("insert into check_in_records (id) values (1)"))
	assert.Equal(t, "UPDATE", operationFromSQL(" UPDATE events SET confirmed_count = confirmed_count + 1"))
	assert.Equal(t, "UNKNOWN", operationFromSQL(""))
}
