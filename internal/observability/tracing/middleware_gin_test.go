package tracing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorClassStripsDetail(t *testing.T) {
	assert.Equal(t, "insert check-in", errorClass(errors.New("insert check-in: token abc.def")))
	assert.Equal(t, "gateway_unavailable", errorClass(errors.New("gateway_unavailable")))
	assert.Equal(t, "unknown", errorClass(nil))
}
