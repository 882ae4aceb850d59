package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatMinor(t *testing.T) {
	assert.Equal(t, "7.50", FormatMinor(750, "INR"))
	assert.Equal(t, "0.05", FormatMinor(5, "usd"))
	assert.Equal(t, "750", FormatMinor(750, "JPY"))
	assert.Equal(t, "1.250", FormatMinor(1250, "KWD"))
	assert.Equal(t, "-1.00", FormatMinor(-100, "EUR"))
}

func TestToMajor(t *testing.T) {
	assert.True(t, ToMajor(12345, "USD").Equal(ToMajor(123450, "KWD")))
	assert.Equal(t, "123.45", ToMajor(12345, "USD").String())
}
