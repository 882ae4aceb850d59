// Package money renders int64 minor-unit amounts for humans and gateways.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

var exponents = map[string]int32{
	"BHD": 3,
	"JPY": 0,
	"KRW": 0,
	"KWD": 3,
	"OMR": 3,
	"VND": 0,
}

// Exponent returns the number of minor-unit digits for an ISO 4217 code.
func Exponent(currency string) int32 {
	if exp, ok := exponents[strings.ToUpper(strings.TrimSpace(currency))]; ok {
		return exp
	}
	return 2
}

// ToMajor converts minor units to a decimal in major units.
func ToMajor(amount int64, currency string) decimal.Decimal {
	return decimal.New(amount, -Exponent(currency))
}

// FormatMinor renders amount as a fixed-point major-unit string, e.g. 750 INR -> "7.50".
func FormatMinor(amount int64, currency string) string {
	exp := Exponent(currency)
	return decimal.New(amount, -exp).StringFixed(exp)
}
