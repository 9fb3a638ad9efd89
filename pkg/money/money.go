// Package money converts Naira amounts between storage, gateway and display forms.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

const (
	Currency    = "NGN"
	Symbol      = "₦"
	minorFactor = 100
)

// ToMinor converts a currency amount to integer kobo, rounding half away from zero.
func ToMinor(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(minorFactor)).Round(0).IntPart()
}

// FromMinor converts integer kobo back to a two-decimal amount.
func FromMinor(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

// Format renders a whole-Naira display string such as "₦25,000".
func Format(amount decimal.Decimal) string {
	rounded := amount.Round(0)
	sign := ""
	if rounded.IsNegative() {
		sign = "-"
		rounded = rounded.Neg()
	}
	return sign + Symbol + groupThousands(rounded.String())
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
