// Package money holds the fixed-point helpers used for fee arithmetic and receipts.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits kept for currency amounts
const Scale = 2

// Tolerance is how far paid totals may exceed the fee before the ledger is
// considered inconsistent
var Tolerance = decimal.New(1, -Scale)

var hundred = decimal.NewFromInt(100)

// Add returns a+b rounded to the paisa
func Add(a, b decimal.Decimal) decimal.Decimal {
	return a.Add(b).Round(Scale)
}

// Sub returns a-b rounded to the paisa
func Sub(a, b decimal.Decimal) decimal.Decimal {
	return a.Sub(b).Round(Scale)
}

// Sum adds all amounts
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total.Round(Scale)
}

// ClampNonNegative returns zero for negative amounts
func ClampNonNegative(a decimal.Decimal) decimal.Decimal {
	if a.IsNegative() {
		return decimal.Zero
	}
	return a
}

// Percentage returns part/whole*100 rounded half-up to two places, or zero
// when whole is not positive.
func Percentage(part, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	return part.Mul(hundred).DivRound(whole, 2)
}

// Format renders an amount with exactly two fractional digits
func Format(a decimal.Decimal) string {
	return a.StringFixed(Scale)
}

// Parse reads a decimal amount as written. Digits below the paisa are kept,
// so the ledger can reject them instead of silently rounding.
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d, nil
}
