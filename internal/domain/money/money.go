// Package money holds the rounding and parsing rules for monetary amounts.
// All amounts are decimal.Decimal; they are rounded half-up to cents at the
// storage and presentation boundaries, never in between.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Places is the number of decimals kept for stored and reported amounts.
const Places = 2

// DefaultCurrency is assumed when an amount carries no currency tag.
const DefaultCurrency = "EUR"

// Round rounds d half-up to cents. For negative amounts the rounding is
// half away from zero, mirroring the positive case.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// Format renders d with exactly two decimals, e.g. "10.50".
func Format(d decimal.Decimal) string {
	return d.StringFixed(Places)
}

// Parse reads an amount written with either a decimal point or a decimal
// comma ("12.50", "12,50"). Thousands separators are not accepted.
func Parse(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d, nil
}

// Equal compares two amounts after rounding both to cents.
func Equal(a, b decimal.Decimal) bool {
	return Round(a).Equal(Round(b))
}
