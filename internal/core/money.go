// Package core provides money parsing and handling utilities.
//
// Amounts are shopspring decimals end to end: parsed from user input,
// validated, stored and summed without passing through floating point.
package core

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxAmount is the largest single contribution accepted.
var MaxAmount = decimal.NewFromInt(1_000_000_000)

var amountPattern = regexp.MustCompile(`^-?(\d+(\.\d*)?|\.\d+)$`)

// ParseAmount converts user input into an exact decimal amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. Unlike a
// cents conversion it never rounds: input with more than two fractional
// digits is rejected.
//
//	ParseAmount("42.50")  -> 42.5, nil
//	ParseAmount("42,5")   -> 42.5, nil
//	ParseAmount("-1")     -> error (ErrNegativeAmount)
//	ParseAmount("1.005")  -> error (ErrAmountPrecision)
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, Invalid("amount", ErrInvalidAmount)
	}
	s = strings.ReplaceAll(s, ",", ".")
	if !amountPattern.MatchString(s) {
		return decimal.Zero, Invalid("amount", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, Invalid("amount", ErrInvalidAmount)
	}
	if err := ValidateAmount(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// ValidateAmount enforces the non-negative, two-decimal, bounded amount rules.
func ValidateAmount(d decimal.Decimal) error {
	if d.IsNegative() {
		return Invalid("amount", ErrNegativeAmount)
	}
	if !d.Equal(d.Truncate(2)) {
		return Invalid("amount", ErrAmountPrecision)
	}
	if d.GreaterThan(MaxAmount) {
		return Invalid("amount", ErrAmountTooLarge)
	}
	return nil
}

// FormatAmount renders an amount with exactly two decimals.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// SumAmounts adds the amounts of all contributions.
func SumAmounts(cs []Contribution) decimal.Decimal {
	total := decimal.Zero
	for _, c := range cs {
		total = total.Add(c.Amount)
	}
	return total
}
