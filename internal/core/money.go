// Package core provides the transaction model of the ledger.
//
// This file contains the amount parse result used by line items and flat
// transaction amounts, and the fr-FR display formatting.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an amount in the single account currency.
type Money = decimal.Decimal

// Zero is the additive identity for Money.
var Zero = decimal.Zero

// Currency is appended by FormatAmount.
const Currency = "FCFA"

// Amount is the result of reading an amount field: either a non-negative
// value or the error that prevented parsing, together with the raw input.
// The zero Amount is a missing field.
type Amount struct {
	value Money
	raw   string
	err   error
	set   bool
}

// AmountOf wraps an already validated value. Negative values are rejected
// as ErrInvalidAmount.
func AmountOf(v Money) Amount {
	if v.IsNegative() {
		return Amount{raw: v.String(), err: ErrInvalidAmount, set: true}
	}
	return Amount{value: v, raw: v.String(), set: true}
}

// AmountFromInt is a convenience for whole amounts.
func AmountFromInt(v int64) Amount {
	return AmountOf(decimal.NewFromInt(v))
}

// ParseAmount reads a user or backend supplied amount.
//
// It accepts dot (12.5) and comma (12,5) decimal separators and ignores
// spaces, NBSP and narrow NBSP used as thousands separators ("50 000").
// Signs, exponents and anything non-numeric are rejected.
//
// Examples:
//
//	ParseAmount("1000")     -> 1000
//	ParseAmount("2 500,50") -> 2500.5
//	ParseAmount("abc")      -> ErrInvalidAmount
func ParseAmount(s string) Amount {
	raw := s
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{raw: raw, err: ErrMissingAmount, set: true}
	}
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\u202f':
			return -1
		}
		return r
	}, s)
	s = strings.ReplaceAll(s, ",", ".")
	if strings.Count(s, ".") > 1 {
		return Amount{raw: raw, err: ErrInvalidAmount, set: true}
	}
	digits := 0
	for _, r := range s {
		if r == '.' {
			continue
		}
		if r < '0' || r > '9' {
			return Amount{raw: raw, err: ErrInvalidAmount, set: true}
		}
		digits++
	}
	if digits == 0 {
		return Amount{raw: raw, err: ErrInvalidAmount, set: true}
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{raw: raw, err: ErrInvalidAmount, set: true}
	}
	return Amount{value: v, raw: raw, set: true}
}

// Value returns the parsed amount, or zero and the parse error.
func (a Amount) Value() (Money, error) {
	if !a.set {
		return Zero, ErrMissingAmount
	}
	if a.err != nil {
		return Zero, a.err
	}
	return a.value, nil
}

// OrZero applies the zero fallback for malformed or missing amounts.
func (a Amount) OrZero() Money {
	v, _ := a.Value()
	return v
}

// Valid reports whether the amount parsed.
func (a Amount) Valid() bool {
	_, err := a.Value()
	return err == nil
}

// Raw returns the input the amount was read from.
func (a Amount) Raw() string { return a.raw }

// FormatAmount renders a value the way the app displays balances: rounded
// to units, grouped by thousands with a narrow NBSP, followed by the
// currency ("50 000 FCFA").
func FormatAmount(v Money) string {
	v = v.Round(0)
	neg := v.IsNegative()
	digits := v.Abs().StringFixed(0)

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteRune('\u202f')
		}
		b.WriteRune(r)
	}
	b.WriteByte(' ')
	b.WriteString(Currency)
	return b.String()
}
