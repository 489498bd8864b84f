// Package core provides the budgeting domain types and money handling.
//
// Amounts are carried as integer hundredths (Money.Cents). Decimal values only
// appear at the edges: JSON payloads from the backend and user-typed amounts.
package core

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// MoneyFromDecimal converts a decimal amount to Money, rounding half away from zero
// to the hundredth.
func MoneyFromDecimal(d decimal.Decimal) Money {
	return Money{Cents: d.Shift(2).Round(0).IntPart()}
}

// Units returns Money for a whole number of currency units.
func Units(n int64) Money {
	return Money{Cents: n * 100}
}

// Decimal returns the amount as a decimal with two fractional digits.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }
func (m Money) Neg() Money        { return Money{Cents: -m.Cents} }
func (m Money) IsZero() bool      { return m.Cents == 0 }
func (m Money) IsNegative() bool  { return m.Cents < 0 }
func (m Money) Cmp(o Money) int   { return cmpInt64(m.Cents, o.Cents) }

// Abs returns the absolute value.
func (m Money) Abs() Money {
	if m.Cents < 0 {
		return m.Neg()
	}
	return m
}

// Max returns the larger of two amounts.
func Max(a, b Money) Money {
	if a.Cents >= b.Cents {
		return a
	}
	return b
}

// String renders the plain wire form, e.g. "-12.50".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// MarshalJSON writes the amount as a JSON number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts numbers, numeric strings and null. The backend
// serializes decimals as strings, so both forms appear on the wire.
func (m *Money) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) || len(b) == 0 {
		m.Cents = 0
		return nil
	}
	s := string(bytes.Trim(b, `"`))
	if s == "" {
		m.Cents = 0
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	*m = MoneyFromDecimal(d)
	return nil
}

// ParseAmount parses user-typed text using the locale's separators. Thousands
// separators are stripped, the decimal separator becomes a period, and an
// optional currency symbol and sign are accepted. Negative values are allowed.
func ParseAmount(s string, loc Locale) (Money, error) {
	norm := NormalizeAmount(s, loc)
	if norm == "" || norm == "-" || norm == "+" {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(norm)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return MoneyFromDecimal(d), nil
}

// ParsePositiveAmount is ParseAmount restricted to values greater than zero.
func ParsePositiveAmount(s string, loc Locale) (Money, error) {
	m, err := ParseAmount(s, loc)
	if err != nil {
		return Money{}, err
	}
	if err := m.Validate(); err != nil {
		return Money{}, err
	}
	return m, nil
}

// NormalizeAmount turns locale-formatted text into a plain decimal string
// ("$ 1.234,5" with the default locale becomes "1234.5").
func NormalizeAmount(s string, loc Locale) string {
	s = strings.TrimSpace(s)
	if loc.Symbol != "" {
		s = strings.ReplaceAll(s, loc.Symbol, "")
	}
	s = strings.Join(strings.Fields(s), "")
	if loc.ThousandsSep != "" && loc.ThousandsSep != loc.DecimalSep {
		s = strings.ReplaceAll(s, loc.ThousandsSep, "")
	}
	if loc.DecimalSep != "" && loc.DecimalSep != "." {
		s = strings.ReplaceAll(s, loc.DecimalSep, ".")
	}
	return s
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
