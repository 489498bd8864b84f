package core

import (
	"errors"
	"strings"
)

// Locale controls how amounts are displayed and parsed.
type Locale struct {
	Symbol       string `toml:"symbol"`
	ThousandsSep string `toml:"thousands_separator"`
	DecimalSep   string `toml:"decimal_separator"`
	Decimals     int    `toml:"decimals"`
}

// DefaultLocale is "$", "." for thousands, "," for decimals, no fractional digits.
func DefaultLocale() Locale {
	return Locale{Symbol: "$", ThousandsSep: ".", DecimalSep: ",", Decimals: 0}
}

var ErrInvalidLocale = errors.New("invalid locale")

func (l Locale) Validate() error {
	if l.Decimals < 0 || l.Decimals > 2 {
		return errors.Join(ErrInvalidLocale, errors.New("decimals must be between 0 and 2"))
	}
	if l.DecimalSep == "" {
		return errors.Join(ErrInvalidLocale, errors.New("decimal separator is required"))
	}
	if l.ThousandsSep == l.DecimalSep {
		return errors.Join(ErrInvalidLocale, errors.New("thousands and decimal separators must differ"))
	}
	if strings.ContainsAny(l.ThousandsSep+l.DecimalSep, "0123456789-") {
		return errors.Join(ErrInvalidLocale, errors.New("separators cannot be digits or '-'"))
	}
	return nil
}

// Format renders m as "<symbol> <amount>", e.g. "$ 1.234" or "$ -5.430".
// Rounding to the configured decimals is half away from zero.
func (l Locale) Format(m Money) string {
	fixed := m.Decimal().StringFixed(int32(l.Decimals))
	intPart, fracPart, _ := strings.Cut(fixed, ".")

	sign := ""
	if strings.HasPrefix(intPart, "-") {
		sign, intPart = "-", intPart[1:]
	}
	if sign == "-" && strings.Trim(intPart+fracPart, "0") == "" {
		sign = ""
	}

	out := sign + groupThousands(intPart, l.ThousandsSep)
	if l.Decimals > 0 {
		out += l.DecimalSep + fracPart
	}
	if l.Symbol == "" {
		return out
	}
	return l.Symbol + " " + out
}

// FormatInput renders m the way a user would type it back (no symbol).
func (l Locale) FormatInput(m Money) string {
	noSym := l
	noSym.Symbol = ""
	return noSym.Format(m)
}

func groupThousands(digits, sep string) string {
	if sep == "" || len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteString(sep)
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
