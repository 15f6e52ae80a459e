package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is used for display when no currency is configured.
const DefaultCurrency = money.BRL

// Money is an exact decimal amount in major units (reais, not centavos).
type Money struct {
	value decimal.Decimal
}

var ErrInvalidAmount = errors.New("invalid amount")

// NewMoney builds a Money from an exact decimal.
func NewMoney(d decimal.Decimal) Money { return Money{value: d} }

// MustParseMoney parses a canonical decimal string ("1234.56") and panics on error.
// Intended for constants and tests.
func MustParseMoney(s string) Money {
	return Money{value: decimal.RequireFromString(s)}
}

// Cents builds a Money from an integer number of centavos.
func Cents(c int64) Money { return Money{value: decimal.New(c, -2)} }

func (m Money) Decimal() decimal.Decimal { return m.value }
func (m Money) Add(n Money) Money        { return Money{value: m.value.Add(n.value)} }
func (m Money) Sub(n Money) Money        { return Money{value: m.value.Sub(n.value)} }
func (m Money) Neg() Money               { return Money{value: m.value.Neg()} }
func (m Money) Equal(n Money) bool       { return m.value.Equal(n.value) }
func (m Money) Cmp(n Money) int          { return m.value.Cmp(n.value) }
func (m Money) LessThan(n Money) bool    { return m.value.LessThan(n.value) }
func (m Money) GreaterThan(n Money) bool { return m.value.GreaterThan(n.value) }
func (m Money) IsZero() bool             { return m.value.IsZero() }
func (m Money) IsPositive() bool         { return m.value.IsPositive() }
func (m Money) IsNegative() bool         { return m.value.IsNegative() }
func (m Money) Abs() Money               { return Money{value: m.value.Abs()} }
func (m Money) InexactFloat64() float64  { return m.value.InexactFloat64() }

// StringFixed renders the plain decimal with a fixed number of places.
func (m Money) StringFixed(places int32) string {
	return m.value.StringFixed(places)
}

// Validate requires a strictly positive amount.
func (m Money) Validate() error {
	if !m.value.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

// String formats in the default currency, e.g. "R$1.234,56".
func (m Money) String() string { return m.Format(DefaultCurrency) }

// Format renders the amount with the currency's grapheme and separators.
func (m Money) Format(currency string) string {
	cur := *money.New(0, currency).Currency()
	minor := m.value.Round(int32(cur.Fraction)).Shift(int32(cur.Fraction))
	return cur.Formatter().Format(minor.IntPart())
}

// MarshalJSON writes the amount as a bare JSON number rounded to centavos.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.value.Round(2).String()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string.
func (m *Money) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		m.value = decimal.Zero
		return nil
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		var s string
		if json.Unmarshal(b, &s) == nil {
			parsed, perr := ParseAmount(s)
			if perr == nil {
				*m = parsed
				return nil
			}
		}
		return fmt.Errorf("%w: %s", ErrInvalidAmount, b)
	}
	m.value = d
	return nil
}

// Sum adds all amounts.
func Sum(ms ...Money) Money {
	total := decimal.Zero
	for _, m := range ms {
		total = total.Add(m.value)
	}
	return Money{value: total}
}

// ParseAmount parses a user-entered positive amount. Both "12.34" and "12,34"
// are accepted, as are grouped forms like "1.234,56" and "1,234.56". The last
// separator is taken as the decimal one when both kinds appear. The result is
// rounded half-up to centavos.
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "R$")
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Money{}, ErrInvalidAmount
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 {
			return Money{}, ErrInvalidAmount
		}
		s = strings.Replace(s, ",", ".", 1)
	case strings.Count(s, ".") > 1:
		// "1.234.567" is grouping only
		s = strings.ReplaceAll(s, ".", "")
	}

	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' {
			return Money{}, ErrInvalidAmount
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	d = d.Round(2)
	if !d.IsPositive() {
		return Money{}, ErrInvalidAmount
	}
	return Money{value: d}, nil
}
