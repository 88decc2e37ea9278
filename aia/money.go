/*
Package aia provides the payment-application reconciliation engine.

PURPOSE:
  Keeps an AIA G703 continuation sheet (the Ledger of line items) consistent
  with the G702 summary application for payment, and locks both once the
  application has been approved or paid. Everything here is transport- and
  storage-agnostic: the api and store packages sit on top of it.

KEY CONCEPTS IN THIS FILE (money.go):
  - Money: integer count of cents. All monetary arithmetic is exact.
  - Percent: a percentage held to two decimal places.
  - halfUp: the single rounding rule (round half toward +infinity).

PRECISION:
  Money never passes through float64. Percentage products and quotients are
  computed with decimal.Decimal and rounded once, half-up, back to cents
  (or to hundredths of a percent).

USAGE:
  sv := aia.Cents(100000)                  // $1,000.00
  done, _ := aia.ParseMoney("500.00")      // $500.00
  pct := done.PercentOf(sv)                // 50.00
  ret := done.MulPercent(aia.WholePercent(10)) // $50.00

SEE ALSO:
  - lineitem.go: per-line derived fields
  - reconcile.go: rollup, summary recomputation and verification
*/
package aia

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Fixed-point cents
// =============================================================================

// Money is a monetary quantity in minor units (cents). The zero value is $0.00.
type Money struct {
	cents int64
}

// Cents returns a Money of n minor units.
func Cents(n int64) Money { return Money{cents: n} }

// Zero is $0.00.
var Zero = Money{}

// MaxAmount bounds every entered amount and every ledger column total at
// 10^15 cents ($10 trillion). Inside that bound no derived figure can leave
// the int64 range.
var MaxAmount = Money{cents: 1_000_000_000_000_000}

// ParseMoney parses a decimal string with exactly two fraction digits,
// e.g. "1250.00" or "-3.10".
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	whole, frac, ok := strings.Cut(s, ".")
	if !ok || len(frac) != 2 || whole == "" || whole == "-" || whole == "+" {
		return Money{}, &InvalidAmountError{Value: s, Reason: "expected exactly two fraction digits"}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, &InvalidAmountError{Value: s, Reason: err.Error()}
	}
	shifted := d.Shift(2)
	if !shifted.IsInteger() {
		return Money{}, &InvalidAmountError{Value: s, Reason: "sub-cent precision"}
	}
	return Money{cents: shifted.IntPart()}, nil
}

// MustParseMoney is ParseMoney for literals in tests and fixtures.
func MustParseMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) Cents() int64 { return m.cents }

func (m Money) Add(b Money) Money        { return Money{cents: m.cents + b.cents} }
func (m Money) Sub(b Money) Money        { return Money{cents: m.cents - b.cents} }
func (m Money) Neg() Money               { return Money{cents: -m.cents} }
func (m Money) IsZero() bool             { return m.cents == 0 }
func (m Money) IsNegative() bool         { return m.cents < 0 }
func (m Money) IsPositive() bool         { return m.cents > 0 }
func (m Money) Equal(b Money) bool       { return m.cents == b.cents }
func (m Money) LessThan(b Money) bool    { return m.cents < b.cents }
func (m Money) GreaterThan(b Money) bool { return m.cents > b.cents }

// Cmp returns -1, 0 or +1.
func (m Money) Cmp(b Money) int {
	switch {
	case m.cents < b.cents:
		return -1
	case m.cents > b.cents:
		return 1
	default:
		return 0
	}
}

// WithinLimit reports whether |m| ≤ MaxAmount.
func (m Money) WithinLimit() bool {
	return m.cents >= -MaxAmount.cents && m.cents <= MaxAmount.cents
}

// Sign returns -1, 0 or +1.
func (m Money) Sign() int { return m.Cmp(Zero) }

// Sum adds any number of amounts.
func Sum(amounts ...Money) Money {
	var total Money
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// MulPercent returns m × p / 100 rounded half-up to the cent.
func (m Money) MulPercent(p Percent) Money {
	num := decimal.NewFromInt(m.cents).Mul(p.value)
	return Money{cents: halfUp(num, hundred).IntPart()}
}

// MulFraction returns m × num / den rounded half-up to the cent.
// den must be positive.
func (m Money) MulFraction(num, den int64) Money {
	if den <= 0 {
		panic(fmt.Sprintf("aia: MulFraction denominator must be positive, got %d", den))
	}
	n := decimal.NewFromInt(m.cents).Mul(decimal.NewFromInt(num))
	return Money{cents: halfUp(n, decimal.NewFromInt(den)).IntPart()}
}

// PercentOf returns m / whole × 100, rounded half-up to two decimal places.
// Returns 0 when whole is zero.
func (m Money) PercentOf(whole Money) Percent {
	if whole.IsZero() {
		return Percent{}
	}
	num := decimal.NewFromInt(m.cents).Mul(tenThousand)
	den := decimal.NewFromInt(whole.cents)
	if den.IsNegative() {
		num, den = num.Neg(), den.Neg()
	}
	return Percent{value: halfUp(num, den).Shift(-2)}
}

// String renders dollars and cents, e.g. "-1234.05".
func (m Money) String() string {
	return decimal.New(m.cents, -2).StringFixed(2)
}

// MarshalJSON encodes Money as an integer count of cents.
func (m Money) MarshalJSON() ([]byte, error) {
	return strconv.AppendInt(nil, m.cents, 10), nil
}

// UnmarshalJSON accepts only integer cents; fractional numbers are rejected.
func (m *Money) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return &InvalidAmountError{Value: string(data), Reason: "money must be integer cents"}
	}
	m.cents = n
	return nil
}

// Value implements driver.Valuer.
func (m Money) Value() (driver.Value, error) { return m.cents, nil }

// Scan implements sql.Scanner.
func (m *Money) Scan(src any) error {
	switch v := src.(type) {
	case int64:
		m.cents = v
	case int32:
		m.cents = int64(v)
	case []byte:
		n, err := strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			return fmt.Errorf("scan money: %w", err)
		}
		m.cents = n
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("scan money: %w", err)
		}
		m.cents = n
	case nil:
		m.cents = 0
	default:
		return fmt.Errorf("scan money: unsupported type %T", src)
	}
	return nil
}

// =============================================================================
// PERCENT - Two decimal places
// =============================================================================

// Percent is a percentage (10 means ten percent) held to two decimal places.
type Percent struct {
	value decimal.Decimal
}

// WholePercent returns n percent.
func WholePercent(n int64) Percent { return Percent{value: decimal.NewFromInt(n)} }

// PercentFromHundredths returns n / 100 percent, e.g. 5025 → 50.25.
func PercentFromHundredths(n int64) Percent { return Percent{value: decimal.New(n, -2)} }

// ParsePercent parses a decimal percentage, rounding half-up to two places.
func ParsePercent(s string) (Percent, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Percent{}, &InvalidAmountError{Field: "percentage", Value: s, Reason: err.Error()}
	}
	return Percent{value: halfUp(d.Shift(2), one).Shift(-2)}, nil
}

func (p Percent) Decimal() decimal.Decimal { return p.value }

// Hundredths returns the percentage scaled by 100, e.g. 50.25 → 5025.
func (p Percent) Hundredths() int64 { return p.value.Shift(2).IntPart() }

func (p Percent) IsZero() bool         { return p.value.IsZero() }
func (p Percent) IsNegative() bool     { return p.value.IsNegative() }
func (p Percent) Equal(b Percent) bool { return p.value.Equal(b.value) }
func (p Percent) Cmp(b Percent) int    { return p.value.Cmp(b.value) }
func (p Percent) String() string       { return p.value.StringFixed(2) }

// InRange reports whether 0 <= p <= 100.
func (p Percent) InRange() bool {
	return !p.value.IsNegative() && p.value.LessThanOrEqual(hundred)
}

// MarshalJSON encodes the percentage as a JSON number with two decimals.
func (p Percent) MarshalJSON() ([]byte, error) {
	return []byte(p.value.StringFixed(2)), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string.
func (p *Percent) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	parsed, err := ParsePercent(strings.Trim(string(data), `"`))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// =============================================================================
// ROUNDING
// =============================================================================

var (
	one         = decimal.NewFromInt(1)
	two         = decimal.NewFromInt(2)
	hundred     = decimal.NewFromInt(100)
	tenThousand = decimal.NewFromInt(10000)
)

// halfUp returns num/den rounded to an integer, ties toward +infinity.
// den must be positive. Computed as floor((2·num + den) / (2·den)) so no
// intermediate quotient is ever truncated.
func halfUp(num, den decimal.Decimal) decimal.Decimal {
	q, r := num.Mul(two).Add(den).QuoRem(den.Mul(two), 0)
	if r.IsNegative() {
		q = q.Sub(one)
	}
	return q
}
