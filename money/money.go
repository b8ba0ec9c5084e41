/*
Package money provides the integer-cents representation used by the ledger.

POLICY:
  Every amount the ledger stores is an integer number of cents. Two rounding
  rules apply, and they are intentionally different:

  ENTRY (truncate toward zero):
    Parse, FromDecimal, MulTrunc. A cost typed by an operator or computed
    from one at intake is never over-recorded: $2.999 becomes 299 cents.

  DERIVATION (round half to even):
    DivRound, MulRound. Weighted-average unit cost and cost of goods
    distributed are recomputed from the same stored basis again and again,
    so they use banker's rounding to avoid a systematic drift.

DISPLAY:
  Format and Cents.String render through github.com/Rhymond/go-money so the
  currency symbol and grouping follow the currency's own rules.

SEE ALSO:
  - costing/costing.go: the only caller of the derivation helpers
*/
package money

import (
	"errors"
	"fmt"
	"strings"

	gomoney "github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is used by String when no currency is given.
const DefaultCurrency = "USD"

// Cents is an amount of money in minor units.
type Cents int64

var (
	// ErrInvalidAmount is returned when an amount cannot be parsed.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrNegativeAmount is returned when a non-negative amount was required.
	ErrNegativeAmount = errors.New("amount cannot be negative")

	hundred = decimal.NewFromInt(100)
)

// =============================================================================
// ENTRY CONVERSIONS - truncate toward zero
// =============================================================================

// FromDecimal converts a dollar amount to cents, truncating toward zero.
func FromDecimal(dollars decimal.Decimal) Cents {
	return Cents(dollars.Mul(hundred).Truncate(0).IntPart())
}

// Parse converts a user-entered dollar string ("12.345", "$1,200.50") to cents.
func Parse(s string) (Cents, error) {
	clean := strings.TrimSpace(s)
	clean = strings.TrimPrefix(clean, "$")
	clean = strings.ReplaceAll(clean, ",", "")
	if clean == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return FromDecimal(d), nil
}

// ParseNonNegative is Parse that also rejects negative amounts.
func ParseNonNegative(s string) (Cents, error) {
	c, err := Parse(s)
	if err != nil {
		return 0, err
	}
	if c < 0 {
		return 0, fmt.Errorf("%w: %q", ErrNegativeAmount, s)
	}
	return c, nil
}

// MulTrunc multiplies a per-unit price by a quantity, truncating toward zero.
// Used at intake, where the total cost of a fractional quantity must not be
// rounded up.
func MulTrunc(qty decimal.Decimal, unit Cents) Cents {
	return Cents(qty.Mul(unit.Decimal()).Truncate(0).IntPart())
}

// =============================================================================
// DERIVED VALUES - round half to even
// =============================================================================

// MulRound multiplies a per-unit price by a quantity with banker's rounding.
func MulRound(qty decimal.Decimal, unit Cents) Cents {
	return Cents(qty.Mul(unit.Decimal()).RoundBank(0).IntPart())
}

// DivRound divides an amount by a quantity with banker's rounding.
// The quotient is computed exactly (quotient + remainder), so values that
// are not exact ties are never pushed onto a tie by an intermediate rounding.
// Returns 0 when qty is zero.
func DivRound(total Cents, qty decimal.Decimal) Cents {
	if qty.IsZero() {
		return 0
	}
	num := total.Decimal()
	q, r := num.QuoRem(qty, 0)
	if r.IsZero() {
		return Cents(q.IntPart())
	}

	twiceRem := r.Abs().Mul(decimal.NewFromInt(2))
	cmp := twiceRem.Cmp(qty.Abs())
	step := int64(1)
	if num.Sign()*qty.Sign() < 0 {
		step = -1
	}

	result := q.IntPart()
	switch {
	case cmp > 0:
		result += step
	case cmp == 0 && result%2 != 0:
		result += step
	}
	return Cents(result)
}

// =============================================================================
// CENTS HELPERS
// =============================================================================

// Decimal returns the amount as a decimal number of cents.
func (c Cents) Decimal() decimal.Decimal { return decimal.NewFromInt(int64(c)) }

// Dollars returns the amount in major units.
func (c Cents) Dollars() decimal.Decimal { return c.Decimal().Div(hundred) }

func (c Cents) Neg() Cents       { return -c }
func (c Cents) IsNegative() bool { return c < 0 }

// Max returns the larger of a and b.
func Max(a, b Cents) Cents {
	if a > b {
		return a
	}
	return b
}

// Min returns the smaller of a and b.
func Min(a, b Cents) Cents {
	if a < b {
		return a
	}
	return b
}

// String renders the amount in DefaultCurrency.
func (c Cents) String() string { return Format(c, DefaultCurrency) }

// Format renders cents in the given ISO currency ("$1,234.56").
func Format(c Cents, currency string) string {
	return gomoney.New(int64(c), currency).Display()
}

// KnownCurrency reports whether the ISO code is known to the formatter.
func KnownCurrency(code string) bool {
	return gomoney.GetCurrency(strings.ToUpper(code)) != nil
}
