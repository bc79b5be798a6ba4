// Package money provides decimal monetary values tagged with a unit.
//
// Money carries a currency; Price additionally carries whether the amount
// includes tax. Arithmetic between values of different units fails with
// UnitMismatchError and is never silently coerced. Values keep full decimal
// precision; rounding happens only when totals are cached onto persisted
// records (see RoundBank).
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is an immutable decimal amount in a single currency.
type Money struct {
	Amount   decimal.Decimal
	Currency string
}

// New creates a Money value.
func New(amount decimal.Decimal, currency string) Money {
	return Money{Amount: amount, Currency: currency}
}

// NewFromInt creates a Money value from an integer amount.
func NewFromInt(amount int64, currency string) Money {
	return New(decimal.NewFromInt(amount), currency)
}

// Zero returns a zero Money value in the given currency.
func Zero(currency string) Money {
	return Money{Amount: decimal.Zero, Currency: currency}
}

// UnitMismatchError is returned when arithmetic combines values of
// incompatible units (different currencies, or taxful with taxless).
type UnitMismatchError struct {
	Op    string
	Left  string
	Right string
}

func (e *UnitMismatchError) Error() string {
	return fmt.Sprintf("money: cannot %s %s and %s", e.Op, e.Left, e.Right)
}

func (m Money) unit() string {
	return m.Currency
}

func (m Money) checkUnit(op string, o Money) error {
	if m.Currency != o.Currency {
		return &UnitMismatchError{Op: op, Left: m.unit(), Right: o.unit()}
	}
	return nil
}

// Add returns m + o. The currencies must match.
func (m Money) Add(o Money) (Money, error) {
	if err := m.checkUnit("add", o); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount.Add(o.Amount), Currency: m.Currency}, nil
}

// Sub returns m - o. The currencies must match.
func (m Money) Sub(o Money) (Money, error) {
	if err := m.checkUnit("subtract", o); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount.Sub(o.Amount), Currency: m.Currency}, nil
}

// Mul returns m scaled by the given factor.
func (m Money) Mul(factor decimal.Decimal) Money {
	return Money{Amount: m.Amount.Mul(factor), Currency: m.Currency}
}

// Div returns m divided by the given divisor.
func (m Money) Div(divisor decimal.Decimal) Money {
	return Money{Amount: m.Amount.Div(divisor), Currency: m.Currency}
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool {
	return m.Amount.IsZero()
}

// IsNegative reports whether the amount is negative.
func (m Money) IsNegative() bool {
	return m.Amount.IsNegative()
}

// Equal reports whether both amount and currency are equal.
func (m Money) Equal(o Money) bool {
	return m.Currency == o.Currency && m.Amount.Equal(o.Amount)
}

// GreaterThanOrEqual reports whether m >= o. The currencies must match.
func (m Money) GreaterThanOrEqual(o Money) (bool, error) {
	if err := m.checkUnit("compare", o); err != nil {
		return false, err
	}
	return m.Amount.GreaterThanOrEqual(o.Amount), nil
}

// RoundBank returns m rounded half-to-even to the currency's minor unit
// precision. Used only when totals are written to persisted records.
func (m Money) RoundBank() Money {
	return Money{Amount: m.Amount.RoundBank(2), Currency: m.Currency}
}

func (m Money) String() string {
	return m.Amount.String() + " " + m.Currency
}
