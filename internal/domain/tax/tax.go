// Package tax implements the tax computation engine: tax definitions,
// rule matching with priority and override-group semantics, and the
// stacked/compounded application of taxes onto prices.
package tax

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/pricing-engine/internal/domain/money"
)

// Tax is a named levy, either a percentage rate or a flat amount. Exactly
// one of Rate and Amount must be set; a flat tax carries its currency in
// the Amount value.
type Tax struct {
	ID     string
	Code   string
	Name   string
	Rate   *decimal.Decimal
	Amount *money.Money
}

// Validate checks the rate/amount exclusivity.
func (t Tax) Validate() error {
	switch {
	case t.Rate != nil && t.Amount != nil:
		return errors.Errorf("tax %s: rate and flat amount are mutually exclusive", t.Code)
	case t.Rate == nil && t.Amount == nil:
		return errors.Errorf("tax %s: either rate or flat amount is required", t.Code)
	case t.Amount != nil && t.Amount.Currency == "":
		return errors.Errorf("tax %s: flat amount requires a currency", t.Code)
	}
	return nil
}

// AmountFor returns the tax charged on the given taxless base amount.
func (t Tax) AmountFor(base money.Money) (money.Money, error) {
	if t.Rate != nil {
		return base.Mul(*t.Rate), nil
	}
	if t.Amount == nil {
		return money.Money{}, errors.Errorf("tax %s: no rate or amount", t.Code)
	}
	if t.Amount.Currency != base.Currency {
		return money.Money{}, &money.UnitMismatchError{Op: "apply flat tax to", Left: t.Amount.Currency, Right: base.Currency}
	}
	return *t.Amount, nil
}

// LineTax is one computed tax charge on a line: the amount levied and the
// base amount it was computed against.
type LineTax struct {
	TaxID      string
	Name       string
	Rate       decimal.Decimal
	Amount     money.Money
	BaseAmount money.Money
}

// TaxedPrice is the result of applying taxes to a price: the same value in
// both taxful and taxless terms plus the individual tax charges.
type TaxedPrice struct {
	Taxful  money.Price
	Taxless money.Price
	Taxes   []LineTax
}

// NewUntaxedPrice wraps a price into a TaxedPrice with no taxes: taxful
// and taxless amounts are equal.
func NewUntaxedPrice(price money.Price) TaxedPrice {
	return TaxedPrice{
		Taxful:  money.NewTaxful(price.Amount, price.Currency),
		Taxless: money.NewTaxless(price.Amount, price.Currency),
	}
}

// TaxAmount returns the sum of the individual tax charges.
func (tp TaxedPrice) TaxAmount() money.Money {
	sum := money.Zero(tp.Taxful.Currency)
	for _, lt := range tp.Taxes {
		sum.Amount = sum.Amount.Add(lt.Amount.Amount)
	}
	return sum
}

// PriceFor returns the taxful or taxless representation.
func (tp TaxedPrice) PriceFor(includesTax bool) money.Price {
	if includesTax {
		return tp.Taxful
	}
	return tp.Taxless
}
