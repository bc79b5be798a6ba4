// Package pricing defines the price computation contracts of the engine:
// the Priceful laws relating unit price, quantity, discount and tax to the
// derived totals, the PriceInfo result shape, and the pluggable pricing
// module interface.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/pricing-engine/internal/domain/money"
)

var hundred = decimal.NewFromInt(100)

// Amounts carries the native monetary fields of a priceable entity.
// BaseUnitPrice and DiscountAmount must share a unit; TaxAmount shares the
// currency. The derived totals below hold whether the native prices are
// stored taxful or taxless.
type Amounts struct {
	Quantity       decimal.Decimal
	BaseUnitPrice  money.Price
	DiscountAmount money.Price
	TaxAmount      money.Money
}

// Priceful is implemented by any entity whose totals follow the pricing
// laws: total = base unit price * quantity - discount, and
// taxful total = taxless total + tax amount.
type Priceful interface {
	PriceAmounts() Amounts
}

// TotalPrice returns base unit price * quantity - discount, in the
// entity's native taxful-ness.
func TotalPrice(p Priceful) (money.Price, error) {
	a := p.PriceAmounts()
	return a.BaseUnitPrice.Mul(a.Quantity).Sub(a.DiscountAmount)
}

// DiscountedUnitPrice returns the per-unit price after discount. When the
// quantity is zero the base unit price is returned unchanged.
func DiscountedUnitPrice(p Priceful) (money.Price, error) {
	a := p.PriceAmounts()
	if a.Quantity.IsZero() {
		return a.BaseUnitPrice, nil
	}
	return a.BaseUnitPrice.Sub(a.DiscountAmount.Div(a.Quantity))
}

// TaxlessTotal returns the total price excluding tax.
func TaxlessTotal(p Priceful) (money.Price, error) {
	total, err := TotalPrice(p)
	if err != nil {
		return money.Price{}, err
	}
	if !total.IncludesTax {
		return total, nil
	}
	a := p.PriceAmounts()
	if total.Currency != a.TaxAmount.Currency {
		return money.Price{}, &money.UnitMismatchError{Op: "subtract tax from", Left: total.Currency, Right: a.TaxAmount.Currency}
	}
	return money.NewTaxless(total.Amount.Sub(a.TaxAmount.Amount), total.Currency), nil
}

// TaxfulTotal returns the total price including tax.
func TaxfulTotal(p Priceful) (money.Price, error) {
	total, err := TotalPrice(p)
	if err != nil {
		return money.Price{}, err
	}
	if total.IncludesTax {
		return total, nil
	}
	a := p.PriceAmounts()
	if total.Currency != a.TaxAmount.Currency {
		return money.Price{}, &money.UnitMismatchError{Op: "add tax to", Left: total.Currency, Right: a.TaxAmount.Currency}
	}
	return money.NewTaxful(total.Amount.Add(a.TaxAmount.Amount), total.Currency), nil
}

// TaxRate returns taxful total / taxless total - 1, or zero when the
// taxless total is zero.
func TaxRate(p Priceful) (decimal.Decimal, error) {
	taxless, err := TaxlessTotal(p)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if taxless.IsZero() {
		return decimal.Zero, nil
	}
	taxful, err := TaxfulTotal(p)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return taxful.Amount.Div(taxless.Amount).Sub(decimal.NewFromInt(1)), nil
}

// TaxPercentage returns TaxRate expressed as a percentage.
func TaxPercentage(p Priceful) (decimal.Decimal, error) {
	rate, err := TaxRate(p)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return rate.Mul(hundred), nil
}
