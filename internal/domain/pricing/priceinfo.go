package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/pricing-engine/internal/domain/money"
)

// PriceInfo is the result of pricing a product for a quantity: the
// effective price along with the undiscounted base price. Both prices
// cover the whole quantity and share a unit.
type PriceInfo struct {
	Price     money.Price
	BasePrice money.Price
	Quantity  decimal.Decimal
	ExpiresOn *time.Time
}

// NewPriceInfo creates a PriceInfo from an effective and a base price.
func NewPriceInfo(price, basePrice money.Price, quantity decimal.Decimal) PriceInfo {
	return PriceInfo{Price: price, BasePrice: basePrice, Quantity: quantity}
}

// DiscountAmount returns base price - price. Fails with UnitMismatchError
// when the two prices do not share a unit.
func (pi PriceInfo) DiscountAmount() (money.Price, error) {
	return pi.BasePrice.Sub(pi.Price)
}

// IsDiscounted reports whether the effective price is below the base price.
func (pi PriceInfo) IsDiscounted() bool {
	return pi.BasePrice.SameUnit(pi.Price) && pi.Price.Amount.LessThan(pi.BasePrice.Amount)
}

// UnitPrice returns the effective per-unit price. When the quantity is
// zero the price is returned unchanged.
func (pi PriceInfo) UnitPrice() money.Price {
	if pi.Quantity.IsZero() {
		return pi.Price
	}
	return pi.Price.Div(pi.Quantity)
}

// UnitBasePrice returns the undiscounted per-unit price. When the quantity
// is zero the base price is returned unchanged.
func (pi PriceInfo) UnitBasePrice() money.Price {
	if pi.Quantity.IsZero() {
		return pi.BasePrice
	}
	return pi.BasePrice.Div(pi.Quantity)
}

// Expired reports whether the info has expired at the given instant.
func (pi PriceInfo) Expired(now time.Time) bool {
	return pi.ExpiresOn != nil && now.After(*pi.ExpiresOn)
}
