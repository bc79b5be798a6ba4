package order

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/pricing-engine/internal/domain/catalog"
	"github.com/xenking/pricing-engine/internal/domain/money"
	"github.com/xenking/pricing-engine/internal/domain/pricing"
	"github.com/xenking/pricing-engine/internal/domain/tax"
)

// LineType discriminates what a line charges for.
type LineType string

const (
	LineTypeProduct  LineType = "product"
	LineTypeShipping LineType = "shipping"
	LineTypePayment  LineType = "payment"
	LineTypeCampaign LineType = "campaign"
	LineTypeOther    LineType = "other"
)

// Validation sentinels for line construction.
var (
	ErrProductRequired   = errors.New("order: product line requires a product and a supplier")
	ErrUnexpectedProduct = errors.New("order: non-product line cannot reference a product")
	ErrTaxClassConflict  = errors.New("order: explicit tax class conflicts with the product's tax class")
)

// SourceLine is one provisional, unpersisted entry in a Source. Lines are
// owned exclusively by their Source; LineID is caller-assigned and used to
// resolve parent/child relationships after persistence.
type SourceLine struct {
	LineID       string
	ParentLineID string
	Type         LineType
	ProductID    string
	SupplierID   string
	TaxClassID   string
	Text         string

	Quantity       decimal.Decimal
	BaseUnitPrice  money.Price
	DiscountAmount money.Price

	// Taxes is filled by Source.CalculateTaxes.
	Taxes []tax.LineTax

	// Data carries free-form extension state through order creation.
	Data map[string]any

	product *catalog.Product
}

// Product returns the attached product record, if any.
func (l *SourceLine) Product() *catalog.Product {
	return l.product
}

// AttachProduct links a product record to the line and derives the line's
// tax class from it. An explicit tax class differing from the product's
// fails with ErrTaxClassConflict.
func (l *SourceLine) AttachProduct(p *catalog.Product) error {
	if p == nil {
		return nil
	}
	if l.TaxClassID != "" && p.TaxClassID != "" && l.TaxClassID != p.TaxClassID {
		return errors.Wrapf(ErrTaxClassConflict, "line %s: %s vs product %s", l.LineID, l.TaxClassID, p.TaxClassID)
	}
	if l.TaxClassID == "" {
		l.TaxClassID = p.TaxClassID
	}
	l.product = p
	l.ProductID = p.ID
	return nil
}

// TaxAmount returns the sum of the taxes computed for this line.
func (l *SourceLine) TaxAmount() money.Money {
	sum := money.Zero(l.BaseUnitPrice.Currency)
	for _, t := range l.Taxes {
		sum.Amount = sum.Amount.Add(t.Amount.Amount)
	}
	return sum
}

// PriceAmounts implements pricing.Priceful.
func (l *SourceLine) PriceAmounts() pricing.Amounts {
	return pricing.Amounts{
		Quantity:       l.Quantity,
		BaseUnitPrice:  l.BaseUnitPrice,
		DiscountAmount: l.DiscountAmount,
		TaxAmount:      l.TaxAmount(),
	}
}

// validate checks the line's unit and reference invariants against the
// owning source's currency and taxful-ness.
func (l *SourceLine) validate(currency string, includesTax bool) error {
	want := money.NewPrice(decimal.Zero, currency, includesTax)
	if !l.BaseUnitPrice.SameUnit(want) {
		return &money.UnitMismatchError{Op: "add line priced in", Left: l.BaseUnitPrice.String(), Right: want.String()}
	}
	if !l.DiscountAmount.SameUnit(l.BaseUnitPrice) {
		return &money.UnitMismatchError{Op: "discount", Left: l.DiscountAmount.String(), Right: l.BaseUnitPrice.String()}
	}
	switch l.Type {
	case LineTypeProduct:
		if l.ProductID == "" || l.SupplierID == "" {
			return errors.Wrapf(ErrProductRequired, "line %s", l.LineID)
		}
	default:
		if l.ProductID != "" {
			return errors.Wrapf(ErrUnexpectedProduct, "line %s", l.LineID)
		}
	}
	return nil
}
