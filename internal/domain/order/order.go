package order

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/pricing-engine/internal/domain/catalog"
	"github.com/xenking/pricing-engine/internal/domain/money"
	"github.com/xenking/pricing-engine/internal/domain/pricing"
)

// PaymentStatus tracks how much of the order's taxful total is paid.
type PaymentStatus string

const (
	PaymentStatusNotPaid       PaymentStatus = "not_paid"
	PaymentStatusPartiallyPaid PaymentStatus = "partially_paid"
	PaymentStatusFullyPaid     PaymentStatus = "fully_paid"
)

// ShippingStatus tracks how much of the order's product quantity has
// shipped.
type ShippingStatus string

const (
	ShippingStatusNotShipped       ShippingStatus = "not_shipped"
	ShippingStatusPartiallyShipped ShippingStatus = "partially_shipped"
	ShippingStatusFullyShipped     ShippingStatus = "fully_shipped"
)

// NoPaymentToCreateError signals that the order is already fully paid.
// Callers are expected to handle it as normal control flow.
type NoPaymentToCreateError struct {
	OrderID string
}

func (e *NoPaymentToCreateError) Error() string {
	return fmt.Sprintf("order %s is already fully paid", e.OrderID)
}

// ErrNonPositivePayment is returned when a payment amount is zero or
// negative.
var ErrNonPositivePayment = errors.New("order: payment amount must be positive")

// NoProductsToShipError signals that no product quantity remains to ship.
type NoProductsToShipError struct {
	OrderID string
}

func (e *NoProductsToShipError) Error() string {
	return fmt.Sprintf("order %s has no products to ship", e.OrderID)
}

// Line is a persisted order line. A product-type line references both a
// product and a supplier; no other line type may reference a product.
type Line struct {
	ID                 string
	OrderID            string
	SourceLineID       string
	ParentSourceLineID string
	// ParentLineID is the persisted parent reference, wired from
	// ParentSourceLineID during order creation.
	ParentLineID string
	Ordering     int

	Type       LineType
	ProductID  string
	SupplierID string
	TaxClassID string
	Text       string

	Quantity       decimal.Decimal
	BaseUnitPrice  money.Price
	DiscountAmount money.Price

	Taxes []*LineTax
}

// TaxAmount returns the sum of the persisted tax rows of this line.
func (l *Line) TaxAmount() money.Money {
	sum := money.Zero(l.BaseUnitPrice.Currency)
	for _, t := range l.Taxes {
		sum.Amount = sum.Amount.Add(t.Amount.Amount)
	}
	return sum
}

// PriceAmounts implements pricing.Priceful.
func (l *Line) PriceAmounts() pricing.Amounts {
	return pricing.Amounts{
		Quantity:       l.Quantity,
		BaseUnitPrice:  l.BaseUnitPrice,
		DiscountAmount: l.DiscountAmount,
		TaxAmount:      l.TaxAmount(),
	}
}

// LineTax is one persisted tax row of an order line. Rate equals
// Amount / BaseAmount.
type LineTax struct {
	ID          string
	OrderLineID string
	TaxID       string
	Name        string
	Rate        decimal.Decimal
	Amount      money.Money
	BaseAmount  money.Money
	Ordering    int
}

// Payment records money received against an order.
type Payment struct {
	ID          string
	OrderID     string
	Amount      money.Money
	Identifier  string
	Description string
	CreatedAt   time.Time
}

// ShipmentProduct is one shipped product with its per-unit measurements.
type ShipmentProduct struct {
	ProductID  string
	Quantity   decimal.Decimal
	UnitWeight decimal.Decimal
	UnitVolume decimal.Decimal
}

// Shipment records products sent out by one supplier.
type Shipment struct {
	ID         string
	OrderID    string
	SupplierID string
	Products   []ShipmentProduct
	Weight     decimal.Decimal
	Volume     decimal.Decimal
	CreatedAt  time.Time
}

// Order is the persisted order aggregate. It is created once by Creator
// and afterwards mutated only through its lifecycle operations; callers
// persist the mutations through Repository inside one transaction.
type Order struct {
	ID               string
	ShopID           string
	Currency         string
	PricesIncludeTax bool

	StatusID       string
	StatusRole     StatusRole
	PaymentStatus  PaymentStatus
	ShippingStatus ShippingStatus

	BillingAddress  *catalog.Address
	ShippingAddress *catalog.Address
	CustomerID      string
	OrdererID       string
	CreatorID       string

	TaxfulTotal  money.Price
	TaxlessTotal money.Price

	Lines     []*Line
	Payments  []*Payment
	Shipments []*Shipment

	PaymentDate *time.Time
	Deleted     bool
	CreatedAt   time.Time
}

// CacheTotals recomputes the order's taxful and taxless totals from its
// lines and stores them rounded half-to-even to two decimal places. This
// is the only point in the engine where rounding is applied.
func (o *Order) CacheTotals() error {
	taxful := money.NewTaxful(decimal.Zero, o.Currency)
	taxless := money.NewTaxless(decimal.Zero, o.Currency)
	for _, l := range o.Lines {
		lf, err := pricing.TaxfulTotal(l)
		if err != nil {
			return err
		}
		ll, err := pricing.TaxlessTotal(l)
		if err != nil {
			return err
		}
		if taxful, err = taxful.Add(lf); err != nil {
			return err
		}
		if taxless, err = taxless.Add(ll); err != nil {
			return err
		}
	}
	o.TaxfulTotal = taxful.RoundBank()
	o.TaxlessTotal = taxless.RoundBank()
	return nil
}

// TotalPaid returns the sum of all recorded payments.
func (o *Order) TotalPaid() money.Money {
	sum := money.Zero(o.Currency)
	for _, p := range o.Payments {
		sum.Amount = sum.Amount.Add(p.Amount.Amount)
	}
	return sum
}

// CreatePayment records a payment against the order. It fails with
// NoPaymentToCreateError when existing payments already cover the taxful
// total. Reaching the total transitions the order to fully paid and
// stamps the payment date.
func (o *Order) CreatePayment(amount money.Money, identifier, description string) (*Payment, error) {
	if amount.Currency != o.Currency {
		return nil, &money.UnitMismatchError{Op: "pay", Left: amount.Currency, Right: o.Currency}
	}
	if amount.IsNegative() || amount.IsZero() {
		return nil, errors.Wrapf(ErrNonPositivePayment, "order %s: got %s", o.ID, amount.Amount)
	}
	paid := o.TotalPaid()
	if paid.Amount.GreaterThanOrEqual(o.TaxfulTotal.Amount) {
		return nil, &NoPaymentToCreateError{OrderID: o.ID}
	}

	now := time.Now().UTC()
	p := &Payment{
		ID:          uuid.NewString(),
		OrderID:     o.ID,
		Amount:      amount,
		Identifier:  identifier,
		Description: description,
		CreatedAt:   now,
	}
	if p.Identifier == "" {
		p.Identifier = p.ID
	}
	o.Payments = append(o.Payments, p)

	if paid.Amount.Add(amount.Amount).GreaterThanOrEqual(o.TaxfulTotal.Amount) {
		o.PaymentStatus = PaymentStatusFullyPaid
		o.PaymentDate = &now
	} else {
		o.PaymentStatus = PaymentStatusPartiallyPaid
	}
	return p, nil
}

// ShippedQuantity returns how much of the given product has shipped.
func (o *Order) ShippedQuantity(productID string) decimal.Decimal {
	total := decimal.Zero
	for _, sh := range o.Shipments {
		for _, sp := range sh.Products {
			if sp.ProductID == productID {
				total = total.Add(sp.Quantity)
			}
		}
	}
	return total
}

// UnshippedQuantities returns the remaining product quantity per product
// ID, optionally restricted to one supplier.
func (o *Order) UnshippedQuantities(supplierID string) map[string]decimal.Decimal {
	ordered := make(map[string]decimal.Decimal)
	for _, l := range o.Lines {
		if l.Type != LineTypeProduct {
			continue
		}
		if supplierID != "" && l.SupplierID != supplierID {
			continue
		}
		ordered[l.ProductID] = ordered[l.ProductID].Add(l.Quantity)
	}
	unshipped := make(map[string]decimal.Decimal, len(ordered))
	for productID, qty := range ordered {
		remaining := qty.Sub(o.ShippedQuantity(productID))
		if remaining.IsPositive() {
			unshipped[productID] = remaining
		}
	}
	return unshipped
}

// CreateShipment ships the given product quantities for one supplier.
// Products provide per-unit weight and volume. It fails with
// NoProductsToShipError when no quantity is positive.
func (o *Order) CreateShipment(supplierID string, quantities map[string]decimal.Decimal, products map[string]catalog.Product) (*Shipment, error) {
	ids := make([]string, 0, len(quantities))
	for productID, qty := range quantities {
		if qty.IsPositive() {
			ids = append(ids, productID)
		}
	}
	if len(ids) == 0 {
		return nil, &NoProductsToShipError{OrderID: o.ID}
	}
	sort.Strings(ids)

	sh := &Shipment{
		ID:         uuid.NewString(),
		OrderID:    o.ID,
		SupplierID: supplierID,
		CreatedAt:  time.Now().UTC(),
	}
	for _, productID := range ids {
		qty := quantities[productID]
		p := products[productID]
		sh.Products = append(sh.Products, ShipmentProduct{
			ProductID:  productID,
			Quantity:   qty,
			UnitWeight: p.GrossWeight,
			UnitVolume: p.Volume(),
		})
		sh.Weight = sh.Weight.Add(p.GrossWeight.Mul(qty))
		sh.Volume = sh.Volume.Add(p.Volume().Mul(qty))
	}
	o.Shipments = append(o.Shipments, sh)
	o.updateShippingStatus()
	return sh, nil
}

// CreateShipmentOfAllProducts ships every unshipped product quantity,
// creating one shipment per supplier. With a non-empty supplierID only
// that supplier's lines ship. It fails with NoProductsToShipError when
// nothing remains unshipped.
func (o *Order) CreateShipmentOfAllProducts(supplierID string, products map[string]catalog.Product) ([]*Shipment, error) {
	perSupplier := make(map[string]map[string]decimal.Decimal)
	for _, l := range o.Lines {
		if l.Type != LineTypeProduct {
			continue
		}
		if supplierID != "" && l.SupplierID != supplierID {
			continue
		}
		remaining := l.Quantity.Sub(o.ShippedQuantity(l.ProductID))
		if !remaining.IsPositive() {
			continue
		}
		if perSupplier[l.SupplierID] == nil {
			perSupplier[l.SupplierID] = make(map[string]decimal.Decimal)
		}
		perSupplier[l.SupplierID][l.ProductID] = remaining
	}
	if len(perSupplier) == 0 {
		return nil, &NoProductsToShipError{OrderID: o.ID}
	}

	suppliers := make([]string, 0, len(perSupplier))
	for id := range perSupplier {
		suppliers = append(suppliers, id)
	}
	sort.Strings(suppliers)

	shipments := make([]*Shipment, 0, len(suppliers))
	for _, id := range suppliers {
		sh, err := o.CreateShipment(id, perSupplier[id], products)
		if err != nil {
			return nil, err
		}
		shipments = append(shipments, sh)
	}
	return shipments, nil
}

func (o *Order) updateShippingStatus() {
	switch {
	case len(o.UnshippedQuantities("")) == 0:
		o.ShippingStatus = ShippingStatusFullyShipped
	case len(o.Shipments) > 0:
		o.ShippingStatus = ShippingStatusPartiallyShipped
	default:
		o.ShippingStatus = ShippingStatusNotShipped
	}
}

// SetCanceled marks the order canceled. Canceling twice is a no-op.
func (o *Order) SetCanceled() {
	if o.StatusRole == StatusRoleCanceled {
		return
	}
	o.StatusRole = StatusRoleCanceled
	o.StatusID = ""
}

// CanSetComplete reports whether the order may transition to complete:
// fully shipped, not canceled, not deleted.
func (o *Order) CanSetComplete() bool {
	return o.ShippingStatus == ShippingStatusFullyShipped &&
		o.StatusRole != StatusRoleCanceled &&
		o.StatusRole != StatusRoleComplete &&
		!o.Deleted
}

// SetComplete transitions the order to complete.
func (o *Order) SetComplete() error {
	if !o.CanSetComplete() {
		return fmt.Errorf("order %s cannot be set complete", o.ID)
	}
	o.StatusRole = StatusRoleComplete
	o.StatusID = ""
	return nil
}

// Delete soft-deletes the order. A second call is a no-op.
func (o *Order) Delete() {
	o.Deleted = true
}

// Repository persists orders and their lifecycle mutations. Every method
// wraps its writes in a single transaction so partial line or tax writes
// can never be observed.
type Repository interface {
	// Create inserts the order with all lines and line taxes.
	Create(ctx context.Context, o *Order) error
	// SavePayment inserts the payment and updates the order's payment
	// state in the same transaction.
	SavePayment(ctx context.Context, o *Order, p *Payment) error
	// SaveShipment inserts the shipment and updates the order's shipping
	// state in the same transaction.
	SaveShipment(ctx context.Context, o *Order, sh *Shipment) error
	// UpdateStatus writes the order's status, role and deleted flag.
	UpdateStatus(ctx context.Context, o *Order) error
}
