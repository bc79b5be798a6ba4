package catalog

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// OrderabilityError describes one reason a shop product cannot be ordered.
// Orderability checks collect every such reason instead of failing on the
// first, so callers can report all problems at once.
type OrderabilityError struct {
	ProductID string
	Reason    string
}

func (e *OrderabilityError) Error() string {
	return fmt.Sprintf("product %s is not orderable: %s", e.ProductID, e.Reason)
}

// SupplierModule is the pluggable strategy deciding whether a supplier can
// fulfil an order line. Implementations may consult external stock systems.
type SupplierModule interface {
	// GetOrderabilityErrors returns every reason the given quantity of the
	// shop product cannot be ordered from the supplier for the customer.
	// An empty result means the line is orderable.
	GetOrderabilityErrors(ctx context.Context, sp ShopProduct, supplier Supplier, customerID string, quantity decimal.Decimal) []error
}

// SimpleSupplierModule checks purchasability, supplier assignment and the
// minimum purchase quantity. It performs no stock bookkeeping.
type SimpleSupplierModule struct{}

var _ SupplierModule = SimpleSupplierModule{}

// GetOrderabilityErrors implements SupplierModule.
func (SimpleSupplierModule) GetOrderabilityErrors(_ context.Context, sp ShopProduct, supplier Supplier, _ string, quantity decimal.Decimal) []error {
	var errs []error
	if !sp.Purchasable {
		errs = append(errs, &OrderabilityError{ProductID: sp.ProductID, Reason: "not purchasable"})
	}
	if !supplier.Enabled {
		errs = append(errs, &OrderabilityError{ProductID: sp.ProductID, Reason: "supplier " + supplier.ID + " is disabled"})
	} else if !sp.HasSupplier(supplier.ID) {
		errs = append(errs, &OrderabilityError{ProductID: sp.ProductID, Reason: "supplier " + supplier.ID + " is not assigned"})
	}
	if quantity.LessThanOrEqual(decimal.Zero) {
		errs = append(errs, &OrderabilityError{ProductID: sp.ProductID, Reason: "quantity must be positive"})
	} else if !sp.MinimumPurchaseQuantity.IsZero() && quantity.LessThan(sp.MinimumPurchaseQuantity) {
		errs = append(errs, &OrderabilityError{
			ProductID: sp.ProductID,
			Reason:    fmt.Sprintf("minimum purchase quantity is %s", sp.MinimumPurchaseQuantity),
		})
	}
	return errs
}
