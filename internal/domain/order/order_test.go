package order

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/pricing-engine/internal/domain/catalog"
	"github.com/xenking/pricing-engine/internal/domain/money"
)

func testOrder(t *testing.T) *Order {
	t.Helper()
	o := &Order{
		ID:             "order-1",
		ShopID:         "shop-1",
		Currency:       "EUR",
		StatusRole:     StatusRoleInitial,
		PaymentStatus:  PaymentStatusNotPaid,
		ShippingStatus: ShippingStatusNotShipped,
		Lines: []*Line{
			{
				ID:             "line-1",
				Type:           LineTypeProduct,
				ProductID:      "p-1",
				SupplierID:     "sup-1",
				Quantity:       dec("5"),
				BaseUnitPrice:  money.NewTaxless(dec("100"), "EUR"),
				DiscountAmount: money.NewTaxless(dec("30"), "EUR"),
				Taxes: []*LineTax{{
					ID:         "lt-1",
					TaxID:      "vat24",
					Name:       "VAT 24%",
					Rate:       dec("0.24"),
					Amount:     money.New(dec("112.80"), "EUR"),
					BaseAmount: money.New(dec("470"), "EUR"),
				}},
			},
			{
				ID:             "line-2",
				Type:           LineTypeProduct,
				ProductID:      "p-2",
				SupplierID:     "sup-2",
				Quantity:       dec("2"),
				BaseUnitPrice:  money.NewTaxless(dec("10"), "EUR"),
				DiscountAmount: money.NewTaxless(dec("0"), "EUR"),
			},
		},
	}
	require.NoError(t, o.CacheTotals())
	return o
}

func TestOrder_CacheTotals(t *testing.T) {
	o := testOrder(t)
	// 470 + 20 taxless, 582.80 + 20 taxful.
	assert.True(t, o.TaxlessTotal.Amount.Equal(dec("490")), "taxless %s", o.TaxlessTotal.Amount)
	assert.True(t, o.TaxfulTotal.Amount.Equal(dec("602.80")), "taxful %s", o.TaxfulTotal.Amount)
}

func TestOrder_CreatePayment_FullyPaidFlow(t *testing.T) {
	o := testOrder(t)

	p1, err := o.CreatePayment(money.New(dec("300"), "EUR"), "", "first installment")
	require.NoError(t, err)
	assert.NotEmpty(t, p1.Identifier)
	assert.Equal(t, PaymentStatusPartiallyPaid, o.PaymentStatus)
	assert.Nil(t, o.PaymentDate)

	_, err = o.CreatePayment(money.New(dec("302.80"), "EUR"), "wire-2", "")
	require.NoError(t, err)
	assert.Equal(t, PaymentStatusFullyPaid, o.PaymentStatus)
	require.NotNil(t, o.PaymentDate)

	// A further payment on a fully paid order is rejected.
	_, err = o.CreatePayment(money.New(dec("1"), "EUR"), "", "")
	var noPayment *NoPaymentToCreateError
	require.ErrorAs(t, err, &noPayment)
	assert.Equal(t, "order-1", noPayment.OrderID)
}

func TestOrder_CreatePayment_NonPositiveAmount(t *testing.T) {
	o := testOrder(t)

	_, err := o.CreatePayment(money.NewFromInt(-5, "EUR"), "", "")
	require.ErrorIs(t, err, ErrNonPositivePayment)

	_, err = o.CreatePayment(money.Zero("EUR"), "", "")
	require.ErrorIs(t, err, ErrNonPositivePayment)
	assert.Empty(t, o.Payments)
	assert.Equal(t, PaymentStatusNotPaid, o.PaymentStatus)
}

func TestOrder_CreatePayment_CurrencyMismatch(t *testing.T) {
	o := testOrder(t)
	_, err := o.CreatePayment(money.New(dec("10"), "USD"), "", "")
	var mismatch *money.UnitMismatchError
	require.ErrorAs(t, err, &mismatch)
}

func shipmentProducts() map[string]catalog.Product {
	return map[string]catalog.Product{
		"p-1": {ID: "p-1", GrossWeight: dec("200"), Width: dec("100"), Height: dec("50"), Depth: dec("20")},
		"p-2": {ID: "p-2", GrossWeight: dec("50")},
	}
}

func TestOrder_CreateShipment(t *testing.T) {
	o := testOrder(t)

	sh, err := o.CreateShipment("sup-1", map[string]decimal.Decimal{"p-1": dec("3")}, shipmentProducts())
	require.NoError(t, err)
	assert.True(t, sh.Weight.Equal(dec("600")))
	assert.True(t, sh.Volume.Equal(dec("300000")))
	assert.Equal(t, ShippingStatusPartiallyShipped, o.ShippingStatus)

	unshipped := o.UnshippedQuantities("")
	assert.True(t, unshipped["p-1"].Equal(dec("2")))
	assert.True(t, unshipped["p-2"].Equal(dec("2")))
}

func TestOrder_CreateShipment_NothingToShip(t *testing.T) {
	o := testOrder(t)
	_, err := o.CreateShipment("sup-1", map[string]decimal.Decimal{"p-1": dec("0")}, shipmentProducts())
	var noShip *NoProductsToShipError
	require.ErrorAs(t, err, &noShip)
}

func TestOrder_CreateShipmentOfAllProducts(t *testing.T) {
	o := testOrder(t)

	shipments, err := o.CreateShipmentOfAllProducts("", shipmentProducts())
	require.NoError(t, err)
	// One shipment per supplier, ordered by supplier id.
	require.Len(t, shipments, 2)
	assert.Equal(t, "sup-1", shipments[0].SupplierID)
	assert.Equal(t, "sup-2", shipments[1].SupplierID)
	assert.Equal(t, ShippingStatusFullyShipped, o.ShippingStatus)

	// Everything shipped: a second call is rejected.
	_, err = o.CreateShipmentOfAllProducts("", shipmentProducts())
	var noShip *NoProductsToShipError
	require.ErrorAs(t, err, &noShip)
}

func TestOrder_CreateShipmentOfAllProducts_SingleSupplier(t *testing.T) {
	o := testOrder(t)

	shipments, err := o.CreateShipmentOfAllProducts("sup-2", shipmentProducts())
	require.NoError(t, err)
	require.Len(t, shipments, 1)
	assert.Equal(t, "sup-2", shipments[0].SupplierID)
	assert.Equal(t, ShippingStatusPartiallyShipped, o.ShippingStatus)
}

func TestOrder_StatusTransitions(t *testing.T) {
	o := testOrder(t)

	// Not shipped yet: cannot complete.
	assert.False(t, o.CanSetComplete())
	require.Error(t, o.SetComplete())

	_, err := o.CreateShipmentOfAllProducts("", shipmentProducts())
	require.NoError(t, err)
	assert.True(t, o.CanSetComplete())
	require.NoError(t, o.SetComplete())
	assert.Equal(t, StatusRoleComplete, o.StatusRole)
}

func TestOrder_SetCanceledIdempotent(t *testing.T) {
	o := testOrder(t)
	o.SetCanceled()
	assert.Equal(t, StatusRoleCanceled, o.StatusRole)
	o.SetCanceled()
	assert.Equal(t, StatusRoleCanceled, o.StatusRole)
	assert.False(t, o.CanSetComplete())
}

func TestOrder_DeleteIdempotent(t *testing.T) {
	o := testOrder(t)
	o.Delete()
	assert.True(t, o.Deleted)
	o.Delete()
	assert.True(t, o.Deleted)
}

func TestDefaultsToClear(t *testing.T) {
	siblings := []Status{
		{ID: "s1", Role: StatusRoleInitial, Default: true},
		{ID: "s2", Role: StatusRoleInitial, Default: false},
		{ID: "s3", Role: StatusRoleComplete, Default: true},
	}

	toClear := DefaultsToClear(Status{ID: "s4", Role: StatusRoleInitial, Default: true}, siblings)
	require.Len(t, toClear, 1)
	assert.Equal(t, "s1", toClear[0].ID)

	// Saving a non-default clears nothing.
	assert.Empty(t, DefaultsToClear(Status{ID: "s5", Role: StatusRoleInitial}, siblings))

	// Saving the current default keeps itself.
	assert.Empty(t, DefaultsToClear(Status{ID: "s1", Role: StatusRoleInitial, Default: true}, siblings))
}
