package tax

import "github.com/xenking/pricing-engine/internal/domain/catalog"

// Context is the taxation context: the customer's tax group and number
// plus the location taxes are levied for.
type Context struct {
	TaxGroupID  string
	TaxNumber   string
	CountryCode string
	RegionCode  string
	PostalCode  string
}

// ContextFrom builds a taxation context for a customer. The location falls
// back through: explicit location, the shipping address, the customer's
// default shipping address.
func ContextFrom(customer *catalog.Contact, location, shippingAddress *catalog.Address) Context {
	tc := Context{}
	if customer != nil {
		tc.TaxGroupID = customer.TaxGroupID
		tc.TaxNumber = customer.TaxNumber
	}

	addr := location
	if addr == nil {
		addr = shippingAddress
	}
	if addr == nil && customer != nil {
		addr = customer.DefaultShippingAddress
	}
	if addr != nil {
		tc.CountryCode = addr.CountryCode
		tc.RegionCode = addr.RegionCode
		tc.PostalCode = addr.PostalCode
	}
	return tc
}
