package catalog

import "github.com/go-faster/errors"

// ErrImmutableAddress is returned when mutating an address that has been
// frozen, e.g. after it was snapshotted onto a created order.
var ErrImmutableAddress = errors.New("catalog: address is immutable")

// Address is a postal address used for billing, shipping and tax location
// resolution. Once frozen it rejects further mutation.
type Address struct {
	Name        string
	Street      string
	City        string
	RegionCode  string
	PostalCode  string
	CountryCode string

	frozen bool
}

// Freeze marks the address immutable. Freezing twice is a no-op.
func (a *Address) Freeze() {
	a.frozen = true
}

// Frozen reports whether the address has been frozen.
func (a *Address) Frozen() bool {
	return a.frozen
}

// Assign copies the field values of src into a. It fails with
// ErrImmutableAddress when a has been frozen.
func (a *Address) Assign(src Address) error {
	if a.frozen {
		return ErrImmutableAddress
	}
	frozen := a.frozen
	*a = src
	a.frozen = frozen
	return nil
}

// Copy returns an unfrozen copy of the address.
func (a *Address) Copy() *Address {
	if a == nil {
		return nil
	}
	c := *a
	c.frozen = false
	return &c
}
