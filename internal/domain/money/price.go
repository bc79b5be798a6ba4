package money

import "github.com/shopspring/decimal"

// Price is a Money value that additionally records whether the amount
// includes tax. Taxful and taxless prices never interoperate: arithmetic
// between them fails with UnitMismatchError.
type Price struct {
	Money
	IncludesTax bool
}

// NewTaxful creates a Price whose amount includes tax.
func NewTaxful(amount decimal.Decimal, currency string) Price {
	return Price{Money: New(amount, currency), IncludesTax: true}
}

// NewTaxless creates a Price whose amount excludes tax.
func NewTaxless(amount decimal.Decimal, currency string) Price {
	return Price{Money: New(amount, currency), IncludesTax: false}
}

// NewPrice creates a Price with an explicit taxful-ness flag.
func NewPrice(amount decimal.Decimal, currency string, includesTax bool) Price {
	return Price{Money: New(amount, currency), IncludesTax: includesTax}
}

// ZeroPrice returns a zero Price sharing p's unit.
func (p Price) ZeroPrice() Price {
	return Price{Money: Zero(p.Currency), IncludesTax: p.IncludesTax}
}

func (p Price) unit() string {
	if p.IncludesTax {
		return p.Currency + " (incl. tax)"
	}
	return p.Currency + " (excl. tax)"
}

func (p Price) checkUnit(op string, o Price) error {
	if p.Currency != o.Currency || p.IncludesTax != o.IncludesTax {
		return &UnitMismatchError{Op: op, Left: p.unit(), Right: o.unit()}
	}
	return nil
}

// SameUnit reports whether o shares p's currency and taxful-ness.
func (p Price) SameUnit(o Price) bool {
	return p.Currency == o.Currency && p.IncludesTax == o.IncludesTax
}

// Add returns p + o. Currency and taxful-ness must match.
func (p Price) Add(o Price) (Price, error) {
	if err := p.checkUnit("add", o); err != nil {
		return Price{}, err
	}
	return Price{Money: New(p.Amount.Add(o.Amount), p.Currency), IncludesTax: p.IncludesTax}, nil
}

// Sub returns p - o. Currency and taxful-ness must match.
func (p Price) Sub(o Price) (Price, error) {
	if err := p.checkUnit("subtract", o); err != nil {
		return Price{}, err
	}
	return Price{Money: New(p.Amount.Sub(o.Amount), p.Currency), IncludesTax: p.IncludesTax}, nil
}

// Mul returns p scaled by the given factor.
func (p Price) Mul(factor decimal.Decimal) Price {
	return Price{Money: p.Money.Mul(factor), IncludesTax: p.IncludesTax}
}

// Div returns p divided by the given divisor.
func (p Price) Div(divisor decimal.Decimal) Price {
	return Price{Money: p.Money.Div(divisor), IncludesTax: p.IncludesTax}
}

// Equal reports whether amount, currency and taxful-ness are all equal.
func (p Price) Equal(o Price) bool {
	return p.SameUnit(o) && p.Amount.Equal(o.Amount)
}

// RoundBank returns p rounded half-to-even to two decimal places.
func (p Price) RoundBank() Price {
	return Price{Money: p.Money.RoundBank(), IncludesTax: p.IncludesTax}
}

func (p Price) String() string {
	return p.Amount.String() + " " + p.unit()
}
