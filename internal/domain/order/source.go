// Package order holds the provisional order aggregate (Source, SourceLine),
// the persisted Order aggregate with its lifecycle operations, and the
// Creator that materializes the former into the latter.
package order

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/pricing-engine/internal/domain/catalog"
	"github.com/xenking/pricing-engine/internal/domain/money"
	"github.com/xenking/pricing-engine/internal/domain/pricing"
	"github.com/xenking/pricing-engine/internal/domain/tax"
)

var (
	// ErrTaxesNotCalculated is returned when a taxed total is read before
	// taxes have been computed and automatic calculation is off. Calling
	// CalculateTaxes first recovers.
	ErrTaxesNotCalculated = errors.New("order: taxes have not been calculated")

	// ErrReentrantComputation is returned when a line contributor triggers
	// recomputation of the source it is contributing to. This is a
	// programming error in the contributor.
	ErrReentrantComputation = errors.New("order: final line computation re-entered")
)

// LineContributor contributes extra lines to a source during final line
// computation: payment methods, shipping methods and campaign hooks all
// implement it. Contributed lines are returned, never added directly.
type LineContributor interface {
	ContributeLines(ctx context.Context, s *Source) ([]SourceLine, error)
}

// LineContributorFunc adapts a function to the LineContributor interface.
type LineContributorFunc func(ctx context.Context, s *Source) ([]SourceLine, error)

func (f LineContributorFunc) ContributeLines(ctx context.Context, s *Source) ([]SourceLine, error) {
	return f(ctx, s)
}

// Source is the provisional, uncommitted aggregate of priceable lines: a
// basket already resolved into orderable units. It is owned by exactly one
// logical flow and must not be shared between goroutines. Final lines and
// their taxes are computed lazily and cached; any mutation invalidates the
// cache.
type Source struct {
	Shop                    catalog.Shop
	DisplayPricesIncludeTax bool
	BillingAddress          *catalog.Address
	ShippingAddress         *catalog.Address
	Customer                *catalog.Contact
	OrdererID               string
	CreatorID               string

	// CalculateTaxesAutomatically makes taxed totals trigger tax
	// computation instead of failing with ErrTaxesNotCalculated. Off by
	// default: tax lookups may hit chargeable external services.
	CalculateTaxesAutomatically bool

	taxModule      tax.Module
	paymentMethod  LineContributor
	shippingMethod LineContributor
	contributors   []LineContributor

	lines           []*SourceLine
	finalLines      []*SourceLine
	taxesCalculated bool
	computing       bool
}

// NewSource creates a Source for the given shop. The tax module is the
// per-flow resolved strategy used for all tax computation of this source.
func NewSource(shop catalog.Shop, taxModule tax.Module) *Source {
	return &Source{
		Shop:                    shop,
		DisplayPricesIncludeTax: shop.PricesIncludeTax,
		taxModule:               taxModule,
	}
}

// Currency returns the source's currency, snapshotted from the shop.
func (s *Source) Currency() string {
	return s.Shop.Currency
}

// PricesIncludeTax reports the taxful-ness lines of this source are
// priced in.
func (s *Source) PricesIncludeTax() bool {
	return s.Shop.PricesIncludeTax
}

// SetPaymentMethod sets the contributor generating payment method lines.
func (s *Source) SetPaymentMethod(c LineContributor) {
	s.paymentMethod = c
	s.Uncache()
}

// SetShippingMethod sets the contributor generating shipping method lines.
func (s *Source) SetShippingMethod(c LineContributor) {
	s.shippingMethod = c
	s.Uncache()
}

// RegisterLineContributor appends an extension hook contributing lines
// after the method lines. Contributors run in registration order.
func (s *Source) RegisterLineContributor(c LineContributor) {
	s.contributors = append(s.contributors, c)
	s.Uncache()
}

// AddLine validates the line against the source's unit and appends it.
// A missing LineID is assigned. The returned pointer stays owned by the
// source.
func (s *Source) AddLine(line SourceLine) (*SourceLine, error) {
	if line.LineID == "" {
		line.LineID = uuid.NewString()
	}
	if err := line.validate(s.Currency(), s.PricesIncludeTax()); err != nil {
		return nil, err
	}
	l := &line
	s.lines = append(s.lines, l)
	s.Uncache()
	return l, nil
}

// Lines returns the raw lines in insertion order.
func (s *Source) Lines() []*SourceLine {
	out := make([]*SourceLine, len(s.lines))
	copy(out, s.lines)
	return out
}

// Uncache drops the computed final lines and their taxes, forcing
// recomputation on the next read.
func (s *Source) Uncache() {
	s.finalLines = nil
	s.taxesCalculated = false
}

// TaxesCalculated reports whether line taxes are currently computed.
func (s *Source) TaxesCalculated() bool {
	return s.taxesCalculated
}

// GetFinalLines returns the complete line set: raw lines, then payment
// method lines, then shipping method lines, then contributor lines. The
// result is cached until Uncache. With withTaxes set, taxes are computed
// before returning.
func (s *Source) GetFinalLines(ctx context.Context, withTaxes bool) ([]*SourceLine, error) {
	if s.finalLines == nil {
		if s.computing {
			return nil, ErrReentrantComputation
		}
		s.computing = true
		lines, err := s.computeFinalLines(ctx)
		s.computing = false
		if err != nil {
			return nil, err
		}
		s.finalLines = lines
		s.taxesCalculated = false
	}
	if withTaxes && !s.taxesCalculated {
		if err := s.CalculateTaxes(ctx, false); err != nil {
			return nil, err
		}
	}
	return s.finalLines, nil
}

func (s *Source) computeFinalLines(ctx context.Context) ([]*SourceLine, error) {
	lines := make([]*SourceLine, 0, len(s.lines))
	lines = append(lines, s.lines...)

	contributors := make([]LineContributor, 0, len(s.contributors)+2)
	if s.paymentMethod != nil {
		contributors = append(contributors, s.paymentMethod)
	}
	if s.shippingMethod != nil {
		contributors = append(contributors, s.shippingMethod)
	}
	contributors = append(contributors, s.contributors...)

	for _, c := range contributors {
		contributed, err := c.ContributeLines(ctx, s)
		if err != nil {
			return nil, errors.Wrap(err, "contribute lines")
		}
		for i := range contributed {
			line := contributed[i]
			if line.LineID == "" {
				line.LineID = uuid.NewString()
			}
			if err := line.validate(s.Currency(), s.PricesIncludeTax()); err != nil {
				return nil, err
			}
			lines = append(lines, &line)
		}
	}
	return lines, nil
}

// CalculateTaxes resolves and assigns taxes for every final line. Without
// force, a second call is a no-op until the source is uncached.
func (s *Source) CalculateTaxes(ctx context.Context, force bool) error {
	if s.taxesCalculated && !force {
		return nil
	}
	if s.taxModule == nil {
		return errors.New("order: source has no tax module")
	}
	lines, err := s.GetFinalLines(ctx, false)
	if err != nil {
		return err
	}
	tc := s.TaxingContext()
	for _, l := range lines {
		total, err := pricing.TotalPrice(l)
		if err != nil {
			return errors.Wrapf(err, "line %s total", l.LineID)
		}
		taxed, err := s.taxModule.GetTaxedPriceFor(ctx, tc, tax.Item{
			TaxClassID: l.TaxClassID,
			Price:      total,
		})
		if err != nil {
			return errors.Wrapf(err, "line %s taxes", l.LineID)
		}
		l.Taxes = taxed.Taxes
	}
	s.taxesCalculated = true
	return nil
}

// TaxingContext derives the taxation context for this source, falling
// back from the shipping address to the customer's default address.
func (s *Source) TaxingContext() tax.Context {
	return tax.ContextFrom(s.Customer, nil, s.ShippingAddress)
}

// PricingContext implements pricing.Contextable.
func (s *Source) PricingContext() pricing.Context {
	pc := pricing.Context{ShopID: s.Shop.ID}
	if s.Customer != nil {
		pc.CustomerID = s.Customer.ID
	}
	return pc
}

func (s *Source) ensureTaxes(ctx context.Context) error {
	if s.taxesCalculated {
		return nil
	}
	if !s.CalculateTaxesAutomatically {
		return ErrTaxesNotCalculated
	}
	return s.CalculateTaxes(ctx, false)
}

// TaxfulTotalPrice returns the sum of the final lines' taxful totals.
// It fails with ErrTaxesNotCalculated when taxes are unknown and
// automatic calculation is off.
func (s *Source) TaxfulTotalPrice(ctx context.Context) (money.Price, error) {
	return s.totalPrice(ctx, true)
}

// TaxlessTotalPrice returns the sum of the final lines' taxless totals,
// under the same tax calculation rules as TaxfulTotalPrice.
func (s *Source) TaxlessTotalPrice(ctx context.Context) (money.Price, error) {
	return s.totalPrice(ctx, false)
}

// TotalPrice returns the total in the shop's display taxful-ness.
func (s *Source) TotalPrice(ctx context.Context) (money.Price, error) {
	return s.totalPrice(ctx, s.DisplayPricesIncludeTax)
}

func (s *Source) totalPrice(ctx context.Context, includesTax bool) (money.Price, error) {
	lines, err := s.GetFinalLines(ctx, false)
	if err != nil {
		return money.Price{}, err
	}
	if err := s.ensureTaxes(ctx); err != nil {
		return money.Price{}, err
	}
	total := money.NewPrice(decimal.Zero, s.Currency(), includesTax)
	for _, l := range lines {
		var lineTotal money.Price
		if includesTax {
			lineTotal, err = pricing.TaxfulTotal(l)
		} else {
			lineTotal, err = pricing.TaxlessTotal(l)
		}
		if err != nil {
			return money.Price{}, errors.Wrapf(err, "line %s", l.LineID)
		}
		total, err = total.Add(lineTotal)
		if err != nil {
			return money.Price{}, errors.Wrapf(err, "line %s", l.LineID)
		}
	}
	return total, nil
}
