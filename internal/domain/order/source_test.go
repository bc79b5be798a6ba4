package order

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/pricing-engine/internal/domain/catalog"
	"github.com/xenking/pricing-engine/internal/domain/money"
	"github.com/xenking/pricing-engine/internal/domain/tax"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var taxlessShop = catalog.Shop{
	ID:               "shop-1",
	Name:             "Test Shop",
	Currency:         "EUR",
	PricesIncludeTax: false,
}

// fiTaxModule resolves a flat 24% rule for country FI.
func fiTaxModule() tax.Module {
	rate := dec("0.24")
	return tax.NewRuleBasedModule(staticRules{rules: []tax.Rule{{
		ID:             "fi-vat",
		CountryPattern: "FI",
		Priority:       1,
		Enabled:        true,
		Tax:            tax.Tax{ID: "vat24", Code: "vat24", Name: "VAT 24%", Rate: &rate},
	}}})
}

type staticRules struct {
	rules []tax.Rule
}

func (s staticRules) ListEnabled(_ context.Context, _ string) ([]tax.Rule, error) {
	return s.rules, nil
}

func fiAddress() *catalog.Address {
	return &catalog.Address{CountryCode: "FI", City: "Helsinki", PostalCode: "00100"}
}

func productLine(base, qty, discount string) SourceLine {
	return SourceLine{
		Type:           LineTypeProduct,
		ProductID:      "p-1",
		SupplierID:     "sup-1",
		TaxClassID:     "standard",
		Quantity:       dec(qty),
		BaseUnitPrice:  money.NewTaxless(dec(base), "EUR"),
		DiscountAmount: money.NewTaxless(dec(discount), "EUR"),
	}
}

func TestSource_EndToEndTaxation(t *testing.T) {
	// Taxless shop, 24% rule for FI, one line:
	// base 100 x 5 - 30 discount = 470 taxless, 112.80 tax, 582.80 taxful.
	s := NewSource(taxlessShop, fiTaxModule())
	s.ShippingAddress = fiAddress()

	_, err := s.AddLine(productLine("100", "5", "30"))
	require.NoError(t, err)

	require.NoError(t, s.CalculateTaxes(context.Background(), false))

	taxless, err := s.TaxlessTotalPrice(context.Background())
	require.NoError(t, err)
	assert.True(t, taxless.Amount.Equal(dec("470")), "taxless %s", taxless.Amount)

	taxful, err := s.TaxfulTotalPrice(context.Background())
	require.NoError(t, err)
	assert.True(t, taxful.Amount.Equal(dec("582.8")), "taxful %s", taxful.Amount)

	lines, err := s.GetFinalLines(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.True(t, lines[0].TaxAmount().Amount.Equal(dec("112.8")))
}

func TestSource_TaxesNotCalculated(t *testing.T) {
	s := NewSource(taxlessShop, fiTaxModule())
	s.ShippingAddress = fiAddress()
	_, err := s.AddLine(productLine("100", "1", "0"))
	require.NoError(t, err)

	_, err = s.TaxfulTotalPrice(context.Background())
	require.ErrorIs(t, err, ErrTaxesNotCalculated)

	// Explicit calculation recovers.
	require.NoError(t, s.CalculateTaxes(context.Background(), false))
	_, err = s.TaxfulTotalPrice(context.Background())
	require.NoError(t, err)
}

func TestSource_AutomaticTaxCalculation(t *testing.T) {
	s := NewSource(taxlessShop, fiTaxModule())
	s.ShippingAddress = fiAddress()
	s.CalculateTaxesAutomatically = true
	_, err := s.AddLine(productLine("100", "1", "0"))
	require.NoError(t, err)

	taxful, err := s.TaxfulTotalPrice(context.Background())
	require.NoError(t, err)
	assert.True(t, taxful.Amount.Equal(dec("124")))
}

func TestSource_UncacheForcesRecompute(t *testing.T) {
	s := NewSource(taxlessShop, fiTaxModule())
	s.ShippingAddress = fiAddress()
	_, err := s.AddLine(productLine("100", "1", "0"))
	require.NoError(t, err)

	first, err := s.GetFinalLines(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, first, 1)

	// Adding a line invalidates the cache; the next read recomputes.
	_, err = s.AddLine(productLine("50", "2", "0"))
	require.NoError(t, err)

	second, err := s.GetFinalLines(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, second, 2)

	// Explicit uncache produces a fresh slice.
	s.Uncache()
	third, err := s.GetFinalLines(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, third, 2)
	assert.NotSame(t, &second[0], &third[0])
}

func TestSource_MethodAndContributorLineOrder(t *testing.T) {
	s := NewSource(taxlessShop, fiTaxModule())
	s.ShippingAddress = fiAddress()
	_, err := s.AddLine(productLine("100", "1", "0"))
	require.NoError(t, err)

	method := func(text string, typ LineType) LineContributor {
		return LineContributorFunc(func(_ context.Context, _ *Source) ([]SourceLine, error) {
			return []SourceLine{{
				Type:           typ,
				Text:           text,
				Quantity:       dec("1"),
				BaseUnitPrice:  money.NewTaxless(dec("5"), "EUR"),
				DiscountAmount: money.NewTaxless(dec("0"), "EUR"),
			}}, nil
		})
	}
	s.SetPaymentMethod(method("payment fee", LineTypePayment))
	s.SetShippingMethod(method("shipping fee", LineTypeShipping))
	s.RegisterLineContributor(method("campaign", LineTypeCampaign))

	lines, err := s.GetFinalLines(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, lines, 4)
	assert.Equal(t, LineTypeProduct, lines[0].Type)
	assert.Equal(t, LineTypePayment, lines[1].Type)
	assert.Equal(t, LineTypeShipping, lines[2].Type)
	assert.Equal(t, LineTypeCampaign, lines[3].Type)
}

func TestSource_ReentrantContributorFailsLoudly(t *testing.T) {
	s := NewSource(taxlessShop, fiTaxModule())
	s.ShippingAddress = fiAddress()
	_, err := s.AddLine(productLine("100", "1", "0"))
	require.NoError(t, err)

	s.RegisterLineContributor(LineContributorFunc(func(ctx context.Context, src *Source) ([]SourceLine, error) {
		// A contributor must not trigger recomputation of its own source.
		_, err := src.GetFinalLines(ctx, false)
		return nil, err
	}))

	_, err = s.GetFinalLines(context.Background(), false)
	require.ErrorIs(t, err, ErrReentrantComputation)
}

func TestSource_AddLineValidation(t *testing.T) {
	s := NewSource(taxlessShop, fiTaxModule())

	// Taxful price in a taxless-priced source.
	bad := productLine("100", "1", "0")
	bad.BaseUnitPrice = money.NewTaxful(dec("100"), "EUR")
	_, err := s.AddLine(bad)
	var mismatch *money.UnitMismatchError
	require.ErrorAs(t, err, &mismatch)

	// Product line without supplier.
	noSupplier := productLine("100", "1", "0")
	noSupplier.SupplierID = ""
	_, err = s.AddLine(noSupplier)
	require.ErrorIs(t, err, ErrProductRequired)

	// Non-product line referencing a product.
	other := SourceLine{
		Type:           LineTypeOther,
		ProductID:      "p-1",
		Quantity:       dec("1"),
		BaseUnitPrice:  money.NewTaxless(dec("1"), "EUR"),
		DiscountAmount: money.NewTaxless(dec("0"), "EUR"),
	}
	_, err = s.AddLine(other)
	require.ErrorIs(t, err, ErrUnexpectedProduct)
}

func TestSourceLine_AttachProduct(t *testing.T) {
	line := &SourceLine{Type: LineTypeProduct}
	p := &catalog.Product{ID: "p-1", TaxClassID: "standard"}

	require.NoError(t, line.AttachProduct(p))
	assert.Equal(t, "standard", line.TaxClassID)
	assert.Equal(t, "p-1", line.ProductID)

	conflicting := &SourceLine{Type: LineTypeProduct, TaxClassID: "reduced"}
	err := conflicting.AttachProduct(p)
	require.ErrorIs(t, err, ErrTaxClassConflict)
}

func TestSource_NoMatchingRulesYieldsZeroTaxes(t *testing.T) {
	s := NewSource(taxlessShop, fiTaxModule())
	s.ShippingAddress = &catalog.Address{CountryCode: "SE"}
	_, err := s.AddLine(productLine("100", "1", "0"))
	require.NoError(t, err)

	require.NoError(t, s.CalculateTaxes(context.Background(), false))

	taxful, err := s.TaxfulTotalPrice(context.Background())
	require.NoError(t, err)
	assert.True(t, taxful.Amount.Equal(dec("100")))
}
