package tax

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/pricing-engine/internal/domain/catalog"
	"github.com/xenking/pricing-engine/internal/domain/money"
)

func testAddress(country, region, postal string) *catalog.Address {
	return &catalog.Address{CountryCode: country, RegionCode: region, PostalCode: postal}
}

var testContact = catalog.Contact{
	ID:                     "c-1",
	TaxGroupID:             "companies",
	TaxNumber:              "FI12345678",
	DefaultShippingAddress: testAddress("NO", "03", "0150"),
}

type mockRuleRepo struct {
	rules []Rule
	err   error
}

func (m *mockRuleRepo) ListEnabled(_ context.Context, _ string) ([]Rule, error) {
	return m.rules, m.err
}

func TestRuleBasedModule_GetTaxedPriceFor(t *testing.T) {
	fi := Rule{
		ID:             "fi-vat",
		CountryPattern: "FI",
		Priority:       1,
		Enabled:        true,
		Tax:            rateTax("vat24", "0.24"),
	}
	module := NewRuleBasedModule(&mockRuleRepo{rules: []Rule{fi}})

	item := Item{TaxClassID: "standard", Price: money.NewTaxless(dec("470"), "EUR")}

	tp, err := module.GetTaxedPriceFor(context.Background(), Context{CountryCode: "FI"}, item)
	require.NoError(t, err)
	assert.True(t, tp.TaxAmount().Amount.Equal(dec("112.8")))
	assert.True(t, tp.Taxful.Amount.Equal(dec("582.8")))

	assert.True(t, tp.PriceFor(true).IncludesTax)
	assert.True(t, tp.PriceFor(true).Amount.Equal(dec("582.8")))
	assert.False(t, tp.PriceFor(false).IncludesTax)
	assert.True(t, tp.PriceFor(false).Amount.Equal(dec("470")))
}

func TestRuleBasedModule_NoMatchingRules(t *testing.T) {
	module := NewRuleBasedModule(&mockRuleRepo{})

	item := Item{TaxClassID: "standard", Price: money.NewTaxless(dec("100"), "EUR")}
	tp, err := module.GetTaxedPriceFor(context.Background(), Context{CountryCode: "SE"}, item)
	require.NoError(t, err)

	assert.Empty(t, tp.Taxes)
	assert.True(t, tp.Taxless.Amount.Equal(dec("100")))
	assert.True(t, tp.Taxful.Amount.Equal(dec("100")))
}

func TestRuleBasedModule_TaxClassRestriction(t *testing.T) {
	reduced := Rule{
		ID:             "fi-reduced",
		TaxClassIDs:    []string{"books"},
		CountryPattern: "FI",
		Priority:       1,
		Enabled:        true,
		Tax:            rateTax("vat10", "0.10"),
	}
	module := NewRuleBasedModule(&mockRuleRepo{rules: []Rule{reduced}})
	tc := Context{CountryCode: "FI"}

	tp, err := module.GetTaxedPriceFor(context.Background(), tc, Item{TaxClassID: "books", Price: money.NewTaxless(dec("100"), "EUR")})
	require.NoError(t, err)
	assert.True(t, tp.Taxful.Amount.Equal(dec("110")))

	tp, err = module.GetTaxedPriceFor(context.Background(), tc, Item{TaxClassID: "standard", Price: money.NewTaxless(dec("100"), "EUR")})
	require.NoError(t, err)
	assert.Empty(t, tp.Taxes)
}

func TestContextFrom_LocationFallback(t *testing.T) {
	customer := &testContact
	explicit := testAddress("FI", "18", "00100")
	shipping := testAddress("SE", "AB", "11122")

	tc := ContextFrom(customer, explicit, shipping)
	assert.Equal(t, "FI", tc.CountryCode)

	tc = ContextFrom(customer, nil, shipping)
	assert.Equal(t, "SE", tc.CountryCode)
	assert.Equal(t, "AB", tc.RegionCode)

	tc = ContextFrom(customer, nil, nil)
	assert.Equal(t, "NO", tc.CountryCode)
	assert.Equal(t, "companies", tc.TaxGroupID)
	assert.Equal(t, "FI12345678", tc.TaxNumber)

	tc = ContextFrom(nil, nil, nil)
	assert.Empty(t, tc.CountryCode)
}
