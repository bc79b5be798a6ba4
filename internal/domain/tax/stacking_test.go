package tax

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/pricing-engine/internal/domain/money"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func moneyNew(amount, currency string) money.Money {
	return money.New(dec(amount), currency)
}

func rateTax(code, rate string) Tax {
	return Tax{ID: code, Code: code, Name: code, Rate: ratePtr(rate)}
}

func flatTax(code, amount, currency string) Tax {
	m := moneyNew(amount, currency)
	return Tax{ID: code, Code: code, Name: code, Amount: &m}
}

func TestStackTaxes_NoGroups(t *testing.T) {
	price := money.NewTaxless(dec("100"), "EUR")
	tp, err := StackTaxes(price, nil)
	require.NoError(t, err)

	assert.Empty(t, tp.Taxes)
	assert.True(t, tp.Taxless.Amount.Equal(dec("100")))
	assert.True(t, tp.Taxful.Amount.Equal(dec("100")))
	assert.True(t, tp.TaxAmount().IsZero())
}

func TestStackTaxes_SingleRate(t *testing.T) {
	price := money.NewTaxless(dec("470"), "EUR")
	tp, err := StackTaxes(price, [][]Tax{{rateTax("vat24", "0.24")}})
	require.NoError(t, err)

	assert.True(t, tp.TaxAmount().Amount.Equal(dec("112.8")), "got %s", tp.TaxAmount().Amount)
	assert.True(t, tp.Taxful.Amount.Equal(dec("582.8")))
	assert.True(t, tp.Taxless.Amount.Equal(dec("470")))
}

func TestStackTaxes_StackedWithinGroup(t *testing.T) {
	// Two taxes at one priority compute against the same base.
	price := money.NewTaxless(dec("100"), "EUR")
	tp, err := StackTaxes(price, [][]Tax{
		{rateTax("a", "0.10"), rateTax("b", "0.05")},
	})
	require.NoError(t, err)

	require.Len(t, tp.Taxes, 2)
	assert.True(t, tp.Taxes[0].Amount.Amount.Equal(dec("10")))
	assert.True(t, tp.Taxes[1].Amount.Amount.Equal(dec("5")))
	assert.True(t, tp.Taxes[0].BaseAmount.Amount.Equal(dec("100")))
	assert.True(t, tp.Taxes[1].BaseAmount.Amount.Equal(dec("100")))
	assert.True(t, tp.Taxful.Amount.Equal(dec("115")))
}

func TestStackTaxes_CompoundedAcrossGroups(t *testing.T) {
	// Provincial tax levied on price + federal tax: the second group's
	// base is the taxful amount after the first group.
	price := money.NewTaxless(dec("100"), "EUR")
	tp, err := StackTaxes(price, [][]Tax{
		{rateTax("federal", "0.05")},
		{rateTax("provincial", "0.10")},
	})
	require.NoError(t, err)

	require.Len(t, tp.Taxes, 2)
	assert.True(t, tp.Taxes[0].Amount.Amount.Equal(dec("5")))
	assert.True(t, tp.Taxes[1].BaseAmount.Amount.Equal(dec("105")))
	assert.True(t, tp.Taxes[1].Amount.Amount.Equal(dec("10.5")))
	assert.True(t, tp.Taxful.Amount.Equal(dec("115.5")))
}

func TestStackTaxes_FlatAmount(t *testing.T) {
	price := money.NewTaxless(dec("100"), "EUR")
	tp, err := StackTaxes(price, [][]Tax{{flatTax("eco", "2.50", "EUR")}})
	require.NoError(t, err)

	assert.True(t, tp.Taxful.Amount.Equal(dec("102.5")))
	require.Len(t, tp.Taxes, 1)
	assert.True(t, tp.Taxes[0].Rate.Equal(dec("0.025")))
}

func TestStackTaxes_FlatAmountCurrencyMismatch(t *testing.T) {
	price := money.NewTaxless(dec("100"), "EUR")
	_, err := StackTaxes(price, [][]Tax{{flatTax("eco", "2.50", "USD")}})
	var mismatch *money.UnitMismatchError
	require.ErrorAs(t, err, &mismatch)
}

func TestStackTaxes_TaxfulInput_SingleGroup(t *testing.T) {
	// The inverse computation divides by (1 + sum of rates).
	price := money.NewTaxful(dec("124"), "EUR")
	tp, err := StackTaxes(price, [][]Tax{{rateTax("vat24", "0.24")}})
	require.NoError(t, err)

	assert.True(t, tp.Taxless.Amount.Equal(dec("100")), "got %s", tp.Taxless.Amount)
	assert.True(t, tp.TaxAmount().Amount.Equal(dec("24")))
}

func TestStackTaxes_TaxfulInput_MultiGroupUnwindsIteratively(t *testing.T) {
	// Forward: 100 -> 105 (5%) -> 115.5 (10% compounded).
	price := money.NewTaxful(dec("115.5"), "EUR")
	tp, err := StackTaxes(price, [][]Tax{
		{rateTax("federal", "0.05")},
		{rateTax("provincial", "0.10")},
	})
	require.NoError(t, err)

	assert.True(t, tp.Taxless.Amount.Equal(dec("100")), "got %s", tp.Taxless.Amount)
	require.Len(t, tp.Taxes, 2)
	// Charges are reported in compounding order even though the
	// computation unwinds in reverse.
	assert.Equal(t, "federal", tp.Taxes[0].Name)
	assert.True(t, tp.Taxes[0].Amount.Amount.Equal(dec("5")))
	assert.True(t, tp.Taxes[1].Amount.Amount.Equal(dec("10.5")))
}

func TestStackTaxes_RoundTrip(t *testing.T) {
	// Computing a taxful price from a taxless one and removing the same
	// taxes recovers the original amount within rounding tolerance.
	groups := [][]Tax{
		{rateTax("a", "0.055"), rateTax("b", "0.0125")},
		{rateTax("c", "0.0999")},
		{flatTax("d", "1.25", "EUR")},
	}
	epsilon := dec("0.000001")

	for _, start := range []string{"100", "0.07", "1234.5678", "99999.99"} {
		price := money.NewTaxless(dec(start), "EUR")
		forward, err := StackTaxes(price, groups)
		require.NoError(t, err)

		back, err := StackTaxes(forward.Taxful, groups)
		require.NoError(t, err)

		diff := back.Taxless.Amount.Sub(dec(start)).Abs()
		assert.True(t, diff.LessThanOrEqual(epsilon),
			"start %s: recovered %s", start, back.Taxless.Amount)
	}
}

func TestStackTaxes_ZeroBase(t *testing.T) {
	price := money.NewTaxless(dec("0"), "EUR")
	tp, err := StackTaxes(price, [][]Tax{{rateTax("vat", "0.24")}})
	require.NoError(t, err)

	assert.True(t, tp.Taxful.IsZero())
	require.Len(t, tp.Taxes, 1)
	assert.True(t, tp.Taxes[0].Rate.IsZero())
}
