package tax

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/pricing-engine/internal/domain/money"
)

var one = decimal.NewFromInt(1)

// StackTaxes applies the ordered priority groups of taxes to a price and
// returns the price in taxful and taxless terms plus the individual
// charges.
//
// Taxes within one group are additive: each computes against the same
// base and their amounts sum. Successive groups compound: group k+1 taxes
// the taxful amount left after group k, which reproduces jurisdictions
// where one tax is levied on top of another.
//
// A taxless input price is taxed forward group by group. A taxful input
// is unwound in reverse compounding order: each group's base is recovered
// by removing flat amounts and dividing by (1 + sum of the group's rates).
func StackTaxes(price money.Price, groups [][]Tax) (TaxedPrice, error) {
	if len(groups) == 0 {
		return NewUntaxedPrice(price), nil
	}
	if price.IncludesTax {
		return stackOntoTaxful(price, groups)
	}
	return stackOntoTaxless(price, groups)
}

func stackOntoTaxless(price money.Price, groups [][]Tax) (TaxedPrice, error) {
	currency := price.Currency
	current := price.Amount
	var taxes []LineTax

	for _, group := range groups {
		base := money.New(current, currency)
		groupTotal := decimal.Zero
		for _, t := range group {
			amount, err := t.AmountFor(base)
			if err != nil {
				return TaxedPrice{}, errors.Wrapf(err, "tax %s", t.Code)
			}
			taxes = append(taxes, newLineTax(t, amount, base))
			groupTotal = groupTotal.Add(amount.Amount)
		}
		current = current.Add(groupTotal)
	}

	return TaxedPrice{
		Taxful:  money.NewTaxful(current, currency),
		Taxless: money.NewTaxless(price.Amount, currency),
		Taxes:   taxes,
	}, nil
}

func stackOntoTaxful(price money.Price, groups [][]Tax) (TaxedPrice, error) {
	currency := price.Currency
	current := price.Amount

	// Unwind outermost group first to recover each group's base, then
	// reassemble the charges in compounding order.
	reversed := make([][]LineTax, len(groups))
	for i := len(groups) - 1; i >= 0; i-- {
		group := groups[i]
		flat := decimal.Zero
		rates := decimal.Zero
		for _, t := range group {
			switch {
			case t.Rate != nil:
				rates = rates.Add(*t.Rate)
			case t.Amount != nil:
				if t.Amount.Currency != currency {
					return TaxedPrice{}, &money.UnitMismatchError{Op: "remove flat tax from", Left: t.Amount.Currency, Right: currency}
				}
				flat = flat.Add(t.Amount.Amount)
			default:
				return TaxedPrice{}, errors.Errorf("tax %s: no rate or amount", t.Code)
			}
		}

		baseAmount := current.Sub(flat).Div(one.Add(rates))
		base := money.New(baseAmount, currency)

		lineTaxes := make([]LineTax, 0, len(group))
		for _, t := range group {
			amount, err := t.AmountFor(base)
			if err != nil {
				return TaxedPrice{}, errors.Wrapf(err, "tax %s", t.Code)
			}
			lineTaxes = append(lineTaxes, newLineTax(t, amount, base))
		}
		reversed[i] = lineTaxes
		current = baseAmount
	}

	var taxes []LineTax
	for _, group := range reversed {
		taxes = append(taxes, group...)
	}

	return TaxedPrice{
		Taxful:  money.NewTaxful(price.Amount, currency),
		Taxless: money.NewTaxless(current, currency),
		Taxes:   taxes,
	}, nil
}

func newLineTax(t Tax, amount, base money.Money) LineTax {
	rate := decimal.Zero
	if !base.Amount.IsZero() {
		rate = amount.Amount.Div(base.Amount)
	}
	return LineTax{
		TaxID:      t.ID,
		Name:       t.Name,
		Rate:       rate,
		Amount:     amount,
		BaseAmount: base,
	}
}
