package tax

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/pricing-engine/internal/domain/money"
)

// Item is the minimal view of a taxable line: its tax class and the price
// to tax.
type Item struct {
	TaxClassID string
	Price      money.Price
}

// Module is the pluggable taxation strategy. Implementations may call out
// to external tax services; callers are expected to invoke the module
// lazily for that reason.
type Module interface {
	GetTaxedPriceFor(ctx context.Context, tc Context, item Item) (TaxedPrice, error)
}

// RuleBasedModule computes taxes from the rule table: it looks up the
// enabled rules for the item's tax class, resolves them with override and
// priority semantics, and stacks the surviving taxes onto the price.
type RuleBasedModule struct {
	rules RuleRepository
}

var _ Module = (*RuleBasedModule)(nil)

// NewRuleBasedModule creates a RuleBasedModule reading rules from the
// given repository.
func NewRuleBasedModule(rules RuleRepository) *RuleBasedModule {
	return &RuleBasedModule{rules: rules}
}

// GetTaxedPriceFor implements Module. An item with no matching rules
// yields zero taxes and an unchanged price.
func (m *RuleBasedModule) GetTaxedPriceFor(ctx context.Context, tc Context, item Item) (TaxedPrice, error) {
	rules, err := m.rules.ListEnabled(ctx, item.TaxClassID)
	if err != nil {
		return TaxedPrice{}, errors.Wrap(err, "list tax rules")
	}
	applicable := rules[:0]
	for _, r := range rules {
		if r.AppliesToTaxClass(item.TaxClassID) {
			applicable = append(applicable, r)
		}
	}
	groups := SelectRules(applicable, tc)
	return StackTaxes(item.Price, groups)
}
