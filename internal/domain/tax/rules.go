package tax

import (
	"context"
	"sort"
)

// Rule decides when its Tax applies. Matching criteria are the customer
// tax groups, the tax classes of the taxed item, and location patterns.
// Rules are written by administrative tooling and read-only here.
type Rule struct {
	ID             string
	TaxGroupIDs    []string // empty: applies to every tax group
	TaxClassIDs    []string // empty: applies to every tax class
	CountryPattern string
	RegionPattern  string
	PostalPattern  string
	Priority       int
	OverrideGroup  int
	Enabled        bool
	Tax            Tax
}

// Matches reports whether the rule applies in the given taxation context.
func (r Rule) Matches(tc Context) bool {
	if len(r.TaxGroupIDs) > 0 && !contains(r.TaxGroupIDs, tc.TaxGroupID) {
		return false
	}
	if !MatchPattern(r.CountryPattern, tc.CountryCode) {
		return false
	}
	if !MatchPattern(r.RegionPattern, tc.RegionCode) {
		return false
	}
	if !MatchPattern(r.PostalPattern, tc.PostalCode) {
		return false
	}
	return true
}

// AppliesToTaxClass reports whether the rule covers the given tax class.
func (r Rule) AppliesToTaxClass(taxClassID string) bool {
	return len(r.TaxClassIDs) == 0 || contains(r.TaxClassIDs, taxClassID)
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// SelectRules resolves which taxes apply in the given context and how they
// combine. Matching rules are narrowed to the single highest override
// group present, letting a small exemption rule set fully supersede the
// normal rules. The survivors' taxes are grouped by ascending priority:
// taxes within one group stack additively, successive groups compound.
// An empty matching set yields no groups.
func SelectRules(rules []Rule, tc Context) [][]Tax {
	var matching []Rule
	for _, r := range rules {
		if r.Enabled && r.Matches(tc) {
			matching = append(matching, r)
		}
	}
	if len(matching) == 0 {
		return nil
	}

	maxOverride := matching[0].OverrideGroup
	for _, r := range matching[1:] {
		if r.OverrideGroup > maxOverride {
			maxOverride = r.OverrideGroup
		}
	}
	surviving := matching[:0]
	for _, r := range matching {
		if r.OverrideGroup == maxOverride {
			surviving = append(surviving, r)
		}
	}

	sort.SliceStable(surviving, func(i, j int) bool {
		return surviving[i].Priority < surviving[j].Priority
	})

	var groups [][]Tax
	prevPriority := 0
	for i, r := range surviving {
		if i == 0 || r.Priority != prevPriority {
			groups = append(groups, []Tax{r.Tax})
		} else {
			groups[len(groups)-1] = append(groups[len(groups)-1], r.Tax)
		}
		prevPriority = r.Priority
	}
	return groups
}

// RuleRepository provides the enabled rules applicable to a tax class.
// Pattern and group matching still happens in SelectRules; the repository
// only narrows the candidate set.
type RuleRepository interface {
	ListEnabled(ctx context.Context, taxClassID string) ([]Rule, error)
}
