package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/pricing-engine/internal/domain/money"
	"github.com/xenking/pricing-engine/internal/domain/tax"
)

var _ tax.RuleRepository = (*TaxRuleRepository)(nil)

// TaxRuleRepository implements tax.RuleRepository backed by PostgreSQL.
// Queries are built dynamically because the tax class filter is optional.
type TaxRuleRepository struct {
	pool *pgxpool.Pool
	sb   sq.StatementBuilderType
}

// NewTaxRuleRepository returns a TaxRuleRepository that uses the given pool.
func NewTaxRuleRepository(pool *pgxpool.Pool) *TaxRuleRepository {
	return &TaxRuleRepository{
		pool: pool,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// ListEnabled returns the enabled tax rules covering the given tax class,
// joined with their tax definitions. An empty taxClassID returns every
// enabled rule.
func (r *TaxRuleRepository) ListEnabled(ctx context.Context, taxClassID string) ([]tax.Rule, error) {
	q := r.sb.Select(
		"r.id", "r.tax_group_ids", "r.tax_class_ids",
		"r.country_pattern", "r.region_pattern", "r.postal_pattern",
		"r.priority", "r.override_group", "r.enabled",
		"t.id", "t.code", "t.name", "t.rate", "t.flat_amount", "t.flat_currency",
	).
		From("tax_rules r").
		Join("taxes t ON t.id = r.tax_id").
		Where(sq.Eq{"r.enabled": true, "t.enabled": true}).
		OrderBy("r.priority", "r.id")

	if taxClassID != "" {
		q = q.Where(sq.Or{
			sq.Expr("cardinality(r.tax_class_ids) = 0"),
			sq.Expr("? = ANY(r.tax_class_ids)", taxClassID),
		})
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building tax rule query: %w", err)
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("listing tax rules for class %q: %w", taxClassID, err)
	}

	rules, err := pgx.CollectRows(rows, scanTaxRule)
	if err != nil {
		return nil, fmt.Errorf("listing tax rules for class %q: %w", taxClassID, err)
	}
	return rules, nil
}

// SaveRule upserts a tax rule together with its tax definition. Used by
// the ingest tooling; the engine itself only reads rules.
func (r *TaxRuleRepository) SaveRule(ctx context.Context, rule tax.Rule) error {
	if err := rule.Tax.Validate(); err != nil {
		return err
	}

	var (
		rate         decimal.NullDecimal
		flatAmount   decimal.NullDecimal
		flatCurrency *string
	)
	if rule.Tax.Rate != nil {
		rate = decimal.NullDecimal{Decimal: *rule.Tax.Rate, Valid: true}
	}
	if rule.Tax.Amount != nil {
		flatAmount = decimal.NullDecimal{Decimal: rule.Tax.Amount.Amount, Valid: true}
		flatCurrency = &rule.Tax.Amount.Currency
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("saving tax rule %q: %w", rule.ID, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	taxSQL, taxArgs, err := r.sb.Insert("taxes").
		Columns("id", "code", "name", "rate", "flat_amount", "flat_currency", "enabled").
		Values(rule.Tax.ID, rule.Tax.Code, rule.Tax.Name, rate, flatAmount, flatCurrency, true).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			code = EXCLUDED.code, name = EXCLUDED.name, rate = EXCLUDED.rate,
			flat_amount = EXCLUDED.flat_amount, flat_currency = EXCLUDED.flat_currency,
			enabled = EXCLUDED.enabled`).
		ToSql()
	if err != nil {
		return fmt.Errorf("building tax upsert: %w", err)
	}
	if _, err := tx.Exec(ctx, taxSQL, taxArgs...); err != nil {
		return fmt.Errorf("saving tax %q: %w", rule.Tax.ID, err)
	}

	ruleSQL, ruleArgs, err := r.sb.Insert("tax_rules").
		Columns("id", "tax_id", "tax_group_ids", "tax_class_ids",
			"country_pattern", "region_pattern", "postal_pattern",
			"priority", "override_group", "enabled").
		Values(rule.ID, rule.Tax.ID, rule.TaxGroupIDs, rule.TaxClassIDs,
			rule.CountryPattern, rule.RegionPattern, rule.PostalPattern,
			rule.Priority, rule.OverrideGroup, rule.Enabled).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			tax_id = EXCLUDED.tax_id, tax_group_ids = EXCLUDED.tax_group_ids,
			tax_class_ids = EXCLUDED.tax_class_ids,
			country_pattern = EXCLUDED.country_pattern,
			region_pattern = EXCLUDED.region_pattern,
			postal_pattern = EXCLUDED.postal_pattern,
			priority = EXCLUDED.priority, override_group = EXCLUDED.override_group,
			enabled = EXCLUDED.enabled`).
		ToSql()
	if err != nil {
		return fmt.Errorf("building tax rule upsert: %w", err)
	}
	if _, err := tx.Exec(ctx, ruleSQL, ruleArgs...); err != nil {
		return fmt.Errorf("saving tax rule %q: %w", rule.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("saving tax rule %q: %w", rule.ID, err)
	}
	return nil
}

func scanTaxRule(row pgx.CollectableRow) (tax.Rule, error) {
	var (
		rule         tax.Rule
		rate         decimal.NullDecimal
		flatAmount   decimal.NullDecimal
		flatCurrency *string
	)
	err := row.Scan(
		&rule.ID, &rule.TaxGroupIDs, &rule.TaxClassIDs,
		&rule.CountryPattern, &rule.RegionPattern, &rule.PostalPattern,
		&rule.Priority, &rule.OverrideGroup, &rule.Enabled,
		&rule.Tax.ID, &rule.Tax.Code, &rule.Tax.Name,
		&rate, &flatAmount, &flatCurrency,
	)
	if rate.Valid {
		v := rate.Decimal
		rule.Tax.Rate = &v
	}
	if flatAmount.Valid && flatCurrency != nil {
		amount := money.New(flatAmount.Decimal, *flatCurrency)
		rule.Tax.Amount = &amount
	}
	return rule, err
}
