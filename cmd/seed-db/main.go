// Command seed-db loads a catalog seed file into the database: shops, tax
// classes, products with package contents, suppliers, shop product
// bindings, order statuses and tax rules.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/pricing-engine/internal/domain/money"
	"github.com/xenking/pricing-engine/internal/domain/tax"
	"github.com/xenking/pricing-engine/internal/storage/postgres"
)

type seedFile struct {
	Shops      []shopJSON     `json:"shops"`
	TaxClasses []taxClassJSON `json:"tax_classes"`
	Products   []productJSON  `json:"products"`
	Suppliers  []supplierJSON `json:"suppliers"`
	Statuses   []statusJSON   `json:"order_statuses"`
	TaxRules   []taxRuleJSON  `json:"tax_rules"`
	Bindings   []shopProdJSON `json:"shop_products"`
}

type shopJSON struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Currency         string `json:"currency"`
	PricesIncludeTax bool   `json:"prices_include_tax"`
}

type taxClassJSON struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type productJSON struct {
	ID          string          `json:"id"`
	SKU         string          `json:"sku"`
	Name        string          `json:"name"`
	TaxClassID  string          `json:"tax_class_id"`
	GrossWeight decimal.Decimal `json:"gross_weight"`
	Width       decimal.Decimal `json:"width"`
	Height      decimal.Decimal `json:"height"`
	Depth       decimal.Decimal `json:"depth"`
	Contents    []struct {
		ProductID string          `json:"product_id"`
		Quantity  decimal.Decimal `json:"quantity"`
	} `json:"package_contents"`
}

type supplierJSON struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

type statusJSON struct {
	ID      string `json:"id"`
	Role    string `json:"role"`
	Name    string `json:"name"`
	Default bool   `json:"default"`
}

type taxRuleJSON struct {
	ID             string           `json:"id"`
	TaxID          string           `json:"tax_id"`
	TaxCode        string           `json:"tax_code"`
	TaxName        string           `json:"tax_name"`
	Rate           *decimal.Decimal `json:"rate"`
	FlatAmount     *decimal.Decimal `json:"flat_amount"`
	FlatCurrency   string           `json:"flat_currency"`
	TaxGroupIDs    []string         `json:"tax_group_ids"`
	TaxClassIDs    []string         `json:"tax_class_ids"`
	CountryPattern string           `json:"country_pattern"`
	RegionPattern  string           `json:"region_pattern"`
	PostalPattern  string           `json:"postal_pattern"`
	Priority       int              `json:"priority"`
	OverrideGroup  int              `json:"override_group"`
}

type shopProdJSON struct {
	ShopID      string          `json:"shop_id"`
	ProductID   string          `json:"product_id"`
	Price       decimal.Decimal `json:"default_price"`
	Purchasable bool            `json:"purchasable"`
	MinQty      decimal.Decimal `json:"minimum_purchase_quantity"`
	SupplierIDs []string        `json:"supplier_ids"`
}

func main() {
	var (
		databaseURL string
		seedPath    string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&seedPath, "seed-file", "db/seed/catalog.json", "path to catalog seed JSON file")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, seedPath); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, seedPath string) error {
	slog.Info("reading seed file", slog.String("path", seedPath))

	data, err := os.ReadFile(seedPath)
	if err != nil {
		return errors.Wrap(err, "read seed file")
	}
	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return errors.Wrap(err, "parse seed JSON")
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Independent tables seed concurrently; products, bindings and rules
	// follow once their referenced rows exist.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return seedShops(gctx, pool, seed.Shops) })
	g.Go(func() error { return seedTaxClasses(gctx, pool, seed.TaxClasses) })
	g.Go(func() error { return seedSuppliers(gctx, pool, seed.Suppliers) })
	g.Go(func() error { return seedStatuses(gctx, pool, seed.Statuses) })
	if err := g.Wait(); err != nil {
		return err
	}

	if err := seedProducts(ctx, pool, seed.Products); err != nil {
		return errors.Wrap(err, "seed products")
	}
	if err := seedBindings(ctx, pool, seed.Bindings); err != nil {
		return errors.Wrap(err, "seed shop products")
	}
	if err := seedTaxRules(ctx, pool, seed.TaxRules); err != nil {
		return errors.Wrap(err, "seed tax rules")
	}
	return nil
}

func seedShops(ctx context.Context, pool *pgxpool.Pool, shops []shopJSON) error {
	for _, s := range shops {
		_, err := pool.Exec(ctx,
			`INSERT INTO shops (id, name, currency, prices_include_tax) VALUES ($1, $2, $3, $4)
			 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, currency = EXCLUDED.currency,
			 prices_include_tax = EXCLUDED.prices_include_tax`,
			s.ID, s.Name, s.Currency, s.PricesIncludeTax)
		if err != nil {
			return errors.Wrapf(err, "seed shop %s", s.ID)
		}
	}
	slog.Info("shops seeded", slog.Int("count", len(shops)))
	return nil
}

func seedTaxClasses(ctx context.Context, pool *pgxpool.Pool, classes []taxClassJSON) error {
	for _, c := range classes {
		_, err := pool.Exec(ctx,
			`INSERT INTO tax_classes (id, name) VALUES ($1, $2)
			 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`,
			c.ID, c.Name)
		if err != nil {
			return errors.Wrapf(err, "seed tax class %s", c.ID)
		}
	}
	slog.Info("tax classes seeded", slog.Int("count", len(classes)))
	return nil
}

func seedSuppliers(ctx context.Context, pool *pgxpool.Pool, suppliers []supplierJSON) error {
	for _, s := range suppliers {
		_, err := pool.Exec(ctx,
			`INSERT INTO suppliers (id, name, enabled) VALUES ($1, $2, $3)
			 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, enabled = EXCLUDED.enabled`,
			s.ID, s.Name, s.Enabled)
		if err != nil {
			return errors.Wrapf(err, "seed supplier %s", s.ID)
		}
	}
	slog.Info("suppliers seeded", slog.Int("count", len(suppliers)))
	return nil
}

func seedStatuses(ctx context.Context, pool *pgxpool.Pool, statuses []statusJSON) error {
	for _, s := range statuses {
		_, err := pool.Exec(ctx,
			`INSERT INTO order_statuses (id, role, name, is_default) VALUES ($1, $2, $3, $4)
			 ON CONFLICT (id) DO UPDATE SET role = EXCLUDED.role, name = EXCLUDED.name,
			 is_default = EXCLUDED.is_default`,
			s.ID, s.Role, s.Name, s.Default)
		if err != nil {
			return errors.Wrapf(err, "seed status %s", s.ID)
		}
	}
	slog.Info("order statuses seeded", slog.Int("count", len(statuses)))
	return nil
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool, products []productJSON) error {
	for _, p := range products {
		_, err := pool.Exec(ctx,
			`INSERT INTO products (id, sku, name, tax_class_id, gross_weight, width, height, depth)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (id) DO UPDATE SET sku = EXCLUDED.sku, name = EXCLUDED.name,
			 tax_class_id = EXCLUDED.tax_class_id, gross_weight = EXCLUDED.gross_weight,
			 width = EXCLUDED.width, height = EXCLUDED.height, depth = EXCLUDED.depth`,
			p.ID, p.SKU, p.Name, p.TaxClassID, p.GrossWeight, p.Width, p.Height, p.Depth)
		if err != nil {
			return errors.Wrapf(err, "seed product %s", p.ID)
		}
	}
	// Second pass so package contents only reference existing products.
	for _, p := range products {
		for i, c := range p.Contents {
			_, err := pool.Exec(ctx,
				`INSERT INTO package_contents (parent_product_id, child_product_id, quantity, ordering)
				 VALUES ($1, $2, $3, $4)
				 ON CONFLICT (parent_product_id, child_product_id) DO UPDATE SET
				 quantity = EXCLUDED.quantity, ordering = EXCLUDED.ordering`,
				p.ID, c.ProductID, c.Quantity, i)
			if err != nil {
				return errors.Wrapf(err, "seed package content %s/%s", p.ID, c.ProductID)
			}
		}
	}
	slog.Info("products seeded", slog.Int("count", len(products)))
	return nil
}

func seedBindings(ctx context.Context, pool *pgxpool.Pool, bindings []shopProdJSON) error {
	for _, b := range bindings {
		_, err := pool.Exec(ctx,
			`INSERT INTO shop_products (shop_id, product_id, default_price, purchasable,
			 minimum_purchase_quantity, supplier_ids)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (shop_id, product_id) DO UPDATE SET
			 default_price = EXCLUDED.default_price, purchasable = EXCLUDED.purchasable,
			 minimum_purchase_quantity = EXCLUDED.minimum_purchase_quantity,
			 supplier_ids = EXCLUDED.supplier_ids`,
			b.ShopID, b.ProductID, b.Price, b.Purchasable, b.MinQty, b.SupplierIDs)
		if err != nil {
			return errors.Wrapf(err, "seed shop product %s/%s", b.ShopID, b.ProductID)
		}
	}
	slog.Info("shop products seeded", slog.Int("count", len(bindings)))
	return nil
}

func seedTaxRules(ctx context.Context, pool *pgxpool.Pool, rules []taxRuleJSON) error {
	repo := postgres.NewTaxRuleRepository(pool)
	for _, r := range rules {
		rule := tax.Rule{
			ID:             r.ID,
			TaxGroupIDs:    r.TaxGroupIDs,
			TaxClassIDs:    r.TaxClassIDs,
			CountryPattern: r.CountryPattern,
			RegionPattern:  r.RegionPattern,
			PostalPattern:  r.PostalPattern,
			Priority:       r.Priority,
			OverrideGroup:  r.OverrideGroup,
			Enabled:        true,
			Tax: tax.Tax{
				ID:   r.TaxID,
				Code: r.TaxCode,
				Name: r.TaxName,
				Rate: r.Rate,
			},
		}
		if r.FlatAmount != nil {
			amount := money.New(*r.FlatAmount, r.FlatCurrency)
			rule.Tax.Amount = &amount
		}
		if err := repo.SaveRule(ctx, rule); err != nil {
			return errors.Wrapf(err, "seed tax rule %s", r.ID)
		}
	}
	slog.Info("tax rules seeded", slog.Int("count", len(rules)))
	return nil
}
