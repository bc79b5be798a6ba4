package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/pricing-engine/internal/domain/catalog"
	"github.com/xenking/pricing-engine/internal/domain/money"
)

const (
	getShopSQL = `SELECT id, name, currency, prices_include_tax FROM shops WHERE id = $1`

	getProductSQL = `SELECT id, sku, name, tax_class_id, gross_weight, width, height, depth
		FROM products WHERE id = $1`

	getProductsSQL = `SELECT id, sku, name, tax_class_id, gross_weight, width, height, depth
		FROM products WHERE id = ANY($1)`

	getPackageContentsSQL = `SELECT parent_product_id, child_product_id, quantity
		FROM package_contents WHERE parent_product_id = ANY($1)
		ORDER BY parent_product_id, ordering`

	getSupplierSQL = `SELECT id, name, enabled FROM suppliers WHERE id = $1`

	getShopProductSQL = `SELECT shop_id, product_id, default_price, purchasable,
		minimum_purchase_quantity, supplier_ids
		FROM shop_products WHERE shop_id = $1 AND product_id = $2`

	getShopProductsSQL = `SELECT shop_id, product_id, default_price, purchasable,
		minimum_purchase_quantity, supplier_ids
		FROM shop_products WHERE shop_id = $1 AND product_id = ANY($2)`
)

var (
	_ catalog.ShopRepository        = (*ShopRepository)(nil)
	_ catalog.ProductRepository     = (*ProductRepository)(nil)
	_ catalog.SupplierRepository    = (*SupplierRepository)(nil)
	_ catalog.ShopProductRepository = (*ShopProductRepository)(nil)
)

// ShopRepository implements catalog.ShopRepository backed by PostgreSQL.
type ShopRepository struct {
	pool *pgxpool.Pool
}

// NewShopRepository returns a ShopRepository that uses the given pool.
func NewShopRepository(pool *pgxpool.Pool) *ShopRepository {
	return &ShopRepository{pool: pool}
}

// GetByID looks up a shop. Returns catalog.ErrNotFound when it does not
// exist.
func (r *ShopRepository) GetByID(ctx context.Context, id string) (*catalog.Shop, error) {
	var s catalog.Shop
	err := r.pool.QueryRow(ctx, getShopSQL, id).Scan(&s.ID, &s.Name, &s.Currency, &s.PricesIncludeTax)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("getting shop %q: %w", id, err)
	}
	return &s, nil
}

// ProductRepository implements catalog.ProductRepository backed by
// PostgreSQL. Package contents are loaded alongside their parents.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// GetByID looks up a product with its package contents. Returns
// catalog.ErrNotFound when it does not exist.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*catalog.Product, error) {
	rows, err := r.pool.Query(ctx, getProductSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	contents, err := r.packageContents(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	p.PackageContents = contents[id]
	return &p, nil
}

// GetByIDs looks up products by ID, skipping unknown ones.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]catalog.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, getProductsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products: %w", err)
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("getting products: %w", err)
	}

	contents, err := r.packageContents(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range products {
		products[i].PackageContents = contents[products[i].ID]
	}
	return products, nil
}

func (r *ProductRepository) packageContents(ctx context.Context, parentIDs []string) (map[string][]catalog.PackageContent, error) {
	rows, err := r.pool.Query(ctx, getPackageContentsSQL, parentIDs)
	if err != nil {
		return nil, fmt.Errorf("getting package contents: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]catalog.PackageContent)
	for rows.Next() {
		var (
			parentID string
			content  catalog.PackageContent
		)
		if err := rows.Scan(&parentID, &content.ProductID, &content.Quantity); err != nil {
			return nil, fmt.Errorf("scanning package content: %w", err)
		}
		out[parentID] = append(out[parentID], content)
	}
	return out, rows.Err()
}

func scanProduct(row pgx.CollectableRow) (catalog.Product, error) {
	var p catalog.Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.TaxClassID,
		&p.GrossWeight, &p.Width, &p.Height, &p.Depth)
	return p, err
}

// SupplierRepository implements catalog.SupplierRepository backed by
// PostgreSQL.
type SupplierRepository struct {
	pool *pgxpool.Pool
}

// NewSupplierRepository returns a SupplierRepository that uses the given pool.
func NewSupplierRepository(pool *pgxpool.Pool) *SupplierRepository {
	return &SupplierRepository{pool: pool}
}

// GetByID looks up a supplier. Returns catalog.ErrNotFound when it does
// not exist.
func (r *SupplierRepository) GetByID(ctx context.Context, id string) (*catalog.Supplier, error) {
	var s catalog.Supplier
	err := r.pool.QueryRow(ctx, getSupplierSQL, id).Scan(&s.ID, &s.Name, &s.Enabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("getting supplier %q: %w", id, err)
	}
	return &s, nil
}

// ShopProductRepository implements catalog.ShopProductRepository backed by
// PostgreSQL. The default_price column stores a bare amount; the shop's
// currency and taxful-ness bind it into a money.Price on read.
type ShopProductRepository struct {
	pool  *pgxpool.Pool
	shops *ShopRepository
}

// NewShopProductRepository returns a ShopProductRepository that uses the
// given pool.
func NewShopProductRepository(pool *pgxpool.Pool) *ShopProductRepository {
	return &ShopProductRepository{pool: pool, shops: NewShopRepository(pool)}
}

// Get looks up one shop product binding. Returns catalog.ErrNotFound when
// the product is not bound to the shop.
func (r *ShopProductRepository) Get(ctx context.Context, shopID, productID string) (*catalog.ShopProduct, error) {
	shop, err := r.shops.GetByID(ctx, shopID)
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, getShopProductSQL, shopID, productID)
	if err != nil {
		return nil, fmt.Errorf("getting shop product %q/%q: %w", shopID, productID, err)
	}
	sp, err := pgx.CollectExactlyOneRow(rows, scanShopProduct(shop))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("getting shop product %q/%q: %w", shopID, productID, err)
	}
	return &sp, nil
}

// GetByProductIDs looks up shop product bindings for many products at
// once, keyed by product ID. Unbound products are absent from the result.
func (r *ShopProductRepository) GetByProductIDs(ctx context.Context, shopID string, productIDs []string) (map[string]catalog.ShopProduct, error) {
	if len(productIDs) == 0 {
		return map[string]catalog.ShopProduct{}, nil
	}
	shop, err := r.shops.GetByID(ctx, shopID)
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, getShopProductsSQL, shopID, productIDs)
	if err != nil {
		return nil, fmt.Errorf("getting shop products for %q: %w", shopID, err)
	}
	list, err := pgx.CollectRows(rows, scanShopProduct(shop))
	if err != nil {
		return nil, fmt.Errorf("getting shop products for %q: %w", shopID, err)
	}
	out := make(map[string]catalog.ShopProduct, len(list))
	for _, sp := range list {
		out[sp.ProductID] = sp
	}
	return out, nil
}

func scanShopProduct(shop *catalog.Shop) func(row pgx.CollectableRow) (catalog.ShopProduct, error) {
	return func(row pgx.CollectableRow) (catalog.ShopProduct, error) {
		var (
			sp     catalog.ShopProduct
			amount decimal.Decimal
		)
		err := row.Scan(&sp.ShopID, &sp.ProductID, &amount, &sp.Purchasable,
			&sp.MinimumPurchaseQuantity, &sp.SupplierIDs)
		sp.DefaultPrice = money.NewPrice(amount, shop.Currency, shop.PricesIncludeTax)
		return sp, err
	}
}
