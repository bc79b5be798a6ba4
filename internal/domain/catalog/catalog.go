// Package catalog holds the read-side shapes the pricing engine consumes:
// shops, products, suppliers and customer contacts. The catalog itself is
// managed elsewhere; the engine only reads it.
package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/pricing-engine/internal/domain/money"
)

// ErrNotFound is returned when a requested catalog record does not exist.
var ErrNotFound = errors.New("catalog: not found")

// Shop is the tenant a source or order belongs to. Its currency and
// taxful-display setting are snapshotted onto every order it produces.
type Shop struct {
	ID               string
	Name             string
	Currency         string
	PricesIncludeTax bool
}

// TaxClass groups products that share tax treatment.
type TaxClass struct {
	ID      string
	Name    string
	Enabled bool
}

// PackageContent describes one child of a package product and how many
// units of it one package contains.
type PackageContent struct {
	ProductID string
	Quantity  decimal.Decimal
}

// Product is a purchasable catalog item. A product with non-empty
// PackageContents is a package parent: ordering it expands into
// zero-priced child lines for its contents.
type Product struct {
	ID              string
	SKU             string
	Name            string
	TaxClassID      string
	GrossWeight     decimal.Decimal // grams
	Width           decimal.Decimal // mm
	Height          decimal.Decimal
	Depth           decimal.Decimal
	PackageContents []PackageContent
}

// IsPackageParent reports whether ordering this product expands into
// child lines.
func (p Product) IsPackageParent() bool {
	return len(p.PackageContents) > 0
}

// Volume returns the product's volume in cubic millimetres.
func (p Product) Volume() decimal.Decimal {
	return p.Width.Mul(p.Height).Mul(p.Depth)
}

// ShopProduct binds a product to a shop with shop-specific price and
// purchasability settings.
type ShopProduct struct {
	ShopID                  string
	ProductID               string
	DefaultPrice            money.Price
	Purchasable             bool
	MinimumPurchaseQuantity decimal.Decimal
	SupplierIDs             []string
}

// HasSupplier reports whether the given supplier is assigned to this
// shop product.
func (sp ShopProduct) HasSupplier(supplierID string) bool {
	for _, id := range sp.SupplierIDs {
		if id == supplierID {
			return true
		}
	}
	return false
}

// Supplier fulfils product lines and owns stock decisions.
type Supplier struct {
	ID      string
	Name    string
	Enabled bool
}

// Contact is a customer (or orderer) reference with the fields relevant
// to taxation.
type Contact struct {
	ID                     string
	Name                   string
	TaxGroupID             string
	TaxNumber              string
	DefaultShippingAddress *Address
	DefaultBillingAddress  *Address
}

// ShopRepository reads shops.
type ShopRepository interface {
	GetByID(ctx context.Context, id string) (*Shop, error)
}

// ProductRepository reads products.
type ProductRepository interface {
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}

// SupplierRepository reads suppliers.
type SupplierRepository interface {
	GetByID(ctx context.Context, id string) (*Supplier, error)
}

// ShopProductRepository reads shop-specific product bindings.
type ShopProductRepository interface {
	Get(ctx context.Context, shopID, productID string) (*ShopProduct, error)
	GetByProductIDs(ctx context.Context, shopID string, productIDs []string) (map[string]ShopProduct, error)
}
