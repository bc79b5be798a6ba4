package pricing

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/pricing-engine/internal/domain/catalog"
)

// CatalogModule prices products from their shop-specific default price.
// It is the standard module; discounting strategies plug in as alternative
// modules through the registry.
type CatalogModule struct {
	shopProducts catalog.ShopProductRepository
}

var _ Module = (*CatalogModule)(nil)

// NewCatalogModule creates a CatalogModule reading prices from the given
// repository.
func NewCatalogModule(shopProducts catalog.ShopProductRepository) *CatalogModule {
	return &CatalogModule{shopProducts: shopProducts}
}

// GetPriceInfo implements Module.
func (m *CatalogModule) GetPriceInfo(ctx context.Context, pc Context, product catalog.Product, quantity decimal.Decimal) (PriceInfo, error) {
	sp, err := m.shopProducts.Get(ctx, pc.ShopID, product.ID)
	if err != nil {
		return PriceInfo{}, errors.Wrapf(err, "shop product %s/%s", pc.ShopID, product.ID)
	}
	total := sp.DefaultPrice.Mul(quantity)
	return NewPriceInfo(total, total, quantity), nil
}

// GetPriceInfos implements Module with a single batched repository query.
func (m *CatalogModule) GetPriceInfos(ctx context.Context, pc Context, products []catalog.Product, quantity decimal.Decimal) (map[string]PriceInfo, error) {
	ids := make([]string, len(products))
	for i, p := range products {
		ids[i] = p.ID
	}
	sps, err := m.shopProducts.GetByProductIDs(ctx, pc.ShopID, ids)
	if err != nil {
		return nil, errors.Wrap(err, "batch shop products")
	}
	infos := make(map[string]PriceInfo, len(products))
	for _, p := range products {
		sp, ok := sps[p.ID]
		if !ok {
			return nil, errors.Wrapf(catalog.ErrNotFound, "shop product %s/%s", pc.ShopID, p.ID)
		}
		total := sp.DefaultPrice.Mul(quantity)
		infos[p.ID] = NewPriceInfo(total, total, quantity)
	}
	return infos, nil
}
