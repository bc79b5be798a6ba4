package pricing

import (
	"context"
	"hash/fnv"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/pricing-engine/internal/domain/catalog"
)

// Context carries the request-scoped inputs a pricing module may depend
// on. At minimum the shop is required; customer and supplier narrow the
// price further for modules that support them.
type Context struct {
	ShopID     string
	CustomerID string
	SupplierID string
}

// requiredValues returns the ordered tuple of values the context is keyed
// on. The order is part of the cache key contract and must not change.
func (c Context) requiredValues() []string {
	return []string{c.ShopID, c.CustomerID, c.SupplierID}
}

// CacheKey returns a deterministic key derived from the context's required
// values, suitable for external caching layers.
func (c Context) CacheKey() string {
	h := fnv.New64a()
	for _, v := range c.requiredValues() {
		_, _ = h.Write([]byte(v))
		_, _ = h.Write([]byte{0})
	}
	return "pricing:" + strconv.FormatUint(h.Sum64(), 16)
}

// Contextable is implemented by request-like carriers that can produce a
// pricing Context.
type Contextable interface {
	PricingContext() Context
}

// ContextFrom extracts a pricing Context from v, which may be an
// already-built Context or any Contextable carrier.
func ContextFrom(v any) (Context, error) {
	switch c := v.(type) {
	case Context:
		return c, nil
	case Contextable:
		return c.PricingContext(), nil
	default:
		return Context{}, errors.Errorf("pricing: cannot derive context from %T", v)
	}
}

// Module is the pluggable pricing strategy: it produces a PriceInfo for a
// product and quantity in a context. Implementations may call out to
// external systems.
type Module interface {
	GetPriceInfo(ctx context.Context, pc Context, product catalog.Product, quantity decimal.Decimal) (PriceInfo, error)
	// GetPriceInfos prices several products at once, keyed by product ID.
	// Modules backed by a store should override the looping default with a
	// single batched query.
	GetPriceInfos(ctx context.Context, pc Context, products []catalog.Product, quantity decimal.Decimal) (map[string]PriceInfo, error)
}

// BatchPriceInfos prices products one by one through m.GetPriceInfo. It is
// the default GetPriceInfos behaviour for modules without a cheaper batch
// path.
func BatchPriceInfos(ctx context.Context, m Module, pc Context, products []catalog.Product, quantity decimal.Decimal) (map[string]PriceInfo, error) {
	infos := make(map[string]PriceInfo, len(products))
	for _, p := range products {
		info, err := m.GetPriceInfo(ctx, pc, p, quantity)
		if err != nil {
			return nil, errors.Wrapf(err, "price product %s", p.ID)
		}
		infos[p.ID] = info
	}
	return infos, nil
}
