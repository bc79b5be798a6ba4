package order

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/pricing-engine/internal/domain/catalog"
)

// ValidationErrors collects every problem found while validating a
// source, so callers can report them all at once instead of fixing one
// at a time.
type ValidationErrors []error

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, err := range v {
		msgs[i] = err.Error()
	}
	return "order validation failed: " + strings.Join(msgs, "; ")
}

// Unwrap supports errors.Is/As over the collected errors.
func (v ValidationErrors) Unwrap() []error {
	return v
}

// FinishHook runs after an order's lines are built and its totals cached.
// Returned lines (e.g. a loyalty discount) are appended to the order and
// totals are recomputed afterwards. Hooks run in registration order.
type FinishHook func(ctx context.Context, o *Order, source *Source) ([]SourceLine, error)

// Creator materializes a Source into a persisted Order. The supplier
// module and repositories are resolved per Creator; nothing is memoized
// on persisted records.
type Creator struct {
	orders         Repository
	products       catalog.ProductRepository
	shopProducts   catalog.ShopProductRepository
	suppliers      catalog.SupplierRepository
	supplierModule catalog.SupplierModule
	finishHooks    []FinishHook
	lg             *zap.Logger
}

// NewCreator creates a Creator. The orders repository may be nil for dry
// runs that only build the aggregate.
func NewCreator(
	orders Repository,
	products catalog.ProductRepository,
	shopProducts catalog.ShopProductRepository,
	suppliers catalog.SupplierRepository,
	supplierModule catalog.SupplierModule,
	lg *zap.Logger,
) *Creator {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Creator{
		orders:         orders,
		products:       products,
		shopProducts:   shopProducts,
		suppliers:      suppliers,
		supplierModule: supplierModule,
		lg:             lg,
	}
}

// RegisterFinishHook appends a hook invoked after order construction.
func (c *Creator) RegisterFinishHook(h FinishHook) {
	c.finishHooks = append(c.finishHooks, h)
}

// Create turns the source's final, taxed lines into a persisted order:
// it validates orderability, snapshots the shop settings, expands package
// parents into proportional zero-priced child lines, wires parent
// references, attaches tax rows, caches totals, runs the finish hooks and
// persists everything in one transaction.
func (c *Creator) Create(ctx context.Context, source *Source) (*Order, error) {
	finalLines, err := source.GetFinalLines(ctx, true)
	if err != nil {
		return nil, errors.Wrap(err, "compute final lines")
	}
	if len(finalLines) == 0 {
		return nil, errors.New("order: source has no lines")
	}

	if err := c.validateLines(ctx, source, finalLines); err != nil {
		return nil, err
	}

	o := c.newOrder(source)
	if err := c.buildLines(ctx, o, finalLines); err != nil {
		return nil, err
	}
	if err := o.CacheTotals(); err != nil {
		return nil, errors.Wrap(err, "cache totals")
	}

	for _, hook := range c.finishHooks {
		extra, err := hook(ctx, o, source)
		if err != nil {
			return nil, errors.Wrap(err, "finish hook")
		}
		if len(extra) == 0 {
			continue
		}
		extraPtrs := make([]*SourceLine, 0, len(extra))
		for i := range extra {
			line := extra[i]
			if line.LineID == "" {
				line.LineID = uuid.NewString()
			}
			if err := line.validate(o.Currency, o.PricesIncludeTax); err != nil {
				return nil, errors.Wrap(err, "finish hook line")
			}
			extraPtrs = append(extraPtrs, &line)
		}
		if err := c.buildLines(ctx, o, extraPtrs); err != nil {
			return nil, err
		}
	}
	if err := o.CacheTotals(); err != nil {
		return nil, errors.Wrap(err, "recache totals")
	}

	if c.orders != nil {
		if err := c.orders.Create(ctx, o); err != nil {
			return nil, errors.Wrap(err, "persist order")
		}
	}

	c.lg.Info("order created",
		zap.String("order_id", o.ID),
		zap.String("shop_id", o.ShopID),
		zap.Int("lines", len(o.Lines)),
		zap.String("taxful_total", o.TaxfulTotal.Amount.String()),
	)
	return o, nil
}

// validateLines checks orderability of every product line and collects
// all failures into one ValidationErrors result.
func (c *Creator) validateLines(ctx context.Context, source *Source, lines []*SourceLine) error {
	var verrs ValidationErrors
	customerID := ""
	if source.Customer != nil {
		customerID = source.Customer.ID
	}
	for _, l := range lines {
		if l.Type != LineTypeProduct {
			continue
		}
		if c.shopProducts == nil || c.supplierModule == nil {
			continue
		}
		sp, err := c.shopProducts.Get(ctx, source.Shop.ID, l.ProductID)
		if err != nil {
			verrs = append(verrs, errors.Wrapf(err, "line %s", l.LineID))
			continue
		}
		supplier := catalog.Supplier{ID: l.SupplierID, Enabled: true}
		if c.suppliers != nil {
			sup, err := c.suppliers.GetByID(ctx, l.SupplierID)
			if err != nil {
				verrs = append(verrs, errors.Wrapf(err, "line %s supplier", l.LineID))
				continue
			}
			supplier = *sup
		}
		verrs = append(verrs, c.supplierModule.GetOrderabilityErrors(ctx, *sp, supplier, customerID, l.Quantity)...)
	}
	if len(verrs) > 0 {
		return verrs
	}
	return nil
}

func (c *Creator) newOrder(source *Source) *Order {
	o := &Order{
		ID:               uuid.NewString(),
		ShopID:           source.Shop.ID,
		Currency:         source.Currency(),
		PricesIncludeTax: source.PricesIncludeTax(),
		StatusRole:       StatusRoleInitial,
		PaymentStatus:    PaymentStatusNotPaid,
		ShippingStatus:   ShippingStatusNotShipped,
		BillingAddress:   source.BillingAddress.Copy(),
		ShippingAddress:  source.ShippingAddress.Copy(),
		OrdererID:        source.OrdererID,
		CreatorID:        source.CreatorID,
		CreatedAt:        time.Now().UTC(),
	}
	if source.Customer != nil {
		o.CustomerID = source.Customer.ID
	}
	if o.BillingAddress != nil {
		o.BillingAddress.Freeze()
	}
	if o.ShippingAddress != nil {
		o.ShippingAddress.Freeze()
	}
	return o
}

// buildLines appends order lines for the given source lines: the line
// itself, package children for package parents, the parent wiring pass
// and the tax rows.
func (c *Creator) buildLines(ctx context.Context, o *Order, lines []*SourceLine) error {
	bySourceID := make(map[string]*Line, len(o.Lines))
	for _, l := range o.Lines {
		bySourceID[l.SourceLineID] = l
	}

	// First pass: insert lines, recording the source line id mapping.
	for _, sl := range lines {
		line := &Line{
			ID:                 uuid.NewString(),
			OrderID:            o.ID,
			SourceLineID:       sl.LineID,
			ParentSourceLineID: sl.ParentLineID,
			Ordering:           len(o.Lines),
			Type:               sl.Type,
			ProductID:          sl.ProductID,
			SupplierID:         sl.SupplierID,
			TaxClassID:         sl.TaxClassID,
			Text:               sl.Text,
			Quantity:           sl.Quantity,
			BaseUnitPrice:      sl.BaseUnitPrice,
			DiscountAmount:     sl.DiscountAmount,
		}
		for i, lt := range sl.Taxes {
			line.Taxes = append(line.Taxes, &LineTax{
				ID:          uuid.NewString(),
				OrderLineID: line.ID,
				TaxID:       lt.TaxID,
				Name:        lt.Name,
				Rate:        lt.Rate,
				Amount:      lt.Amount,
				BaseAmount:  lt.BaseAmount,
				Ordering:    i,
			})
		}
		o.Lines = append(o.Lines, line)
		bySourceID[line.SourceLineID] = line

		children, err := c.packageChildren(ctx, o, sl)
		if err != nil {
			return err
		}
		for _, child := range children {
			o.Lines = append(o.Lines, child)
			bySourceID[child.SourceLineID] = child
		}
	}

	// Second pass: wire persisted parent references from the map.
	for _, l := range o.Lines {
		if l.ParentSourceLineID == "" || l.ParentLineID != "" {
			continue
		}
		parent, ok := bySourceID[l.ParentSourceLineID]
		if !ok {
			return errors.Errorf("order: line %s references unknown parent %s", l.SourceLineID, l.ParentSourceLineID)
		}
		l.ParentLineID = parent.ID
	}
	return nil
}

// packageChildren expands a package parent line into zero-priced child
// lines proportional to the parent quantity.
func (c *Creator) packageChildren(ctx context.Context, o *Order, sl *SourceLine) ([]*Line, error) {
	product := sl.Product()
	if product == nil && sl.Type == LineTypeProduct && c.products != nil {
		p, err := c.products.GetByID(ctx, sl.ProductID)
		if err == nil {
			product = p
		}
	}
	if product == nil || !product.IsPackageParent() {
		return nil, nil
	}

	zero := sl.BaseUnitPrice.ZeroPrice()
	children := make([]*Line, 0, len(product.PackageContents))
	for i, content := range product.PackageContents {
		childTaxClass := ""
		if c.products != nil {
			if cp, err := c.products.GetByID(ctx, content.ProductID); err == nil {
				childTaxClass = cp.TaxClassID
			}
		}
		children = append(children, &Line{
			ID:                 uuid.NewString(),
			OrderID:            o.ID,
			SourceLineID:       sl.LineID + ":" + content.ProductID,
			ParentSourceLineID: sl.LineID,
			Ordering:           len(o.Lines) + i,
			Type:               LineTypeProduct,
			ProductID:          content.ProductID,
			SupplierID:         sl.SupplierID,
			TaxClassID:         childTaxClass,
			Quantity:           sl.Quantity.Mul(content.Quantity),
			BaseUnitPrice:      zero,
			DiscountAmount:     zero,
		})
	}
	return children, nil
}
