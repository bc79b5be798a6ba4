package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/pricing-engine/internal/domain/catalog"
	"github.com/xenking/pricing-engine/internal/domain/order"
)

const (
	insertOrderSQL = `INSERT INTO orders (id, shop_id, currency, prices_include_tax,
		status_id, status_role, payment_status, shipping_status,
		customer_id, orderer_id, creator_id,
		billing_address, shipping_address,
		taxful_total, taxless_total, payment_date, deleted, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	insertLineSQL = `INSERT INTO order_lines (id, order_id, source_line_id, parent_line_id,
		ordering, line_type, product_id, supplier_id, tax_class_id, text,
		quantity, base_unit_price, discount_amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	setLineParentSQL = `UPDATE order_lines SET parent_line_id = $2 WHERE id = $1`

	insertLineTaxSQL = `INSERT INTO order_line_taxes (id, order_line_id, tax_id, name,
		rate, amount, base_amount, ordering)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	insertPaymentSQL = `INSERT INTO payments (id, order_id, amount, currency,
		identifier, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	insertShipmentSQL = `INSERT INTO shipments (id, order_id, supplier_id, weight, volume, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	insertShipmentProductSQL = `INSERT INTO shipment_products (shipment_id, product_id,
		quantity, unit_weight, unit_volume)
		VALUES ($1, $2, $3, $4, $5)`

	updatePaymentStateSQL = `UPDATE orders SET payment_status = $2, payment_date = $3 WHERE id = $1`

	updateShippingStateSQL = `UPDATE orders SET shipping_status = $2 WHERE id = $1`

	updateStatusSQL = `UPDATE orders SET status_id = NULLIF($2, ''), status_role = $3, deleted = $4 WHERE id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Every
// write runs in one transaction so partial line or tax writes can never
// be observed.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists the order with all its lines and line taxes. Lines are
// inserted without parent references first, then the parent links are
// wired in a second pass once every referenced row exists.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	billing, err := addressJSON(o.BillingAddress)
	if err != nil {
		return fmt.Errorf("marshaling billing address of order %q: %w", o.ID, err)
	}
	shipping, err := addressJSON(o.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshaling shipping address of order %q: %w", o.ID, err)
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, insertOrderSQL,
			o.ID, o.ShopID, o.Currency, o.PricesIncludeTax,
			nilIfEmpty(o.StatusID), string(o.StatusRole), string(o.PaymentStatus), string(o.ShippingStatus),
			nilIfEmpty(o.CustomerID), nilIfEmpty(o.OrdererID), nilIfEmpty(o.CreatorID),
			billing, shipping,
			o.TaxfulTotal.Amount, o.TaxlessTotal.Amount, o.PaymentDate, o.Deleted, o.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("inserting order %q: %w", o.ID, err)
		}

		for _, l := range o.Lines {
			_, err := tx.Exec(ctx, insertLineSQL,
				l.ID, o.ID, l.SourceLineID, nil,
				l.Ordering, string(l.Type),
				nilIfEmpty(l.ProductID), nilIfEmpty(l.SupplierID), nilIfEmpty(l.TaxClassID), l.Text,
				l.Quantity, l.BaseUnitPrice.Amount, l.DiscountAmount.Amount,
			)
			if err != nil {
				return fmt.Errorf("inserting order line %q: %w", l.ID, err)
			}
			for _, t := range l.Taxes {
				_, err := tx.Exec(ctx, insertLineTaxSQL,
					t.ID, l.ID, t.TaxID, t.Name,
					t.Rate, t.Amount.Amount, t.BaseAmount.Amount, t.Ordering,
				)
				if err != nil {
					return fmt.Errorf("inserting line tax %q: %w", t.ID, err)
				}
			}
		}

		for _, l := range o.Lines {
			if l.ParentLineID == "" {
				continue
			}
			if _, err := tx.Exec(ctx, setLineParentSQL, l.ID, l.ParentLineID); err != nil {
				return fmt.Errorf("wiring line parent %q: %w", l.ID, err)
			}
		}
		return nil
	})
}

// SavePayment inserts the payment and updates the order's payment state
// in the same transaction.
func (r *OrderRepository) SavePayment(ctx context.Context, o *order.Order, p *order.Payment) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, insertPaymentSQL,
			p.ID, o.ID, p.Amount.Amount, p.Amount.Currency,
			p.Identifier, p.Description, p.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("inserting payment %q: %w", p.ID, err)
		}
		_, err = tx.Exec(ctx, updatePaymentStateSQL, o.ID, string(o.PaymentStatus), o.PaymentDate)
		if err != nil {
			return fmt.Errorf("updating payment state of order %q: %w", o.ID, err)
		}
		return nil
	})
}

// SaveShipment inserts the shipment with its products and updates the
// order's shipping state in the same transaction.
func (r *OrderRepository) SaveShipment(ctx context.Context, o *order.Order, sh *order.Shipment) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, insertShipmentSQL,
			sh.ID, o.ID, sh.SupplierID, sh.Weight, sh.Volume, sh.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("inserting shipment %q: %w", sh.ID, err)
		}
		for _, sp := range sh.Products {
			_, err := tx.Exec(ctx, insertShipmentProductSQL,
				sh.ID, sp.ProductID, sp.Quantity, sp.UnitWeight, sp.UnitVolume,
			)
			if err != nil {
				return fmt.Errorf("inserting shipment product %q: %w", sp.ProductID, err)
			}
		}
		_, err = tx.Exec(ctx, updateShippingStateSQL, o.ID, string(o.ShippingStatus))
		if err != nil {
			return fmt.Errorf("updating shipping state of order %q: %w", o.ID, err)
		}
		return nil
	})
}

// UpdateStatus writes the order's status, role and deleted flag.
func (r *OrderRepository) UpdateStatus(ctx context.Context, o *order.Order) error {
	_, err := r.pool.Exec(ctx, updateStatusSQL, o.ID, o.StatusID, string(o.StatusRole), o.Deleted)
	if err != nil {
		return fmt.Errorf("updating status of order %q: %w", o.ID, err)
	}
	return nil
}

// addressJSON serializes an address snapshot for the JSONB column. Orders
// keep their own frozen copy, so addresses are not normalized into a table.
func addressJSON(a *catalog.Address) ([]byte, error) {
	if a == nil {
		return nil, nil
	}
	return json.Marshal(a)
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
