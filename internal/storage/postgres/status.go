package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/pricing-engine/internal/domain/order"
)

const (
	clearDefaultStatusSQL = `UPDATE order_statuses SET is_default = FALSE
		WHERE role = $1 AND is_default = TRUE AND id <> $2`

	upsertStatusSQL = `INSERT INTO order_statuses (id, role, name, is_default)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			role = EXCLUDED.role, name = EXCLUDED.name, is_default = EXCLUDED.is_default`

	getDefaultStatusSQL = `SELECT id, role, name, is_default
		FROM order_statuses WHERE role = $1 AND is_default = TRUE`

	listStatusesSQL = `SELECT id, role, name, is_default FROM order_statuses ORDER BY role, name`
)

var _ order.StatusRepository = (*StatusRepository)(nil)

// StatusRepository implements order.StatusRepository backed by PostgreSQL.
type StatusRepository struct {
	pool *pgxpool.Pool
}

// NewStatusRepository returns a StatusRepository that uses the given pool.
func NewStatusRepository(pool *pgxpool.Pool) *StatusRepository {
	return &StatusRepository{pool: pool}
}

// Save upserts the status. Saving a default status un-defaults its role
// siblings in the same transaction, keeping at most one default per role.
func (r *StatusRepository) Save(ctx context.Context, s *order.Status) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if s.Default {
			if _, err := tx.Exec(ctx, clearDefaultStatusSQL, string(s.Role), s.ID); err != nil {
				return fmt.Errorf("clearing default of role %q: %w", s.Role, err)
			}
		}
		if _, err := tx.Exec(ctx, upsertStatusSQL, s.ID, string(s.Role), s.Name, s.Default); err != nil {
			return fmt.Errorf("saving status %q: %w", s.ID, err)
		}
		return nil
	})
}

// GetDefault returns the default status of the given role, or
// pgx.ErrNoRows wrapped when none is configured.
func (r *StatusRepository) GetDefault(ctx context.Context, role order.StatusRole) (*order.Status, error) {
	rows, err := r.pool.Query(ctx, getDefaultStatusSQL, string(role))
	if err != nil {
		return nil, fmt.Errorf("getting default status of role %q: %w", role, err)
	}
	s, err := pgx.CollectExactlyOneRow(rows, scanStatus)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.Wrapf(err, "no default status for role %q", role)
		}
		return nil, fmt.Errorf("getting default status of role %q: %w", role, err)
	}
	return &s, nil
}

// List returns every configured status.
func (r *StatusRepository) List(ctx context.Context) ([]order.Status, error) {
	rows, err := r.pool.Query(ctx, listStatusesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing statuses: %w", err)
	}
	statuses, err := pgx.CollectRows(rows, scanStatus)
	if err != nil {
		return nil, fmt.Errorf("listing statuses: %w", err)
	}
	return statuses, nil
}

func scanStatus(row pgx.CollectableRow) (order.Status, error) {
	var (
		s    order.Status
		role string
	)
	err := row.Scan(&s.ID, &role, &s.Name, &s.Default)
	s.Role = order.StatusRole(role)
	return s, err
}
