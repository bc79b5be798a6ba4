package order

import "context"

// StatusRole classifies order statuses by their lifecycle meaning.
type StatusRole string

const (
	StatusRoleNone     StatusRole = "none"
	StatusRoleInitial  StatusRole = "initial"
	StatusRoleComplete StatusRole = "complete"
	StatusRoleCanceled StatusRole = "canceled"
)

// Status is a configurable order status. At most one status per role may
// be the default; saving a default un-defaults its role siblings.
type Status struct {
	ID      string
	Role    StatusRole
	Name    string
	Default bool
}

// DefaultsToClear returns the sibling statuses that must lose their
// default flag when saving s. StatusRepository implementations apply the
// clearing atomically with the save.
func DefaultsToClear(s Status, siblings []Status) []Status {
	if !s.Default {
		return nil
	}
	var clear []Status
	for _, sib := range siblings {
		if sib.ID != s.ID && sib.Role == s.Role && sib.Default {
			clear = append(clear, sib)
		}
	}
	return clear
}

// StatusRepository persists order statuses. Save must atomically
// un-default role siblings when saving a default status.
type StatusRepository interface {
	Save(ctx context.Context, s *Status) error
	GetDefault(ctx context.Context, role StatusRole) (*Status, error)
	List(ctx context.Context) ([]Status, error)
}
