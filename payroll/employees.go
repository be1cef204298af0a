package payroll

import (
	"context"
	"strings"

	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// EMPLOYEES
// =============================================================================

func (s *Service) SaveEmployee(ctx context.Context, e Employee) error {
	if e.ID == "" {
		return generic.Required("id")
	}
	if strings.TrimSpace(e.Name) == "" {
		return generic.Required("name")
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	return s.Store.SaveEmployee(ctx, e)
}

func (s *Service) ListEmployees(ctx context.Context) ([]Employee, error) {
	return s.Store.ListEmployees(ctx)
}

func (s *Service) GetEmployee(ctx context.Context, id EmployeeID) (*Employee, error) {
	e, err := s.Store.GetEmployee(ctx, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, &generic.NotFoundError{Kind: "employee", ID: string(id)}
	}
	return e, nil
}
