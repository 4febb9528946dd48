package employees

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/emprecords/emprecords/internal/auth"
)

// Principals is the part of the authenticator the employee service needs:
// resolving the principal being linked and dropping its cached state.
type Principals interface {
	PrincipalByID(ctx context.Context, id int64) (*auth.Principal, error)
	auth.Invalidator
}

// Service coordinates employee records and their principal links.
type Service struct {
	repo       Repository
	principals Principals
	logger     *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, principals Principals, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, principals: principals, logger: logger.With(slog.String("component", "employees"))}
}

// List returns every employee.
func (s *Service) List(ctx context.Context) ([]Employee, error) {
	return s.repo.List(ctx)
}

// ListByDepartment returns the employees of department.
func (s *Service) ListByDepartment(ctx context.Context, department string) ([]Employee, error) {
	return s.repo.ListByDepartment(ctx, strings.TrimSpace(department))
}

// Get fetches one employee.
func (s *Service) Get(ctx context.Context, id int64) (Employee, error) {
	return s.repo.Get(ctx, id)
}

// Add creates an employee record linked to principal userID.
func (s *Service) Add(ctx context.Context, userID int64, e Employee) (Employee, error) {
	p, err := s.principals.PrincipalByID(ctx, userID)
	if err != nil {
		return Employee{}, err
	}
	e.ID = 0
	e.UserID = &p.ID
	created, err := s.repo.Create(ctx, e)
	if err != nil {
		return Employee{}, err
	}
	s.invalidate(ctx, p.Username)
	return created, nil
}

// Update replaces the personal fields of an existing employee.
func (s *Service) Update(ctx context.Context, e Employee) (Employee, error) {
	existing, err := s.repo.Get(ctx, e.ID)
	if err != nil {
		return Employee{}, err
	}
	e.UserID = existing.UserID
	return s.repo.Update(ctx, e)
}

// Delete removes an employee and unlinks its principal.
func (s *Service) Delete(ctx context.Context, id int64) error {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if existing.UserID != nil {
		p, err := s.principals.PrincipalByID(ctx, *existing.UserID)
		switch {
		case err == nil:
			s.invalidate(ctx, p.Username)
		case !errors.Is(err, auth.ErrPrincipalNotFound):
			s.logger.Warn("resolve unlinked principal", slog.Int64("user_id", *existing.UserID), slog.Any("error", err))
		}
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context, username string) {
	if err := s.principals.Invalidate(ctx, username); err != nil {
		s.logger.Warn("principal cache invalidation failed", slog.String("username", username), slog.Any("error", err))
	}
}
