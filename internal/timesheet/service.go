package timesheet

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/emprecords/emprecords/internal/employees"
	"github.com/emprecords/emprecords/internal/rbac"
)

// EmployeeFinder confirms that an employee exists.
type EmployeeFinder interface {
	Get(ctx context.Context, id int64) (employees.Employee, error)
}

// Service records and reads time entries.
type Service struct {
	repo      Repository
	employees EmployeeFinder
	now       func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository, employees EmployeeFinder) *Service {
	return &Service{repo: repo, employees: employees, now: time.Now}
}

// List returns every entry.
func (s *Service) List(ctx context.Context) ([]TimeEntry, error) {
	return s.repo.List(ctx)
}

// Get fetches one entry.
func (s *Service) Get(ctx context.Context, id int64) (TimeEntry, error) {
	return s.repo.Get(ctx, id)
}

// ListByEmployee returns the entries of an existing employee.
func (s *Service) ListByEmployee(ctx context.Context, employeeID int64) ([]TimeEntry, error) {
	if _, err := s.employees.Get(ctx, employeeID); err != nil {
		return nil, err
	}
	return s.repo.ListByEmployee(ctx, employeeID)
}

// ListByDepartment returns the entries of a department's employees.
func (s *Service) ListByDepartment(ctx context.Context, department string) ([]TimeEntry, error) {
	return s.repo.ListByDepartment(ctx, strings.TrimSpace(department))
}

// ClockIn records a login entry for employeeID.
func (s *Service) ClockIn(ctx context.Context, employeeID int64, req ClockRequest) (TimeEntry, error) {
	return s.clock(ctx, employeeID, EntryLogin, req)
}

// ClockOut records a logout entry for employeeID.
func (s *Service) ClockOut(ctx context.Context, employeeID int64, req ClockRequest) (TimeEntry, error) {
	return s.clock(ctx, employeeID, EntryLogout, req)
}

func (s *Service) clock(ctx context.Context, employeeID int64, kind EntryType, req ClockRequest) (TimeEntry, error) {
	if _, err := s.employees.Get(ctx, employeeID); err != nil {
		return TimeEntry{}, err
	}
	now := s.now()
	entry := TimeEntry{
		EmployeeID: employeeID,
		Date:       req.Date,
		Time:       req.Time,
		EntryType:  kind,
	}
	if entry.Date == "" {
		entry.Date = now.Format(DateLayout)
	}
	if entry.Time == "" {
		entry.Time = now.Format(TimeLayout)
	}
	return s.repo.Create(ctx, entry)
}

// OwnerOf resolves an entry to the employee it belongs to.
func (s *Service) OwnerOf(ctx context.Context, entryID int64) (int64, error) {
	e, err := s.repo.Get(ctx, entryID)
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			return 0, rbac.ErrRecordNotFound
		}
		return 0, err
	}
	return e.EmployeeID, nil
}

var _ rbac.RecordLookup = (*Service)(nil)
