package timesheet

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists time entries.
type Repository interface {
	List(ctx context.Context) ([]TimeEntry, error)
	ListByEmployee(ctx context.Context, employeeID int64) ([]TimeEntry, error)
	ListByDepartment(ctx context.Context, department string) ([]TimeEntry, error)
	Get(ctx context.Context, id int64) (TimeEntry, error)
	Create(ctx context.Context, e TimeEntry) (TimeEntry, error)
}

// PGRepository implements Repository on PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PGRepository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const entryColumns = `t.entry_id, t.employee_id, to_char(t.date, 'YYYY-MM-DD'), to_char(t.time, 'HH24:MI:SS'), t.entry_type`

func scanEntry(row pgx.Row) (TimeEntry, error) {
	var e TimeEntry
	err := row.Scan(&e.ID, &e.EmployeeID, &e.Date, &e.Time, &e.EntryType)
	return e, err
}

func (r *PGRepository) list(ctx context.Context, query string, args ...any) ([]TimeEntry, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("timesheet: query: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (TimeEntry, error) {
		return scanEntry(row)
	})
	if err != nil {
		return nil, fmt.Errorf("timesheet: scan: %w", err)
	}
	return out, nil
}

// List returns every entry in chronological order.
func (r *PGRepository) List(ctx context.Context) ([]TimeEntry, error) {
	return r.list(ctx, `SELECT `+entryColumns+` FROM login_logout_times t ORDER BY t.date, t.time, t.entry_id`)
}

// ListByEmployee returns the entries of one employee.
func (r *PGRepository) ListByEmployee(ctx context.Context, employeeID int64) ([]TimeEntry, error) {
	return r.list(ctx, `SELECT `+entryColumns+` FROM login_logout_times t WHERE t.employee_id = $1 ORDER BY t.date, t.time, t.entry_id`, employeeID)
}

// ListByDepartment returns the entries of every employee in department.
func (r *PGRepository) ListByDepartment(ctx context.Context, department string) ([]TimeEntry, error) {
	return r.list(ctx, `SELECT `+entryColumns+`
FROM login_logout_times t
JOIN employee_details e ON e.employee_id = t.employee_id
WHERE e.department = $1
ORDER BY t.date, t.time, t.entry_id`, department)
}

// Get fetches one entry.
func (r *PGRepository) Get(ctx context.Context, id int64) (TimeEntry, error) {
	e, err := scanEntry(r.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM login_logout_times t WHERE t.entry_id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TimeEntry{}, ErrEntryNotFound
		}
		return TimeEntry{}, fmt.Errorf("timesheet: get: %w", err)
	}
	return e, nil
}

// Create inserts e and returns it with its id.
func (r *PGRepository) Create(ctx context.Context, e TimeEntry) (TimeEntry, error) {
	err := r.pool.QueryRow(ctx, `
INSERT INTO login_logout_times (employee_id, date, time, entry_type)
VALUES ($1, $2::date, $3::time, $4)
RETURNING entry_id`,
		e.EmployeeID, e.Date, e.Time, string(e.EntryType),
	).Scan(&e.ID)
	if err != nil {
		return TimeEntry{}, fmt.Errorf("timesheet: create: %w", err)
	}
	return e, nil
}

var _ Repository = (*PGRepository)(nil)
