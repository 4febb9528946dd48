package employees

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/emprecords/emprecords/internal/platform/db"
)

// Repository persists employee records.
type Repository interface {
	List(ctx context.Context) ([]Employee, error)
	ListByDepartment(ctx context.Context, department string) ([]Employee, error)
	Get(ctx context.Context, id int64) (Employee, error)
	Create(ctx context.Context, e Employee) (Employee, error)
	Update(ctx context.Context, e Employee) (Employee, error)
	Delete(ctx context.Context, id int64) error
}

// PGRepository implements Repository on PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PGRepository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const employeeColumns = `employee_id, user_id, first_name, last_name, age,
       COALESCE(gender, ''), COALESCE(email, ''), COALESCE(phone_number, ''), COALESCE(department, '')`

func scanEmployee(row pgx.Row) (Employee, error) {
	var e Employee
	err := row.Scan(&e.ID, &e.UserID, &e.FirstName, &e.LastName, &e.Age, &e.Gender, &e.Email, &e.PhoneNo, &e.Department)
	return e, err
}

func (r *PGRepository) list(ctx context.Context, query string, args ...any) ([]Employee, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("employees: query: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Employee, error) {
		return scanEmployee(row)
	})
	if err != nil {
		return nil, fmt.Errorf("employees: scan: %w", err)
	}
	return out, nil
}

// List returns every employee ordered by id.
func (r *PGRepository) List(ctx context.Context) ([]Employee, error) {
	return r.list(ctx, `SELECT `+employeeColumns+` FROM employee_details ORDER BY employee_id`)
}

// ListByDepartment returns the employees of one department.
func (r *PGRepository) ListByDepartment(ctx context.Context, department string) ([]Employee, error) {
	return r.list(ctx, `SELECT `+employeeColumns+` FROM employee_details WHERE department = $1 ORDER BY employee_id`, department)
}

// Get fetches one employee.
func (r *PGRepository) Get(ctx context.Context, id int64) (Employee, error) {
	e, err := scanEmployee(r.pool.QueryRow(ctx, `SELECT `+employeeColumns+` FROM employee_details WHERE employee_id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Employee{}, ErrEmployeeNotFound
		}
		return Employee{}, fmt.Errorf("employees: get: %w", err)
	}
	return e, nil
}

// Create inserts e and returns it with its id.
func (r *PGRepository) Create(ctx context.Context, e Employee) (Employee, error) {
	err := r.pool.QueryRow(ctx, `
INSERT INTO employee_details (user_id, first_name, last_name, age, gender, email, phone_number, department)
VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''))
RETURNING employee_id`,
		e.UserID, e.FirstName, e.LastName, e.Age, e.Gender, e.Email, e.PhoneNo, e.Department,
	).Scan(&e.ID)
	if err != nil {
		if db.IsUniqueViolation(err, "uq_employee_details_user") {
			return Employee{}, ErrAlreadyLinked
		}
		return Employee{}, fmt.Errorf("employees: create: %w", err)
	}
	return e, nil
}

// Update overwrites the personal fields of e. The principal link is unchanged.
func (r *PGRepository) Update(ctx context.Context, e Employee) (Employee, error) {
	tag, err := r.pool.Exec(ctx, `
UPDATE employee_details
SET first_name = $2, last_name = $3, age = $4, gender = NULLIF($5, ''), email = NULLIF($6, ''),
    phone_number = NULLIF($7, ''), department = NULLIF($8, '')
WHERE employee_id = $1`,
		e.ID, e.FirstName, e.LastName, e.Age, e.Gender, e.Email, e.PhoneNo, e.Department)
	if err != nil {
		return Employee{}, fmt.Errorf("employees: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return Employee{}, ErrEmployeeNotFound
	}
	return r.Get(ctx, e.ID)
}

// Delete removes an employee and its time entries.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM employee_details WHERE employee_id = $1`, id)
	if err != nil {
		return fmt.Errorf("employees: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEmployeeNotFound
	}
	return nil
}

var _ Repository = (*PGRepository)(nil)
