package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/emprecords/emprecords/internal/platform/db"
)

// CredentialReader resolves principals. Missing principals yield ErrPrincipalNotFound.
type CredentialReader interface {
	FindByUsername(ctx context.Context, username string) (*Principal, error)
	FindByID(ctx context.Context, id int64) (*Principal, error)
}

// CredentialStore defines persistence operations for principals.
type CredentialStore interface {
	CredentialReader
	// Save inserts a principal when ID is zero and updates it otherwise.
	// The linked employee is owned by the employee record and is not written.
	Save(ctx context.Context, p *Principal) (*Principal, error)
	Delete(ctx context.Context, id int64) error
}

// PGStore implements CredentialStore using PostgreSQL.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewStore constructs a PostgreSQL credential store.
func NewStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const selectPrincipal = `
SELECT u.user_id, u.username, u.password, u.disabled, u.created_at, u.updated_at,
       e.employee_id,
       COALESCE(ARRAY_AGG(r.role_name ORDER BY r.role_name) FILTER (WHERE r.role_name IS NOT NULL), '{}')
FROM users u
LEFT JOIN employee_details e ON e.user_id = u.user_id
LEFT JOIN user_roles ur ON ur.user_id = u.user_id
LEFT JOIN roles r ON r.role_id = ur.role_id
`

const groupPrincipal = ` GROUP BY u.user_id, e.employee_id`

// FindByUsername fetches a principal by username.
func (s *PGStore) FindByUsername(ctx context.Context, username string) (*Principal, error) {
	return s.findOne(ctx, selectPrincipal+`WHERE u.username = $1`+groupPrincipal, username)
}

// FindByID fetches a principal by id.
func (s *PGStore) FindByID(ctx context.Context, id int64) (*Principal, error) {
	return s.findOne(ctx, selectPrincipal+`WHERE u.user_id = $1`+groupPrincipal, id)
}

func (s *PGStore) findOne(ctx context.Context, query string, arg any) (*Principal, error) {
	var (
		p     Principal
		empID *int64
		roles []string
	)
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&p.ID, &p.Username, &p.PasswordHash, &p.Disabled, &p.CreatedAt, &p.UpdatedAt, &empID, &roles,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPrincipalNotFound
		}
		return nil, fmt.Errorf("auth: find principal: %w", err)
	}
	p.EmployeeID = empID
	p.Roles = make([]Role, 0, len(roles))
	for _, r := range roles {
		p.Roles = append(p.Roles, Role(r))
	}
	return &p, nil
}

// Save persists p and its role set in one transaction.
func (s *PGStore) Save(ctx context.Context, p *Principal) (*Principal, error) {
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if p.ID == 0 {
			err := tx.QueryRow(ctx,
				`INSERT INTO users (username, password, disabled) VALUES ($1, $2, $3)
				 RETURNING user_id, created_at, updated_at`,
				p.Username, p.PasswordHash, p.Disabled,
			).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
			if err != nil {
				if db.IsUniqueViolation(err, "uq_users_username") {
					return ErrUsernameTaken
				}
				return fmt.Errorf("auth: insert principal: %w", err)
			}
		} else {
			tag, err := tx.Exec(ctx,
				`UPDATE users SET username = $2, password = $3, disabled = $4, updated_at = NOW() WHERE user_id = $1`,
				p.ID, p.Username, p.PasswordHash, p.Disabled,
			)
			if err != nil {
				if db.IsUniqueViolation(err, "uq_users_username") {
					return ErrUsernameTaken
				}
				return fmt.Errorf("auth: update principal: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return ErrPrincipalNotFound
			}
			if _, err := tx.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, p.ID); err != nil {
				return fmt.Errorf("auth: clear roles: %w", err)
			}
		}
		names := make([]string, 0, len(p.Roles))
		for _, r := range p.Roles {
			names = append(names, string(r))
		}
		tag, err := tx.Exec(ctx,
			`INSERT INTO user_roles (user_id, role_id)
			 SELECT $1, role_id FROM roles WHERE role_name = ANY($2)`,
			p.ID, names,
		)
		if err != nil {
			return fmt.Errorf("auth: assign roles: %w", err)
		}
		if int(tag.RowsAffected()) != len(names) {
			return ErrUnknownRole
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.FindByID(ctx, p.ID)
}

// Delete removes a principal; its employee record is unlinked by the schema.
func (s *PGStore) Delete(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE user_id = $1`, id)
	if err != nil {
		return fmt.Errorf("auth: delete principal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPrincipalNotFound
	}
	return nil
}

var _ CredentialStore = (*PGStore)(nil)
