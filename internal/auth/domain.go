package auth

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Role is a named permission group.
type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleHRManager Role = "HR_MANAGER"
	RoleUser      Role = "USER"
)

// KnownRoles lists every role the service recognizes.
var KnownRoles = []Role{RoleAdmin, RoleHRManager, RoleUser}

var upper = cases.Upper(language.Und)

// ParseRole normalizes a role name ("hr_manager", "ROLE_ADMIN") to its canonical form.
func ParseRole(name string) (Role, error) {
	n := upper.String(strings.TrimSpace(name))
	n = strings.TrimPrefix(n, "ROLE_")
	r := Role(n)
	if !slices.Contains(KnownRoles, r) {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, name)
	}
	return r, nil
}

// usernamePattern allows alphanumerics, dots, hyphens, underscores and @.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._@-]{3,64}$`)

// IsValidUsername checks if a username meets format requirements.
func IsValidUsername(username string) bool {
	return usernamePattern.MatchString(username)
}

// Principal is a stored identity with its roles and optional linked employee record.
type Principal struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // never serialised
	Roles        []Role    `json:"roles"`
	EmployeeID   *int64    `json:"employee_id,omitempty"`
	Disabled     bool      `json:"disabled"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasRole reports whether the principal holds role.
func (p *Principal) HasRole(role Role) bool {
	return p != nil && slices.Contains(p.Roles, role)
}

// Credentials is the username/password pair supplied at login and registration.
// The password ceiling bounds hashing cost; argon2id itself has no input limit.
type Credentials struct {
	Username string `json:"username" validate:"required,username"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}
