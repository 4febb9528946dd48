// Package rbac decides whether an authenticated caller may perform an
// operation. Decisions combine role membership with ownership predicates.
package rbac

import (
	"context"
	"fmt"

	"github.com/emprecords/emprecords/internal/auth"
	"github.com/emprecords/emprecords/internal/platform/httpx"
)

// Decision is the outcome of an authorization check.
type Decision int

const (
	Deny Decision = iota
	Allow
)

func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

// OwnershipKind selects the ownership predicate a policy falls back to when
// the caller holds none of the required roles.
type OwnershipKind int

const (
	// OwnershipNone grants nothing beyond roles.
	OwnershipNone OwnershipKind = iota
	// OwnershipSelf grants access when the resource id is the caller's employee id.
	OwnershipSelf
	// OwnershipRecord grants access when the record belongs to the caller's employee.
	OwnershipRecord
)

// ErrRecordNotFound is returned by a RecordLookup for unknown records.
// The engine turns it into Deny so that missing and foreign records are
// indistinguishable to the caller.
var ErrRecordNotFound = fmt.Errorf("%w: record", httpx.ErrNotFound)

// RecordLookup resolves the employee that owns a record.
type RecordLookup interface {
	OwnerOf(ctx context.Context, recordID int64) (int64, error)
}

// RecordLookupFunc adapts a function to RecordLookup.
type RecordLookupFunc func(ctx context.Context, recordID int64) (int64, error)

// OwnerOf implements RecordLookup.
func (f RecordLookupFunc) OwnerOf(ctx context.Context, recordID int64) (int64, error) {
	return f(ctx, recordID)
}

// Policy is the static authorization rule attached to a route.
// Roles are matched ANY-of; the ownership predicate is OR-composed with them.
type Policy struct {
	Roles     []auth.Role
	Ownership OwnershipKind
	Lookup    RecordLookup
}

// RequireRoles allows callers holding any of roles.
func RequireRoles(roles ...auth.Role) Policy {
	return Policy{Roles: roles}
}

// Authenticated allows any authenticated caller.
func Authenticated() Policy {
	return Policy{}
}

// SelfOnly allows a caller only on their own employee id.
func SelfOnly() Policy {
	return Policy{Ownership: OwnershipSelf}
}

// OrSelf extends p to also allow the caller on their own employee id.
func (p Policy) OrSelf() Policy {
	p.Ownership = OwnershipSelf
	p.Lookup = nil
	return p
}

// OrOwnerOf extends p to also allow the owner of the record resolved by lookup.
func (p Policy) OrOwnerOf(lookup RecordLookup) Policy {
	p.Ownership = OwnershipRecord
	p.Lookup = lookup
	return p
}

// NeedsResource reports whether evaluating p requires a resource id.
func (p Policy) NeedsResource() bool {
	return p.Ownership != OwnershipNone
}
