package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/emprecords/emprecords/internal/auth"
)

// DecisionObserver receives one decision per evaluation.
type DecisionObserver interface {
	ObserveDecision(decision string)
}

// Engine evaluates policies. It holds no mutable state and is safe for
// concurrent use.
type Engine struct {
	observer DecisionObserver
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithDecisionObserver reports decisions to o.
func WithDecisionObserver(o DecisionObserver) EngineOption {
	return func(e *Engine) { e.observer = o }
}

// NewEngine constructs an Engine.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Decide evaluates p for the caller ac against the optional resource id.
// A nil ac always yields Deny. Errors are returned only when a record lookup
// fails for a reason other than the record being absent; they never become Allow.
func (e *Engine) Decide(ctx context.Context, ac *auth.AuthenticatedContext, p Policy, resourceID *int64) (Decision, error) {
	d, err := e.decide(ctx, ac, p, resourceID)
	if err != nil {
		d = Deny
	}
	if e.observer != nil {
		if err != nil {
			e.observer.ObserveDecision("error")
		} else {
			e.observer.ObserveDecision(d.String())
		}
	}
	return d, err
}

func (e *Engine) decide(ctx context.Context, ac *auth.AuthenticatedContext, p Policy, resourceID *int64) (Decision, error) {
	if ac == nil {
		return Deny, nil
	}
	if len(p.Roles) == 0 && p.Ownership == OwnershipNone {
		return Allow, nil
	}
	if ac.HasAnyRole(p.Roles...) {
		return Allow, nil
	}
	if resourceID == nil {
		return Deny, nil
	}
	switch p.Ownership {
	case OwnershipSelf:
		return IsSelf(*resourceID, ac), nil
	case OwnershipRecord:
		return IsOwnerOfRecord(ctx, p.Lookup, *resourceID, ac)
	default:
		return Deny, nil
	}
}

// IsSelf allows when resourceID is the caller's linked employee id.
func IsSelf(resourceID int64, ac *auth.AuthenticatedContext) Decision {
	if ac == nil || ac.EmployeeID == nil || *ac.EmployeeID != resourceID {
		return Deny
	}
	return Allow
}

// IsOwnerOfRecord allows when the record resolved by lookup belongs to the
// caller's linked employee. Unknown records are denied.
func IsOwnerOfRecord(ctx context.Context, lookup RecordLookup, recordID int64, ac *auth.AuthenticatedContext) (Decision, error) {
	if ac == nil || ac.EmployeeID == nil {
		return Deny, nil
	}
	if lookup == nil {
		return Deny, errors.New("rbac: record ownership policy without lookup")
	}
	owner, err := lookup.OwnerOf(ctx, recordID)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return Deny, nil
		}
		return Deny, fmt.Errorf("rbac: resolve owner of record %d: %w", recordID, err)
	}
	if owner != *ac.EmployeeID {
		return Deny, nil
	}
	return Allow, nil
}
