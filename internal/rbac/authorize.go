package rbac

import "github.com/odyssey-erp/odyssey-admin/internal/shared"

// MatchMode selects how a list of required permissions is evaluated.
type MatchMode int

const (
	// MatchAny is satisfied by at least one of the listed permissions.
	MatchAny MatchMode = iota
	// MatchAll requires every listed permission.
	MatchAll
)

// ReasonUnauthorized is the denial reason for a missing permission.
const ReasonUnauthorized = "This action is unauthorized."

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	Reason  string
}

// Allow returns a granting Decision.
func Allow() Decision {
	return Decision{Allowed: true}
}

// Deny returns a refusing Decision carrying reason.
func Deny(reason string) Decision {
	return Decision{Reason: reason}
}

// Err converts a denial into *shared.AuthorizationError and an allow into nil.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	reason := d.Reason
	if reason == "" {
		reason = ReasonUnauthorized
	}
	return shared.Forbidden(reason)
}

// Authorize checks the principal's permission set against required.
func Authorize(p Principal, mode MatchMode, required ...string) Decision {
	if len(required) == 0 {
		return Allow()
	}
	var ok bool
	switch mode {
	case MatchAll:
		ok = p.Permissions.HasAll(required...)
	default:
		ok = p.Permissions.HasAny(required...)
	}
	if !ok {
		return Deny(ReasonUnauthorized)
	}
	return Allow()
}
