package service

import (
	"github.com/99minutos/presencectl/internal/core/domain"
	"github.com/99minutos/presencectl/internal/core/ports"
)

// DenyReason explains why a guard check failed.
type DenyReason int

const (
	DenyNone DenyReason = iota
	DenyNotAuthenticated
	DenyInsufficientRole
)

func (r DenyReason) String() string {
	switch r {
	case DenyNone:
		return "none"
	case DenyNotAuthenticated:
		return "not_authenticated"
	case DenyInsufficientRole:
		return "insufficient_role"
	default:
		return "unknown"
	}
}

// Decision is the outcome of a guard check. Pending is set when the session
// has not resolved yet, so callers can show a loading state instead of a
// denial.
type Decision struct {
	Allowed bool
	Reason  DenyReason
	Pending bool
}

// Err converts a denial into the matching domain error, or nil when allowed.
func (d Decision) Err() error {
	switch d.Reason {
	case DenyNotAuthenticated:
		return &domain.AuthError{Kind: domain.KindNotAuthenticated, Op: "guard"}
	case DenyInsufficientRole:
		return &domain.AuthError{Kind: domain.KindInsufficientRole, Op: "guard"}
	default:
		return nil
	}
}

// Decide evaluates a role requirement against a state snapshot.
func Decide(state domain.SessionState, required domain.Role) Decision {
	if !state.Authenticated() {
		return Decision{Reason: DenyNotAuthenticated, Pending: !state.Resolved()}
	}
	if !state.Principal.Role.Satisfies(required) {
		return Decision{Reason: DenyInsufficientRole}
	}
	return Decision{Allowed: true}
}

// SessionGuard decides, from the current session state alone, whether a gated
// action may be attempted. It never talks to the backend; the backend remains
// the authority and will reject anything the guard lets through wrongly.
type SessionGuard struct {
	session ports.SessionReader
}

func NewSessionGuard(session ports.SessionReader) *SessionGuard {
	return &SessionGuard{session: session}
}

// Authorize checks the current state against required. Pass domain.RoleAny
// to require only an authenticated session.
func (g *SessionGuard) Authorize(required domain.Role) Decision {
	return Decide(g.session.State(), required)
}
