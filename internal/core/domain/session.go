package domain

import "time"

// Phase is the coarse position of a client in the session state machine.
//
//	Unknown ──no credential──▶ Unauthenticated
//	Unknown ──credential────▶ Authenticating ──verify ok──▶ Authenticated
//	                                          └─verify err─▶ Unauthenticated
//	Authenticated ──logout / Unauthorized──▶ Unauthenticated
type Phase int

const (
	PhaseUnknown Phase = iota
	PhaseAuthenticating
	PhaseAuthenticated
	PhaseUnauthenticated
)

func (p Phase) String() string {
	switch p {
	case PhaseUnknown:
		return "unknown"
	case PhaseAuthenticating:
		return "authenticating"
	case PhaseAuthenticated:
		return "authenticated"
	case PhaseUnauthenticated:
		return "unauthenticated"
	default:
		return "invalid"
	}
}

// SessionState is the client's view of its own session. Principal is only
// meaningful when Phase is PhaseAuthenticated.
type SessionState struct {
	Phase     Phase
	Principal Principal
}

// Resolved reports whether the state is stable. Unknown and Authenticating
// must resolve before any gated view is shown.
func (s SessionState) Resolved() bool {
	return s.Phase == PhaseAuthenticated || s.Phase == PhaseUnauthenticated
}

// Authenticated reports whether a verified principal is attached.
func (s SessionState) Authenticated() bool {
	return s.Phase == PhaseAuthenticated
}

// EventKind classifies a SessionEvent.
type EventKind int

const (
	EventStateChanged EventKind = iota
	EventPresenceRegistered
	EventPresenceFailed
	EventForcedLogout
)

func (k EventKind) String() string {
	switch k {
	case EventStateChanged:
		return "state_changed"
	case EventPresenceRegistered:
		return "presence_registered"
	case EventPresenceFailed:
		return "presence_failed"
	case EventForcedLogout:
		return "forced_logout"
	default:
		return "unknown"
	}
}

// SessionEvent notifies observers of a state transition or of the outcome of
// background work tied to the session.
type SessionEvent struct {
	Kind  EventKind
	State SessionState
	Err   error
	At    time.Time
}
