package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrUnreachable         = errors.New("backend unreachable")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInsufficientRole    = errors.New("insufficient role")
	ErrPresenceUnavailable = errors.New("presence unavailable")
	ErrNotAuthenticated    = errors.New("not authenticated")
	ErrRejected            = errors.New("request rejected")
	ErrMalformedResponse   = errors.New("malformed response")
	ErrStaleResponse       = errors.New("stale response discarded")
)

// ErrorKind classifies a failed auth or presence call.
type ErrorKind int

const (
	KindInvalidCredentials ErrorKind = iota + 1
	KindUnreachable
	KindUnauthorized
	KindInsufficientRole
	KindPresenceUnavailable
	KindNotAuthenticated
	KindRejected
	KindMalformedResponse
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindInvalidCredentials:
		return ErrInvalidCredentials
	case KindUnreachable:
		return ErrUnreachable
	case KindUnauthorized:
		return ErrUnauthorized
	case KindInsufficientRole:
		return ErrInsufficientRole
	case KindPresenceUnavailable:
		return ErrPresenceUnavailable
	case KindNotAuthenticated:
		return ErrNotAuthenticated
	case KindRejected:
		return ErrRejected
	case KindMalformedResponse:
		return ErrMalformedResponse
	default:
		return nil
	}
}

func (k ErrorKind) String() string {
	if s := k.sentinel(); s != nil {
		return s.Error()
	}
	return "unknown error"
}

// AuthError is returned by every AuthClient operation that did not succeed.
// Message carries the server-supplied text unmodified, if there was one.
type AuthError struct {
	Kind    ErrorKind
	Op      string
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	return describe("auth", e.Op, e.Kind, e.Message, e.Err)
}

func (e *AuthError) Unwrap() []error {
	return causes(e.Kind.sentinel(), e.Err)
}

// PresenceError is returned by PresenceCoordinator operations. Every
// PresenceError other than an Unauthorized one also matches
// ErrPresenceUnavailable, since the session itself stays valid.
type PresenceError struct {
	Kind    ErrorKind
	Op      string
	Message string
	Err     error
}

func (e *PresenceError) Error() string {
	return describe("presence", e.Op, e.Kind, e.Message, e.Err)
}

func (e *PresenceError) Unwrap() []error {
	errs := causes(e.Kind.sentinel(), e.Err)
	if e.Kind != KindUnauthorized && e.Kind != KindPresenceUnavailable {
		errs = append(errs, ErrPresenceUnavailable)
	}
	return errs
}

func describe(scope, op string, kind ErrorKind, message string, cause error) string {
	detail := message
	if detail == "" {
		detail = kind.String()
	}
	if cause != nil && message == "" {
		return fmt.Sprintf("%s: %s: %s: %v", scope, op, detail, cause)
	}
	return fmt.Sprintf("%s: %s: %s", scope, op, detail)
}

func causes(errs ...error) []error {
	out := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			out = append(out, err)
		}
	}
	return out
}

const (
	msgUnreachable     = "Unable to reach the server. Check your connection and try again."
	msgAccessDenied    = "Access denied."
	msgLoginRequired   = "Please log in to continue."
	msgPresenceOffline = "Connected users are unavailable right now."
)

// UserMessage renders err for display. A server-supplied message is shown
// verbatim; transport failures get a generic connectivity message.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrUnreachable) {
		return msgUnreachable
	}

	var ae *AuthError
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	var pe *PresenceError
	if errors.As(err, &pe) && pe.Message != "" {
		return pe.Message
	}

	switch {
	case errors.Is(err, ErrInsufficientRole):
		return msgAccessDenied
	case errors.Is(err, ErrNotAuthenticated), errors.Is(err, ErrUnauthorized):
		return msgLoginRequired
	case errors.Is(err, ErrPresenceUnavailable):
		return msgPresenceOffline
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid credentials."
	}
	return err.Error()
}
