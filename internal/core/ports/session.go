package ports

import "github.com/99minutos/presencectl/internal/core/domain"

// SessionReader exposes the current session state without allowing mutation.
type SessionReader interface {
	State() domain.SessionState
}

// EventPublisher receives session events. Publish must not block the caller.
type EventPublisher interface {
	Publish(event domain.SessionEvent)
}
