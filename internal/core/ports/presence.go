package ports

import (
	"context"

	"github.com/99minutos/presencectl/internal/core/domain"
)

// DirectorySource yields snapshots of the presence directory.
type DirectorySource interface {
	ListConnections(ctx context.Context) ([]domain.ConnectionRecord, error)
}

// PresenceCoordinator talks to the Presence service on behalf of the current
// session. Failures are returned as *domain.PresenceError values.
type PresenceCoordinator interface {
	DirectorySource
	RegisterConnection(ctx context.Context) error
}
