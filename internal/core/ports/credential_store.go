package ports

import (
	"context"

	"github.com/99minutos/presencectl/internal/core/domain"
)

// CredentialStore persists the single bearer credential of this client across
// process restarts. Get returns the zero Credential and a nil error when the
// slot is empty. Clear must be idempotent.
type CredentialStore interface {
	Get(ctx context.Context) (domain.Credential, error)
	Set(ctx context.Context, cred domain.Credential) error
	Clear(ctx context.Context) error
}
