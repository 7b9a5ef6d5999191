package ports

import (
	"context"

	"github.com/99minutos/presencectl/internal/core/domain"
)

// AuthClient talks to the Auth service. Failures are returned as
// *domain.AuthError values, never panics.
type AuthClient interface {
	Login(ctx context.Context, username, password string) (domain.Credential, error)
	Register(ctx context.Context, username, password string, role domain.Role) error
	Verify(ctx context.Context, cred domain.Credential) (domain.Principal, error)
}
