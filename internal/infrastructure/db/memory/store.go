// Package memory holds the credential in process memory. Nothing survives a
// restart; it backs tests and CREDENTIAL_STORE=memory.
package memory

import (
	"context"
	"sync"

	"github.com/99minutos/presencectl/internal/core/domain"
	"github.com/99minutos/presencectl/internal/core/ports"
)

var _ ports.CredentialStore = (*CredentialStore)(nil)

type CredentialStore struct {
	mu   sync.RWMutex
	cred domain.Credential
}

func NewCredentialStore() *CredentialStore {
	return &CredentialStore{}
}

func (s *CredentialStore) Get(_ context.Context) (domain.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred, nil
}

func (s *CredentialStore) Set(_ context.Context, cred domain.Credential) error {
	s.mu.Lock()
	s.cred = cred
	s.mu.Unlock()
	return nil
}

func (s *CredentialStore) Clear(_ context.Context) error {
	s.mu.Lock()
	s.cred = ""
	s.mu.Unlock()
	return nil
}
