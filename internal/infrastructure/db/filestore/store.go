// Package filestore persists the credential as YAML in the user's config
// directory. It is the default CredentialStore for the CLI.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/99minutos/presencectl/internal/core/domain"
	"github.com/99minutos/presencectl/internal/core/ports"
)

const (
	fileMode = 0o600
	dirMode  = 0o700
	fileName = "credentials.yaml"
	appDir   = "presencectl"
)

var _ ports.CredentialStore = (*CredentialStore)(nil)

type entry struct {
	Token     string    `yaml:"token"`
	UpdatedAt time.Time `yaml:"updated_at"`
}

// document is the on-disk layout: one entry per slot name.
type document struct {
	Credentials map[string]entry `yaml:"credentials"`
}

// CredentialStore reads and writes a single slot of the credentials file.
// Other slots in the same file are preserved.
type CredentialStore struct {
	mu   sync.Mutex
	path string
	slot string
	now  func() time.Time
}

// DefaultPath returns <user config dir>/presencectl/credentials.yaml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(dir, appDir, fileName), nil
}

// New returns a store for slot in the file at path. An empty path selects
// DefaultPath.
func New(path, slot string) (*CredentialStore, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return &CredentialStore{path: path, slot: slot, now: time.Now}, nil
}

// Path is the file backing the store.
func (s *CredentialStore) Path() string { return s.path }

func (s *CredentialStore) Get(_ context.Context) (domain.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return "", err
	}
	return domain.Credential(doc.Credentials[s.slot].Token), nil
}

func (s *CredentialStore) Set(_ context.Context, cred domain.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	if cred.IsZero() {
		delete(doc.Credentials, s.slot)
	} else {
		doc.Credentials[s.slot] = entry{Token: string(cred), UpdatedAt: s.now().UTC()}
	}
	return s.save(doc)
}

// Clear removes the slot. A missing file or slot is not an error.
func (s *CredentialStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := doc.Credentials[s.slot]; !ok {
		return nil
	}
	delete(doc.Credentials, s.slot)
	return s.save(doc)
}

func (s *CredentialStore) load() (document, error) {
	doc := document{Credentials: map[string]entry{}}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return doc, fmt.Errorf("read %s: %w", s.path, err)
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("parse %s: %w", s.path, err)
	}
	if doc.Credentials == nil {
		doc.Credentials = map[string]entry{}
	}
	return doc, nil
}

// save writes to a temp file in the same directory and renames it over the
// target so a crash never leaves a truncated file behind.
func (s *CredentialStore) save(doc document) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+fileName+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(fileMode); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}
