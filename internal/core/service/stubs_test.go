package service

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/99minutos/presencectl/internal/core/domain"
)

// ---------------------------------------------------------------------------
// Credential store
// ---------------------------------------------------------------------------

type stubStore struct {
	mu     sync.Mutex
	cred   domain.Credential
	getErr error
	// onSet, when set, runs before a Set is applied.
	onSet  func(domain.Credential)
	sets   int
	clears int
}

func newStubStore(cred domain.Credential) *stubStore {
	return &stubStore{cred: cred}
}

func (s *stubStore) Get(_ context.Context) (domain.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return "", s.getErr
	}
	return s.cred, nil
}

func (s *stubStore) Set(_ context.Context, cred domain.Credential) error {
	if s.onSet != nil {
		s.onSet(cred)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = cred
	s.sets++
	return nil
}

func (s *stubStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = ""
	s.clears++
	return nil
}

func (s *stubStore) snapshot() (domain.Credential, int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cred, s.sets, s.clears
}

// ---------------------------------------------------------------------------
// Auth client
// ---------------------------------------------------------------------------

type stubAuth struct {
	loginFn    func(ctx context.Context, username, password string) (domain.Credential, error)
	registerFn func(ctx context.Context, username, password string, role domain.Role) error
	verifyFn   func(ctx context.Context, cred domain.Credential) (domain.Principal, error)

	verifyCalls atomic.Int32
}

func (a *stubAuth) Login(ctx context.Context, username, password string) (domain.Credential, error) {
	return a.loginFn(ctx, username, password)
}

func (a *stubAuth) Register(ctx context.Context, username, password string, role domain.Role) error {
	return a.registerFn(ctx, username, password, role)
}

func (a *stubAuth) Verify(ctx context.Context, cred domain.Credential) (domain.Principal, error) {
	a.verifyCalls.Add(1)
	return a.verifyFn(ctx, cred)
}

func verifyAs(username string, role domain.Role) func(context.Context, domain.Credential) (domain.Principal, error) {
	return func(context.Context, domain.Credential) (domain.Principal, error) {
		return domain.Principal{Username: username, Role: role}, nil
	}
}

// ---------------------------------------------------------------------------
// Presence coordinator
// ---------------------------------------------------------------------------

type stubPresence struct {
	registerFn func(ctx context.Context) error
	listFn     func(ctx context.Context) ([]domain.ConnectionRecord, error)

	registerCalls atomic.Int32
	listCalls     atomic.Int32
}

func (p *stubPresence) RegisterConnection(ctx context.Context) error {
	p.registerCalls.Add(1)
	if p.registerFn == nil {
		return nil
	}
	return p.registerFn(ctx)
}

func (p *stubPresence) ListConnections(ctx context.Context) ([]domain.ConnectionRecord, error) {
	p.listCalls.Add(1)
	if p.listFn == nil {
		return []domain.ConnectionRecord{}, nil
	}
	return p.listFn(ctx)
}

// ---------------------------------------------------------------------------
// Event publisher
// ---------------------------------------------------------------------------

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.SessionEvent
}

func (p *recordingPublisher) Publish(e domain.SessionEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) count(kind domain.EventKind) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func (p *recordingPublisher) phases() []domain.Phase {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.Phase
	for _, e := range p.events {
		if e.Kind == domain.EventStateChanged {
			out = append(out, e.State.Phase)
		}
	}
	return out
}

// fixedState is a SessionReader returning a canned state.
type fixedState domain.SessionState

func (s fixedState) State() domain.SessionState { return domain.SessionState(s) }
