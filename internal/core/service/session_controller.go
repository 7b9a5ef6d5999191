package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/99minutos/presencectl/internal/api/metrics"
	"github.com/99minutos/presencectl/internal/core/domain"
	"github.com/99minutos/presencectl/internal/core/ports"
)

var (
	_ ports.SessionReader   = (*SessionController)(nil)
	_ ports.DirectorySource = (*SessionController)(nil)
)

// SessionController owns the session state machine. It is the only writer of
// SessionState and the only component that reacts to an Unauthorized reply by
// ending the session.
//
// Two counters keep concurrent work honest:
//   - epoch changes whenever the session enters or leaves Authenticated; a
//     reply captured under an older epoch is discarded.
//   - attempt changes whenever a verification starts or the session is torn
//     down; a verify result from an older attempt is discarded.
type SessionController struct {
	store    ports.CredentialStore
	auth     ports.AuthClient
	presence ports.PresenceCoordinator
	events   ports.EventPublisher
	log      zerolog.Logger
	now      func() time.Time

	mu         sync.RWMutex
	state      domain.SessionState
	epoch      uint64
	attempt    uint64
	registered uint64
	closed     bool

	startup singleflight.Group

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSessionController returns a controller in PhaseUnknown. events may be nil.
func NewSessionController(
	store ports.CredentialStore,
	auth ports.AuthClient,
	presence ports.PresenceCoordinator,
	events ports.EventPublisher,
	log zerolog.Logger,
) *SessionController {
	if events == nil {
		events = noopPublisher{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &SessionController{
		store:    store,
		auth:     auth,
		presence: presence,
		events:   events,
		log:      log,
		now:      time.Now,
		state:    domain.SessionState{Phase: domain.PhaseUnknown},
		ctx:      ctx,
		cancel:   cancel,
	}
}

// State returns a snapshot of the current session state.
func (c *SessionController) State() domain.SessionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Guard returns a SessionGuard reading this controller's state.
func (c *SessionController) Guard() *SessionGuard {
	return NewSessionGuard(c)
}

// Start resolves the initial state from the stored credential. Concurrent
// calls share one verification, and a late duplicate call made once the
// session is already authenticated returns without touching the backend.
//
// The shared verification runs on the controller's own context: a caller
// whose ctx ends stops waiting and gets ctx.Err(), while the check carries on
// for the others.
func (c *SessionController) Start(ctx context.Context) (domain.SessionState, error) {
	ch := c.startup.DoChan("startup", func() (any, error) {
		return c.resolve(c.ctx)
	})

	select {
	case <-ctx.Done():
		return c.State(), ctx.Err()
	case res := <-ch:
		state, _ := res.Val.(domain.SessionState)
		if errors.Is(res.Err, domain.ErrStaleResponse) {
			return c.State(), nil
		}
		return state, res.Err
	}
}

func (c *SessionController) resolve(ctx context.Context) (domain.SessionState, error) {
	current := c.State()
	switch current.Phase {
	case domain.PhaseAuthenticated, domain.PhaseAuthenticating:
		c.log.Debug().Str("phase", current.Phase.String()).Msg("startup check skipped")
		return current, nil
	}

	cred, err := c.store.Get(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("credential store read failed, treating session as signed out")
		c.mu.Lock()
		c.setLocked(domain.SessionState{Phase: domain.PhaseUnauthenticated})
		state := c.state
		c.mu.Unlock()
		return state, fmt.Errorf("read credential: %w", err)
	}

	c.mu.Lock()
	if cred.IsZero() {
		c.setLocked(domain.SessionState{Phase: domain.PhaseUnauthenticated})
		state := c.state
		c.mu.Unlock()
		return state, nil
	}
	attempt := c.beginVerifyLocked()
	c.mu.Unlock()

	return c.verify(ctx, cred, attempt)
}

// beginVerifyLocked starts a new verification attempt, superseding any
// attempt still in flight.
func (c *SessionController) beginVerifyLocked() uint64 {
	c.attempt++
	c.setLocked(domain.SessionState{Phase: domain.PhaseAuthenticating})
	return c.attempt
}

// verify checks cred and applies the result unless attempt was superseded
// while the call was in flight. A verification cut short by ctx leaves the
// credential in place and the session Unknown.
func (c *SessionController) verify(ctx context.Context, cred domain.Credential, attempt uint64) (domain.SessionState, error) {
	principal, err := c.auth.Verify(ctx, cred)

	c.mu.Lock()
	defer c.mu.Unlock()

	if attempt != c.attempt {
		c.log.Debug().Msg("discarding superseded verification result")
		metrics.StaleResponsesTotal.WithLabelValues("verify").Inc()
		return c.state, domain.ErrStaleResponse
	}

	if err != nil && ctx.Err() != nil {
		c.log.Info().Err(err).Msg("verification interrupted, credential kept")
		c.setLocked(domain.SessionState{Phase: domain.PhaseUnknown})
		return c.state, err
	}

	if err != nil {
		if clearErr := c.store.Clear(context.WithoutCancel(ctx)); clearErr != nil {
			c.log.Error().Err(clearErr).Msg("failed to clear rejected credential")
		}
		c.log.Info().Err(err).Msg("stored credential rejected")
		c.setLocked(domain.SessionState{Phase: domain.PhaseUnauthenticated})
		return c.state, err
	}

	c.setLocked(domain.SessionState{Phase: domain.PhaseAuthenticated, Principal: principal})
	c.scheduleRegistrationLocked()
	return c.state, nil
}

// Login exchanges username and password for a credential, persists it and
// verifies it. On rejection nothing is persisted and the server message is
// carried by the returned error. Of two overlapping logins the one that
// persists last wins; the other returns ErrStaleResponse.
func (c *SessionController) Login(ctx context.Context, username, password string) (domain.SessionState, error) {
	cred, err := c.auth.Login(ctx, username, password)
	if err != nil {
		c.log.Info().Str("username", username).Err(err).Msg("login rejected")
		return c.State(), err
	}

	// The store write and the move to Authenticating happen under one lock so
	// the stored credential is always the one being verified.
	c.mu.Lock()
	if err := c.store.Set(ctx, cred); err != nil {
		state := c.state
		c.mu.Unlock()
		return state, fmt.Errorf("persist credential: %w", err)
	}
	attempt := c.beginVerifyLocked()
	c.mu.Unlock()

	return c.verify(ctx, cred, attempt)
}

// Register creates another account using the current credential. Whether the
// current principal may do so is decided by the Auth service.
func (c *SessionController) Register(ctx context.Context, username, password string, role domain.Role) error {
	state, epoch := c.snapshot()
	if d := Decide(state, domain.RoleAny); !d.Allowed {
		return d.Err()
	}

	err := c.auth.Register(ctx, username, password, role)
	if errors.Is(err, domain.ErrUnauthorized) {
		c.expire(epoch, err)
	}
	return err
}

// ListConnections fetches a directory snapshot. Non-admin sessions are denied
// before any request is made. A reply that arrives after the session changed
// is dropped and ErrStaleResponse is returned instead.
func (c *SessionController) ListConnections(ctx context.Context) ([]domain.ConnectionRecord, error) {
	state, epoch := c.snapshot()
	if d := Decide(state, domain.RoleAdmin); !d.Allowed {
		return nil, d.Err()
	}

	records, err := c.presence.ListConnections(ctx)

	if !c.isCurrent(epoch) {
		metrics.StaleResponsesTotal.WithLabelValues("list_users").Inc()
		c.log.Debug().Msg("discarding directory reply for a finished session")
		return nil, domain.ErrStaleResponse
	}

	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			c.expire(epoch, err)
		}
		if records == nil {
			records = []domain.ConnectionRecord{}
		}
		return records, err
	}
	return records, nil
}

// Logout forgets the credential locally. No backend call is made: the
// credential simply stops being presented.
func (c *SessionController) Logout(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.attempt++
	err := c.store.Clear(ctx)
	c.setLocked(domain.SessionState{Phase: domain.PhaseUnauthenticated})
	if err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	return nil
}

// Close waits for background registrations to finish.
func (c *SessionController) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.wg.Wait()
	c.cancel()
}

func (c *SessionController) snapshot() (domain.SessionState, uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state, c.epoch
}

func (c *SessionController) isCurrent(epoch uint64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isCurrentLocked(epoch)
}

func (c *SessionController) isCurrentLocked(epoch uint64) bool {
	return c.state.Authenticated() && c.epoch == epoch
}

// expire ends the session of the given epoch after the backend rejected its
// credential. Only the first caller for an epoch has any effect.
func (c *SessionController) expire(epoch uint64, cause error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isCurrentLocked(epoch) {
		return false
	}

	c.attempt++
	if err := c.store.Clear(c.ctx); err != nil {
		c.log.Error().Err(err).Msg("failed to clear expired credential")
	}
	username := c.state.Principal.Username
	c.setLocked(domain.SessionState{Phase: domain.PhaseUnauthenticated})
	c.publishLocked(domain.EventForcedLogout, cause)
	metrics.ForcedLogoutsTotal.Inc()

	c.log.Warn().Err(cause).Str("username", username).Msg("credential rejected by backend, session ended")
	return true
}

func (c *SessionController) scheduleRegistrationLocked() {
	epoch := c.epoch
	if c.closed || c.registered == epoch {
		return
	}
	c.registered = epoch

	c.wg.Add(1)
	go c.registerPresence(epoch)
}

// registerPresence runs once per authenticated epoch. Its failure never
// reverts authentication, except for an Unauthorized reply.
func (c *SessionController) registerPresence(epoch uint64) {
	defer c.wg.Done()

	err := c.presence.RegisterConnection(c.ctx)
	if err == nil {
		metrics.PresenceRegistrationsTotal.WithLabelValues("registered").Inc()
		c.mu.Lock()
		if c.isCurrentLocked(epoch) {
			c.publishLocked(domain.EventPresenceRegistered, nil)
		}
		c.mu.Unlock()
		c.log.Info().Msg("presence registered")
		return
	}

	metrics.PresenceRegistrationsTotal.WithLabelValues("failed").Inc()
	if errors.Is(err, domain.ErrUnauthorized) {
		c.expire(epoch, err)
		return
	}

	c.log.Warn().Err(err).Msg("presence registration failed")
	c.mu.Lock()
	if c.isCurrentLocked(epoch) {
		c.publishLocked(domain.EventPresenceFailed, err)
	}
	c.mu.Unlock()
}

func (c *SessionController) setLocked(next domain.SessionState) {
	prev := c.state
	if prev == next {
		return
	}
	if prev.Authenticated() || next.Authenticated() {
		c.epoch++
	}
	c.state = next

	metrics.SessionTransitionsTotal.WithLabelValues(next.Phase.String()).Inc()
	c.log.Debug().
		Str("from", prev.Phase.String()).
		Str("to", next.Phase.String()).
		Str("username", next.Principal.Username).
		Msg("session transition")
	c.publishLocked(domain.EventStateChanged, nil)
}

func (c *SessionController) publishLocked(kind domain.EventKind, err error) {
	c.events.Publish(domain.SessionEvent{
		Kind:  kind,
		State: c.state,
		Err:   err,
		At:    c.now(),
	})
}

type noopPublisher struct{}

func (noopPublisher) Publish(domain.SessionEvent) {}
