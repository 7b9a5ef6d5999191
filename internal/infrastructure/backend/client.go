// Package backend is the HTTP transport to the Auth and Presence services.
// Every request passes through one decorating step, and every response is
// read as a status envelope whose logical status decides success.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/99minutos/presencectl/internal/api/metrics"
	"github.com/99minutos/presencectl/internal/core/domain"
	"github.com/99minutos/presencectl/internal/core/ports"
)

const (
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 1 << 20
	userAgent      = "presencectl"

	HeaderRequestID = "X-Request-ID"
)

var (
	_ ports.AuthClient          = (*Client)(nil)
	_ ports.PresenceCoordinator = (*Client)(nil)
)

// Options configures a Client.
type Options struct {
	BaseURL string
	Timeout time.Duration
	// HTTPClient overrides the transport. Timeout is ignored when set.
	HTTPClient *http.Client
}

// Client implements both ports.AuthClient and ports.PresenceCoordinator.
// Calls that act on behalf of the session read the bearer credential from the
// store at request time, so a logout takes effect on the next request.
type Client struct {
	base  *url.URL
	http  *http.Client
	store ports.CredentialStore
	check *payloadValidator
	log   zerolog.Logger
	newID func() string
}

// New validates opts.BaseURL and returns a ready Client.
func New(opts Options, store ports.CredentialStore, log zerolog.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("backend url %q: scheme must be http or https", opts.BaseURL)
	}

	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		base:  base,
		http:  hc,
		store: store,
		check: newPayloadValidator(),
		log:   log,
		newID: uuid.NewString,
	}, nil
}

// endpoint describes one backend route. name doubles as the metrics label.
type endpoint struct {
	name   string
	method string
	path   string
}

var (
	epLogin     = endpoint{"login", http.MethodPost, "/auth/login"}
	epRegister  = endpoint{"register", http.MethodPost, "/auth/register"}
	epVerify    = endpoint{"verify", http.MethodGet, "/auth/verify"}
	epStart     = endpoint{"connection_start", http.MethodGet, "/connection/start"}
	epListUsers = endpoint{"list_users", http.MethodGet, "/connection/list-users"}
)

// reply is a decoded envelope plus the HTTP status it arrived with.
type reply struct {
	code int
	env  envelope
}

// unauthorized reports whether the HTTP layer refined a failure to 401.
func (r reply) unauthorized() bool {
	return r.code == http.StatusUnauthorized
}

// callError is a failure below the envelope: the request never produced a
// readable envelope. Operations convert it to their own error type.
type callError struct {
	kind domain.ErrorKind
	err  error
}

func (e *callError) Error() string { return e.err.Error() }
func (e *callError) Unwrap() error { return e.err }

// decorate is the single place outgoing requests are shaped. The bearer
// header is only attached when cred is non-empty.
func (c *Client) decorate(req *http.Request, cred domain.Credential) string {
	id := c.newID()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set(HeaderRequestID, id)
	if req.Body != nil && req.Body != http.NoBody {
		req.Header.Set("Content-Type", "application/json")
	}
	if !cred.IsZero() {
		req.Header.Set("Authorization", "Bearer "+string(cred))
	}
	return id
}

// call performs one round trip and decodes the envelope. A non-nil error is
// always a *callError.
func (c *Client) call(ctx context.Context, ep endpoint, body any, cred domain.Credential) (reply, error) {
	start := time.Now()
	rep, err := c.roundTrip(ctx, ep, body, cred)

	outcome := metrics.OutcomeSuccess
	var ce *callError
	switch {
	case errors.As(err, &ce) && ce.kind == domain.KindUnreachable:
		outcome = metrics.OutcomeUnreachable
	case errors.As(err, &ce) && ce.kind == domain.KindMalformedResponse:
		outcome = metrics.OutcomeMalformed
	case err != nil, !rep.env.succeeded():
		outcome = metrics.OutcomeFailure
	}
	metrics.BackendRequestsTotal.WithLabelValues(ep.name, outcome).Inc()
	metrics.BackendRequestDuration.WithLabelValues(ep.name).Observe(time.Since(start).Seconds())

	return rep, err
}

func (c *Client) roundTrip(ctx context.Context, ep endpoint, body any, cred domain.Credential) (reply, error) {
	var payload io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return reply{}, &callError{kind: domain.KindRejected, err: fmt.Errorf("encode request: %w", err)}
		}
		payload = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, ep.method, c.base.String()+ep.path, payload)
	if err != nil {
		return reply{}, &callError{kind: domain.KindUnreachable, err: fmt.Errorf("build request: %w", err)}
	}
	requestID := c.decorate(req, cred)

	log := c.log.With().Str("endpoint", ep.name).Str("request_id", requestID).Logger()
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		log.Debug().Err(err).Msg("backend unreachable")
		return reply{}, &callError{kind: domain.KindUnreachable, err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return reply{}, &callError{kind: domain.KindUnreachable, err: fmt.Errorf("read body: %w", err)}
	}

	log.Debug().
		Int("http_status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("backend call")

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil || c.check.check(env) != nil {
		if resp.StatusCode == http.StatusUnauthorized {
			return reply{code: resp.StatusCode}, &callError{kind: domain.KindUnauthorized, err: fmt.Errorf("http %d", resp.StatusCode)}
		}
		return reply{code: resp.StatusCode}, &callError{
			kind: domain.KindMalformedResponse,
			err:  fmt.Errorf("http %d: body is not a status envelope", resp.StatusCode),
		}
	}

	return reply{code: resp.StatusCode, env: env}, nil
}

// sessionCredential reads the credential attached to session-scoped calls.
func (c *Client) sessionCredential(ctx context.Context) (domain.Credential, error) {
	cred, err := c.store.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("read credential: %w", err)
	}
	return cred, nil
}
