// Package backendtest runs an in-process fake of the Auth and Presence
// services. It speaks the same status envelope and bearer-token rules as the
// real backend and exposes hooks for steering failures from tests.
package backendtest

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/99minutos/presencectl/internal/api"
	"github.com/99minutos/presencectl/internal/api/handler"
	"github.com/99minutos/presencectl/internal/api/middleware"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"

	// timestampLayout mirrors the naive UTC datetimes the real service emits.
	timestampLayout = "2006-01-02T15:04:05.999999"
)

// Options tunes a Server. The zero value is usable.
type Options struct {
	Secret   string
	TokenTTL time.Duration
	Log      zerolog.Logger
}

// Server is the fake backend. Use Start for an httptest listener or
// Handler to mount it elsewhere.
type Server struct {
	e        *echo.Echo
	accounts *accounts
	ts       *httptest.Server

	mu          sync.Mutex
	revoked     map[string]struct{}
	connections []connection
	byToken     map[string]int
	calls       map[string]int
	overrides   map[string]echo.HandlerFunc
	presenceErr string
}

type connection struct {
	Username    string `json:"username"`
	Address     string `json:"ip_address"`
	ConnectedAt string `json:"connected_at"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type registerRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role"     validate:"required,oneof=user admin"`
}

type principal struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

func New(opts Options) *Server {
	if opts.Secret == "" {
		opts.Secret = "backendtest-secret"
	}
	s := &Server{
		accounts:  newAccounts(opts.Secret, opts.TokenTTL),
		revoked:   make(map[string]struct{}),
		byToken:   make(map[string]int),
		calls:     make(map[string]int),
		overrides: make(map[string]echo.HandlerFunc),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = api.NewHTTPErrorHandler(opts.Log)
	e.Pre(s.intercept)
	e.Use(echomiddleware.Recover())

	auth := middleware.Auth(opts.Secret, s.isRevoked)
	adminOnly := middleware.RBAC(RoleAdmin)

	e.POST("/auth/login", s.login)
	e.POST("/auth/register", s.register, auth, adminOnly)
	e.GET("/auth/verify", s.verify, auth)
	e.GET("/connection/start", s.start, auth)
	e.GET("/connection/list-users", s.listUsers, auth, adminOnly)

	s.e = e
	return s
}

// Handler exposes the router.
func (s *Server) Handler() http.Handler { return s.e }

// Start serves on a loopback listener until Close.
func (s *Server) Start() *Server {
	s.ts = httptest.NewServer(s.e)
	return s
}

// URL is the base URL clients should be pointed at. Start must have been called.
func (s *Server) URL() string { return s.ts.URL }

func (s *Server) Close() {
	if s.ts != nil {
		s.ts.Close()
	}
}

// ── Test hooks ────────────────────────────────────────────────────────────────

// Seed creates an account directly, bypassing the admin check.
func (s *Server) Seed(username, password, role string) {
	if err := s.accounts.register(username, password, role); err != nil {
		panic("backendtest: seed " + username + ": " + err.Error())
	}
}

// Token logs username in and returns the issued credential.
func (s *Server) Token(username, password string) string {
	tok, err := s.accounts.login(username, password)
	if err != nil {
		panic("backendtest: token for " + username + ": " + err.Error())
	}
	return tok
}

// Revoke makes every later request bearing token fail with 401.
func (s *Server) Revoke(token string) {
	s.mu.Lock()
	s.revoked[token] = struct{}{}
	s.mu.Unlock()
}

// Calls counts requests received for path, including intercepted ones.
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// Override replaces the handler for path, skipping authentication.
func (s *Server) Override(path string, h echo.HandlerFunc) {
	s.mu.Lock()
	s.overrides[path] = h
	s.mu.Unlock()
}

// PresenceDown makes the presence endpoints answer with an Error envelope
// carrying message. An empty message restores them.
func (s *Server) PresenceDown(message string) {
	s.mu.Lock()
	s.presenceErr = message
	s.mu.Unlock()
}

// Connections reports how many sessions have registered presence.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.connections)
}

func (s *Server) isRevoked(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.revoked[token]
	return ok
}

func (s *Server) intercept(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		path := c.Request().URL.Path
		s.mu.Lock()
		s.calls[path]++
		h := s.overrides[path]
		s.mu.Unlock()
		if h != nil {
			return h(c)
		}
		return next(c)
	}
}

// ── Auth service ──────────────────────────────────────────────────────────────

func (s *Server) login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return handler.Failure(c, http.StatusBadRequest, "Invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	token, err := s.accounts.login(req.Username, req.Password)
	if err != nil {
		return c.JSON(http.StatusOK, handler.Envelope{Status: handler.StatusError, Message: "Invalid credentials", Data: struct{}{}})
	}
	return handler.Success(c, "Login successful", token)
}

func (s *Server) register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return handler.Failure(c, http.StatusBadRequest, "Invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	if err := s.accounts.register(req.Username, req.Password, req.Role); err != nil {
		if errors.Is(err, errUserExists) {
			return handler.Failure(c, http.StatusConflict, "User already exists")
		}
		return err
	}
	return handler.Success(c, "User registered successfully", nil)
}

func (s *Server) verify(c echo.Context) error {
	return handler.Success(c, "", principalOf(c))
}

// ── Presence service ──────────────────────────────────────────────────────────

func (s *Server) start(c echo.Context) error {
	token, _ := c.Get(middleware.KeyToken).(string)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.presenceErr != "" {
		return handler.Failure(c, http.StatusBadGateway, s.presenceErr)
	}
	if _, ok := s.byToken[token]; !ok {
		s.byToken[token] = len(s.connections)
		s.connections = append(s.connections, connection{
			Username:    principalOf(c).Username,
			Address:     c.RealIP(),
			ConnectedAt: time.Now().UTC().Format(timestampLayout),
		})
	}
	return handler.Success(c, "Successfully connected", "")
}

func (s *Server) listUsers(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.presenceErr != "" {
		return handler.Failure(c, http.StatusOK, s.presenceErr)
	}
	out := make([]connection, len(s.connections))
	copy(out, s.connections)
	return handler.Success(c, "", out)
}

func principalOf(c echo.Context) principal {
	username, _ := c.Get(middleware.KeyUsername).(string)
	role, _ := c.Get(middleware.KeyRole).(string)
	return principal{Username: username, Role: strings.ToLower(role)}
}
