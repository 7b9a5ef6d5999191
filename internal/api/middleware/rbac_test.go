package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/presencectl/internal/api"
	"github.com/99minutos/presencectl/internal/api/handler"
)

// serveWithRole runs RBAC(allowed...) behind a stub that sets the caller's
// role, rendering failures with the central error handler.
func serveWithRole(t *testing.T, role any, allowed ...string) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	e := echo.New()
	e.HTTPErrorHandler = api.NewHTTPErrorHandler(zerolog.Nop())

	reached := false
	setRole := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(KeyRole, role)
			return next(c)
		}
	}
	e.GET("/connection/list-users", func(c echo.Context) error {
		reached = true
		return handler.Success(c, "ok", nil)
	}, setRole, RBAC(allowed...))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/connection/list-users", nil))
	return rec, reached
}

func TestRBAC_AllowsListedRoles(t *testing.T) {
	for _, role := range []string{"admin", "user"} {
		rec, reached := serveWithRole(t, role, "admin", "user")
		if !reached || rec.Code != http.StatusOK {
			t.Fatalf("role %s: expected 200 from next handler, got %d reached=%v", role, rec.Code, reached)
		}
	}
}

func TestRBAC_ForbiddenRendersEnvelope(t *testing.T) {
	for _, role := range []any{"user", "guest", nil, 42} {
		rec, reached := serveWithRole(t, role, "admin")
		if reached {
			t.Fatalf("role %v: next handler must not run", role)
		}
		if rec.Code != http.StatusForbidden {
			t.Fatalf("role %v: expected 403, got %d", role, rec.Code)
		}

		var env handler.Envelope
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("role %v: body is not an envelope: %v", role, err)
		}
		if env.Status != handler.StatusError || env.Message != "Admin access required" {
			t.Fatalf("role %v: unexpected envelope %+v", role, env)
		}
	}
}

func TestRBAC_NoRolesDeniesEveryone(t *testing.T) {
	if rec, reached := serveWithRole(t, "admin"); reached || rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 with an empty allow list, got %d reached=%v", rec.Code, reached)
	}
}
