package backendtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/presencectl/internal/api/handler"
)

type rawEnvelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func do(t *testing.T, s *Server, method, path, token, body string) (int, rawEnvelope) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var env rawEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: invalid envelope %q: %v", method, path, rec.Body.String(), err)
	}
	return rec.Code, env
}

func TestServer_LoginAndVerify(t *testing.T) {
	s := New(Options{})
	s.Seed("alice", "pw", RoleAdmin)

	code, env := do(t, s, http.MethodPost, "/auth/login", "", `{"username":"alice","password":"pw"}`)
	if code != http.StatusOK || env.Status != handler.StatusSuccess {
		t.Fatalf("login failed: %d %+v", code, env)
	}
	var token string
	if err := json.Unmarshal(env.Data, &token); err != nil || token == "" {
		t.Fatalf("expected token string, got %s", env.Data)
	}

	code, env = do(t, s, http.MethodGet, "/auth/verify", token, "")
	if code != http.StatusOK {
		t.Fatalf("verify failed: %d %+v", code, env)
	}
	var p principal
	_ = json.Unmarshal(env.Data, &p)
	if p != (principal{Username: "alice", Role: RoleAdmin}) {
		t.Fatalf("unexpected principal %+v", p)
	}
}

func TestServer_LoginRejectedIsLogicalError(t *testing.T) {
	s := New(Options{})
	s.Seed("alice", "pw", RoleUser)

	code, env := do(t, s, http.MethodPost, "/auth/login", "", `{"username":"alice","password":"nope"}`)
	if code != http.StatusOK {
		t.Fatalf("expected HTTP 200 carrying an Error envelope, got %d", code)
	}
	if env.Status != handler.StatusError || env.Message != "Invalid credentials" {
		t.Fatalf("unexpected envelope %+v", env)
	}
}

func TestServer_RegisterRequiresAdmin(t *testing.T) {
	s := New(Options{})
	s.Seed("admin", "pw", RoleAdmin)
	s.Seed("bob", "pw", RoleUser)
	body := `{"username":"carol","password":"pw","role":"user"}`

	code, env := do(t, s, http.MethodPost, "/auth/register", s.Token("bob", "pw"), body)
	if code != http.StatusForbidden || env.Message != "Admin access required" {
		t.Fatalf("expected 403 for non-admin, got %d %+v", code, env)
	}

	code, _ = do(t, s, http.MethodPost, "/auth/register", s.Token("admin", "pw"), body)
	if code != http.StatusOK {
		t.Fatalf("expected admin register to succeed, got %d", code)
	}
	code, env = do(t, s, http.MethodPost, "/auth/register", s.Token("admin", "pw"), body)
	if code != http.StatusConflict {
		t.Fatalf("expected conflict on duplicate, got %d %+v", code, env)
	}
}

func TestServer_StartIsIdempotentPerToken(t *testing.T) {
	s := New(Options{})
	s.Seed("alice", "pw", RoleAdmin)
	token := s.Token("alice", "pw")

	for i := 0; i < 3; i++ {
		if code, env := do(t, s, http.MethodGet, "/connection/start", token, ""); code != http.StatusOK {
			t.Fatalf("start %d: %d %+v", i, code, env)
		}
	}
	if n := s.Connections(); n != 1 {
		t.Fatalf("expected one connection, got %d", n)
	}
	if n := s.Calls("/connection/start"); n != 3 {
		t.Fatalf("expected 3 calls counted, got %d", n)
	}

	_, env := do(t, s, http.MethodGet, "/connection/list-users", token, "")
	var list []connection
	if err := json.Unmarshal(env.Data, &list); err != nil || len(list) != 1 || list[0].Username != "alice" {
		t.Fatalf("unexpected directory %s", env.Data)
	}
}

func TestServer_RevokedToken(t *testing.T) {
	s := New(Options{})
	s.Seed("alice", "pw", RoleAdmin)
	token := s.Token("alice", "pw")
	s.Revoke(token)

	code, env := do(t, s, http.MethodGet, "/auth/verify", token, "")
	if code != http.StatusUnauthorized || env.Status != handler.StatusError {
		t.Fatalf("expected 401 Error envelope, got %d %+v", code, env)
	}
}
