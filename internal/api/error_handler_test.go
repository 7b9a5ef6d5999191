package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/presencectl/internal/api/handler"
)

func renderError(t *testing.T, err error) (*httptest.ResponseRecorder, handler.Envelope) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	NewHTTPErrorHandler(zerolog.Nop())(err, c)

	var env handler.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	return rec, env
}

func TestHTTPErrorHandler_HTTPError(t *testing.T) {
	rec, env := renderError(t, echo.NewHTTPError(http.StatusUnauthorized, "Invalid token"))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if env.Status != handler.StatusError || env.Message != "Invalid token" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}

func TestHTTPErrorHandler_UnexpectedError(t *testing.T) {
	rec, env := renderError(t, errors.New("db exploded"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if env.Message != "Server error" {
		t.Fatalf("internal detail leaked: %q", env.Message)
	}
}
