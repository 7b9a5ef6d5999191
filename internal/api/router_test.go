package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/99minutos/presencectl/internal/api/handler"
	"github.com/99minutos/presencectl/internal/api/metrics"
)

func TestStatusRouter(t *testing.T) {
	e := NewStatusRouter(map[string]handler.Check{
		"session": func(context.Context) error { return errors.New("signed out") },
	}, zerolog.Nop())

	metrics.ForcedLogoutsTotal.Add(0)

	tests := []struct {
		path     string
		wantCode int
		contains string
	}{
		{"/health", http.StatusOK, `"ok"`},
		{"/health/ready", http.StatusServiceUnavailable, "signed out"},
		{"/metrics", http.StatusOK, "presencectl_forced_logouts_total"},
		{"/nope", http.StatusNotFound, `"status":"Error"`},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.contains) {
				t.Fatalf("expected body to contain %q, got %s", tt.contains, rec.Body.String())
			}
		})
	}
}
