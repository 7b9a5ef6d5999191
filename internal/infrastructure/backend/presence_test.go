package backend

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/presencectl/internal/backendtest"
	"github.com/99minutos/presencectl/internal/core/domain"
)

func TestClient_RegisterThenList(t *testing.T) {
	ctx := context.Background()
	srv, c, store := newFixture(t)
	srv.Seed("alice", "pw", backendtest.RoleAdmin)
	_ = store.Set(ctx, domain.Credential(srv.Token("alice", "pw")))

	if err := c.RegisterConnection(ctx); err != nil {
		t.Fatalf("register connection: %v", err)
	}
	if err := c.RegisterConnection(ctx); err != nil {
		t.Fatalf("repeat registration: %v", err)
	}

	records, err := c.ListConnections(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected one record, got %+v", records)
	}
	r := records[0]
	if r.Username != "alice" || r.Address == "" {
		t.Fatalf("unexpected record %+v", r)
	}
	if time.Since(r.ConnectedAt) > time.Minute || r.ConnectedAt.Location() != time.UTC {
		t.Fatalf("unexpected connected_at %v", r.ConnectedAt)
	}
}

func TestClient_ListRequiresAdminOnServer(t *testing.T) {
	ctx := context.Background()
	srv, c, store := newFixture(t)
	srv.Seed("bob", "pw", backendtest.RoleUser)
	_ = store.Set(ctx, domain.Credential(srv.Token("bob", "pw")))

	records, err := c.ListConnections(ctx)
	if !errors.Is(err, domain.ErrPresenceUnavailable) || errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected presence unavailable, got %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records, got %+v", records)
	}
}

func TestClient_PresenceClassification(t *testing.T) {
	ctx := context.Background()
	srv, c, store := newFixture(t)
	srv.Seed("alice", "pw", backendtest.RoleAdmin)
	token := srv.Token("alice", "pw")
	_ = store.Set(ctx, domain.Credential(token))

	srv.PresenceDown("Failed to connect to WebSocket server")
	err := c.RegisterConnection(ctx)
	if !errors.Is(err, domain.ErrPresenceUnavailable) {
		t.Fatalf("expected ErrPresenceUnavailable, got %v", err)
	}
	if domain.UserMessage(err) != "Failed to connect to WebSocket server" {
		t.Fatalf("expected server message, got %q", domain.UserMessage(err))
	}

	srv.PresenceDown("")
	srv.Revoke(token)
	if err := c.RegisterConnection(ctx); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := c.ListConnections(ctx); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestClient_ListDecodesServerOrderAndTimestamps(t *testing.T) {
	srv, c, _ := newFixture(t)
	srv.Override("/connection/list-users", func(ec echo.Context) error {
		return ec.String(http.StatusOK, `{"status":"Success","message":"","data":[
			{"username":"zed","ip_address":"10.0.0.9","connected_at":"2026-10-01T09:30:00Z"},
			{"username":"amy","ip_address":"10.0.0.1","connected_at":"2026-10-01T09:31:00.123456"},
			{"username":"bob","ip_address":"10.0.0.2","connected_at":"2026-10-01 09:32:00"}
		]}`)
	})

	records, err := c.ListConnections(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	wantOrder := []string{"zed", "amy", "bob"}
	for i, name := range wantOrder {
		if records[i].Username != name {
			t.Fatalf("position %d: expected %s, got %s", i, name, records[i].Username)
		}
	}
	want := time.Date(2026, 10, 1, 9, 31, 0, 123456000, time.UTC)
	if !records[1].ConnectedAt.Equal(want) {
		t.Fatalf("expected %v, got %v", want, records[1].ConnectedAt)
	}
}

func TestClient_ListMalformedEntry(t *testing.T) {
	srv, c, _ := newFixture(t)
	srv.Override("/connection/list-users", func(ec echo.Context) error {
		return ec.String(http.StatusOK, `{"status":"Success","message":"","data":[{"username":"","ip_address":"x","connected_at":"2026-10-01T09:30:00Z"}]}`)
	})

	records, err := c.ListConnections(context.Background())
	if !errors.Is(err, domain.ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
	if records == nil || len(records) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", records)
	}
}

func TestClient_ListEmptyDirectory(t *testing.T) {
	srv, c, _ := newFixture(t)
	srv.Override("/connection/list-users", func(ec echo.Context) error {
		return ec.String(http.StatusOK, `{"status":"Success","message":"","data":null}`)
	})

	records, err := c.ListConnections(context.Background())
	if err != nil || records == nil || len(records) != 0 {
		t.Fatalf("expected empty directory, got %#v %v", records, err)
	}
}
