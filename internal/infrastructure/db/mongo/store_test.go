package mongo

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

// These tests need a reachable server; set MONGO_URI to run them.
func newTestStore(t *testing.T) *CredentialStore {
	t.Helper()
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}

	ctx := context.Background()
	client, db, err := Connect(ctx, Config{URI: uri, Database: "presencectl_test", Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	s := NewCredentialStore(db, "test-"+uuid.NewString())
	t.Cleanup(func() { _ = s.Clear(context.Background()) })
	return s
}

func TestCredentialStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if cred, err := s.Get(ctx); err != nil || !cred.IsZero() {
		t.Fatalf("expected empty slot, got %q %v", cred, err)
	}
	if err := s.Set(ctx, "first"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Set(ctx, "second"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if cred, err := s.Get(ctx); err != nil || cred != "second" {
		t.Fatalf("expected second, got %q %v", cred, err)
	}
	for i := 0; i < 2; i++ {
		if err := s.Clear(ctx); err != nil {
			t.Fatalf("clear %d: %v", i, err)
		}
	}
	if cred, _ := s.Get(ctx); !cred.IsZero() {
		t.Fatalf("expected empty after clear, got %q", cred)
	}
}

func TestConnect_BadURI(t *testing.T) {
	_, _, err := Connect(context.Background(), Config{URI: "not-a-uri", Database: "x", Timeout: time.Second})
	if err == nil {
		t.Fatalf("expected error for malformed URI")
	}
}
