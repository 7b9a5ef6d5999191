package handler

import (
	"errors"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
)

type sample struct {
	Username string `json:"username" validate:"required"`
	Role     string `json:"role"     validate:"required,oneof=user admin"`
}

func TestRequestValidator(t *testing.T) {
	v := NewValidator()

	if err := v.Validate(sample{Username: "alice", Role: "admin"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := v.Validate(sample{Role: "root"})
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 HTTPError, got %v", err)
	}
	want := "username is required; role must be one of: user admin"
	if he.Message != want {
		t.Fatalf("expected %q, got %q", want, he.Message)
	}
}
