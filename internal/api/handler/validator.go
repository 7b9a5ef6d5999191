package handler

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/99minutos/presencectl/internal/pkg/validation"
)

// RequestValidator lets handlers call c.Validate on bound request bodies.
// Failures come back as a 400 echo.HTTPError naming the JSON fields at fault.
type RequestValidator struct {
	v *validator.Validate
}

func NewValidator() *RequestValidator {
	return &RequestValidator{v: validation.New()}
}

// Validate satisfies echo.Validator.
func (rv *RequestValidator) Validate(i any) error {
	if err := rv.v.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, validation.Describe(err))
	}
	return nil
}
