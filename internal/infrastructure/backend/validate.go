package backend

import (
	"errors"

	"github.com/go-playground/validator/v10"

	"github.com/99minutos/presencectl/internal/pkg/validation"
)

// payloadValidator checks envelopes and decoded payloads.
type payloadValidator struct {
	v *validator.Validate
}

func newPayloadValidator() *payloadValidator {
	return &payloadValidator{v: validation.New()}
}

func (pv *payloadValidator) check(i any) error {
	if err := pv.v.Struct(i); err != nil {
		return errors.New(validation.Describe(err))
	}
	return nil
}
