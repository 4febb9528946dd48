package auth

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/emprecords/emprecords/internal/platform/httpx"
)

// NewValidator returns a validator that understands the "username" tag.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return IsValidUsername(fl.Field().String())
	})
	return v
}

// credentialsError maps validator failures on Credentials to the auth sentinels.
func credentialsError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %w", httpx.ErrValidation, err)
	}
	for _, fe := range fieldErrs {
		if fe.Field() == "Username" {
			return ErrInvalidUsername
		}
	}
	return ErrWeakPassword
}
