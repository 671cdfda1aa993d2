package auth

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// bcrypt ignores input past 72 bytes.
const passwordMaxLen = 72

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("bcryptmax", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= passwordMaxLen
	}); err != nil {
		panic(err)
	}
	return v
}

func (in SignUpInput) validate() error {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.TrimSpace(in.Email)
	return validationErr(validate.Struct(in))
}

func validateLogin(req loginRequest) error {
	req.Email = strings.TrimSpace(req.Email)
	return validationErr(validate.Struct(req))
}

// validationErr reports the first field failure as ErrValidation. A repeat
// that differs from the password is ErrPasswordMismatch, but only when
// nothing else is wrong.
func validationErr(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	mismatch := false
	for _, fe := range fieldErrs {
		if fe.Tag() == "eqfield" {
			mismatch = true
			continue
		}
		return fmt.Errorf("%w: %s", ErrValidation, describe(fe))
	}
	if mismatch {
		return ErrPasswordMismatch
	}
	return ErrValidation
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "bcryptmax":
		return fmt.Sprintf("%s must be at most %d bytes", fe.Field(), passwordMaxLen)
	case "email":
		return "email is malformed"
	default:
		return fe.Field() + " is invalid"
	}
}
