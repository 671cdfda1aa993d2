package auth

import (
	"errors"
	"fmt"
)

var (
	ErrValidation       = errors.New("validation failed")
	ErrPasswordMismatch = fmt.Errorf("%w: passwords do not match", ErrValidation)

	ErrEmailExists = errors.New("email already registered")

	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidCredentials = fmt.Errorf("%w: invalid email or password", ErrUnauthorized)
	ErrInvalidRefresh     = fmt.Errorf("%w: invalid refresh token", ErrUnauthorized)
	ErrInvalidAccess      = fmt.Errorf("%w: invalid access token", ErrUnauthorized)

	ErrIdentifierExhausted = errors.New("identifier generation attempts exhausted")
	ErrStorage             = errors.New("storage failure")
)

// storageErr tags err as a storage failure, keeping it for errors.Is.
func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}
