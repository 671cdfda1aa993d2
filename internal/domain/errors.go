package domain

import "errors"

// Storage-neutral outcomes shared by all repositories.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)
