package user

import (
	"fmt"
	"time"

	"github.com/NordCoder/authgate/internal/domain"
)

// User is an account. ID is internal only; PID is the public identifier.
type User struct {
	ID            int64      `json:"-"`
	PID           string     `json:"pid"`
	FirstName     string     `json:"firstname"`
	LastName      string     `json:"lastname"`
	Email         string     `json:"email"`
	PasswordHash  string     `json:"-"`
	AuthSubjectID int64      `json:"-"`
	VerifiedAt    *time.Time `json:"-"`
	DeactivatedAt *time.Time `json:"-"`
	DeletedAt     *time.Time `json:"-"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Authenticatable reports whether the account may log in or refresh.
func (u *User) Authenticatable() bool {
	return u.DeactivatedAt == nil && u.DeletedAt == nil
}

var (
	ErrEmailTaken = fmt.Errorf("email: %w", domain.ErrConflict)
	ErrPIDTaken   = fmt.Errorf("pid: %w", domain.ErrConflict)
)
