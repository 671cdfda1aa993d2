package auth

import (
	"time"
)

// AuthSubject is the opaque token subject owned by exactly one user.
// TTL is persisted but not used by any flow.
type AuthSubject struct {
	ID        int64
	Value     string
	TTL       *time.Time
	CreatedAt time.Time
}

// RevokedToken is a refresh token that must never be accepted again.
// It is kept until TTL and purged outside this service.
type RevokedToken struct {
	ID        int64
	Value     string
	TTL       time.Time
	CreatedAt time.Time
}
