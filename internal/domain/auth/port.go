package auth

import (
	"context"
	"time"
)

type SubjectRepo interface {
	Create(ctx context.Context, value string) (*AuthSubject, error)
	GetByValue(ctx context.Context, value string) (*AuthSubject, error)
	GetByID(ctx context.Context, id int64) (*AuthSubject, error)
}

type RevocationRepo interface {
	// Record returns domain.ErrConflict when the token is already recorded.
	Record(ctx context.Context, value string, ttl time.Time) (*RevokedToken, error)
	IsRevoked(ctx context.Context, value string) (bool, error)
}
