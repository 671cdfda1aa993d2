package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NordCoder/authgate/internal/domain/auth"

	"github.com/jackc/pgx/v5"
)

var _ auth.RevocationRepo = (*RevokedTokenRepo)(nil)

type RevokedTokenRepo struct{ db *DB }

func NewRevokedTokenRepo(db *DB) *RevokedTokenRepo { return &RevokedTokenRepo{db: db} }

const (
	qRevokedInsert = `
INSERT INTO revoked_tokens (value, ttl)
VALUES ($1, $2)
ON CONFLICT (value) DO NOTHING
RETURNING id, value, ttl, created_at;`

	qRevokedExists = `
SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE value = $1);`
)

// Record inserts the token. A concurrent or earlier insert of the same
// value yields ErrConflict.
func (r *RevokedTokenRepo) Record(ctx context.Context, value string, ttl time.Time) (*auth.RevokedToken, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var t auth.RevokedToken
	if err := r.db.execQueryer(ctx).QueryRow(ctx, qRevokedInsert, value, ttl).
		Scan(&t.ID, &t.Value, &t.TTL, &t.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("revoke token: %w", err)
	}
	return &t, nil
}

func (r *RevokedTokenRepo) IsRevoked(ctx context.Context, value string) (bool, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var exists bool
	if err := r.db.execQueryer(ctx).QueryRow(ctx, qRevokedExists, value).Scan(&exists); err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return exists, nil
}
