package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/NordCoder/authgate/internal/domain/auth"

	"github.com/jackc/pgx/v5"
)

var _ auth.SubjectRepo = (*SubjectRepo)(nil)

type SubjectRepo struct{ db *DB }

func NewSubjectRepo(db *DB) *SubjectRepo { return &SubjectRepo{db: db} }

const (
	qSubjectInsert = `
INSERT INTO auth_subjects (value)
VALUES ($1)
RETURNING id, value, ttl, created_at;`

	qSubjectByValue = `
SELECT id, value, ttl, created_at
FROM auth_subjects
WHERE value = $1;`

	qSubjectByID = `
SELECT id, value, ttl, created_at
FROM auth_subjects
WHERE id = $1;`
)

func (r *SubjectRepo) Create(ctx context.Context, value string) (*auth.AuthSubject, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var s auth.AuthSubject
	err := r.db.savepoint(ctx, func(q execQueryer) error {
		return q.QueryRow(ctx, qSubjectInsert, value).Scan(&s.ID, &s.Value, &s.TTL, &s.CreatedAt)
	})
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("auth subject insert: %w", err)
	}
	return &s, nil
}

func (r *SubjectRepo) GetByValue(ctx context.Context, value string) (*auth.AuthSubject, error) {
	return r.getOne(ctx, qSubjectByValue, value)
}

func (r *SubjectRepo) GetByID(ctx context.Context, id int64) (*auth.AuthSubject, error) {
	return r.getOne(ctx, qSubjectByID, id)
}

func (r *SubjectRepo) getOne(ctx context.Context, query string, arg any) (*auth.AuthSubject, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var s auth.AuthSubject
	if err := r.db.execQueryer(ctx).QueryRow(ctx, query, arg).
		Scan(&s.ID, &s.Value, &s.TTL, &s.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select auth subject: %w", err)
	}
	return &s, nil
}
