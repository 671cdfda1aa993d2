package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/NordCoder/authgate/internal/domain/user"

	"github.com/jackc/pgx/v5"
)

var _ user.Repo = (*UserRepo)(nil)

type UserRepo struct {
	db *DB
}

func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

const (
	userColumns = `id, pid, firstname, lastname, email, password_hash, auth_subject_id,
       verified_at, deactivated_at, deleted_at, created_at`

	qUserInsert = `
INSERT INTO users (pid, firstname, lastname, email, password_hash, auth_subject_id)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + userColumns + `;`

	qUserByEmail = `
SELECT ` + userColumns + `
FROM users
WHERE email = $1;`

	qUserByPID = `
SELECT ` + userColumns + `
FROM users
WHERE pid = $1;`

	qUserBySubject = `
SELECT ` + userColumns + `
FROM users
WHERE auth_subject_id = $1;`

	constraintUserEmail = "users_email_key"
	constraintUserPID   = "users_pid_key"
)

// Create inserts u under a savepoint. Unique violations map to
// user.ErrEmailTaken, user.ErrPIDTaken or ErrConflict.
func (r *UserRepo) Create(ctx context.Context, u *user.User) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	err := r.db.savepoint(ctx, func(q execQueryer) error {
		return scanUser(q.QueryRow(ctx, qUserInsert,
			u.PID, u.FirstName, u.LastName, u.Email, u.PasswordHash, u.AuthSubjectID), u)
	})
	if err == nil {
		return nil
	}
	if name, ok := uniqueViolation(err); ok {
		switch name {
		case constraintUserEmail:
			return user.ErrEmailTaken
		case constraintUserPID:
			return user.ErrPIDTaken
		default:
			return fmt.Errorf("user insert %s: %w", name, ErrConflict)
		}
	}
	return fmt.Errorf("user insert: %w", err)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	return r.getOne(ctx, qUserByEmail, email)
}

func (r *UserRepo) GetByPID(ctx context.Context, pid string) (*user.User, error) {
	return r.getOne(ctx, qUserByPID, pid)
}

func (r *UserRepo) GetByAuthSubjectID(ctx context.Context, subjectID int64) (*user.User, error) {
	return r.getOne(ctx, qUserBySubject, subjectID)
}

func (r *UserRepo) getOne(ctx context.Context, query string, arg any) (*user.User, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var u user.User
	if err := scanUser(r.db.execQueryer(ctx).QueryRow(ctx, query, arg), &u); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select user: %w", err)
	}
	return &u, nil
}

func scanUser(row pgx.Row, out *user.User) error {
	return row.Scan(
		&out.ID, &out.PID, &out.FirstName, &out.LastName, &out.Email, &out.PasswordHash,
		&out.AuthSubjectID, &out.VerifiedAt, &out.DeactivatedAt, &out.DeletedAt, &out.CreatedAt,
	)
}
