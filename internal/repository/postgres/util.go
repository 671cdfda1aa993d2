package postgres

import (
	"errors"

	"github.com/NordCoder/authgate/internal/domain"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound = domain.ErrNotFound
	ErrConflict = domain.ErrConflict
)

const codeUniqueViolation = "23505"

// uniqueViolation reports the violated constraint name, if err is one.
func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}
