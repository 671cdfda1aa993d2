package user

import "context"

type Repo interface {
	Create(ctx context.Context, u *User) error
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByPID(ctx context.Context, pid string) (*User, error)
	GetByAuthSubjectID(ctx context.Context, subjectID int64) (*User, error)
}
