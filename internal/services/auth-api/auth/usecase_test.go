package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	authn "github.com/NordCoder/authgate/internal/auth"
	"github.com/NordCoder/authgate/internal/domain/outbox"
	"github.com/NordCoder/authgate/internal/domain/user"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignUp_CreatesUserSubjectAndTokens(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	sess, err := f.uc.SignUp(ctx, SignUpInput{
		FirstName: "  ada ",
		LastName:  "lovelace",
		Email:     "  Ada@Example.COM ",
		Password:  "strongpass1",
		Repeat:    "strongpass1",
	})
	require.NoError(t, err)
	require.NotEmpty(t, sess.Access)
	require.NotEmpty(t, sess.Refresh)

	u := f.store.userByEmail("ada@example.com")
	require.NotNil(t, u)
	assert.Equal(t, "Ada", u.FirstName)
	assert.Equal(t, "Lovelace", u.LastName)
	assert.NotEqual(t, "strongpass1", u.PasswordHash)
	assert.GreaterOrEqual(t, len(u.PID), pidMinLen)
	assert.LessOrEqual(t, len(u.PID), pidMaxLen)

	sub, err := memSubjects{s: f.store}.GetByID(ctx, u.AuthSubjectID)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(sub.Value), subjectMinLen)
	assert.LessOrEqual(t, len(sub.Value), subjectMaxLen)
	assert.Nil(t, sub.TTL)

	access, err := f.tokens.VerifyAccess(sess.Access)
	require.NoError(t, err)
	assert.Equal(t, sub.Value, access.Subject)
	refresh, err := f.tokens.VerifyRefresh(sess.Refresh)
	require.NoError(t, err)
	assert.Equal(t, sub.Value, refresh.Subject)

	require.Equal(t, []outbox.Kind{outbox.KindUserSignedUp}, f.store.eventKinds())
	var ev outbox.AuthEvent
	require.NoError(t, json.Unmarshal(f.store.events[0].Data, &ev))
	assert.Equal(t, u.PID, ev.PID)
	assert.NotContains(t, string(f.store.events[0].Data), sub.Value)
}

func TestSignUp_DuplicateEmail(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.uc.SignUp(ctx, validSignUp("a@b.com"))
	require.NoError(t, err)

	_, err = f.uc.SignUp(ctx, validSignUp(" A@B.com"))
	require.ErrorIs(t, err, ErrEmailExists)
	assert.Len(t, f.store.users, 1)
	assert.Len(t, f.store.subjects, 1)
}

func TestSignUp_Validation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*SignUpInput)
	}{
		{"short firstname", func(in *SignUpInput) { in.FirstName = "a" }},
		{"blank firstname", func(in *SignUpInput) { in.FirstName = "    " }},
		{"padded short lastname", func(in *SignUpInput) { in.LastName = "  b  " }},
		{"missing email", func(in *SignUpInput) { in.Email = "" }},
		{"long lastname", func(in *SignUpInput) { in.LastName = strings.Repeat("x", 51) }},
		{"malformed email", func(in *SignUpInput) { in.Email = "not-an-email" }},
		{"display name email", func(in *SignUpInput) { in.Email = "Ada <ada@b.com>" }},
		{"short password", func(in *SignUpInput) { in.Password, in.Repeat = "short", "short" }},
		{"long password", func(in *SignUpInput) {
			in.Password = strings.Repeat("p", passwordMaxLen+1)
			in.Repeat = in.Password
		}},
		{"repeat mismatch", func(in *SignUpInput) { in.Repeat = "strongpass2" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, nil)
			in := validSignUp("a@b.com")
			tc.mutate(&in)

			_, err := f.uc.SignUp(context.Background(), in)
			require.ErrorIs(t, err, ErrValidation)
			assert.Empty(t, f.store.users)
			assert.Empty(t, f.store.subjects)
		})
	}
}

func TestSignUp_PasswordMismatch(t *testing.T) {
	f := newFixture(t, nil)
	in := validSignUp("a@b.com")
	in.Repeat = "different1"

	_, err := f.uc.SignUp(context.Background(), in)
	require.ErrorIs(t, err, ErrPasswordMismatch)
}

func TestSignUp_ValidationDetail(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	in := validSignUp("a@b.com")
	in.FirstName = "   "
	_, err := f.uc.SignUp(ctx, in)
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "firstname is required")

	in = validSignUp("a@b.com")
	in.Password, in.Repeat = "short", "other"
	_, err = f.uc.SignUp(ctx, in)
	require.ErrorIs(t, err, ErrValidation)
	assert.NotErrorIs(t, err, ErrPasswordMismatch)
	assert.Contains(t, err.Error(), "password must be at least 8 characters")

	in = validSignUp("a@b.com")
	in.Password = strings.Repeat("é", 40)
	in.Repeat = in.Password
	_, err = f.uc.SignUp(ctx, in)
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "password must be at most 72 bytes")

	in = validSignUp("a@b.com")
	in.FirstName, in.LastName = "Éa", "Ng"
	_, err = f.uc.SignUp(ctx, in)
	require.NoError(t, err)
}

func TestValidateLogin(t *testing.T) {
	require.NoError(t, validateLogin(loginRequest{Email: "a@b.com", Password: "x"}))
	require.ErrorIs(t, validateLogin(loginRequest{Email: "  ", Password: "x"}), ErrValidation)
	require.ErrorIs(t, validateLogin(loginRequest{Email: "a@b.com"}), ErrValidation)
}

func TestTitleName(t *testing.T) {
	cases := map[string]string{
		"  ada ":       "Ada",
		"LOVELACE":     "Lovelace",
		"o'brien":      "O'Brien",
		"D'ANGELO":     "D'Angelo",
		"mary-jane":    "Mary-Jane",
		"van der berg": "Van Der Berg",
	}
	for in, want := range cases {
		assert.Equal(t, want, titleName(in), in)
	}
}

func TestSignUp_IdentifiersUnique(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		_, err := f.uc.SignUp(ctx, validSignUp(fmt.Sprintf("user%d@example.com", i)))
		require.NoError(t, err)
	}

	pids := map[string]struct{}{}
	for _, u := range f.store.users {
		pids[u.PID] = struct{}{}
	}
	subjects := map[string]struct{}{}
	for _, s := range f.store.subjects {
		subjects[s.Value] = struct{}{}
	}
	assert.Len(t, pids, 25)
	assert.Len(t, subjects, 25)
}

func TestSignUp_RetriesTakenPID(t *testing.T) {
	const taken = "takenpid0001"
	f := newFixture(t, scriptedIDs(
		"firstpid0001", "firstsubject000000000000000000000001",
		taken, "freepid00001", "secondsubject00000000000000000000001",
	))
	ctx := context.Background()

	first, err := f.uc.SignUp(ctx, validSignUp("one@example.com"))
	require.NoError(t, err)
	require.Equal(t, "firstpid0001", first.User.PID)

	// occupy the pid the generator hands out next
	f.store.users[99] = &user.User{ID: 99, PID: taken, Email: "other@example.com"}

	second, err := f.uc.SignUp(ctx, validSignUp("two@example.com"))
	require.NoError(t, err)
	assert.Equal(t, "freepid00001", second.User.PID)
}

func TestSignUp_PIDConstraintFallback(t *testing.T) {
	f := newFixture(t, scriptedIDs("racedpid0001", "subject0000000000000000000000000001", "finalpid0001"))
	f.store.pidConflicts = 1

	sess, err := f.uc.SignUp(context.Background(), validSignUp("a@b.com"))
	require.NoError(t, err)
	assert.Equal(t, "finalpid0001", sess.User.PID)
}

func TestSignUp_SubjectConstraintFallback(t *testing.T) {
	f := newFixture(t, nil)
	f.store.subjectConflicts = 2

	_, err := f.uc.SignUp(context.Background(), validSignUp("a@b.com"))
	require.NoError(t, err)
	assert.Len(t, f.store.subjects, 1)
}

func TestSignUp_IdentifierExhausted(t *testing.T) {
	f := newFixture(t, func(int, int) (string, error) { return "alwaysthesame", nil })
	ctx := context.Background()
	f.store.users[99] = &user.User{ID: 99, PID: "alwaysthesame", Email: "x@example.com"}

	_, err := f.uc.SignUp(ctx, validSignUp("a@b.com"))
	require.ErrorIs(t, err, ErrIdentifierExhausted)
	assert.Empty(t, f.store.subjects)
}

func TestSignUp_SubjectExhausted(t *testing.T) {
	f := newFixture(t, nil)
	f.store.subjectConflicts = uniqueAttempts

	_, err := f.uc.SignUp(context.Background(), validSignUp("a@b.com"))
	require.ErrorIs(t, err, ErrIdentifierExhausted)
	assert.Empty(t, f.store.users)
}

func TestSignUp_RollsBackOnStorageFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.store.failEnqueue = true

	_, err := f.uc.SignUp(context.Background(), validSignUp("a@b.com"))
	require.ErrorIs(t, err, ErrStorage)
	require.ErrorIs(t, err, errBoom)
	assert.Empty(t, f.store.users)
	assert.Empty(t, f.store.subjects)
}

func TestSignIn(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, err := f.uc.SignUp(ctx, validSignUp("a@b.com"))
	require.NoError(t, err)

	t.Run("ok", func(t *testing.T) {
		sess, err := f.uc.SignIn(ctx, " A@B.COM", "strongpass1")
		require.NoError(t, err)
		require.NotEmpty(t, sess.Access)
		_, err = f.tokens.VerifyRefresh(sess.Refresh)
		require.NoError(t, err)
		assert.Contains(t, f.store.eventKinds(), outbox.KindSessionStarted)
	})

	t.Run("wrong password and unknown email are indistinguishable", func(t *testing.T) {
		_, errWrong := f.uc.SignIn(ctx, "a@b.com", "wrongpass1")
		_, errUnknown := f.uc.SignIn(ctx, "nobody@b.com", "strongpass1")
		require.ErrorIs(t, errWrong, ErrInvalidCredentials)
		require.ErrorIs(t, errUnknown, ErrInvalidCredentials)
		assert.Equal(t, errWrong.Error(), errUnknown.Error())
	})

	t.Run("deactivated user", func(t *testing.T) {
		u := f.store.userByEmail("a@b.com")
		at := testNow
		u.DeactivatedAt = &at
		defer func() { u.DeactivatedAt = nil }()

		_, err := f.uc.SignIn(ctx, "a@b.com", "strongpass1")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestRefresh_RotatesAndRejectsReuse(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	first, err := f.uc.SignUp(ctx, validSignUp("a@b.com"))
	require.NoError(t, err)

	second, err := f.uc.Refresh(ctx, first.Refresh)
	require.NoError(t, err)
	assert.NotEqual(t, first.Access, second.Access)
	assert.NotEqual(t, first.Refresh, second.Refresh)

	rec, ok := f.store.revoked[first.Refresh]
	require.True(t, ok)
	assert.Equal(t, testNow.Add(7*24*time.Hour+DefaultRevocationGrace), rec.TTL)

	_, err = f.uc.Refresh(ctx, first.Refresh)
	require.ErrorIs(t, err, ErrInvalidRefresh)
	require.ErrorIs(t, err, ErrUnauthorized)

	third, err := f.uc.Refresh(ctx, second.Refresh)
	require.NoError(t, err)
	assert.NotEmpty(t, third.Access)
	assert.Contains(t, f.store.eventKinds(), outbox.KindSessionRefreshed)
}

func TestRefresh_Rejections(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	sess, err := f.uc.SignUp(ctx, validSignUp("a@b.com"))
	require.NoError(t, err)

	orphan, err := f.tokens.MintRefresh("nosuchsubject")
	require.NoError(t, err)

	cases := map[string]string{
		"empty":             "",
		"garbage":           "not.a.jwt",
		"access as refresh": sess.Access,
		"unknown subject":   orphan,
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.uc.Refresh(ctx, token)
			require.ErrorIs(t, err, ErrInvalidRefresh)
			assert.Equal(t, ErrInvalidRefresh.Error(), err.Error())
		})
	}

	t.Run("deleted user", func(t *testing.T) {
		u := f.store.userByEmail("a@b.com")
		at := testNow
		u.DeletedAt = &at
		defer func() { u.DeletedAt = nil }()

		_, err := f.uc.Refresh(ctx, sess.Refresh)
		require.ErrorIs(t, err, ErrInvalidRefresh)
		_, revoked := f.store.revoked[sess.Refresh]
		assert.False(t, revoked)
	})
}

func TestRefresh_LostRotationRace(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	sess, err := f.uc.SignUp(ctx, validSignUp("a@b.com"))
	require.NoError(t, err)
	f.store.recordConflict = true

	_, err = f.uc.Refresh(ctx, sess.Refresh)
	require.ErrorIs(t, err, ErrInvalidRefresh)
}

func TestRefresh_StorageFailure(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	sess, err := f.uc.SignUp(ctx, validSignUp("a@b.com"))
	require.NoError(t, err)
	f.store.failRevokedLookup = true

	_, err = f.uc.Refresh(ctx, sess.Refresh)
	require.ErrorIs(t, err, ErrStorage)
	require.NotErrorIs(t, err, ErrUnauthorized)
}

func TestLogout(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	sess, err := f.uc.SignUp(ctx, validSignUp("a@b.com"))
	require.NoError(t, err)

	require.NoError(t, f.uc.Logout(ctx, ""))

	require.NoError(t, f.uc.Logout(ctx, sess.Refresh))
	_, revoked := f.store.revoked[sess.Refresh]
	require.True(t, revoked)
	assert.Contains(t, f.store.eventKinds(), outbox.KindSessionEnded)

	// idempotent
	require.NoError(t, f.uc.Logout(ctx, sess.Refresh))

	_, err = f.uc.Refresh(ctx, sess.Refresh)
	require.ErrorIs(t, err, ErrInvalidRefresh)
}

func TestLogout_InvalidToken(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	sess, err := f.uc.SignUp(ctx, validSignUp("a@b.com"))
	require.NoError(t, err)

	err = f.uc.Logout(ctx, sess.Access)
	require.ErrorIs(t, err, ErrInvalidRefresh)
	require.ErrorIs(t, err, authn.ErrTokenInvalid)
	assert.Contains(t, err.Error(), "signature is invalid")
}

func TestLogout_ConcurrentRevocationIsSuccess(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	sess, err := f.uc.SignUp(ctx, validSignUp("a@b.com"))
	require.NoError(t, err)
	f.store.recordConflict = true

	require.NoError(t, f.uc.Logout(ctx, sess.Refresh))
}

func TestMe(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	sess, err := f.uc.SignUp(ctx, validSignUp("a@b.com"))
	require.NoError(t, err)

	u, err := f.uc.Me(ctx, sess.Access)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", u.Email)
	assert.Equal(t, sess.User.PID, u.PID)

	_, err = f.uc.Me(ctx, sess.Refresh)
	require.ErrorIs(t, err, ErrInvalidAccess)

	_, err = f.uc.Me(ctx, "")
	require.ErrorIs(t, err, ErrInvalidAccess)
}

func TestUsecase_WithoutOutbox(t *testing.T) {
	store := newMemStore()
	tokens, err := authn.NewTokenService(authn.TokenConfig{
		AccessSecret:  []byte("a"),
		RefreshSecret: []byte("r"),
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
	})
	require.NoError(t, err)
	uc := NewUsecase(Deps{
		Tx:       memTx{s: store},
		Users:    memUsers{s: store},
		Subjects: memSubjects{s: store},
		Revoked:  memRevoked{s: store},
		Tokens:   tokens,
		Hasher:   authn.NewBcryptHasher(4),
	}, Config{})

	sess, err := uc.SignUp(context.Background(), validSignUp("a@b.com"))
	require.NoError(t, err)
	require.NoError(t, uc.Logout(context.Background(), sess.Refresh))
	assert.Empty(t, store.events)
}
