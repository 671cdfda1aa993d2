package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	authn "github.com/NordCoder/authgate/internal/auth"
	"github.com/NordCoder/authgate/internal/domain"
	domainauth "github.com/NordCoder/authgate/internal/domain/auth"
	"github.com/NordCoder/authgate/internal/domain/outbox"
	"github.com/NordCoder/authgate/internal/domain/user"
	"github.com/NordCoder/authgate/internal/obs"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	pidMinLen      = 12
	pidMaxLen      = 16
	subjectMinLen  = 32
	subjectMaxLen  = 48
	uniqueAttempts = 5

	DefaultRevocationGrace = 24 * time.Hour

	dummyPassword = "authgate-timing-equalizer"
)

type Transactor interface {
	WithTx(ctx context.Context, function func(ctx context.Context) error) error
}

type Tokens interface {
	MintPair(subject string) (authn.TokenPair, error)
	VerifyAccess(token string) (*authn.Claims, error)
	VerifyRefresh(token string) (*authn.Claims, error)
	RefreshTTL() time.Duration
}

// IDGenerator returns a random identifier with length in [minLen, maxLen].
type IDGenerator func(minLen, maxLen int) (string, error)

type Config struct {
	// RevocationGrace is added to the refresh lifetime when computing how
	// long a revoked token is kept in the ledger.
	RevocationGrace time.Duration
	Now             func() time.Time
}

type Deps struct {
	Tx       Transactor
	Users    user.Repo
	Subjects domainauth.SubjectRepo
	Revoked  domainauth.RevocationRepo
	// Outbox is optional; nil disables auth events.
	Outbox     outbox.Repository
	Tokens     Tokens
	Hasher     authn.Hasher
	GenerateID IDGenerator
	Logger     *zap.Logger
}

type SignUpInput struct {
	FirstName string `json:"firstname" validate:"required,min=2,max=50"`
	LastName  string `json:"lastname" validate:"required,min=2,max=50"`
	Email     string `json:"email" validate:"required,min=5,max=255,email"`
	Password  string `json:"password" validate:"required,min=8,bcryptmax"`
	Repeat    string `json:"repeat" validate:"eqfield=Password"`
}

// Session is the outcome of a successful signup, login or refresh.
type Session struct {
	User    *user.User
	Access  string
	Refresh string
}

type Usecase struct {
	tx        Transactor
	users     user.Repo
	subjects  domainauth.SubjectRepo
	revoked   domainauth.RevocationRepo
	outbox    outbox.Repository
	tokens    Tokens
	hasher    authn.Hasher
	genID     IDGenerator
	log       *zap.Logger
	cfg       Config
	dummyHash string
}

func NewUsecase(d Deps, cfg Config) *Usecase {
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.RevocationGrace <= 0 {
		cfg.RevocationGrace = DefaultRevocationGrace
	}
	if d.GenerateID == nil {
		d.GenerateID = authn.GenerateRandom
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	uc := &Usecase{
		tx:       d.Tx,
		users:    d.Users,
		subjects: d.Subjects,
		revoked:  d.Revoked,
		outbox:   d.Outbox,
		tokens:   d.Tokens,
		hasher:   d.Hasher,
		genID:    d.GenerateID,
		log:      d.Logger,
		cfg:      cfg,
	}
	if h, err := d.Hasher.Hash(dummyPassword); err == nil {
		uc.dummyHash = h
	} else {
		uc.log.Warn("dummy hash unavailable, login timing is not equalized", zap.Error(err))
	}
	return uc
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// titleName capitalizes every part of a name, including the one after an
// apostrophe: "o'brien" becomes "O'Brien".
func titleName(s string) string {
	caser := cases.Title(language.Und)
	parts := strings.Split(strings.TrimSpace(s), "'")
	for i, p := range parts {
		parts[i] = caser.String(p)
	}
	return strings.Join(parts, "'")
}

func (u *Usecase) SignUp(ctx context.Context, in SignUpInput) (*Session, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	email := normalizeEmail(in.Email)

	hash, err := u.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	var sess *Session
	err = u.tx.WithTx(ctx, func(ctx context.Context) error {
		_, err := u.users.GetByEmail(ctx, email)
		switch {
		case err == nil:
			return ErrEmailExists
		case !errors.Is(err, domain.ErrNotFound):
			return storageErr("lookup email", err)
		}

		pid, err := u.uniquePID(ctx)
		if err != nil {
			return err
		}
		subject, err := u.createSubject(ctx)
		if err != nil {
			return err
		}

		usr := &user.User{
			FirstName:     titleName(in.FirstName),
			LastName:      titleName(in.LastName),
			Email:         email,
			PasswordHash:  hash,
			AuthSubjectID: subject.ID,
		}
		if err := u.insertUser(ctx, usr, pid); err != nil {
			return err
		}

		pair, err := u.tokens.MintPair(subject.Value)
		if err != nil {
			return err
		}
		if err := u.emit(ctx, outbox.KindUserSignedUp, usr.PID); err != nil {
			return err
		}
		sess = &Session{User: usr, Access: pair.Access, Refresh: pair.Refresh}
		return nil
	})
	if err != nil {
		return nil, err
	}

	obs.ForFlow(ctx, u.log, "signup").Info("user signed up", zap.String("pid", sess.User.PID))
	return sess, nil
}

// SignIn answers ErrInvalidCredentials for an unknown email, a wrong
// password and a deactivated or deleted user alike.
func (u *Usecase) SignIn(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	log := obs.ForFlow(ctx, u.log, "login")

	var sess *Session
	err := u.tx.WithTx(ctx, func(ctx context.Context) error {
		usr, err := u.users.GetByEmail(ctx, email)
		if errors.Is(err, domain.ErrNotFound) {
			u.hasher.Verify(u.dummyHash, password)
			log.Info("login rejected", zap.String("reason", "unknown email"))
			return ErrInvalidCredentials
		}
		if err != nil {
			return storageErr("lookup user", err)
		}
		if !u.hasher.Verify(usr.PasswordHash, password) {
			log.Info("login rejected", zap.String("reason", "password mismatch"), zap.String("pid", usr.PID))
			return ErrInvalidCredentials
		}
		if !usr.Authenticatable() {
			log.Info("login rejected", zap.String("reason", "user inactive"), zap.String("pid", usr.PID))
			return ErrInvalidCredentials
		}

		subject, err := u.subjects.GetByID(ctx, usr.AuthSubjectID)
		if err != nil {
			return storageErr("load auth subject", err)
		}
		pair, err := u.tokens.MintPair(subject.Value)
		if err != nil {
			return err
		}
		if err := u.emit(ctx, outbox.KindSessionStarted, usr.PID); err != nil {
			return err
		}
		sess = &Session{User: usr, Access: pair.Access, Refresh: pair.Refresh}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// Logout revokes refresh. A missing or already revoked token is a success.
func (u *Usecase) Logout(ctx context.Context, refresh string) error {
	if refresh == "" {
		return nil
	}
	log := obs.ForFlow(ctx, u.log, "logout").With(obs.TokenRef(refresh))
	claims, err := u.tokens.VerifyRefresh(refresh)
	if err != nil {
		log.Info("logout rejected", zap.String("reason", err.Error()))
		return fmt.Errorf("%w: %w", ErrInvalidRefresh, err)
	}

	return u.tx.WithTx(ctx, func(ctx context.Context) error {
		revoked, err := u.revoked.IsRevoked(ctx, refresh)
		if err != nil {
			return storageErr("check revocation", err)
		}
		if revoked {
			log.Debug("token already revoked")
			return nil
		}
		if _, err := u.revoked.Record(ctx, refresh, u.revocationTTL()); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				return nil
			}
			return storageErr("record revocation", err)
		}
		return u.emitForSubject(ctx, outbox.KindSessionEnded, claims.Subject)
	})
}

// Refresh rotates the presented refresh token: a new pair is minted and
// the old token is revoked. Every rejection is ErrInvalidRefresh.
func (u *Usecase) Refresh(ctx context.Context, refresh string) (*Session, error) {
	log := obs.ForFlow(ctx, u.log, "refresh").With(obs.TokenRef(refresh))
	reject := func(reason string) error {
		log.Info("refresh rejected", zap.String("reason", reason))
		return ErrInvalidRefresh
	}

	if refresh == "" {
		return nil, reject("missing token")
	}
	claims, err := u.tokens.VerifyRefresh(refresh)
	if err != nil {
		return nil, reject(err.Error())
	}
	if claims.Subject == "" {
		return nil, reject("empty subject")
	}

	var sess *Session
	err = u.tx.WithTx(ctx, func(ctx context.Context) error {
		revoked, err := u.revoked.IsRevoked(ctx, refresh)
		if err != nil {
			return storageErr("check revocation", err)
		}
		if revoked {
			return reject("token revoked")
		}

		usr, err := u.userBySubject(ctx, claims.Subject)
		if errors.Is(err, domain.ErrNotFound) {
			return reject("unknown subject")
		}
		if err != nil {
			return err
		}
		if !usr.Authenticatable() {
			return reject("user inactive")
		}

		pair, err := u.tokens.MintPair(claims.Subject)
		if err != nil {
			return err
		}
		if _, err := u.revoked.Record(ctx, refresh, u.revocationTTL()); err != nil {
			// Another rotation revoked this token first; answering 401 keeps
			// one refresh token from yielding two live pairs.
			if errors.Is(err, domain.ErrConflict) {
				return reject("concurrent rotation")
			}
			return storageErr("record revocation", err)
		}
		if err := u.emit(ctx, outbox.KindSessionRefreshed, usr.PID); err != nil {
			return err
		}
		sess = &Session{User: usr, Access: pair.Access, Refresh: pair.Refresh}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// Me resolves the user behind an access token.
func (u *Usecase) Me(ctx context.Context, access string) (*user.User, error) {
	if access == "" {
		return nil, ErrInvalidAccess
	}
	claims, err := u.tokens.VerifyAccess(access)
	if err != nil {
		obs.ForFlow(ctx, u.log, "me").Info("access rejected", zap.String("reason", err.Error()))
		return nil, ErrInvalidAccess
	}
	usr, err := u.userBySubject(ctx, claims.Subject)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, ErrInvalidAccess
	}
	if err != nil {
		return nil, err
	}
	if !usr.Authenticatable() {
		return nil, ErrInvalidAccess
	}
	return usr, nil
}

func (u *Usecase) revocationTTL() time.Time {
	return u.cfg.Now().Add(u.tokens.RefreshTTL() + u.cfg.RevocationGrace)
}

// userBySubject returns domain.ErrNotFound when either the subject or
// its user is missing.
func (u *Usecase) userBySubject(ctx context.Context, value string) (*user.User, error) {
	subject, err := u.subjects.GetByValue(ctx, value)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, storageErr("lookup auth subject", err)
	}
	usr, err := u.users.GetByAuthSubjectID(ctx, subject.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, storageErr("lookup user by subject", err)
	}
	return usr, nil
}

func (u *Usecase) uniquePID(ctx context.Context) (string, error) {
	for i := 0; i < uniqueAttempts; i++ {
		pid, err := u.genID(pidMinLen, pidMaxLen)
		if err != nil {
			return "", fmt.Errorf("generate pid: %w", err)
		}
		_, err = u.users.GetByPID(ctx, pid)
		if errors.Is(err, domain.ErrNotFound) {
			return pid, nil
		}
		if err != nil {
			return "", storageErr("lookup pid", err)
		}
	}
	return "", fmt.Errorf("%w: pid", ErrIdentifierExhausted)
}

func (u *Usecase) createSubject(ctx context.Context) (*domainauth.AuthSubject, error) {
	for i := 0; i < uniqueAttempts; i++ {
		value, err := u.genID(subjectMinLen, subjectMaxLen)
		if err != nil {
			return nil, fmt.Errorf("generate auth subject: %w", err)
		}
		_, err = u.subjects.GetByValue(ctx, value)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, storageErr("lookup auth subject", err)
		}

		subject, err := u.subjects.Create(ctx, value)
		if err == nil {
			return subject, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return nil, storageErr("create auth subject", err)
		}
	}
	return nil, fmt.Errorf("%w: auth subject", ErrIdentifierExhausted)
}

// insertUser falls back to a fresh pid when the insert loses a pid race.
func (u *Usecase) insertUser(ctx context.Context, usr *user.User, pid string) error {
	for attempt := 1; ; attempt++ {
		usr.PID = pid
		err := u.users.Create(ctx, usr)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, user.ErrEmailTaken):
			return ErrEmailExists
		case errors.Is(err, user.ErrPIDTaken):
			if attempt >= uniqueAttempts {
				return fmt.Errorf("%w: pid", ErrIdentifierExhausted)
			}
			if pid, err = u.uniquePID(ctx); err != nil {
				return err
			}
		default:
			return storageErr("create user", err)
		}
	}
}

func (u *Usecase) emit(ctx context.Context, kind outbox.Kind, pid string) error {
	if u.outbox == nil {
		return nil
	}
	data, err := json.Marshal(outbox.AuthEvent{PID: pid, At: u.cfg.Now()})
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", kind, err)
	}
	if err := u.outbox.Enqueue(ctx, ulid.Make().String(), kind, data); err != nil {
		return storageErr("enqueue "+kind.String(), err)
	}
	return nil
}

func (u *Usecase) emitForSubject(ctx context.Context, kind outbox.Kind, subject string) error {
	if u.outbox == nil || subject == "" {
		return nil
	}
	usr, err := u.userBySubject(ctx, subject)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return u.emit(ctx, kind, usr.PID)
}
