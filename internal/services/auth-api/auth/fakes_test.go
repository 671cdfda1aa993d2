package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	authn "github.com/NordCoder/authgate/internal/auth"
	"github.com/NordCoder/authgate/internal/domain"
	domainauth "github.com/NordCoder/authgate/internal/domain/auth"
	"github.com/NordCoder/authgate/internal/domain/outbox"
	"github.com/NordCoder/authgate/internal/domain/user"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var errBoom = errors.New("boom")

// memStore backs every fake repository. memTx snapshots it on begin and
// restores the snapshot when the flow fails.
type memStore struct {
	mu       sync.Mutex
	nextID   int64
	users    map[int64]*user.User
	subjects map[int64]*domainauth.AuthSubject
	revoked  map[string]*domainauth.RevokedToken
	events   []outbox.Message

	// fault injection
	failEnqueue       bool
	failRevokedLookup bool
	subjectConflicts  int
	pidConflicts      int
	recordConflict    bool
}

func newMemStore() *memStore {
	return &memStore{
		users:    map[int64]*user.User{},
		subjects: map[int64]*domainauth.AuthSubject{},
		revoked:  map[string]*domainauth.RevokedToken{},
	}
}

type snapshot struct {
	nextID   int64
	users    map[int64]*user.User
	subjects map[int64]*domainauth.AuthSubject
	revoked  map[string]*domainauth.RevokedToken
	events   []outbox.Message
}

func (s *memStore) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := snapshot{
		nextID:   s.nextID,
		users:    make(map[int64]*user.User, len(s.users)),
		subjects: make(map[int64]*domainauth.AuthSubject, len(s.subjects)),
		revoked:  make(map[string]*domainauth.RevokedToken, len(s.revoked)),
		events:   append([]outbox.Message(nil), s.events...),
	}
	for k, v := range s.users {
		snap.users[k] = v
	}
	for k, v := range s.subjects {
		snap.subjects[k] = v
	}
	for k, v := range s.revoked {
		snap.revoked[k] = v
	}
	return snap
}

func (s *memStore) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID = snap.nextID
	s.users = snap.users
	s.subjects = snap.subjects
	s.revoked = snap.revoked
	s.events = snap.events
}

type memTx struct{ s *memStore }

func (t memTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	snap := t.s.snapshot()
	if err := fn(ctx); err != nil {
		t.s.restore(snap)
		return err
	}
	return nil
}

type memUsers struct{ s *memStore }

func (r memUsers) Create(_ context.Context, u *user.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.pidConflicts > 0 {
		r.s.pidConflicts--
		return user.ErrPIDTaken
	}
	for _, ex := range r.s.users {
		if ex.Email == u.Email {
			return user.ErrEmailTaken
		}
		if ex.PID == u.PID {
			return user.ErrPIDTaken
		}
	}
	r.s.nextID++
	u.ID = r.s.nextID
	u.CreatedAt = time.Now().UTC()
	cp := *u
	r.s.users[u.ID] = &cp
	return nil
}

func (r memUsers) find(match func(*user.User) bool) (*user.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r memUsers) GetByEmail(_ context.Context, email string) (*user.User, error) {
	return r.find(func(u *user.User) bool { return u.Email == email })
}

func (r memUsers) GetByPID(_ context.Context, pid string) (*user.User, error) {
	return r.find(func(u *user.User) bool { return u.PID == pid })
}

func (r memUsers) GetByAuthSubjectID(_ context.Context, id int64) (*user.User, error) {
	return r.find(func(u *user.User) bool { return u.AuthSubjectID == id })
}

type memSubjects struct{ s *memStore }

func (r memSubjects) Create(_ context.Context, value string) (*domainauth.AuthSubject, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.subjectConflicts > 0 {
		r.s.subjectConflicts--
		return nil, domain.ErrConflict
	}
	for _, ex := range r.s.subjects {
		if ex.Value == value {
			return nil, domain.ErrConflict
		}
	}
	r.s.nextID++
	sub := &domainauth.AuthSubject{ID: r.s.nextID, Value: value, CreatedAt: time.Now().UTC()}
	r.s.subjects[sub.ID] = sub
	cp := *sub
	return &cp, nil
}

func (r memSubjects) GetByValue(_ context.Context, value string) (*domainauth.AuthSubject, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, sub := range r.s.subjects {
		if sub.Value == value {
			cp := *sub
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r memSubjects) GetByID(_ context.Context, id int64) (*domainauth.AuthSubject, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sub, ok := r.s.subjects[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *sub
	return &cp, nil
}

type memRevoked struct{ s *memStore }

func (r memRevoked) Record(_ context.Context, value string, ttl time.Time) (*domainauth.RevokedToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.recordConflict {
		return nil, domain.ErrConflict
	}
	if _, ok := r.s.revoked[value]; ok {
		return nil, domain.ErrConflict
	}
	r.s.nextID++
	t := &domainauth.RevokedToken{ID: r.s.nextID, Value: value, TTL: ttl, CreatedAt: time.Now().UTC()}
	r.s.revoked[value] = t
	cp := *t
	return &cp, nil
}

func (r memRevoked) IsRevoked(_ context.Context, value string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failRevokedLookup {
		return false, errBoom
	}
	_, ok := r.s.revoked[value]
	return ok, nil
}

type memOutbox struct{ s *memStore }

func (r memOutbox) Enqueue(_ context.Context, key string, kind outbox.Kind, data []byte) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failEnqueue {
		return errBoom
	}
	r.s.events = append(r.s.events, outbox.Message{IdempotencyKey: key, Kind: kind, Data: data, Status: outbox.StatusCreated})
	return nil
}

func (r memOutbox) PickBatch(context.Context, int, time.Duration) ([]outbox.Message, error) {
	return nil, nil
}

func (r memOutbox) MarkSuccess(context.Context, []string) error { return nil }

func (s *memStore) eventKinds() []outbox.Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]outbox.Kind, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Kind)
	}
	return out
}

func (s *memStore) userByEmail(email string) *user.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return u
		}
	}
	return nil
}

// scriptedIDs replays ids in order and then falls back to real randomness.
func scriptedIDs(ids ...string) IDGenerator {
	var mu sync.Mutex
	return func(minLen, maxLen int) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		if len(ids) == 0 {
			return authn.GenerateRandom(minLen, maxLen)
		}
		id := ids[0]
		ids = ids[1:]
		return id, nil
	}
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	uc     *Usecase
	store  *memStore
	tokens *authn.TokenService
}

func newFixture(t *testing.T, gen IDGenerator) *fixture {
	t.Helper()
	now := func() time.Time { return testNow }
	tokens, err := authn.NewTokenService(authn.TokenConfig{
		AccessSecret:  []byte("access-secret"),
		RefreshSecret: []byte("refresh-secret"),
		AccessTTL:     30 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		Now:           now,
	})
	require.NoError(t, err)

	store := newMemStore()
	uc := NewUsecase(Deps{
		Tx:         memTx{s: store},
		Users:      memUsers{s: store},
		Subjects:   memSubjects{s: store},
		Revoked:    memRevoked{s: store},
		Outbox:     memOutbox{s: store},
		Tokens:     tokens,
		Hasher:     authn.NewBcryptHasher(bcrypt.MinCost),
		GenerateID: gen,
	}, Config{Now: now})
	return &fixture{uc: uc, store: store, tokens: tokens}
}

func validSignUp(email string) SignUpInput {
	return SignUpInput{
		FirstName: "ada",
		LastName:  "lovelace",
		Email:     email,
		Password:  "strongpass1",
		Repeat:    "strongpass1",
	}
}
