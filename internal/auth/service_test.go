package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"smartexpense/internal/core"
	"smartexpense/internal/store"
	"smartexpense/internal/store/memory"

	"golang.org/x/crypto/bcrypt"
)

func newTestService(users store.UserStore) *Service {
	n := 0
	return NewService(users,
		WithCost(bcrypt.MinCost),
		WithClock(func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }),
		WithIDGenerator(func() string { n++; return fmt.Sprintf("user-%d", n) }),
	)
}

func register(t *testing.T, s *Service, email, password string) core.User {
	t.Helper()
	u, err := s.Register(context.Background(), Registration{Name: "Test", Email: email, Password: password})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return u
}

func TestRegister(t *testing.T) {
	users := memory.New()
	s := newTestService(users)

	u := register(t, s, "  Bob@Example.com ", "abcd1234")
	if u.ID != "user-1" || u.Email != "bob@example.com" || u.Name != "Test" {
		t.Fatalf("unexpected user %+v", u)
	}
	if u.PasswordHash != "" {
		t.Fatalf("registration must not return the password hash")
	}
	if !u.CreatedAt.Equal(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Fatalf("createdAt = %v", u.CreatedAt)
	}

	stored, err := users.FindUserByID(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("stored user: %v", err)
	}
	if stored.PasswordHash == "abcd1234" || bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("abcd1234")) != nil {
		t.Fatalf("password was not hashed")
	}
}

func TestRegisterFailures(t *testing.T) {
	users := memory.New()
	s := newTestService(users)
	register(t, s, "taken@example.com", "abcd1234")

	cases := []struct {
		name string
		in   Registration
		want *core.Error
	}{
		{"weak password", Registration{Name: "A", Email: "new@example.com", Password: "abc123"}, core.ErrWeakPassword},
		{"space in password", Registration{Name: "A", Email: "new@example.com", Password: "abcd 1234"}, core.ErrWeakPassword},
		{"too long for bcrypt", Registration{Name: "A", Email: "new@example.com", Password: strings.Repeat("a1", 40)}, core.ErrWeakPassword},
		{"taken email", Registration{Name: "A", Email: "TAKEN@example.com", Password: "abcd1234"}, core.ErrAlreadyExists},
		{"taken email with weak password", Registration{Name: "A", Email: "taken@example.com", Password: "x"}, core.ErrAlreadyExists},
		{"missing name", Registration{Email: "n@example.com", Password: "abcd1234"}, core.ErrValidation},
		{"missing email", Registration{Name: "A", Password: "abcd1234"}, core.ErrValidation},
		{"malformed email", Registration{Name: "A", Email: "nobody", Password: "abcd1234"}, core.ErrValidation},
		{"missing password", Registration{Name: "A", Email: "n@example.com"}, core.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Register(context.Background(), tc.in)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %s, got %v", tc.want.Kind, err)
			}
		})
	}
}

func TestAuthenticate(t *testing.T) {
	s := newTestService(memory.New())
	registered := register(t, s, "carol@example.com", "s3cret!pw")

	u, err := s.Authenticate(context.Background(), "CAROL@example.com", "s3cret!pw")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if u.ID != registered.ID || u.PasswordHash != "" {
		t.Fatalf("unexpected user %+v", u)
	}

	_, err = s.Authenticate(context.Background(), "carol@example.com", "wrong-pw1")
	if !errors.Is(err, core.ErrInvalidCredentials) {
		t.Fatalf("expected InvalidCredentials, got %v", err)
	}

	_, err = s.Authenticate(context.Background(), "nobody@example.com", "s3cret!pw")
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

type failingUsers struct {
	store.UserStore
	err  error
	user core.User
}

func (f failingUsers) FindUserByEmail(context.Context, string) (core.User, error) {
	return f.user, f.err
}

func (f failingUsers) FindUserByID(context.Context, string) (core.User, error) {
	return f.user, f.err
}

func TestAuthenticateFaultsBecomeBadRequest(t *testing.T) {
	cause := errors.New("connection refused")
	s := newTestService(failingUsers{err: cause})

	_, err := s.Authenticate(context.Background(), "a@b.c", "abcd1234")
	if !errors.Is(err, core.ErrBadRequest) {
		t.Fatalf("expected BadRequest, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("cause should be preserved for logging")
	}

	_, err = s.Register(context.Background(), Registration{Name: "A", Email: "a@b.c", Password: "abcd1234"})
	if !errors.Is(err, core.ErrBadRequest) {
		t.Fatalf("register lookup fault: expected BadRequest, got %v", err)
	}

	// A corrupt stored hash is a fault, not a wrong password.
	s = newTestService(failingUsers{user: core.User{ID: "u", PasswordHash: "not-a-hash"}})
	_, err = s.Authenticate(context.Background(), "a@b.c", "abcd1234")
	if !errors.Is(err, core.ErrBadRequest) {
		t.Fatalf("corrupt hash: expected BadRequest, got %v", err)
	}
}

func TestUser(t *testing.T) {
	s := newTestService(memory.New())
	registered := register(t, s, "dave@example.com", "abcd1234")

	u, err := s.User(context.Background(), registered.ID)
	if err != nil || u.Email != "dave@example.com" || u.PasswordHash != "" {
		t.Fatalf("User = %+v, %v", u, err)
	}
	if _, err := s.User(context.Background(), "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

type racingUsers struct {
	*memory.Store
}

// FindUserByEmail never sees the competing insert.
func (racingUsers) FindUserByEmail(context.Context, string) (core.User, error) {
	return core.User{}, store.ErrNotFound
}

func TestRegisterDuplicateInsertIsAlreadyExists(t *testing.T) {
	mem := memory.New()
	if _, err := mem.InsertUser(context.Background(), core.User{ID: "x", Email: "race@example.com"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	s := newTestService(racingUsers{mem})
	_, err := s.Register(context.Background(), Registration{Name: "A", Email: "race@example.com", Password: "abcd1234"})
	if !errors.Is(err, core.ErrAlreadyExists) {
		t.Fatalf("expected AlreadyExists, got %v", err)
	}
}
