// Package auth verifies credentials and registers users. Session handling is
// left to the caller: Authenticate only answers whether a login is valid.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"smartexpense/internal/core"
	applog "smartexpense/internal/log"
	"smartexpense/internal/store"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor used for new password hashes.
const DefaultCost = 10

const (
	msgWeakPassword       = "Password not acceptable"
	msgAlreadyExists      = "User already registered"
	msgUserNotFound       = "User not found"
	msgInvalidCredentials = "Invalid credentials"
	msgBadRequest         = "Bad request"
)

// Registration is the input of Register.
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Service struct {
	users  store.UserStore
	cost   int
	now    func() time.Time
	newID  func() string
	logger *applog.Logger
}

type Option func(*Service)

// WithCost overrides the bcrypt cost; tests use bcrypt.MinCost.
func WithCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

func WithLogger(l *applog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(users store.UserStore, opts ...Option) *Service {
	s := &Service{
		users:  users,
		cost:   DefaultCost,
		now:    time.Now,
		newID:  uuid.NewString,
		logger: applog.New(applog.Config{Component: applog.ComponentAuth}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Authenticate looks the user up by email and checks the password against
// the stored bcrypt hash. Unknown emails fail with NotFound and wrong
// passwords with InvalidCredentials; any other fault is reported as
// BadRequest with the cause attached for logging.
func (s *Service) Authenticate(ctx context.Context, email, password string) (core.User, error) {
	u, err := s.users.FindUserByEmail(ctx, core.NormalizeEmail(email))
	switch {
	case errors.Is(err, store.ErrNotFound):
		return core.User{}, core.NewError(core.KindNotFound, msgUserNotFound, nil)
	case err != nil:
		s.logger.ErrorContext(ctx, "User lookup failed", applog.FieldError, err, applog.FieldOperation, applog.OpLogin)
		return core.User{}, core.NewError(core.KindBadRequest, msgBadRequest, err)
	}

	err = bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
	switch {
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		s.logger.WarnContext(ctx, "Password mismatch", "user_id", u.ID)
		return core.User{}, core.NewError(core.KindInvalidCredentials, msgInvalidCredentials, nil)
	case err != nil:
		s.logger.ErrorContext(ctx, "Password hash comparison failed", applog.FieldError, err, "user_id", u.ID)
		return core.User{}, core.NewError(core.KindBadRequest, msgBadRequest, err)
	}

	return u.Public(), nil
}

// Register creates a user after checking that the email is free and the
// password meets the policy. The email check comes first, so a taken email
// is reported as AlreadyExists whatever the password.
func (s *Service) Register(ctx context.Context, r Registration) (core.User, error) {
	name := strings.TrimSpace(r.Name)
	email := core.NormalizeEmail(r.Email)
	switch {
	case name == "":
		return core.User{}, core.NewError(core.KindValidation, "name is required", nil)
	case email == "":
		return core.User{}, core.NewError(core.KindValidation, "email is required", nil)
	case !strings.Contains(email, "@"):
		return core.User{}, core.NewError(core.KindValidation, "email is not valid", nil)
	case r.Password == "":
		return core.User{}, core.NewError(core.KindValidation, "password is required", nil)
	}

	_, err := s.users.FindUserByEmail(ctx, email)
	switch {
	case err == nil:
		return core.User{}, core.NewError(core.KindAlreadyExists, msgAlreadyExists, nil)
	case !errors.Is(err, store.ErrNotFound):
		s.logger.ErrorContext(ctx, "User lookup failed", applog.FieldError, err, applog.FieldOperation, applog.OpRegister)
		return core.User{}, core.NewError(core.KindBadRequest, msgBadRequest, err)
	}

	if !core.IsAcceptablePassword(r.Password) {
		return core.User{}, core.NewError(core.KindWeakPassword, msgWeakPassword, nil)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(r.Password), s.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return core.User{}, core.NewError(core.KindWeakPassword, msgWeakPassword, err)
	}
	if err != nil {
		return core.User{}, core.NewError(core.KindBadRequest, msgBadRequest, err)
	}

	u, err := s.users.InsertUser(ctx, core.User{
		ID:           s.newID(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	})
	switch {
	case errors.Is(err, store.ErrDuplicate):
		// Lost a race with a concurrent registration for the same email.
		return core.User{}, core.NewError(core.KindAlreadyExists, msgAlreadyExists, nil)
	case err != nil:
		s.logger.ErrorContext(ctx, "User insert failed", applog.FieldError, err, applog.FieldOperation, applog.OpRegister)
		return core.User{}, core.NewError(core.KindBadRequest, msgBadRequest, err)
	}

	s.logger.InfoContext(ctx, "User registered", "user_id", u.ID)
	return u.Public(), nil
}

// User fetches a user by id without the password hash.
func (s *Service) User(ctx context.Context, id string) (core.User, error) {
	u, err := s.users.FindUserByID(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return core.User{}, core.NewError(core.KindNotFound, msgUserNotFound, nil)
	case err != nil:
		return core.User{}, core.NewError(core.KindBadRequest, msgBadRequest, err)
	}
	return u.Public(), nil
}
