package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/tech-e/apiserver/internal/apperr"
	"github.com/tech-e/apiserver/internal/auth"
	"github.com/tech-e/apiserver/internal/mail"
	"github.com/tech-e/apiserver/internal/store"
	"github.com/tech-e/apiserver/types"
	"go.uber.org/zap"
)

var (
	ErrMissingRegistrationFields = apperr.New(apperr.KindInvalidInput, "All fields are required.")
	ErrInvalidEmail              = apperr.New(apperr.KindInvalidInput, "A valid email is required.")
	ErrPasswordTooLong           = apperr.New(apperr.KindInvalidInput, "Password must be at most 72 bytes.")
	ErrUserExists                = apperr.New(apperr.KindAlreadyExists, "User already exists.")
	ErrMissingCredentials        = apperr.New(apperr.KindInvalidInput, "Email and password are required.")
	ErrInvalidCredentials        = apperr.New(apperr.KindInvalidCredentials, "Invalid email or password.")
	ErrAccountBlocked            = apperr.New(apperr.KindForbidden, "Account is blocked.")
	ErrUserNotFound              = apperr.New(apperr.KindNotFound, "User not found.")
	ErrInvalidRole               = apperr.New(apperr.KindInvalidInput, "Unknown role.")
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (types.User, error)
	FindByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Save(ctx context.Context, user types.User) (types.User, error)
	ToggleBlocked(ctx context.Context, id string) (bool, error)
	List(ctx context.Context) ([]types.User, error)
}

// PasswordHasher hashes and checks passwords.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) bool
	VerifyNothing(plaintext string)
}

// TokenIssuer mints session tokens.
type TokenIssuer interface {
	Issue(userID string, role types.Role) (string, time.Time, error)
}

type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult is a freshly issued session.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      types.User
}

// UserOption configures a UserService.
type UserOption func(*UserService)

// WithRejectBlocked makes Login refuse blocked accounts.
func WithRejectBlocked(reject bool) UserOption {
	return func(s *UserService) { s.rejectBlocked = reject }
}

// WithWelcomeNotifier sets where welcome mail is handed off after
// registration.
func WithWelcomeNotifier(n mail.Notifier) UserOption {
	return func(s *UserService) { s.notifier = n }
}

// UserService implements the account lifecycle: registration, login,
// blocking and role changes.
type UserService struct {
	repo          UserRepository
	hasher        PasswordHasher
	issuer        TokenIssuer
	notifier      mail.Notifier
	logger        *zap.Logger
	validate      *validator.Validate
	rejectBlocked bool
}

func NewUserService(repo UserRepository, hasher PasswordHasher, issuer TokenIssuer, logger *zap.Logger, opts ...UserOption) *UserService {
	s := &UserService{
		repo:     repo,
		hasher:   hasher,
		issuer:   issuer,
		notifier: mail.Discard{},
		logger:   logger,
		validate: newValidator(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a user with the default role. The welcome mail is
// best effort and never fails the registration.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (types.User, error) {
	name := strings.TrimSpace(in.Name)
	email := normalizeEmail(in.Email)
	if name == "" || email == "" || in.Password == "" {
		return types.User{}, ErrMissingRegistrationFields
	}
	if err := s.validate.Var(email, "email"); err != nil {
		return types.User{}, ErrInvalidEmail
	}

	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return types.User{}, ErrUserExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, apperr.Internal(err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return types.User{}, ErrPasswordTooLong
		}
		return types.User{}, apperr.Internal(err)
	}

	user, err := s.repo.Create(ctx, types.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         types.RoleUser,
	})
	if err != nil {
		// Lost a race with a concurrent registration.
		if errors.Is(err, store.ErrDuplicateKey) {
			return types.User{}, ErrUserExists
		}
		return types.User{}, apperr.Internal(err)
	}

	if err := s.notifier.Notify(ctx, mail.WelcomeMessage(user.Email, user.Name)); err != nil {
		s.logger.Warn("Welcome email not dispatched", zap.String("user_id", user.ID), zap.Error(err))
	}
	return user, nil
}

// Login checks credentials and issues a token. Unknown email and wrong
// password produce the same error.
func (s *UserService) Login(ctx context.Context, in LoginInput) (LoginResult, error) {
	email := normalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return LoginResult{}, ErrMissingCredentials
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.hasher.VerifyNothing(in.Password)
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, apperr.Internal(err)
	}
	if !s.hasher.Verify(in.Password, user.PasswordHash) {
		return LoginResult{}, ErrInvalidCredentials
	}
	if user.Blocked && s.rejectBlocked {
		return LoginResult{}, ErrAccountBlocked
	}

	token, expiresAt, err := s.issuer.Issue(user.ID, user.Role)
	if err != nil {
		return LoginResult{}, apperr.Internal(err)
	}
	return LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// ToggleBlock flips the blocked flag and returns its new value.
func (s *UserService) ToggleBlock(ctx context.Context, id string) (bool, error) {
	blocked, err := s.repo.ToggleBlocked(ctx, id)
	if err != nil {
		return false, s.lookupError(err)
	}
	s.logger.Info("User block state changed", zap.String("user_id", id), zap.Bool("blocked", blocked))
	return blocked, nil
}

func (s *UserService) List(ctx context.Context) ([]types.User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if users == nil {
		users = []types.User{}
	}
	return users, nil
}

func (s *UserService) Get(ctx context.Context, id string) (types.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return types.User{}, s.lookupError(err)
	}
	return user, nil
}

// SetRole assigns role to the user with the given email. It is reachable
// only from the operator CLI.
func (s *UserService) SetRole(ctx context.Context, email string, role types.Role) (types.User, error) {
	if !role.Valid() {
		return types.User{}, ErrInvalidRole
	}
	user, err := s.repo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return types.User{}, s.lookupError(err)
	}
	user.Role = role
	saved, err := s.repo.Save(ctx, user)
	if err != nil {
		return types.User{}, s.lookupError(err)
	}
	return saved, nil
}

func (s *UserService) lookupError(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrUserNotFound
	}
	return apperr.Internal(err)
}
