package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"housefin/internal/auth"
	"housefin/internal/core"
	applog "housefin/internal/log"
	"housefin/internal/storage"
)

// fallbackDummyHash is a well-formed cost 10 hash compared against when the
// placeholder hash cannot be computed.
const fallbackDummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// ErrInvalidCredentials is returned for an unknown username or a wrong password.
var ErrInvalidCredentials = fmt.Errorf("%w: invalid username or password", core.ErrUnauthenticated)

// Session is the result of a successful login.
type Session struct {
	User      core.User
	Token     string
	ExpiresIn time.Duration
}

// AccountService registers users, checks credentials and resolves session tokens.
type AccountService struct {
	users      storage.UserStore
	tokens     *auth.TokenManager
	bcryptCost int
	hash       func(plain string, cost int) (string, error)
	logger     *applog.Logger

	dummyOnce sync.Once
	dummyHash string
}

func NewAccountService(users storage.UserStore, tokens *auth.TokenManager, bcryptCost int, logger *applog.Logger) *AccountService {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &AccountService{
		users:      users,
		tokens:     tokens,
		bcryptCost: bcryptCost,
		hash:       auth.HashPassword,
		logger:     logger.WithComponent(applog.ComponentAccount),
	}
}

// Register creates a new account. Duplicate usernames or emails fail with a
// ValidationError and create no row.
func (s *AccountService) Register(ctx context.Context, reg core.Registration) (core.User, error) {
	reg = reg.Normalize()
	if err := reg.Validate(); err != nil {
		return core.User{}, err
	}

	if err := s.ensureAvailable(ctx, reg.Username, reg.Email); err != nil {
		return core.User{}, err
	}

	hash, err := s.hash(reg.Password, s.bcryptCost)
	if err != nil {
		return core.User{}, err
	}

	u := core.User{
		Username:     reg.Username,
		Email:        reg.Email,
		FullName:     reg.FullName,
		PasswordHash: hash,
	}
	if err := s.users.CreateUser(ctx, &u); err != nil {
		if errors.Is(err, core.ErrConflict) {
			// Lost a race with a concurrent registration.
			if taken := s.ensureAvailable(ctx, reg.Username, reg.Email); taken != nil {
				return core.User{}, taken
			}
			return core.User{}, core.Invalid("username", core.ErrUsernameTaken)
		}
		return core.User{}, fmt.Errorf("register user: %w", err)
	}

	s.logger.InfoContext(ctx, "User registered",
		applog.NewFields().WithUser(u.ID, u.Username).WithOperation(applog.OpRegister).ToSlice()...)
	return u, nil
}

func (s *AccountService) ensureAvailable(ctx context.Context, username, email string) error {
	if _, err := s.users.GetUserByUsername(ctx, username); err == nil {
		return core.Invalid("username", core.ErrUsernameTaken)
	} else if !errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("check username: %w", err)
	}
	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return core.Invalid("email", core.ErrEmailTaken)
	} else if !errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("check email: %w", err)
	}
	return nil
}

// Authenticate returns the user whose credentials match. Unknown users still
// pay for a bcrypt comparison.
func (s *AccountService) Authenticate(ctx context.Context, username, password string) (core.User, error) {
	u, err := s.users.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			auth.VerifyPassword(password, s.dummy())
			return core.User{}, ErrInvalidCredentials
		}
		return core.User{}, fmt.Errorf("authenticate: %w", err)
	}
	if !auth.VerifyPassword(password, u.PasswordHash) {
		return core.User{}, ErrInvalidCredentials
	}
	return u, nil
}

func (s *AccountService) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := s.hash("housefin-placeholder-password", s.bcryptCost)
		if err != nil {
			s.logger.Warn("Placeholder password hash failed, using fallback", applog.FieldError, err.Error())
			h = fallbackDummyHash
		}
		s.dummyHash = h
	})
	return s.dummyHash
}

// Login authenticates and issues a session token.
func (s *AccountService) Login(ctx context.Context, username, password string) (Session, error) {
	u, err := s.Authenticate(ctx, username, password)
	if err != nil {
		if errors.Is(err, core.ErrUnauthenticated) {
			s.logger.WarnContext(ctx, "Login failed",
				applog.FieldUsername, strings.TrimSpace(username),
				applog.FieldErrorType, applog.ErrorTypeAuth)
		}
		return Session{}, err
	}

	token, err := s.tokens.Issue(auth.Identity{UserID: u.ID, Username: u.Username}, 0)
	if err != nil {
		return Session{}, fmt.Errorf("login: %w", err)
	}

	s.logger.InfoContext(ctx, "User logged in",
		applog.NewFields().WithUser(u.ID, u.Username).WithOperation(applog.OpLogin).ToSlice()...)
	return Session{User: u, Token: token, ExpiresIn: s.tokens.TTL()}, nil
}

// UserFromToken verifies token and loads the user it names. Tokens for
// users that no longer exist fail with core.ErrUnauthenticated.
func (s *AccountService) UserFromToken(ctx context.Context, token string) (core.User, error) {
	id, err := s.tokens.Verify(token)
	if err != nil {
		return core.User{}, err
	}
	u, err := s.users.GetUserByID(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.User{}, fmt.Errorf("%w: unknown user", core.ErrUnauthenticated)
		}
		return core.User{}, fmt.Errorf("load token user: %w", err)
	}
	if u.Username != id.Username {
		return core.User{}, fmt.Errorf("%w: token subject mismatch", core.ErrUnauthenticated)
	}
	return u, nil
}

// GetUser loads a user by ID.
func (s *AccountService) GetUser(ctx context.Context, id string) (core.User, error) {
	return s.users.GetUserByID(ctx, id)
}

// UpdateProfile changes the full name and email of the user.
func (s *AccountService) UpdateProfile(ctx context.Context, userID string, p core.ProfileUpdate) (core.User, error) {
	p = p.Normalize()
	if err := p.Validate(); err != nil {
		return core.User{}, err
	}

	if other, err := s.users.GetUserByEmail(ctx, p.Email); err == nil && other.ID != userID {
		return core.User{}, core.Invalid("email", core.ErrEmailTaken)
	} else if err != nil && !errors.Is(err, core.ErrNotFound) {
		return core.User{}, fmt.Errorf("check email: %w", err)
	}

	if err := s.users.UpdateUserProfile(ctx, userID, p.FullName, p.Email); err != nil {
		if errors.Is(err, core.ErrConflict) {
			return core.User{}, core.Invalid("email", core.ErrEmailTaken)
		}
		return core.User{}, fmt.Errorf("update profile: %w", err)
	}

	s.logger.InfoContext(ctx, "Profile updated",
		applog.NewFields().WithUser(userID, "").WithOperation(applog.OpUpdate).ToSlice()...)
	return s.users.GetUserByID(ctx, userID)
}
