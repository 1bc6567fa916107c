package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"walletd.org/internal/obs"
	"walletd.org/internal/store"
)

const (
	usernameMinLen = 3
	usernameMaxLen = 30
	passwordMinLen = 8
)

// Service handles registration, login and logout on top of the store and
// the token service.
type Service struct {
	store           store.Store
	tokens          *TokenService
	startingBalance decimal.Decimal
}

// NewService wires the identity flow.
func NewService(st store.Store, tokens *TokenService, startingBalance decimal.Decimal) *Service {
	if startingBalance.IsNegative() {
		startingBalance = decimal.Zero
	}
	return &Service{
		store:           st,
		tokens:          tokens,
		startingBalance: startingBalance.Round(2),
	}
}

// Tokens exposes the underlying token service for request authentication.
func (s *Service) Tokens() *TokenService {
	return s.tokens
}

// Register creates a user with the default role. The returned record
// carries the password hash; callers must not serialize it.
func (s *Service) Register(ctx context.Context, username, password, email string) (store.User, error) {
	if err := ValidateUsername(username); err != nil {
		return store.User{}, err
	}
	if err := ValidatePassword(password); err != nil {
		return store.User{}, err
	}
	if err := ValidateEmail(email); err != nil {
		return store.User{}, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return store.User{}, err
	}
	user := store.User{
		Username:     username,
		Email:        strings.TrimSpace(email),
		PasswordHash: hash,
		Role:         store.RoleUser,
		Balance:      s.startingBalance,
	}
	if err := s.store.CreateUser(ctx, &user); err != nil {
		return store.User{}, err
	}
	obs.Logger().Infow("user registered", "user_id", user.ID)
	return user, nil
}

// Login verifies the password and issues a token. Unknown usernames and
// wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, username, password string) (string, time.Time, store.User, error) {
	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", time.Time{}, store.User{}, ErrInvalidCredentials
		}
		return "", time.Time{}, store.User{}, err
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return "", time.Time{}, store.User{}, ErrInvalidCredentials
	}
	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		return "", time.Time{}, store.User{}, err
	}
	return token, expiresAt, user, nil
}

// Logout revokes the presented credential.
func (s *Service) Logout(token string) error {
	return s.tokens.Revoke(token)
}

// ValidateUsername enforces the 3-30 character policy. Usernames are
// case-sensitive; no normalization happens here or in the store.
func ValidateUsername(username string) error {
	if len(username) < usernameMinLen || len(username) > usernameMaxLen {
		return fmt.Errorf("%w: username must be %d-%d characters", ErrInvalidInput, usernameMinLen, usernameMaxLen)
	}
	for _, r := range username {
		if unicode.IsSpace(r) {
			return fmt.Errorf("%w: username must not contain spaces", ErrInvalidInput)
		}
	}
	return nil
}

// ValidatePassword requires at least 8 characters with one upper, one
// lower and one digit.
func ValidatePassword(password string) error {
	if len(password) < passwordMinLen {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, passwordMinLen)
	}
	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper || !lower || !digit {
		return fmt.Errorf("%w: password needs an upper case letter, a lower case letter and a digit", ErrInvalidInput)
	}
	return nil
}

// ValidateEmail does a minimal shape check; deliverability is not our
// problem.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	return nil
}
