package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"walletd.org/internal/store"
)

const (
	issuer          = "walletd"
	minSecretLen    = 32 // 256 bits
	defaultTokenTTL = time.Hour
)

// Claims are the JWT claims carried by a bearer token.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// UserSource resolves token subjects against current user records.
type UserSource interface {
	GetUser(ctx context.Context, id string) (store.User, error)
}

// TokenService issues and validates bearer tokens and keeps the
// revocation set.
type TokenService struct {
	secret  []byte
	ttl     time.Duration
	now     func() time.Time
	users   UserSource
	revoked *RevocationSet
}

// TokenOption configures the token service.
type TokenOption func(*TokenService) error

// WithSecret uses a configured signing secret instead of a generated one.
// The secret must be at least 256 bits to resist brute-force guessing.
func WithSecret(secret string) TokenOption {
	return func(s *TokenService) error {
		if secret == "" {
			return nil
		}
		if len(secret) < minSecretLen {
			return errors.New("auth: token secret must be at least 32 bytes")
		}
		s.secret = []byte(secret)
		return nil
	}
}

// WithTTL overrides the token lifetime.
func WithTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) error {
		if ttl > 0 {
			s.ttl = ttl
		}
		return nil
	}
}

// WithClock overrides the time source (useful for expiry tests).
func WithClock(fn func() time.Time) TokenOption {
	return func(s *TokenService) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// NewTokenService constructs the service. When no secret is configured a
// fresh 256-bit one is drawn from crypto/rand, so tokens do not survive a
// restart but the secret is never guessable.
func NewTokenService(users UserSource, opts ...TokenOption) (*TokenService, error) {
	if users == nil {
		return nil, errors.New("auth: user source is required")
	}
	svc := &TokenService{
		ttl:     defaultTokenTTL,
		now:     time.Now,
		users:   users,
		revoked: NewRevocationSet(),
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	if len(svc.secret) == 0 {
		secret := make([]byte, minSecretLen)
		if _, err := rand.Read(secret); err != nil {
			return nil, err
		}
		svc.secret = secret
	}
	return svc, nil
}

// Issue signs a token for the user. The role claim is informational;
// Validate re-derives it from the store.
func (s *TokenService) Issue(user store.User) (string, time.Time, error) {
	if user.ID == "" {
		return "", time.Time{}, errors.New("auth: user id is required")
	}
	now := s.now().UTC()
	expiresAt := now.Add(s.ttl)
	claims := Claims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Validate verifies the token and returns its claims with the role taken
// from the current user record, not from the token, since roles can
// change between issuance and use. Every failure is ErrInvalidToken.
func (s *TokenService) Validate(ctx context.Context, raw string) (Claims, error) {
	claims, err := s.parse(raw)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	if s.revoked.Contains(claims.ID) {
		return Claims{}, ErrInvalidToken
	}
	user, err := s.users.GetUser(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Claims{}, ErrInvalidToken
		}
		return Claims{}, err
	}
	claims.Role = user.Role
	return *claims, nil
}

// Revoke adds the token's identifier to the revocation set. The
// signature must verify so arbitrary identifiers cannot be planted.
// Idempotent for already-revoked tokens.
func (s *TokenService) Revoke(raw string) error {
	claims, err := s.parse(raw)
	if err != nil {
		return ErrInvalidToken
	}
	s.revoked.Add(claims.ID)
	return nil
}

func (s *TokenService) parse(raw string) (*Claims, error) {
	if raw == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(raw, &Claims{},
		func(t *jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(func() time.Time { return s.now() }),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" || claims.ID == "" || claims.ExpiresAt == nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
