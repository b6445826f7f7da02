package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"housefin/internal/core"
)

// TokenType is reported to API clients alongside issued tokens.
const TokenType = "bearer"

// SupportedAlgorithms lists the accepted HMAC signing algorithms.
var SupportedAlgorithms = []string{"HS256", "HS384", "HS512"}

// Identity is the user identity carried by a session token.
type Identity struct {
	UserID   string
	Username string
}

// Claims is the JWT payload: sub holds the username, uid the user ID.
type Claims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies session tokens with a process-wide key.
type TokenManager struct {
	secret []byte
	method jwt.SigningMethod
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager builds a manager for the given secret, algorithm and default TTL.
func NewTokenManager(secret, algorithm string, ttl time.Duration) (*TokenManager, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("token signing secret is empty")
	}
	method := jwt.GetSigningMethod(algorithm)
	if method == nil || !isSupported(algorithm) {
		return nil, fmt.Errorf("unsupported token algorithm %q", algorithm)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("invalid token ttl %v", ttl)
	}
	return &TokenManager{
		secret: []byte(secret),
		method: method,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// TTL returns the default token lifetime.
func (m *TokenManager) TTL() time.Duration {
	return m.ttl
}

// Issue returns a signed token for id that expires after ttl.
// A non-positive ttl uses the manager's default.
func (m *TokenManager) Issue(id Identity, ttl time.Duration) (string, error) {
	if id.UserID == "" || id.Username == "" {
		return "", errors.New("issue token: empty identity")
	}
	if ttl <= 0 {
		ttl = m.ttl
	}
	now := m.now()
	claims := Claims{
		UserID: id.UserID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(m.method, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, algorithm and expiry and returns the embedded
// identity. Every failure wraps core.ErrUnauthenticated.
func (m *TokenManager) Verify(token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, fmt.Errorf("%w: missing token", core.ErrUnauthenticated)
	}
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", core.ErrUnauthenticated, err)
	}
	if claims.Subject == "" || claims.UserID == "" {
		return Identity{}, fmt.Errorf("%w: token missing identity", core.ErrUnauthenticated)
	}
	return Identity{UserID: claims.UserID, Username: claims.Subject}, nil
}

func isSupported(alg string) bool {
	for _, a := range SupportedAlgorithms {
		if a == alg {
			return true
		}
	}
	return false
}
