package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// RoleAdmin is the role claim carried by every issued token.
const RoleAdmin = "ADMIN"

// DefaultTokenTTL is used when the issuer is built with a non-positive ttl.
const DefaultTokenTTL = 66666666 * time.Millisecond

// Claims is the payload of a session token.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// TokenIssuer signs and verifies HS256 session tokens with a fixed secret.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates a TokenIssuer. The secret must not be empty.
func NewTokenIssuer(secret []byte, ttl time.Duration) (*TokenIssuer, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenIssuer{secret: secret, ttl: ttl, now: time.Now}, nil
}

// TTL returns the lifetime of issued tokens.
func (t *TokenIssuer) TTL() time.Duration {
	return t.ttl
}

// Issue signs a token for username, valid from now for the issuer's ttl.
func (t *TokenIssuer) Issue(username string) (string, error) {
	return t.IssueAt(username, t.now())
}

// IssueAt signs a token for username as if it had been issued at issuedAt.
func (t *TokenIssuer) IssueAt(username string, issuedAt time.Time) (string, error) {
	if username == "" {
		return "", errors.New("cannot issue token: empty subject")
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(t.ttl)),
			ID:        uuid.NewString(),
		},
		Role: RoleAdmin,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateAndExtract verifies signature, structure and expiry of token and
// returns its claims. Every failure wraps ErrInvalidToken.
func (t *TokenIssuer) ValidateAndExtract(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(_ *jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: token expired", ErrInvalidToken)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	if claims.Role != RoleAdmin {
		return nil, fmt.Errorf("%w: unexpected role %q", ErrInvalidToken, claims.Role)
	}

	return claims, nil
}

// Validate reports whether token is currently valid.
// Use ValidateAndExtract when the failure reason matters.
func (t *TokenIssuer) Validate(token string) bool {
	_, err := t.ValidateAndExtract(token)
	return err == nil
}

// ExtractSubject returns the username of a valid token.
func (t *TokenIssuer) ExtractSubject(token string) (string, error) {
	claims, err := t.ValidateAndExtract(token)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}
