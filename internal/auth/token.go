package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/elishakaranja/Mindset-coach/internal/common"
)

// ErrMissingSubject is attached when a well-signed, unexpired token has no sub.
var ErrMissingSubject = errors.New("token has no subject")

type Tokens struct {
	secret []byte
	method jwt.SigningMethod
	ttl    time.Duration
	now    func() time.Time
}

// NewTokens builds a signer for the given HMAC algorithm (HS256, HS384, HS512).
func NewTokens(secret, algorithm string, ttl time.Duration) (*Tokens, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	var method jwt.SigningMethod
	switch strings.ToUpper(algorithm) {
	case "", "HS256":
		method = jwt.SigningMethodHS256
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512":
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("unsupported jwt algorithm %q", algorithm)
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Tokens{secret: []byte(secret), method: method, ttl: ttl, now: time.Now}, nil
}

// IssueToken signs {sub, exp} with the default lifetime.
func (t *Tokens) IssueToken(subject string) (string, error) {
	return t.IssueTokenTTL(subject, t.ttl)
}

// IssueTokenTTL signs {sub, exp=now+ttl}. A zero ttl produces a token that is
// already expired.
func (t *Tokens) IssueTokenTTL(subject string, ttl time.Duration) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(t.now().Add(ttl)),
	}
	return jwt.NewWithClaims(t.method, claims).SignedString(t.secret)
}

// VerifyToken returns the token subject. Every failure matches
// common.ErrUnauthorized; the underlying reason stays attached for logs.
func (t *Tokens) VerifyToken(token string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{t.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrUnauthorized, err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", fmt.Errorf("%w: %w", common.ErrUnauthorized, ErrMissingSubject)
	}
	return claims.Subject, nil
}
