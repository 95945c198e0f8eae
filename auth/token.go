package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned by Parse for a token this issuer did not mint,
// or one that has expired.
var ErrInvalidToken = errors.New("auth: invalid session token")

// Claims carried by a session token.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// TokenIssuer mints HMAC-signed session tokens. Clients treat them as opaque.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates an issuer. A zero ttl issues tokens without expiry.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue mints a fresh token for id. Every call yields a distinct token.
func (t *TokenIssuer) Issue(id Identity) (string, error) {
	now := t.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.NewString(),
			Subject:  id.PlayerID,
			IssuedAt: jwt.NewNumericDate(now),
		},
		Role: string(id.Role),
	}
	if t.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(t.ttl))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Parse validates a token minted by this issuer.
func (t *TokenIssuer) Parse(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// TokenAuthenticator lets a client resume with the session token it was given
// in place of its secret. The token must belong to creds.Identity; the role is
// the one recorded in the token. Anything else is handed to next.
type TokenAuthenticator struct {
	issuer *TokenIssuer
	next   Authenticator
}

func NewTokenAuthenticator(issuer *TokenIssuer, next Authenticator) *TokenAuthenticator {
	return &TokenAuthenticator{issuer: issuer, next: next}
}

func (a *TokenAuthenticator) Authenticate(ctx context.Context, creds Credentials) (*Identity, error) {
	if id, ok := a.resume(creds); ok {
		return id, nil
	}
	return a.next.Authenticate(ctx, creds)
}

func (a *TokenAuthenticator) resume(creds Credentials) (*Identity, bool) {
	claims, err := a.issuer.Parse(creds.Secret)
	if err != nil || claims.Subject == "" || claims.Subject != creds.Identity {
		return nil, false
	}
	role, err := ParseRole(claims.Role)
	if err != nil {
		return nil, false
	}
	return &Identity{PlayerID: claims.Subject, Role: role}, true
}
