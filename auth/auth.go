// Package auth is the boundary to credential storage: it checks credentials,
// decides the role of the connection and mints session tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wfunc/roulette/models"
	"github.com/wfunc/roulette/persistence"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrAuthenticationFailed means the credentials were definitively rejected.
	ErrAuthenticationFailed = errors.New("auth: authentication failed")

	// ErrUnavailable means the credential store could not be reached.
	ErrUnavailable = errors.New("auth: unavailable")
)

// Role decides what a connection may do.
type Role string

const (
	RolePlayer   Role = "player"
	RoleObserver Role = "observer"
)

// ParseRole accepts "player", "observer" and the legacy "spectator".
func ParseRole(s string) (Role, error) {
	switch s {
	case string(RolePlayer):
		return RolePlayer, nil
	case string(RoleObserver), "spectator":
		return RoleObserver, nil
	default:
		return "", fmt.Errorf("auth: unknown role %q", s)
	}
}

// Credentials are presented by a connecting client.
type Credentials struct {
	Identity string
	Secret   string
}

// Identity is an authenticated principal.
type Identity struct {
	PlayerID string
	Role     Role
}

// Authenticator checks credentials.
//
// Authenticate returns:
//   - (*Identity, nil) for valid credentials
//   - (nil, ErrAuthenticationFailed) for bad credentials
//   - (nil, ErrUnavailable) when the store cannot answer
type Authenticator interface {
	Authenticate(ctx context.Context, creds Credentials) (*Identity, error)
}

// HashSecret returns the bcrypt hash stored for a secret.
func HashSecret(secret string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
}

func secretMatches(hash []byte, secret string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(secret)) == nil
}

// UserSpec is a statically configured user.
type UserSpec struct {
	ID     string
	Secret string
	Role   string
}

// MemoryAuthenticator checks credentials against an in-process user table.
type MemoryAuthenticator struct {
	users map[string]models.User
}

// NewMemoryAuthenticator hashes the configured secrets up front.
func NewMemoryAuthenticator(specs []UserSpec) (*MemoryAuthenticator, error) {
	users := make(map[string]models.User, len(specs))
	for _, u := range specs {
		if u.ID == "" {
			return nil, errors.New("auth: user with empty id")
		}
		role, err := ParseRole(u.Role)
		if err != nil {
			return nil, fmt.Errorf("user %s: %w", u.ID, err)
		}
		hash, err := HashSecret(u.Secret)
		if err != nil {
			return nil, fmt.Errorf("user %s: hash secret: %w", u.ID, err)
		}
		users[u.ID] = models.User{PlayerID: u.ID, SecretHash: hash, Role: string(role)}
	}
	return &MemoryAuthenticator{users: users}, nil
}

func (a *MemoryAuthenticator) Authenticate(ctx context.Context, creds Credentials) (*Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	user, ok := a.users[creds.Identity]
	if !ok || !secretMatches(user.SecretHash, creds.Secret) {
		return nil, ErrAuthenticationFailed
	}
	return &Identity{PlayerID: user.PlayerID, Role: Role(user.Role)}, nil
}

// UserStore loads stored credentials. persistence.Database satisfies it.
type UserStore interface {
	LoadUser(ctx context.Context, playerID string) (*models.User, error)
}

// DatabaseAuthenticator checks credentials against a UserStore.
type DatabaseAuthenticator struct {
	store   UserStore
	timeout time.Duration
}

// NewDatabaseAuthenticator bounds every lookup by timeout (zero means no bound).
func NewDatabaseAuthenticator(store UserStore, timeout time.Duration) *DatabaseAuthenticator {
	return &DatabaseAuthenticator{store: store, timeout: timeout}
}

func (a *DatabaseAuthenticator) Authenticate(ctx context.Context, creds Credentials) (*Identity, error) {
	if creds.Identity == "" {
		return nil, ErrAuthenticationFailed
	}
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	user, err := a.store.LoadUser(ctx, creds.Identity)
	if errors.Is(err, persistence.ErrRecordNotFound) {
		return nil, ErrAuthenticationFailed
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !secretMatches(user.SecretHash, creds.Secret) {
		return nil, ErrAuthenticationFailed
	}
	role, err := ParseRole(user.Role)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &Identity{PlayerID: user.PlayerID, Role: role}, nil
}
