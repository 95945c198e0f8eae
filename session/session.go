// session/session.go
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/wfunc/roulette/auth"
	"github.com/wfunc/roulette/network"
)

var (
	// ErrCapacityExceeded refuses a second player while one is registered.
	ErrCapacityExceeded = errors.New("single-player-only server")
	// ErrNoSession means the connection never authenticated.
	ErrNoSession = errors.New("session: no session for connection")
	// ErrAlreadyRegistered means the connection already owns a session.
	ErrAlreadyRegistered = errors.New("session: connection already registered")
)

// Session is an authenticated connection.
type Session struct {
	Token     string
	PlayerID  string
	Role      auth.Role
	Conn      network.Connection
	CreatedAt time.Time
}

// ConnID is the identity of the owning connection.
func (s *Session) ConnID() string {
	return s.Conn.ID()
}

func (s *Session) IsPlayer() bool {
	return s.Role == auth.RolePlayer
}

func (s *Session) Send(msg network.Outbound) error {
	return s.Conn.Send(msg)
}

func (s *Session) Close() error {
	return s.Conn.Close()
}

// TokenMinter mints session tokens. *auth.TokenIssuer satisfies it.
type TokenMinter interface {
	Issue(id auth.Identity) (string, error)
}

// Registry tracks at most one player session and any number of observer
// sessions, keyed by connection id.
type Registry struct {
	authenticator auth.Authenticator
	tokens        TokenMinter
	clock         quartz.Clock
	sessions      map[string]*Session
	playerConn    string
	mutex         sync.RWMutex
}

// NewRegistry stamps sessions with clock; nil means wall time.
func NewRegistry(authenticator auth.Authenticator, tokens TokenMinter, clock quartz.Clock) *Registry {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &Registry{
		authenticator: authenticator,
		tokens:        tokens,
		clock:         clock,
		sessions:      make(map[string]*Session),
	}
}

// Authenticate checks creds with the external authenticator and builds a
// session for conn with a fresh token. The role comes from the authenticator.
// A player is refused with ErrCapacityExceeded while another player is
// registered, even when the credentials are good. The returned session is not
// registered yet.
func (r *Registry) Authenticate(ctx context.Context, creds auth.Credentials, conn network.Connection) (*Session, error) {
	identity, err := r.authenticator.Authenticate(ctx, creds)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		return nil, auth.ErrAuthenticationFailed
	}

	if identity.Role == auth.RolePlayer {
		if _, ok := r.Player(); ok {
			return nil, ErrCapacityExceeded
		}
	}

	token, err := r.tokens.Issue(*identity)
	if err != nil {
		return nil, fmt.Errorf("session: mint token: %w", err)
	}

	return &Session{
		Token:     token,
		PlayerID:  identity.PlayerID,
		Role:      identity.Role,
		Conn:      conn,
		CreatedAt: r.clock.Now(),
	}, nil
}

// Register adds s. The player slot is re-checked here so two players that
// authenticated concurrently cannot both get in.
func (r *Registry) Register(s *Session) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	connID := s.ConnID()
	if _, exists := r.sessions[connID]; exists {
		return ErrAlreadyRegistered
	}
	if s.IsPlayer() {
		if r.playerConn != "" {
			return ErrCapacityExceeded
		}
		r.playerConn = connID
	}
	r.sessions[connID] = s
	return nil
}

// Unregister removes the session owned by connID and returns it.
func (r *Registry) Unregister(connID string) (*Session, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	s, exists := r.sessions[connID]
	if !exists {
		return nil, false
	}
	delete(r.sessions, connID)
	if r.playerConn == connID {
		r.playerConn = ""
	}
	return s, true
}

func (r *Registry) Get(connID string) (*Session, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	s, exists := r.sessions[connID]
	return s, exists
}

// Player returns the registered player session, if any.
func (r *Registry) Player() (*Session, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if r.playerConn == "" {
		return nil, false
	}
	return r.sessions[r.playerConn], true
}

// Sessions returns a snapshot of every session, oldest first.
func (r *Registry) Sessions() []*Session {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	result := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ConnID() < result[j].ConnID()
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// Count returns the number of player and observer sessions.
func (r *Registry) Count() (players, observers int) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	for _, s := range r.sessions {
		if s.IsPlayer() {
			players++
		} else {
			observers++
		}
	}
	return players, observers
}
