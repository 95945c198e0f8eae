// broadcast/broadcast.go
package broadcast

import (
	"errors"
	"fmt"

	"github.com/wfunc/roulette/logger"
	"github.com/wfunc/roulette/network"
	"github.com/wfunc/roulette/session"
)

// Broadcaster delivers outbound messages to registered sessions.
type Broadcaster interface {
	Unicast(connID string, msg network.Outbound) error
	Broadcast(msg network.Outbound) error
}

// SessionSource is the subset of session.Registry a broadcaster reads.
type SessionSource interface {
	Get(connID string) (*session.Session, bool)
	Sessions() []*session.Session
}

// RegistryBroadcaster fans out over every session in a registry, players and
// observers alike.
type RegistryBroadcaster struct {
	sessions SessionSource
}

func NewRegistryBroadcaster(sessions SessionSource) *RegistryBroadcaster {
	return &RegistryBroadcaster{sessions: sessions}
}

func (b *RegistryBroadcaster) Unicast(connID string, msg network.Outbound) error {
	s, exists := b.sessions.Get(connID)
	if !exists {
		return fmt.Errorf("unicast %s: %w", msg.Event(), session.ErrNoSession)
	}
	if err := s.Send(msg); err != nil {
		logger.Log.Warnw("unicast failed", "conn", connID, "event", msg.Event(), "error", err)
		return err
	}
	return nil
}

// Broadcast sends msg to every session. A failed send does not stop the fan-out.
func (b *RegistryBroadcaster) Broadcast(msg network.Outbound) error {
	var errs []error
	for _, s := range b.sessions.Sessions() {
		if err := s.Send(msg); err != nil {
			logger.Log.Warnw("broadcast send failed", "conn", s.ConnID(), "event", msg.Event(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", s.ConnID(), err))
		}
	}
	return errors.Join(errs...)
}
