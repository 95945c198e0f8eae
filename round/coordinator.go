// round/coordinator.go
package round

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/wfunc/roulette/auth"
	"github.com/wfunc/roulette/bet"
	"github.com/wfunc/roulette/broadcast"
	"github.com/wfunc/roulette/logger"
	"github.com/wfunc/roulette/models"
	"github.com/wfunc/roulette/network"
	"github.com/wfunc/roulette/rng"
	"github.com/wfunc/roulette/services"
	"github.com/wfunc/roulette/session"
	"github.com/wfunc/roulette/state"
)

// ErrStaleSignal marks a known signal that is not legal right now, either
// because of the round state or the sender's role. It is dropped silently.
var ErrStaleSignal = errors.New("stale signal")

// Refusal texts sent before a refused connection is closed.
const (
	refusedCapacity = "This is a single-player only server"
	refusedAuth     = "Connection refused"
	welcomeFormat   = "Welcome to Quick Gaming Roulette, %s!"
)

// History keeps the last completed round. *services.History satisfies it.
type History interface {
	Record(rec *models.RoundRecord)
	Previous() *models.RoundRecord
}

// Metrics receives coordinator events. *monitor.Monitor satisfies it.
type Metrics interface {
	SessionOpened(role auth.Role)
	SessionClosed(role auth.Role)
	Refused(reason string)
	MessageReceived(event network.Event)
	StaleSignal(event network.Event)
	RoundSettled(rec *models.RoundRecord)
	ObserveDispatch(duration time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) SessionOpened(auth.Role)          {}
func (nopMetrics) SessionClosed(auth.Role)          {}
func (nopMetrics) Refused(string)                   {}
func (nopMetrics) MessageReceived(network.Event)    {}
func (nopMetrics) StaleSignal(network.Event)        {}
func (nopMetrics) RoundSettled(*models.RoundRecord) {}
func (nopMetrics) ObserveDispatch(time.Duration)    {}

// Config wires a Coordinator. Only Registry is required.
type Config struct {
	Registry    *session.Registry
	Broadcaster broadcast.Broadcaster
	Generator   rng.Generator
	Clock       quartz.Clock
	History     History
	Metrics     Metrics
}

// Coordinator is the single serialization point of the table. Every mutation
// of the round state, the current record and the player slot happens under mutex.
type Coordinator struct {
	registry    *session.Registry
	broadcaster broadcast.Broadcaster
	generator   rng.Generator
	clock       quartz.Clock
	history     History
	metrics     Metrics
	machine     *state.CyclicStateMachine
	current     *models.RoundRecord
	mutex       sync.Mutex
}

func NewCoordinator(cfg Config) *Coordinator {
	c := &Coordinator{
		registry:    cfg.Registry,
		broadcaster: cfg.Broadcaster,
		generator:   cfg.Generator,
		clock:       cfg.Clock,
		history:     cfg.History,
		metrics:     cfg.Metrics,
	}
	if c.broadcaster == nil {
		c.broadcaster = broadcast.NewRegistryBroadcaster(c.registry)
	}
	if c.generator == nil {
		c.generator = rng.NewCryptoGenerator()
	}
	if c.clock == nil {
		c.clock = quartz.NewReal()
	}
	if c.history == nil {
		c.history = services.NewHistory(nil)
	}
	if c.metrics == nil {
		c.metrics = nopMetrics{}
	}
	c.machine = state.NewRoundStateMachine(c)
	return c
}

// Start enters the idle state. Call once before serving connections.
func (c *Coordinator) Start() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	// Enter only fails for states the machine was not built with.
	_ = c.machine.Enter(state.Idle)
}

// --- state.Listener ---

func (c *Coordinator) OnEnter(s state.RoundState) {
	logger.Log.Infow("round state entered", "state", s)
	_ = c.broadcaster.Broadcast(network.StateChanged{RoundState: s})
}

func (c *Coordinator) OnExit(s state.RoundState) {
	logger.Log.Debugw("round state exited", "state", s)
}

// --- admission ---

// Join authenticates conn and registers its session. Authentication runs
// without the coordinator lock so a slow authenticator never stalls a round.
// A refused connection receives a message and is closed.
func (c *Coordinator) Join(ctx context.Context, conn network.Connection, creds auth.Credentials) (*session.Session, error) {
	s, err := c.registry.Authenticate(ctx, creds, conn)
	if err == nil {
		c.mutex.Lock()
		err = c.registry.Register(s)
		if err == nil {
			c.welcome(s)
		}
		c.mutex.Unlock()
	}
	if err != nil {
		c.refuse(conn, creds.Identity, err)
		return nil, err
	}

	c.metrics.SessionOpened(s.Role)
	logger.Log.Infow("session joined", "conn", s.ConnID(), "player", s.PlayerID, "role", s.Role)
	return s, nil
}

// welcome sends the greeting sequence. Called with mutex held so no state
// broadcast can slip in ahead of the connected event.
func (c *Coordinator) welcome(s *session.Session) {
	connID := s.ConnID()
	_ = c.broadcaster.Unicast(connID, network.Connected{SessionToken: s.Token})
	_ = c.broadcaster.Unicast(connID, network.Message{Text: fmt.Sprintf(welcomeFormat, s.PlayerID)})
	_ = c.broadcaster.Unicast(connID, network.StateChanged{RoundState: c.machine.Current()})
	if prev := c.history.Previous(); prev != nil {
		_ = c.broadcaster.Unicast(connID, network.Previous{Record: prev})
	}
}

func (c *Coordinator) refuse(conn network.Connection, identity string, err error) {
	text, reason := refusedAuth, "auth"
	if errors.Is(err, session.ErrCapacityExceeded) {
		text, reason = refusedCapacity, "capacity"
	}
	c.metrics.Refused(reason)
	logger.Log.Warnw("connection refused", "conn", conn.ID(), "player", identity, "reason", reason, "error", err)

	if sendErr := conn.Send(network.Message{Text: text}); sendErr != nil {
		logger.Log.Debugw("refusal message not delivered", "conn", conn.ID(), "error", sendErr)
	}
	_ = conn.Close()
}

// Leave drops the session owned by connID. When the player leaves, the round
// is abandoned and the table is forced back to idle. Observers leave silently.
func (c *Coordinator) Leave(connID string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	s, ok := c.registry.Unregister(connID)
	if !ok {
		return
	}
	c.metrics.SessionClosed(s.Role)
	logger.Log.Infow("session left", "conn", connID, "player", s.PlayerID, "role", s.Role)

	if !s.IsPlayer() {
		return
	}
	if c.current != nil {
		logger.Log.Infow("round abandoned", "round", c.current.ID, "state", c.machine.Current())
	}
	c.current = nil
	c.machine.Reset()
}

// --- dispatch ---

// Handle processes one inbound signal from connID.
//
// A connection without a session yields an error wrapping
// network.ErrUnrecognizedSignal and must be closed by the caller. Signals that
// are illegal for the sender's role or the current state yield ErrStaleSignal
// and change nothing.
func (c *Coordinator) Handle(connID string, msg network.Inbound) error {
	start := c.clock.Now()
	defer func() { c.metrics.ObserveDispatch(c.clock.Since(start)) }()

	c.mutex.Lock()
	defer c.mutex.Unlock()

	s, ok := c.registry.Get(connID)
	if !ok {
		return fmt.Errorf("%w: %w", network.ErrUnrecognizedSignal, session.ErrNoSession)
	}
	c.metrics.MessageReceived(msg.Event())

	if !s.IsPlayer() {
		return c.stale(s, msg)
	}

	switch m := msg.(type) {
	case network.PlaceBet:
		return c.placeBet(s, m)
	case network.ReadyForResult:
		return c.readyForResult(s, m)
	case network.RevealComplete:
		return c.revealComplete(s, m)
	default:
		return fmt.Errorf("%w: %T", network.ErrUnrecognizedSignal, msg)
	}
}

func (c *Coordinator) stale(s *session.Session, msg network.Inbound) error {
	current := c.machine.Current()
	c.metrics.StaleSignal(msg.Event())
	logger.Log.Debugw("stale signal dropped", "conn", s.ConnID(), "role", s.Role, "event", msg.Event(), "state", current)
	return fmt.Errorf("%w: %s from %s in %s", ErrStaleSignal, msg.Event(), s.Role, current)
}

func (c *Coordinator) placeBet(s *session.Session, m network.PlaceBet) error {
	if c.machine.Current() != state.Idle {
		return c.stale(s, m)
	}
	if err := bet.Validate(m.Bets); err != nil {
		logger.Log.Warnw("bet rejected", "conn", s.ConnID(), "player", s.PlayerID, "error", err)
		_ = c.broadcaster.Unicast(s.ConnID(), network.Message{Text: err.Error()})
		return err
	}

	outcome := rng.Outcome(c.generator)
	settlement := bet.Settle(m.Bets, outcome)
	rec := models.NewRoundRecord(uuid.NewString(), s.PlayerID, m.Bets, outcome, settlement, c.clock.Now())
	c.current = rec
	c.metrics.RoundSettled(rec)

	logger.Log.Infow("bet accepted", "round", rec.ID, "player", s.PlayerID, "bets", len(rec.Bets), "stake", bet.Stake(rec.Bets))
	logger.Log.Debugw("round settled", "round", rec.ID, "outcome", outcome, "total_win", rec.TotalWin)

	c.machine.Advance()
	return c.broadcaster.Unicast(s.ConnID(), network.PendingResult{Record: rec.Pending()})
}

func (c *Coordinator) readyForResult(s *session.Session, m network.ReadyForResult) error {
	if c.machine.Current() != state.InPlay {
		return c.stale(s, m)
	}
	c.machine.Advance()
	logger.Log.Infow("result revealed to player", "round", c.current.ID, "player", s.PlayerID)
	return c.broadcaster.Unicast(s.ConnID(), network.Result{Record: c.current})
}

func (c *Coordinator) revealComplete(s *session.Session, m network.RevealComplete) error {
	if c.machine.Current() != state.Finishing {
		return c.stale(s, m)
	}
	rec := c.current
	if err := c.broadcaster.Broadcast(network.Result{Record: rec}); err != nil {
		logger.Log.Warnw("result broadcast incomplete", "round", rec.ID, "error", err)
	}
	logger.Log.Infow("round complete", "round", rec.ID, "outcome", rec.Result, "total_win", rec.TotalWin)

	c.history.Record(rec)
	c.current = nil
	c.machine.Advance()
	return nil
}

// --- inspection ---

// Snapshot is a point-in-time view of the table.
type Snapshot struct {
	State     state.RoundState    `json:"state"`
	PlayerID  string              `json:"playerId,omitempty"`
	Observers int                 `json:"observers"`
	RoundID   string              `json:"roundId,omitempty"`
	Previous  *models.RoundRecord `json:"previous,omitempty"`
}

func (c *Coordinator) Snapshot() Snapshot {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, observers := c.registry.Count()
	snap := Snapshot{
		State:     c.machine.Current(),
		Observers: observers,
		Previous:  c.history.Previous(),
	}
	if p, ok := c.registry.Player(); ok {
		snap.PlayerID = p.PlayerID
	}
	if c.current != nil {
		snap.RoundID = c.current.ID
	}
	return snap
}

// State returns the current round state.
func (c *Coordinator) State() state.RoundState {
	return c.machine.Current()
}

// Current returns the record of the round in progress, or nil when idle.
func (c *Coordinator) Current() *models.RoundRecord {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.current
}
