package network

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wfunc/roulette/bet"
	"github.com/wfunc/roulette/models"
	"github.com/wfunc/roulette/state"
)

// Event is the tag of an envelope.
type Event string

// Outbound events.
const (
	EventConnected Event = "connected"
	EventMessage   Event = "message"
	EventState     Event = "state"
	EventResult    Event = "result"
	EventPrevious  Event = "previous"
)

// Inbound events.
const (
	EventBet            Event = "bet"
	EventReadyForResult Event = "ready-for-result"
	EventIdle           Event = "idle"
)

// ErrUnrecognizedSignal is returned by Decode for frames outside the inbound set.
var ErrUnrecognizedSignal = errors.New("unrecognized signal")

// Envelope is the wire frame in both directions.
type Envelope struct {
	Event Event           `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Inbound is a decoded client signal. The set is closed: PlaceBet, ReadyForResult, RevealComplete.
type Inbound interface {
	Event() Event
	inbound()
}

// PlaceBet submits a bet list.
type PlaceBet struct {
	Bets []bet.Entry `json:"bets"`
}

// ReadyForResult asks for the withheld outcome.
type ReadyForResult struct{}

// RevealComplete tells the server the player has finished presenting the outcome.
type RevealComplete struct{}

func (PlaceBet) Event() Event       { return EventBet }
func (ReadyForResult) Event() Event { return EventReadyForResult }
func (RevealComplete) Event() Event { return EventIdle }

func (PlaceBet) inbound()       {}
func (ReadyForResult) inbound() {}
func (RevealComplete) inbound() {}

// Decode parses a client frame. Unknown tags and undecodable payloads are
// ErrUnrecognizedSignal.
func Decode(frame []byte) (Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnrecognizedSignal, err)
	}

	switch env.Event {
	case EventBet:
		var msg PlaceBet
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			return nil, fmt.Errorf("%w: bet payload: %v", ErrUnrecognizedSignal, err)
		}
		return msg, nil
	case EventReadyForResult:
		return ReadyForResult{}, nil
	case EventIdle:
		return RevealComplete{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnrecognizedSignal, env.Event)
	}
}

// Outbound is a server message. The set is closed: Connected, Message,
// StateChanged, Result, PendingResult, Previous.
type Outbound interface {
	Event() Event
	outbound()
}

// Connected carries the freshly minted session token.
type Connected struct {
	SessionToken string `json:"sessionToken"`
}

// Message is informational text.
type Message struct {
	Text string `json:"text"`
}

// StateChanged announces the round phase.
type StateChanged struct {
	RoundState state.RoundState `json:"roundState"`
}

// Result carries a fully settled round.
type Result struct {
	Record *models.RoundRecord `json:"record"`
}

// PendingResult acknowledges an accepted bet without disclosing the outcome.
// It travels under the result tag.
type PendingResult struct {
	Record models.PendingRound `json:"record"`
}

// Previous carries the last completed round.
type Previous struct {
	Record *models.RoundRecord `json:"record"`
}

func (Connected) Event() Event     { return EventConnected }
func (Message) Event() Event       { return EventMessage }
func (StateChanged) Event() Event  { return EventState }
func (Result) Event() Event        { return EventResult }
func (PendingResult) Event() Event { return EventResult }
func (Previous) Event() Event      { return EventPrevious }

func (Connected) outbound()     {}
func (Message) outbound()       {}
func (StateChanged) outbound()  {}
func (Result) outbound()        {}
func (PendingResult) outbound() {}
func (Previous) outbound()      {}

// Encode frames msg into an envelope.
func Encode(msg Outbound) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.Event(), err)
	}
	return json.Marshal(Envelope{Event: msg.Event(), Data: data})
}

// EncodeInbound frames a client signal. Used by clients and tests.
func EncodeInbound(msg Inbound) ([]byte, error) {
	env := Envelope{Event: msg.Event()}
	if pb, ok := msg.(PlaceBet); ok {
		data, err := json.Marshal(pb)
		if err != nil {
			return nil, err
		}
		env.Data = data
	}
	return json.Marshal(env)
}
