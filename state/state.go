package state

import (
	"errors"
	"sync"
)

// RoundState is the phase of the live round.
type RoundState string

const (
	// Idle accepts a new bet.
	Idle RoundState = "idle"
	// InPlay has an outcome computed but withheld.
	InPlay RoundState = "in_play"
	// Finishing has the outcome revealed to the player, awaiting acknowledgement.
	Finishing RoundState = "finishing"
)

// RoundStates is the cyclic order a round moves through.
var RoundStates = []RoundState{Idle, InPlay, Finishing}

func (s RoundState) String() string {
	return string(s)
}

// ErrUnknownState is returned when entering a state the machine was not built with.
var ErrUnknownState = errors.New("state: unknown state")

// Listener receives enter/exit notifications.
type Listener interface {
	OnEnter(state RoundState)
	OnExit(state RoundState)
}

// StateMachine is a finite cyclic state holder. It has no guards of its own:
// callers only advance when a transition is valid.
type StateMachine interface {
	Enter(state RoundState) error
	Advance()
	Reset()
	Current() RoundState
}

// CyclicStateMachine moves through an ordered list of states, wrapping from the
// last back to the first.
type CyclicStateMachine struct {
	states   []RoundState
	index    int
	listener Listener
	mutex    sync.RWMutex
}

// NewCyclicStateMachine builds a machine over states. It does not enter any
// state; call Enter once at start-up.
func NewCyclicStateMachine(listener Listener, states ...RoundState) *CyclicStateMachine {
	if len(states) == 0 {
		states = RoundStates
	}
	return &CyclicStateMachine{
		states:   append([]RoundState(nil), states...),
		listener: listener,
	}
}

// NewRoundStateMachine builds the idle -> in_play -> finishing machine.
func NewRoundStateMachine(listener Listener) *CyclicStateMachine {
	return NewCyclicStateMachine(listener, RoundStates...)
}

// Enter sets the current state and emits Enter for it. No Exit is emitted.
func (sm *CyclicStateMachine) Enter(state RoundState) error {
	sm.mutex.Lock()
	idx := -1
	for i, s := range sm.states {
		if s == state {
			idx = i
			break
		}
	}
	if idx < 0 {
		sm.mutex.Unlock()
		return ErrUnknownState
	}
	sm.index = idx
	sm.mutex.Unlock()

	sm.notifyEnter(state)
	return nil
}

// Advance emits Exit for the current state, moves to the next state in cyclic
// order and emits Enter for it.
func (sm *CyclicStateMachine) Advance() {
	sm.mutex.Lock()
	from := sm.states[sm.index]
	sm.index = wrappedIndex(sm.index+1, len(sm.states))
	to := sm.states[sm.index]
	sm.mutex.Unlock()

	sm.notifyExit(from)
	sm.notifyEnter(to)
}

// Reset is the out-of-band hard reset to the first state. It fires from any
// state, including the first, and emits Exit then Enter.
func (sm *CyclicStateMachine) Reset() {
	sm.mutex.Lock()
	from := sm.states[sm.index]
	sm.index = 0
	to := sm.states[0]
	sm.mutex.Unlock()

	sm.notifyExit(from)
	sm.notifyEnter(to)
}

// Current returns the current state.
func (sm *CyclicStateMachine) Current() RoundState {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()
	return sm.states[sm.index]
}

func (sm *CyclicStateMachine) notifyEnter(s RoundState) {
	if sm.listener != nil {
		sm.listener.OnEnter(s)
	}
}

func (sm *CyclicStateMachine) notifyExit(s RoundState) {
	if sm.listener != nil {
		sm.listener.OnExit(s)
	}
}

func wrappedIndex(index, length int) int {
	i := index % length
	if i < 0 {
		return i + length
	}
	return i
}
