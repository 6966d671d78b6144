package engine

import (
	"fmt"

	"github.com/mberti/formflow/internal/session"
)

// EventKind names the inbound events the conversation reacts to.
type EventKind string

const (
	EventStart          EventKind = "start"
	EventBeginSelection EventKind = "begin_selection"
	EventSelectTemplate EventKind = "select_template"
	EventSubmitAnswer   EventKind = "submit_answer"
	EventConfirmRestart EventKind = "confirm_restart"
	EventFinalize       EventKind = "finalize"
	EventCancel         EventKind = "cancel"
)

// noSession marks the absence of a session in the transition table.
const noSession session.State = ""

// transitions lists every legal (state, event) pair and the nominal state the
// session moves to. Data-dependent refinements (last answer moving COLLECTING
// to DONE, CONFIRMING resuming its prior state) are applied by the engine on
// top of the nominal target.
var transitions = map[session.State]map[EventKind]session.State{
	noSession: {
		EventStart:  session.StateIdle,
		EventCancel: noSession,
	},
	session.StateIdle: {
		EventStart:          session.StateIdle,
		EventBeginSelection: session.StateAwaitingTemplate,
		EventCancel:         noSession,
	},
	session.StateAwaitingTemplate: {
		EventStart:          session.StateIdle,
		EventSelectTemplate: session.StateCollecting,
		EventCancel:         noSession,
	},
	session.StateCollecting: {
		EventStart:        session.StateConfirming,
		EventSubmitAnswer: session.StateCollecting,
		EventCancel:       noSession,
	},
	session.StateConfirming: {
		EventStart:          session.StateConfirming,
		EventConfirmRestart: session.StateIdle,
		EventSubmitAnswer:   session.StateCollecting,
		EventFinalize:       session.StateDone,
		EventCancel:         noSession,
	},
	session.StateDone: {
		EventStart:    session.StateConfirming,
		EventFinalize: session.StateDone,
		EventCancel:   noSession,
	},
}

// transition reports the nominal next state for an event, or ErrInvalidState
// when the event is not legal in the current state. It is pure so the whole
// table can be tested exhaustively.
func transition(state session.State, event EventKind) (session.State, error) {
	if next, ok := transitions[state][event]; ok {
		return next, nil
	}
	if state == noSession {
		return noSession, fmt.Errorf("%w: no active session for event %q", ErrInvalidState, event)
	}
	return state, fmt.Errorf("%w: event %q in state %q", ErrInvalidState, event, state)
}
