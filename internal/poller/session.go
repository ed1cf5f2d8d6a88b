package poller

import (
	"context"
	"errors"

	"github.com/looplab/fsm"
)

// SessionState is the lifecycle phase of a polling session.
type SessionState string

const (
	// StateIdle: constructed, or the last Start attempt failed transiently.
	StateIdle SessionState = "idle"

	// StatePolling: the periodic loop is running.
	StatePolling SessionState = "polling"

	// StateAuthFailed: the token was rejected. Polling is suspended until
	// the owner reconfigures and builds a new coordinator.
	StateAuthFailed SessionState = "auth_failed"

	// StateStopped: Stop was called. Terminal.
	StateStopped SessionState = "stopped"
)

const (
	eventStart      = "start"
	eventAuthFailed = "auth_failed"
	eventStop       = "stop"
)

// session wraps the lifecycle state machine.
type session struct {
	machine *fsm.FSM
}

// newSession builds the state machine. onChange runs after every transition
// with the source and destination states.
func newSession(onChange func(from, to SessionState)) *session {
	events := fsm.Events{
		{Name: eventStart, Src: []string{string(StateIdle)}, Dst: string(StatePolling)},
		{Name: eventAuthFailed, Src: []string{string(StateIdle), string(StatePolling)}, Dst: string(StateAuthFailed)},
		{Name: eventStop, Src: []string{string(StateIdle), string(StatePolling), string(StateAuthFailed)}, Dst: string(StateStopped)},
	}

	callbacks := fsm.Callbacks{
		// enter_state fires for every destination; FSM methods must not be
		// called from here, so the states come from the event itself.
		"enter_state": func(_ context.Context, e *fsm.Event) {
			if onChange != nil {
				onChange(SessionState(e.Src), SessionState(e.Dst))
			}
		},
	}

	return &session{machine: fsm.NewFSM(string(StateIdle), events, callbacks)}
}

// fire applies event. A transition to the current state is not an error.
func (s *session) fire(event string) error {
	err := s.machine.Event(context.Background(), event)
	var noTransition fsm.NoTransitionError
	if errors.As(err, &noTransition) {
		return nil
	}
	return err
}

// state returns the current state.
func (s *session) state() SessionState {
	return SessionState(s.machine.Current())
}

// is reports whether the session is in state st.
func (s *session) is(st SessionState) bool {
	return s.machine.Is(string(st))
}
